// internal/handlers/room.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/game"
)

type createRoomResponse struct {
	ID      uuid.UUID    `json:"id"`
	Options game.Options `json:"options"`
}

// roomSummary is one row of the room list.
type roomSummary struct {
	ID         uuid.UUID `json:"id"`
	Users      int       `json:"users"`
	MaxClients int       `json:"maxClients"`
	Locked     bool      `json:"locked"`
	State      string    `json:"state"`
}

// CreateRoomHandler starts a new room. The body holds optional room options;
// missing or non-positive values use the server defaults.
func CreateRoomHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if _, err := authenticateRequest(r); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		var opts game.Options
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "bad room request payload", http.StatusBadRequest)
			return
		}

		effective := opts.WithDefaults(gs.defaultOptions())
		rn := gs.CreateRoom(effective)
		writeJSON(w, http.StatusCreated, createRoomResponse{ID: rn.ID(), Options: effective})
	}
}

// ListRoomsHandler returns a summary of every running room.
func ListRoomsHandler(gs *GameServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, err := authenticateRequest(r); err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		rooms := gs.Store.Rooms()
		out := make([]roomSummary, 0, len(rooms))
		for _, rn := range rooms {
			ctx, cancel := context.WithTimeout(r.Context(), time.Second)
			snap, err := rn.Snapshot(ctx)
			cancel()
			if err != nil {
				// room stopped between listing and snapshot
				continue
			}
			out = append(out, roomSummary{
				ID:         rn.ID(),
				Users:      len(snap.Users),
				MaxClients: snap.MaxClients,
				Locked:     snap.Locked,
				State:      snap.Attributes[game.AttrCurrentGameState],
			})
		}
		writeJSON(w, http.StatusOK, out)
	}
}
