// internal/handlers/api_server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/gallery/internal/middleware"
)

// NewRouter wires every HTTP and WebSocket endpoint of the game server.
func NewRouter(gs *GameServer) http.Handler {
	logged := middleware.LogMiddleware(gs.Logger)
	mux := http.NewServeMux()

	mux.Handle("/user/guest", logged(GuestHandler(gs.Logger)))

	mux.Handle("/room/create", logged(CreateRoomHandler(gs)))
	mux.Handle("/room/list", logged(ListRoomsHandler(gs)))
	mux.Handle("/room/ws/", logged(RoomWSHandler(gs)))

	mux.Handle("/leaderboard", logged(LeaderboardHandler(gs)))
	return mux
}
