// internal/handlers/room_ws.go
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/game"
	"github.com/jason-s-yu/gallery/internal/middleware"
	"github.com/jason-s-yu/gallery/internal/models"
	"github.com/sirupsen/logrus"
)

const roomSubprotocol = "gallery"

// RoomWSHandler upgrades an authenticated client to the room WebSocket,
// joins it to the room and relays messages until either side goes away.
func RoomWSHandler(gs *GameServer) http.HandlerFunc {
	logger := gs.Logger
	return func(w http.ResponseWriter, r *http.Request) {
		pathParts := strings.Split(strings.TrimPrefix(r.URL.Path, "/room/ws/"), "/")
		roomID, err := uuid.Parse(pathParts[0])
		if err != nil {
			http.Error(w, "invalid room_id", http.StatusBadRequest)
			return
		}

		claims, err := authenticateRequest(r)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		userID := claims.Subject

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{roomSubprotocol},
			OriginPatterns: gs.Config.AllowedOrigins,
		})
		if err != nil {
			logger.Warnf("websocket accept error: %v", err)
			return
		}
		defer c.Close(websocket.StatusInternalError, "handler finished")

		if c.Subprotocol() != roomSubprotocol {
			c.Close(BadSubprotocolError, "client must speak the gallery subprotocol")
			return
		}

		rn, hub, err := gs.room(roomID)
		if err != nil {
			c.Close(InvalidRoomIDError, err.Error())
			return
		}

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		conn := newClientConn(userID, cancel)

		err = rn.Join(ctx, game.JoinRequest{
			UserID:   userID,
			Username: claims.Username,
			OnJoined: func(entity models.Entity, snap game.Snapshot) {
				conn.send(joinedMessage{Type: msgJoined, UserID: userID, EntityID: entity.ID})
				conn.send(roomStateMessage{Type: msgRoomState, Snapshot: snap})
				hub.add(conn)
			},
		})
		if err != nil {
			code, reason := joinCloseStatus(err)
			logger.Infof("user %s rejected from room %s: %v", userID, roomID, err)
			c.Close(code, reason)
			return
		}

		middleware.LogWebSocketConnect(logger, r.RemoteAddr, r.URL.Path, userID)

		go writePump(ctx, c, conn, logger)
		readErr := readPump(ctx, c, rn, conn, logger)

		hub.remove(conn)
		if err := rn.Leave(context.Background(), userID); err != nil && !errors.Is(err, game.ErrRoomClosed) {
			logger.Warnf("failed to report user %s leaving room %s: %v", userID, roomID, err)
		}
		middleware.LogWebSocketDisconnect(logger, r.RemoteAddr, r.URL.Path, userID, readErr)

		if errors.Is(readErr, game.ErrRoomClosed) {
			c.Close(RoomClosedError, "room closed")
			return
		}
		c.Close(websocket.StatusNormalClosure, "")
	}
}

func joinCloseStatus(err error) (websocket.StatusCode, string) {
	switch {
	case errors.Is(err, game.ErrRoomLocked):
		return RoomLockedError, "room is locked"
	case errors.Is(err, game.ErrRoomFull):
		return RoomFullError, "room is full"
	case errors.Is(err, game.ErrUserExists):
		return DuplicateUserError, "already connected to this room"
	case errors.Is(err, game.ErrRoomClosed):
		return InvalidRoomIDError, game.ErrRoomNotFound.Error()
	default:
		return websocket.StatusInternalError, "join failed"
	}
}

// readPump handles incoming messages until the connection closes. It returns
// the error that ended it, nil on a normal closure.
func readPump(ctx context.Context, c *websocket.Conn, rn *game.Runner, conn *clientConn, logger *logrus.Logger) error {
	log := logger.WithFields(logrus.Fields{"room": rn.ID().String(), "user": conn.userID})

	for {
		typ, msg, err := c.Read(ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		if typ != websocket.MessageText {
			log.Warnf("received non-text message type %d, ignoring", typ)
			continue
		}

		if !conn.allowInbound() {
			conn.send(errorMessage{Type: msgError, Message: "rate limit exceeded"})
			continue
		}

		var packet inboundMessage
		if err := json.Unmarshal(msg, &packet); err != nil {
			log.Debugf("invalid json: %v", err)
			conn.send(errorMessage{Type: msgError, Message: "invalid JSON format"})
			continue
		}

		if err := handleRoomMessage(ctx, rn, conn, packet); err != nil {
			if errors.Is(err, game.ErrRoomClosed) {
				return err
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			log.Debugf("%s rejected: %v", packet.Type, err)
			conn.send(errorMessage{Type: msgError, Message: err.Error()})
		}
	}
}

// handleRoomMessage routes one client message into the room.
func handleRoomMessage(ctx context.Context, rn *game.Runner, conn *clientConn, packet inboundMessage) error {
	client := game.Client{UserID: conn.userID}
	switch packet.Type {
	case msgCustomMethod:
		return rn.CallMethod(ctx, client, game.MethodRequest{Method: packet.Method, Param: packet.Param})
	case msgSetAttribute:
		return rn.SetAttributes(ctx, client, packet.UserID, packet.AttributesToSet)
	case msgPing:
		conn.send(typeOnlyMessage{Type: msgPong})
		return nil
	default:
		return errors.New("unknown message type: " + packet.Type)
	}
}

// writePump drains conn.out to the socket and pings the client periodically.
func writePump(ctx context.Context, c *websocket.Conn, conn *clientConn, logger *logrus.Logger) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	// a failed write ends the read side too
	defer conn.cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case data := <-conn.out:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := c.Write(writeCtx, websocket.MessageText, data)
			cancel()
			if err != nil {
				logger.Warnf("failed to write to websocket for user %v: %v", conn.userID, err)
				return
			}
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
			err := c.Ping(pingCtx)
			cancel()
			if err != nil {
				logger.Warnf("failed to send ping to user %v: %v. Assuming disconnect.", conn.userID, err)
				return
			}
		}
	}
}
