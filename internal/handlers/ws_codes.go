// internal/handlers/ws_codes.go
package handlers

// Custom WebSocket close codes used within the room handler.
// These provide more specific reasons for closure than standard codes.
const (
	BadSubprotocolError = 3000 // Client connected with an unsupported subprotocol.
	InvalidRoomIDError  = 3003 // Target room ID specified in the WS URL does not exist.
	RoomLockedError     = 3004 // Room is locked for a round in progress.
	RoomFullError       = 3005 // Room has reached its client limit.
	DuplicateUserError  = 3006 // The user already has a connection in this room.
	RoomClosedError     = 3007 // The room shut down while the client was connected.
)
