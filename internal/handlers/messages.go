// internal/handlers/messages.go
package handlers

import "github.com/jason-s-yu/gallery/internal/game"

// Message types on the room WebSocket.
const (
	msgCustomMethod   = "customMethod"
	msgSetAttribute   = "setAttribute"
	msgPing           = "ping"
	msgPong           = "pong"
	msgBroadcast      = "broadcast"
	msgRoomAttributes = "roomAttributes"
	msgUserAttributes = "userAttributes"
	msgJoined         = "joined"
	msgRoomState      = "roomState"
	msgError          = "error"
)

// inboundMessage is the union of every client to server message.
type inboundMessage struct {
	Type            string            `json:"type"`
	Method          string            `json:"method,omitempty"`
	Param           []interface{}     `json:"param,omitempty"`
	UserID          string            `json:"userId,omitempty"`
	AttributesToSet map[string]string `json:"attributesToSet,omitempty"`
}

type broadcastMessage struct {
	Type    string         `json:"type"`
	Kind    game.EventKind `json:"kind"`
	Payload interface{}    `json:"payload"`
}

type roomAttributesMessage struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

type userAttributesMessage struct {
	Type       string            `json:"type"`
	UserID     string            `json:"userId"`
	Attributes map[string]string `json:"attributes"`
}

type joinedMessage struct {
	Type     string `json:"type"`
	UserID   string `json:"userId"`
	EntityID string `json:"entityId"`
}

type roomStateMessage struct {
	Type string `json:"type"`
	game.Snapshot
}

type errorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type typeOnlyMessage struct {
	Type string `json:"type"`
}
