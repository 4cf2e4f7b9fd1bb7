// internal/models/user.go
package models

// Attribute keys and values shared between the room and its clients.
const (
	AttrReadyState = "readyState"

	ReadyStateWaiting = "waiting"
	ReadyStateReady   = "ready"
)

// User is a connected client of a room. Attributes are replicated to every
// client as plain strings.
type User struct {
	ID         string            `json:"id"`
	Username   string            `json:"username"`
	Attributes map[string]string `json:"attributes"`
}

// IsReady reports whether the user acknowledged the current readiness check.
func (u *User) IsReady() bool {
	return u.Attributes[AttrReadyState] == ReadyStateReady
}

// Entity is a networked avatar owned by a user.
type Entity struct {
	ID          string `json:"id"`
	OwnerUserID string `json:"ownerId"`
}
