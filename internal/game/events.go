// internal/game/events.go
package game

import "github.com/jason-s-yu/gallery/internal/models"

// EventKind names a broadcast sent to every client in a room.
type EventKind string

const (
	EventNewTargetLineUp     EventKind = "newTargetLineUp"
	EventBeginRoundCountDown EventKind = "beginRoundCountDown"
	EventBeginRound          EventKind = "beginRound"
	EventScoreUpdate         EventKind = "onScoreUpdate"
	EventRoundEnd            EventKind = "onRoundEnd"
)

// Event is a single broadcast. Payload is one of the payload structs below
// and must not be retained by the room after sending.
type Event struct {
	Kind    EventKind   `json:"kind"`
	Payload interface{} `json:"payload"`
}

// NewTargetLineUpPayload carries the full lineup of a round.
type NewTargetLineUpPayload struct {
	Targets []models.Target `json:"targets"`
}

// EmptyPayload marshals to {}.
type EmptyPayload struct{}

// ScoreUpdatePayload announces a successful claim and the entity's new total.
type ScoreUpdatePayload struct {
	EntityID  string `json:"entityID"`
	TargetUID string `json:"targetUID"`
	Score     int    `json:"score"`
}

// RoundEndPayload announces the result of a finished round.
type RoundEndPayload struct {
	Winner models.WinnerResult `json:"winner"`
}

// Sink receives everything a room replicates to its clients. Calls are made
// from the room's loop and must not block on the network.
type Sink interface {
	Broadcast(ev Event)
	SetUserAttribute(userID, key, value string)
	SetRoomAttribute(key, value string)
}
