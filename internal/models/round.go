// internal/models/round.go
package models

import (
	"time"

	"github.com/google/uuid"
)

// WinnerResult is sent to clients when a round ends. ID holds the winning
// entity, or a display message when Tie is set.
type WinnerResult struct {
	ID    string   `json:"id"`
	Score int      `json:"score"`
	Tie   bool     `json:"tie"`
	Tied  []string `json:"tied"`
}

// PlayerScore is one entity's final tally in a finished round.
type PlayerScore struct {
	EntityID string `json:"entity_id"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Score    int    `json:"score"`
	Winner   bool   `json:"winner"`
	Present  bool   `json:"present"`
}

// RoundRecord summarizes a finished round for the historian and leaderboard.
type RoundRecord struct {
	RoomID        uuid.UUID     `json:"room_id"`
	Round         int           `json:"round"`
	Winner        WinnerResult  `json:"winner"`
	Scores        []PlayerScore `json:"scores"`
	TargetCount   int           `json:"target_count"`
	ClaimedPoints int           `json:"claimed_points"`
	StartedAt     time.Time     `json:"started_at"`
	EndedAt       time.Time     `json:"ended_at"`
}
