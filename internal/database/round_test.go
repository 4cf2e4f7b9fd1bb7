// internal/database/round_test.go
package database

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// connectTestDB uses PG_TEST_DSN or skips the test.
func connectTestDB(t *testing.T) {
	t.Helper()
	dsn := os.Getenv("PG_TEST_DSN")
	if dsn == "" {
		t.Skip("PG_TEST_DSN not set")
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	require.NoError(t, ConnectDB(context.Background(), dsn, logger))
	require.NoError(t, EnsureSchema(context.Background()))
	t.Cleanup(Close)
}

func TestRecordRoundWithoutConnection(t *testing.T) {
	prev := DB
	DB = nil
	defer func() { DB = prev }()

	assert.ErrorIs(t, RecordRound(context.Background(), models.RoundRecord{}), errNotConnected)
	assert.ErrorIs(t, EnsureSchema(context.Background()), errNotConnected)
}

func TestRecordRoundIsIdempotent(t *testing.T) {
	connectTestDB(t)
	ctx := context.Background()

	rec := models.RoundRecord{
		RoomID: uuid.New(),
		Round:  1,
		Winner: models.WinnerResult{ID: "entA", Score: 15, Tied: []string{}},
		Scores: []models.PlayerScore{
			{EntityID: "entA", UserID: "A", Username: "alice", Score: 15, Winner: true, Present: true},
			{EntityID: "entB", UserID: "B", Username: "bob", Score: 5, Present: false},
		},
		TargetCount:   3,
		ClaimedPoints: 20,
		StartedAt:     time.Now().Add(-time.Minute),
		EndedAt:       time.Now(),
	}
	require.NoError(t, RecordRound(ctx, rec))
	require.NoError(t, RecordRounds(ctx, []models.RoundRecord{rec}))

	scores, err := RoundScores(ctx, rec.RoomID, 1)
	require.NoError(t, err)
	assert.Equal(t, rec.Scores, scores)
}
