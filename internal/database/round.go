// internal/database/round.go
package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jason-s-yu/gallery/internal/models"
)

var schema = []string{`
CREATE TABLE IF NOT EXISTS rounds (
	room_id        UUID        NOT NULL,
	round          INT         NOT NULL,
	winner         TEXT        NOT NULL,
	winning_score  INT         NOT NULL,
	is_tie         BOOLEAN     NOT NULL DEFAULT FALSE,
	target_count   INT         NOT NULL,
	claimed_points INT         NOT NULL,
	started_at     TIMESTAMPTZ NOT NULL,
	ended_at       TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (room_id, round)
)`,
	`CREATE TABLE IF NOT EXISTS round_scores (
	room_id   UUID    NOT NULL,
	round     INT     NOT NULL,
	entity_id TEXT    NOT NULL,
	user_id   TEXT    NOT NULL,
	username  TEXT    NOT NULL DEFAULT '',
	score     INT     NOT NULL,
	did_win   BOOLEAN NOT NULL,
	present   BOOLEAN NOT NULL,
	PRIMARY KEY (room_id, round, entity_id),
	FOREIGN KEY (room_id, round) REFERENCES rounds (room_id, round) ON DELETE CASCADE
)`,
}

var errNotConnected = errors.New("database not connected")

// EnsureSchema creates the round tables when they are missing.
func EnsureSchema(ctx context.Context) error {
	if DB == nil {
		return errNotConnected
	}
	for _, stmt := range schema {
		if _, err := DB.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// RecordRounds persists a batch of finished rounds in a single transaction.
// Re-delivered rounds overwrite their earlier rows.
func RecordRounds(ctx context.Context, recs []models.RoundRecord) error {
	if DB == nil {
		return errNotConnected
	}
	err := pgx.BeginTxFunc(ctx, DB, pgx.TxOptions{}, func(tx pgx.Tx) error {
		for _, rec := range recs {
			if err := insertRoundTx(ctx, tx, rec); err != nil {
				return fmt.Errorf("room %s round %d: %w", rec.RoomID, rec.Round, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("tx record rounds: %w", err)
	}
	return nil
}

// RecordRound persists one finished round.
func RecordRound(ctx context.Context, rec models.RoundRecord) error {
	return RecordRounds(ctx, []models.RoundRecord{rec})
}

func insertRoundTx(ctx context.Context, tx pgx.Tx, rec models.RoundRecord) error {
	upsertRound := `
		INSERT INTO rounds (room_id, round, winner, winning_score, is_tie, target_count, claimed_points, started_at, ended_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (room_id, round)
		DO UPDATE SET winner=$3, winning_score=$4, is_tie=$5, target_count=$6, claimed_points=$7, started_at=$8, ended_at=$9
	`
	if _, err := tx.Exec(ctx, upsertRound,
		rec.RoomID, rec.Round, rec.Winner.ID, rec.Winner.Score, rec.Winner.Tie,
		rec.TargetCount, rec.ClaimedPoints, rec.StartedAt, rec.EndedAt,
	); err != nil {
		return err
	}

	for _, ps := range rec.Scores {
		q := `
			INSERT INTO round_scores (room_id, round, entity_id, user_id, username, score, did_win, present)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (room_id, round, entity_id)
			DO UPDATE SET user_id=$4, username=$5, score=$6, did_win=$7, present=$8
		`
		if _, err := tx.Exec(ctx, q,
			rec.RoomID, rec.Round, ps.EntityID, ps.UserID, ps.Username, ps.Score, ps.Winner, ps.Present,
		); err != nil {
			return err
		}
	}
	return nil
}

// RoundScores loads the stored scores of one round ordered by score.
func RoundScores(ctx context.Context, roomID uuid.UUID, round int) ([]models.PlayerScore, error) {
	if DB == nil {
		return nil, errNotConnected
	}
	rows, err := DB.Query(ctx, `
		SELECT entity_id, user_id, username, score, did_win, present
		FROM round_scores
		WHERE room_id = $1 AND round = $2
		ORDER BY score DESC, entity_id
	`, roomID, round)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.PlayerScore
	for rows.Next() {
		var ps models.PlayerScore
		if err := rows.Scan(&ps.EntityID, &ps.UserID, &ps.Username, &ps.Score, &ps.Winner, &ps.Present); err != nil {
			return nil, err
		}
		out = append(out, ps)
	}
	return out, rows.Err()
}
