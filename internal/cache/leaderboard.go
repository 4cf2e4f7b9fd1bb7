// internal/cache/leaderboard.go
package cache

import (
	"context"
	"fmt"

	"github.com/jason-s-yu/gallery/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	pointsKey = "gallery:lb:points"
	winsKey   = "gallery:lb:wins"
	namesKey  = "gallery:lb:names"
)

// LeaderboardEntry is one row of the lifetime leaderboard.
type LeaderboardEntry struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Points   int    `json:"points"`
	Wins     int    `json:"wins"`
	Rank     int    `json:"rank"`
}

// Leaderboard keeps lifetime points and round wins per user in sorted sets.
type Leaderboard struct {
	client *redis.Client
}

func NewLeaderboard(client *redis.Client) *Leaderboard {
	return &Leaderboard{client: client}
}

// RecordRound adds every player's round score to their lifetime total and
// counts a win for each winner.
func (l *Leaderboard) RecordRound(ctx context.Context, rec models.RoundRecord) error {
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, ps := range rec.Scores {
			if ps.UserID == "" {
				continue
			}
			pipe.ZIncrBy(ctx, pointsKey, float64(ps.Score), ps.UserID)
			if ps.Username != "" {
				pipe.HSet(ctx, namesKey, ps.UserID, ps.Username)
			}
			if ps.Winner {
				pipe.ZIncrBy(ctx, winsKey, 1, ps.UserID)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("update leaderboard for round %d: %w", rec.Round, err)
	}
	return nil
}

// Top returns the best limit users by lifetime points.
func (l *Leaderboard) Top(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		return []LeaderboardEntry{}, nil
	}
	results, err := l.client.ZRevRangeWithScores(ctx, pointsKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return []LeaderboardEntry{}, nil
	}

	ids := make([]string, len(results))
	for i, z := range results {
		ids[i] = z.Member.(string)
	}
	names, err := l.client.HMGet(ctx, namesKey, ids...).Result()
	if err != nil {
		return nil, err
	}
	wins, err := l.client.ZMScore(ctx, winsKey, ids...).Result()
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, len(results))
	for i, z := range results {
		entries[i] = LeaderboardEntry{
			UserID: ids[i],
			Points: int(z.Score),
			Wins:   int(wins[i]),
			Rank:   i + 1,
		}
		if name, ok := names[i].(string); ok {
			entries[i].Username = name
		}
	}
	return entries, nil
}
