// internal/game/catalog.go
package game

import (
	"fmt"
	"math/rand"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/models"
)

// TargetCatalog is the fixed table of target archetypes a lineup is drawn from.
var TargetCatalog = []models.TargetArchetype{
	{ID: 1, Name: "Target 1", Value: 5},
	{ID: 2, Name: "Target 2", Value: 10},
	{ID: 3, Name: "Target 3", Value: 15},
	{ID: 4, Name: "Target 4", Value: 30},
	{ID: 5, Name: "Target 5", Value: 50},
	{ID: 6, Name: "Target 6", Value: 100},
}

// LineupFunc produces the targets for a round. Rooms use RandomLineup unless
// a different generator is installed.
type LineupFunc func(count, rows int) ([]*models.Target, error)

// RandomLineup builds count targets with uniformly chosen archetypes and rows
// in [1..rows]. UIDs are 128-bit values read from rng, so a seeded rng yields
// a reproducible lineup.
func RandomLineup(rng *rand.Rand, count, rows int) ([]*models.Target, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: target count %d", ErrInvalidLineup, count)
	}
	if rows < 1 {
		return nil, fmt.Errorf("%w: row count %d", ErrInvalidLineup, rows)
	}

	lineup := make([]*models.Target, 0, count)
	seen := make(map[string]struct{}, count)
	for len(lineup) < count {
		id, err := uuid.NewRandomFromReader(rng)
		if err != nil {
			return nil, fmt.Errorf("generate target uid: %w", err)
		}
		uid := id.String()
		if _, dup := seen[uid]; dup {
			continue
		}
		seen[uid] = struct{}{}

		arch := TargetCatalog[rng.Intn(len(TargetCatalog))]
		lineup = append(lineup, &models.Target{
			UID:   uid,
			ID:    arch.ID,
			Name:  arch.Name,
			Value: arch.Value,
			Row:   rng.Intn(rows) + 1,
		})
	}
	return lineup, nil
}

// randomIntInclusive returns a value in [min..max].
func randomIntInclusive(rng *rand.Rand, min, max int) int {
	if max <= min {
		return min
	}
	return rng.Intn(max-min+1) + min
}
