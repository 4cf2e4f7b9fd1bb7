// internal/game/arbiter.go
package game

import (
	"sort"

	"github.com/jason-s-yu/gallery/internal/models"
)

const (
	tieWinnerID     = "It's a tie!"
	pendingWinnerID = "TBD"
)

// roundWinner computes the result of the round from entities still present in
// the room. Only valid in EndRound.
func (r *Room) roundWinner() models.WinnerResult {
	winner := models.WinnerResult{Tied: []string{}}
	if r.state != StateEndRound {
		r.log.Error("can't determine winner yet, not in EndRound")
		winner.ID = pendingWinnerID
		return winner
	}
	if r.gameScores == nil {
		r.log.Error("failed to get round scores")
		return winner
	}

	buckets := make(map[int][]string)
	best, found := 0, false
	for entityID, score := range r.gameScores {
		if _, present := r.entities[entityID]; !present {
			continue
		}
		buckets[score] = append(buckets[score], entityID)
		if !found || score > best {
			best, found = score, true
		}
	}
	if !found {
		return winner
	}

	top := buckets[best]
	sort.Strings(top)
	winner.Score = best
	if len(top) > 1 {
		winner.ID = tieWinnerID
		winner.Tie = true
		winner.Tied = top
		return winner
	}
	winner.ID = top[0]
	return winner
}

// roundRecord summarizes the finished round before it is reset.
func (r *Room) roundRecord(winner models.WinnerResult) models.RoundRecord {
	winners := make(map[string]bool)
	if winner.Tie {
		for _, id := range winner.Tied {
			winners[id] = true
		}
	} else if winner.ID != "" && winner.ID != pendingWinnerID {
		winners[winner.ID] = true
	}

	rec := models.RoundRecord{
		RoomID:      r.ID,
		Round:       r.round,
		Winner:      winner,
		Scores:      make([]models.PlayerScore, 0, len(r.gameScores)),
		TargetCount: len(r.currentTargetSet),
		StartedAt:   r.roundStarted,
		EndedAt:     r.now(),
	}
	for entityID, score := range r.gameScores {
		ps := r.scorers[entityID]
		ps.EntityID = entityID
		ps.Score = score
		ps.Winner = winners[entityID]
		_, ps.Present = r.entities[entityID]
		rec.Scores = append(rec.Scores, ps)
	}
	sort.Slice(rec.Scores, func(i, j int) bool { return rec.Scores[i].EntityID < rec.Scores[j].EntityID })
	for _, t := range r.currentTargetSet {
		if t.Claimed {
			rec.ClaimedPoints += t.Value
		}
	}
	return rec
}

// resetForNewRound clears the round collections, un-readies every user and
// unlocks the room if it has capacity.
func (r *Room) resetForNewRound() {
	r.gameScores = make(map[string]int)
	r.scorers = make(map[string]models.PlayerScore)
	r.currentTargetSet = make(map[string]*models.Target)
	r.currentActiveTargets = make(map[string]*models.Target)
	r.lineup = nil
	r.roundElapsed = 0

	r.setUsersAttribute(models.AttrReadyState, models.ReadyStateWaiting)
	r.unlockIfAble()
}
