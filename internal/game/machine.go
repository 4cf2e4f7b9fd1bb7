// internal/game/machine.go
package game

import (
	"fmt"
	"math"
	"strconv"

	"github.com/jason-s-yu/gallery/internal/models"
)

const (
	// getReadySeconds is how long "Get Ready!" is shown before the numeric countdown.
	getReadySeconds = 3
	// countDownSeconds is the start value of the numeric countdown.
	countDownSeconds = 3

	minTargetsPerRound = 10
	maxTargetsPerRound = 100
	targetsPerUser     = 10

	readyMessage = "Get Ready!"
)

// allowedTransitions is the permitted state graph.
var allowedTransitions = map[GameState][]GameState{
	StateNone:          {StateWaiting},
	StateWaiting:       {StateSendTargets, StateBeginRound},
	StateSendTargets:   {StateWaiting},
	StateBeginRound:    {StateSimulateRound},
	StateSimulateRound: {StateEndRound},
	StateEndRound:      {StateWaiting},
}

// CanTransition reports whether from -> to is an edge of the state graph.
func CanTransition(from, to GameState) bool {
	for _, s := range allowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// gameLoop runs the logic of the current state. dt is in seconds.
func (r *Room) gameLoop(dt float64) {
	switch r.state {
	case StateNone:
	case StateWaiting:
		r.waitingLogic()
	case StateSendTargets:
		r.sendTargetsLogic()
	case StateBeginRound:
		r.beginRoundLogic(dt)
	case StateSimulateRound:
		r.simulateRoundLogic(dt)
	case StateEndRound:
		r.endRoundLogic()
	default:
		r.log.Errorf("unknown game state - %s", r.state)
	}
}

// moveToState records the current state as last and switches to newState.
func (r *Room) moveToState(newState GameState) {
	if !CanTransition(r.state, newState) {
		r.log.Errorf("unexpected state transition %s -> %s", r.state, newState)
	}
	r.lastState = r.state
	r.state = newState
	r.setRoomAttribute(AttrLastGameState, string(r.lastState))
	r.setRoomAttribute(AttrCurrentGameState, string(r.state))
	r.log.Debugf("game state %s -> %s", r.lastState, r.state)
}

// waitingLogic branches on the previous state: before a lineup it waits for
// enough ready players, after a lineup it waits for every client to confirm.
func (r *Room) waitingLogic() {
	switch r.lastState {
	case StateNone, StateEndRound:
		current := len(r.users)
		if current < r.Options.MinReqPlayers {
			r.setRoomAttribute(AttrGeneralMessage,
				fmt.Sprintf("Waiting for more players to join - (%d/%d)", current, r.Options.MinReqPlayers))
			return
		}
		if !r.checkAllReady() {
			return
		}
		r.moveToState(StateSendTargets)
	case StateSendTargets:
		if !r.checkAllReady() {
			return
		}
		// no joins until the round has been reset
		r.Lock()
		r.moveToState(StateBeginRound)
	}
}

// sendTargetsLogic generates and broadcasts a new lineup, then waits for
// every client to acknowledge it.
func (r *Room) sendTargetsLogic() {
	r.setUsersAttribute(models.AttrReadyState, models.ReadyStateWaiting)

	maxTargets := len(r.users) * targetsPerUser
	if maxTargets > maxTargetsPerRound {
		maxTargets = maxTargetsPerRound
	}
	count := randomIntInclusive(r.Rand, minTargetsPerRound, maxTargets)

	lineup, err := r.generateLineup(count)
	if err != nil {
		r.log.Errorf("failed to generate target lineup: %v", err)
		return
	}
	r.setTargetSet(lineup)

	r.broadcast(EventNewTargetLineUp, NewTargetLineUpPayload{Targets: copyTargets(r.lineup)})
	r.moveToState(StateWaiting)
}

func (r *Room) generateLineup(count int) ([]*models.Target, error) {
	if r.LineupFn != nil {
		return r.LineupFn(count, r.Options.NumberOfTargetRows)
	}
	return RandomLineup(r.Rand, count, r.Options.NumberOfTargetRows)
}

// setTargetSet rebuilds the full and active target collections. Duplicate
// uids after the first are dropped.
func (r *Room) setTargetSet(lineup []*models.Target) {
	r.currentTargetSet = make(map[string]*models.Target, len(lineup))
	r.currentActiveTargets = make(map[string]*models.Target, len(lineup))
	r.lineup = r.lineup[:0]

	for _, t := range lineup {
		if _, dup := r.currentTargetSet[t.UID]; dup {
			r.log.Warnf("duplicate target uid %s in lineup", t.UID)
			continue
		}
		t.Claimed = false
		r.currentTargetSet[t.UID] = t
		r.currentActiveTargets[t.UID] = t
		r.lineup = append(r.lineup, t)
	}
}

// beginRoundLogic runs the countdown sub-machine: Enter, then "Get Ready!"
// for three seconds, then a numeric countdown from three.
func (r *Room) beginRoundLogic(dt float64) {
	switch r.countDownState {
	case CountDownEnter:
		r.setRoomAttribute(AttrCountDown, "")
		r.broadcast(EventBeginRoundCountDown, EmptyPayload{})
		r.setCurrCountDown(0)
		r.setCountDownState(CountDownGetReady)

	case CountDownGetReady:
		r.setRoomAttribute(AttrCountDown, readyMessage)
		if r.currCountDown < getReadySeconds {
			r.setCurrCountDown(r.currCountDown + dt)
			return
		}
		r.setCurrCountDown(countDownSeconds)
		r.setCountDownState(CountDownCounting)

	case CountDownCounting:
		r.setRoomAttribute(AttrCountDown, strconv.Itoa(int(math.Ceil(r.currCountDown))))
		// a tick at exactly zero still counts
		if r.currCountDown >= 0 {
			r.setCurrCountDown(r.currCountDown - dt)
			return
		}

		r.broadcast(EventBeginRound, EmptyPayload{})
		r.moveToState(StateSimulateRound)
		r.round++
		r.roundStarted = r.now()
		r.roundElapsed = 0
		r.setUsersAttribute(models.AttrReadyState, models.ReadyStateWaiting)
		r.setCountDownState(CountDownEnter)

	default:
		r.log.Errorf("unknown countdown state - %s", r.countDownState)
		r.setCountDownState(CountDownEnter)
	}
}

// simulateRoundLogic ends the round once every target has been claimed, or
// when the optional round timeout has elapsed.
func (r *Room) simulateRoundLogic(dt float64) {
	r.roundElapsed += dt
	if len(r.currentActiveTargets) > 0 {
		timeout := r.Options.RoundTimeoutSeconds
		if timeout <= 0 || r.roundElapsed < timeout {
			return
		}
		r.log.Warnf("round timed out after %.1fs with %d unclaimed target(s)",
			r.roundElapsed, len(r.currentActiveTargets))
		// expired targets stay unclaimed and score for nobody
		for uid := range r.currentActiveTargets {
			r.log.Debugf("target %s expired unclaimed", uid)
		}
		r.currentActiveTargets = make(map[string]*models.Target)
		r.moveToState(StateEndRound)
		return
	}

	for _, t := range r.currentTargetSet {
		if !t.Claimed {
			r.log.Errorf("no more active targets but target %s has not been claimed", t.UID)
		}
	}
	r.moveToState(StateEndRound)
}

// endRoundLogic announces the winner, resets the round and goes back to
// Waiting.
func (r *Room) endRoundLogic() {
	winner := r.roundWinner()
	r.broadcast(EventRoundEnd, RoundEndPayload{Winner: winner})

	rec := r.roundRecord(winner)

	r.resetForNewRound()
	r.moveToState(StateWaiting)

	r.log.WithField("round", rec.Round).Infof("round ended, winner %q with %d", winner.ID, winner.Score)
	if r.OnRoundEnd != nil {
		r.OnRoundEnd(rec)
	}
}
