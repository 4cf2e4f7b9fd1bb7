// internal/game/methods.go
package game

import (
	"fmt"

	"github.com/jason-s-yu/gallery/internal/models"
)

// Client identifies the connection a request arrived on.
type Client struct {
	UserID string
}

// MethodRequest is the wire shape of a custom method call.
type MethodRequest struct {
	Method string        `json:"method"`
	Param  []interface{} `json:"param"`
}

// MethodHandler runs a custom method inside the room loop.
type MethodHandler func(r *Room, c Client, req MethodRequest) error

// customMethods are registered on every new room.
var customMethods = map[string]MethodHandler{
	"scoreTarget": scoreTarget,
}

// stringParam returns req.Param[i] as a string.
func stringParam(req MethodRequest, i int) (string, error) {
	if len(req.Param) <= i {
		return "", fmt.Errorf("%w: %s expects param[%d]", ErrMissingParameter, req.Method, i)
	}
	s, ok := req.Param[i].(string)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s param[%d] must be a non-empty string", ErrInvalidParameter, req.Method, i)
	}
	return s, nil
}

// scoreTarget claims a target for an entity. param[0] is the entity id and
// param[1] the target uid. Losing a race or scoring outside SimulateRound is
// not an error.
func scoreTarget(r *Room, c Client, req MethodRequest) error {
	if r.state != StateSimulateRound {
		r.log.Trace("cannot score a target until the round has begun")
		return nil
	}

	entityID, err := stringParam(req, 0)
	if err != nil {
		return err
	}
	targetUID, err := stringParam(req, 1)
	if err != nil {
		return err
	}

	entity, ok := r.entities[entityID]
	if !ok {
		r.log.Debugf("no entity with id %s", entityID)
		return nil
	}

	target, inSet := r.currentTargetSet[targetUID]
	if _, active := r.currentActiveTargets[targetUID]; !inSet || !active {
		r.log.Tracef("missing target or target already claimed - %s", targetUID)
		return nil
	}
	if target.Claimed {
		r.log.Tracef("target has already been claimed - %s", targetUID)
		return nil
	}

	delete(r.currentActiveTargets, targetUID)
	r.scoreTargetForEntity(*entity, target)
	return nil
}

// scoreTargetForEntity marks the target claimed and credits its value.
func (r *Room) scoreTargetForEntity(entity models.Entity, target *models.Target) {
	target.Claimed = true
	r.gameScores[entity.ID] += target.Value
	if _, seen := r.scorers[entity.ID]; !seen {
		ps := models.PlayerScore{EntityID: entity.ID, UserID: entity.OwnerUserID}
		if u, ok := r.users[entity.OwnerUserID]; ok {
			ps.Username = u.Username
		}
		r.scorers[entity.ID] = ps
	}

	r.broadcast(EventScoreUpdate, ScoreUpdatePayload{
		EntityID:  entity.ID,
		TargetUID: target.UID,
		Score:     r.gameScores[entity.ID],
	})
}
