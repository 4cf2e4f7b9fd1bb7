// internal/game/hooks.go
package game

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/models"
	"github.com/sirupsen/logrus"
)

// Initialize stores the options, creates empty round collections and puts the
// room into Waiting.
func (r *Room) Initialize(opts Options) {
	r.Options = opts.WithDefaults(DefaultOptions())

	r.currentTargetSet = make(map[string]*models.Target)
	r.currentActiveTargets = make(map[string]*models.Target)
	r.gameScores = make(map[string]int)
	r.scorers = make(map[string]models.PlayerScore)
	r.lineup = nil

	r.state = StateWaiting
	r.lastState = StateNone
	r.setRoomAttribute(AttrCurrentGameState, string(StateWaiting))
	r.setRoomAttribute(AttrLastGameState, string(StateNone))

	r.log.WithFields(logrus.Fields{
		"minReqPlayers": r.Options.MinReqPlayers,
		"targetRows":    r.Options.NumberOfTargetRows,
		"maxClients":    r.Options.MaxClients,
	}).Info("room initialized")
}

// Tick advances the state machine. dtMillis is the elapsed time since the
// previous tick in milliseconds.
func (r *Room) Tick(dtMillis float64) {
	r.gameLoop(dtMillis / 1000)
}

// HandleCustomMethod dispatches a client request by method name.
func (r *Room) HandleCustomMethod(c Client, req MethodRequest) error {
	fn, ok := r.methods[req.Method]
	if !ok || fn == nil {
		return fmt.Errorf("%w: %q", ErrUnknownMethod, req.Method)
	}
	return fn(r, c, req)
}

// RegisterMethod adds or replaces a custom method on this room.
func (r *Room) RegisterMethod(name string, fn MethodHandler) {
	r.methods[name] = fn
}

// HandleUserJoined admits a user and creates their avatar entity. An empty
// entityID is replaced with a fresh uuid.
func (r *Room) HandleUserJoined(userID, username, entityID string) (models.Entity, error) {
	if r.locked {
		return models.Entity{}, ErrRoomLocked
	}
	if r.HasReachedMaxClients() {
		return models.Entity{}, ErrRoomFull
	}
	if _, exists := r.users[userID]; exists {
		return models.Entity{}, fmt.Errorf("%w: %s", ErrUserExists, userID)
	}
	if entityID == "" {
		entityID = uuid.NewString()
	}
	if _, exists := r.entities[entityID]; exists {
		return models.Entity{}, fmt.Errorf("%w: entity %s already exists", ErrInvalidParameter, entityID)
	}

	u := &models.User{ID: userID, Username: username, Attributes: make(map[string]string)}
	r.users[userID] = u
	r.setUserAttribute(u, models.AttrReadyState, models.ReadyStateWaiting)

	e := &models.Entity{ID: entityID, OwnerUserID: userID}
	r.entities[entityID] = e

	r.log.WithFields(logrus.Fields{
		"user":   userID,
		"entity": entityID,
		"users":  len(r.users),
	}).Info("user joined")
	return *e, nil
}

// HandleUserLeft removes the user and their entities. A room locked for a
// round stays locked until the round resets; in Waiting it unlocks if there
// is room.
func (r *Room) HandleUserLeft(userID string) {
	if _, ok := r.users[userID]; !ok {
		r.log.Debugf("leave for unknown user %s", userID)
		return
	}
	delete(r.users, userID)
	for id, e := range r.entities {
		if e.OwnerUserID == userID {
			delete(r.entities, id)
		}
	}
	r.log.WithFields(logrus.Fields{
		"user":  userID,
		"users": len(r.users),
	}).Info("user left")

	if !r.locked {
		return
	}
	switch r.state {
	case StateWaiting:
		r.unlockIfAble()
	default:
		r.log.Tracef("will not unlock the room, game state %s", r.state)
	}
}

// SetUserAttributes applies an inbound attribute update. Clients may only
// change their own attributes; an empty userID means the caller.
func (r *Room) SetUserAttributes(c Client, userID string, attrs map[string]string) error {
	if userID == "" {
		userID = c.UserID
	}
	if c.UserID != userID {
		return ErrForbidden
	}
	u, ok := r.users[userID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownUser, userID)
	}
	for k, v := range attrs {
		r.setUserAttribute(u, k, v)
	}
	return nil
}
