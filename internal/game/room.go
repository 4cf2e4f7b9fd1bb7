// internal/game/room.go
package game

import (
	"math/rand"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/models"
	"github.com/sirupsen/logrus"
)

// GameState is the top-level phase of a room.
type GameState string

const (
	StateNone          GameState = "None"
	StateWaiting       GameState = "Waiting"
	StateSendTargets   GameState = "SendTargets"
	StateBeginRound    GameState = "BeginRound"
	StateSimulateRound GameState = "SimulateRound"
	StateEndRound      GameState = "EndRound"
)

// CountDownState is the sub-state of BeginRound.
type CountDownState string

const (
	CountDownEnter    CountDownState = "Enter"
	CountDownGetReady CountDownState = "GetReady"
	CountDownCounting CountDownState = "CountDown"
)

// Room attribute keys replicated to clients.
const (
	AttrCurrentGameState = "currentGameState"
	AttrLastGameState    = "lastGameState"
	AttrGeneralMessage   = "generalMessage"
	AttrCountDown        = "countDown"
	AttrCountDownState   = "CurrentCountDownState"
	AttrCurrCountDown    = "currCountDown"
)

// Options are supplied when a room is created. Zero values fall back to the
// defaults given to Initialize.
type Options struct {
	MinReqPlayers       int     `json:"minReqPlayers"`
	NumberOfTargetRows  int     `json:"numberOfTargetRows"`
	MaxClients          int     `json:"maxClients"`
	RoundTimeoutSeconds float64 `json:"roundTimeoutSeconds"`
}

// DefaultOptions are used when neither the room creator nor the server
// configuration provide a value.
func DefaultOptions() Options {
	return Options{
		MinReqPlayers:      2,
		NumberOfTargetRows: 4,
		MaxClients:         8,
	}
}

// WithDefaults fills every non-positive field from def.
func (o Options) WithDefaults(def Options) Options {
	if o.MinReqPlayers <= 0 {
		o.MinReqPlayers = def.MinReqPlayers
	}
	if o.NumberOfTargetRows <= 0 {
		o.NumberOfTargetRows = def.NumberOfTargetRows
	}
	if o.MaxClients <= 0 {
		o.MaxClients = def.MaxClients
	}
	if o.RoundTimeoutSeconds <= 0 {
		o.RoundTimeoutSeconds = def.RoundTimeoutSeconds
	}
	return o
}

// Room is the authoritative state of one shooting gallery session. It is not
// safe for concurrent use: every call must come from the room's Runner loop.
type Room struct {
	ID      uuid.UUID
	Options Options

	// Rand drives lineup generation. Replace before Initialize for
	// reproducible rounds.
	Rand *rand.Rand

	// LineupFn overrides the random lineup generator when set.
	LineupFn LineupFunc

	// OnRoundEnd is invoked after a round has been scored and reset.
	OnRoundEnd func(rec models.RoundRecord)

	users      map[string]*models.User
	entities   map[string]*models.Entity
	attributes map[string]string

	currentTargetSet     map[string]*models.Target
	currentActiveTargets map[string]*models.Target
	lineup               []*models.Target
	gameScores           map[string]int
	scorers              map[string]models.PlayerScore

	state          GameState
	lastState      GameState
	countDownState CountDownState
	currCountDown  float64
	roundElapsed   float64
	round          int
	roundStarted   time.Time

	locked  bool
	methods map[string]MethodHandler

	sink Sink
	log  *logrus.Entry
	now  func() time.Time
}

// NewRoom builds a room in the None state. Call Initialize before ticking.
func NewRoom(id uuid.UUID, sink Sink, logger *logrus.Logger) *Room {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	methods := make(map[string]MethodHandler, len(customMethods))
	for name, fn := range customMethods {
		methods[name] = fn
	}
	return &Room{
		ID:             id,
		Options:        DefaultOptions(),
		Rand:           rand.New(rand.NewSource(time.Now().UnixNano())),
		users:          make(map[string]*models.User),
		entities:       make(map[string]*models.Entity),
		attributes:     make(map[string]string),
		state:          StateNone,
		lastState:      StateNone,
		countDownState: CountDownEnter,
		methods:        methods,
		sink:           sink,
		log:            logger.WithField("room", id.String()),
		now:            time.Now,
	}
}

// State returns the current top-level game state.
func (r *Room) State() GameState { return r.state }

// LastState returns the state the room was in before the current one.
func (r *Room) LastState() GameState { return r.lastState }

// Locked reports whether new users are refused.
func (r *Room) Locked() bool { return r.locked }

// NumUsers returns the number of connected users.
func (r *Room) NumUsers() int { return len(r.users) }

// Attribute returns a replicated room attribute.
func (r *Room) Attribute(key string) string { return r.attributes[key] }

// Score returns the accumulated round score of an entity.
func (r *Room) Score(entityID string) int { return r.gameScores[entityID] }

// User returns a connected user by id.
func (r *Room) User(userID string) (*models.User, bool) {
	u, ok := r.users[userID]
	return u, ok
}

// HasReachedMaxClients reports whether the room is at capacity.
func (r *Room) HasReachedMaxClients() bool {
	return r.Options.MaxClients > 0 && len(r.users) >= r.Options.MaxClients
}

// Lock refuses further joins until Unlock.
func (r *Room) Lock() {
	if !r.locked {
		r.locked = true
		r.log.Debug("room locked")
	}
}

// Unlock allows joins again.
func (r *Room) Unlock() {
	if r.locked {
		r.locked = false
		r.log.Debug("room unlocked")
	}
}

func (r *Room) unlockIfAble() {
	if !r.HasReachedMaxClients() {
		r.Unlock()
	}
}

// setRoomAttribute stores a replicated attribute. Unchanged values are not
// re-sent.
func (r *Room) setRoomAttribute(key, value string) {
	if old, ok := r.attributes[key]; ok && old == value {
		return
	}
	r.attributes[key] = value
	if r.sink != nil {
		r.sink.SetRoomAttribute(key, value)
	}
}

func (r *Room) setUserAttribute(u *models.User, key, value string) {
	if old, ok := u.Attributes[key]; ok && old == value {
		return
	}
	u.Attributes[key] = value
	if r.sink != nil {
		r.sink.SetUserAttribute(u.ID, key, value)
	}
}

// setUsersAttribute sets the same attribute on every connected user.
func (r *Room) setUsersAttribute(key, value string) {
	for _, u := range r.users {
		r.setUserAttribute(u, key, value)
	}
}

func (r *Room) setCurrCountDown(v float64) {
	r.currCountDown = v
	r.setRoomAttribute(AttrCurrCountDown, strconv.FormatFloat(v, 'f', -1, 64))
}

func (r *Room) setCountDownState(s CountDownState) {
	r.countDownState = s
	r.setRoomAttribute(AttrCountDownState, string(s))
}

func (r *Room) broadcast(kind EventKind, payload interface{}) {
	if r.sink == nil {
		return
	}
	r.sink.Broadcast(Event{Kind: kind, Payload: payload})
}

// checkAllReady reports whether every connected user has readyState=ready.
func (r *Room) checkAllReady() bool {
	for _, u := range r.users {
		if !u.IsReady() {
			return false
		}
	}
	return true
}

// UserSnapshot is a copy of one user's replicated state.
type UserSnapshot struct {
	ID         string            `json:"id"`
	Username   string            `json:"username"`
	Attributes map[string]string `json:"attributes"`
}

// Snapshot is a point-in-time copy of everything a client needs to render
// the room. It shares no memory with the room.
type Snapshot struct {
	RoomID     uuid.UUID         `json:"roomId"`
	Locked     bool              `json:"locked"`
	MaxClients int               `json:"maxClients"`
	Attributes map[string]string `json:"attributes"`
	Users      []UserSnapshot    `json:"users"`
	Entities   []models.Entity   `json:"entities"`
	Targets    []models.Target   `json:"targets"`
	Scores     map[string]int    `json:"scores"`
}

// Snapshot copies the room state, with users and entities sorted by id.
func (r *Room) Snapshot() Snapshot {
	s := Snapshot{
		RoomID:     r.ID,
		Locked:     r.locked,
		MaxClients: r.Options.MaxClients,
		Attributes: make(map[string]string, len(r.attributes)),
		Users:      make([]UserSnapshot, 0, len(r.users)),
		Entities:   make([]models.Entity, 0, len(r.entities)),
		Targets:    copyTargets(r.lineup),
		Scores:     make(map[string]int, len(r.gameScores)),
	}
	for k, v := range r.attributes {
		s.Attributes[k] = v
	}
	for _, u := range r.users {
		attrs := make(map[string]string, len(u.Attributes))
		for k, v := range u.Attributes {
			attrs[k] = v
		}
		s.Users = append(s.Users, UserSnapshot{ID: u.ID, Username: u.Username, Attributes: attrs})
	}
	sort.Slice(s.Users, func(i, j int) bool { return s.Users[i].ID < s.Users[j].ID })
	for _, e := range r.entities {
		s.Entities = append(s.Entities, *e)
	}
	sort.Slice(s.Entities, func(i, j int) bool { return s.Entities[i].ID < s.Entities[j].ID })
	for id, score := range r.gameScores {
		s.Scores[id] = score
	}
	return s
}

func copyTargets(src []*models.Target) []models.Target {
	out := make([]models.Target, 0, len(src))
	for _, t := range src {
		out = append(out, *t)
	}
	return out
}
