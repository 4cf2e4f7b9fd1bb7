// internal/game/helpers_test.go
package game

import (
	"io"
	"math/rand"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type attrWrite struct {
	userID string
	key    string
	value  string
}

// mockSink records everything a room replicates instead of sending it.
type mockSink struct {
	mu        sync.Mutex
	events    []Event
	roomAttrs []attrWrite
	userAttrs []attrWrite
}

func (s *mockSink) Broadcast(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *mockSink) SetUserAttribute(userID, key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userAttrs = append(s.userAttrs, attrWrite{userID: userID, key: key, value: value})
}

func (s *mockSink) SetRoomAttribute(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roomAttrs = append(s.roomAttrs, attrWrite{key: key, value: value})
}

func (s *mockSink) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
	s.roomAttrs = nil
	s.userAttrs = nil
}

// eventsOf returns the recorded broadcasts of one kind.
func (s *mockSink) eventsOf(kind EventKind) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

// roomAttrValues returns every value written to a room attribute, in order.
func (s *mockSink) roomAttrValues(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, w := range s.roomAttrs {
		if w.key == key {
			out = append(out, w.value)
		}
	}
	return out
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// setupTestRoom builds an initialized room with a seeded rng and a recording sink.
func setupTestRoom(t *testing.T, opts Options) (*Room, *mockSink) {
	t.Helper()
	sink := &mockSink{}
	r := NewRoom(uuid.New(), sink, quietLogger())
	r.Rand = rand.New(rand.NewSource(42))
	r.Initialize(opts)
	require.Equal(t, StateWaiting, r.State())
	require.Equal(t, StateNone, r.LastState())
	return r, sink
}

// fixedLineup makes the room deal the given targets every round.
func fixedLineup(r *Room, targets ...models.Target) {
	r.LineupFn = func(count, rows int) ([]*models.Target, error) {
		out := make([]*models.Target, 0, len(targets))
		for i := range targets {
			t := targets[i]
			out = append(out, &t)
		}
		return out, nil
	}
}

func join(t *testing.T, r *Room, userID, entityID string) {
	t.Helper()
	_, err := r.HandleUserJoined(userID, "name-"+userID, entityID)
	require.NoError(t, err)
}

func setReady(t *testing.T, r *Room, userIDs ...string) {
	t.Helper()
	for _, id := range userIDs {
		err := r.SetUserAttributes(Client{UserID: id}, id, map[string]string{models.AttrReadyState: models.ReadyStateReady})
		require.NoError(t, err)
	}
}

const testTickMillis = 100

// tickUntil ticks until the room reaches state or fails after maxTicks.
func tickUntil(t *testing.T, r *Room, state GameState, maxTicks int) int {
	t.Helper()
	for i := 1; i <= maxTicks; i++ {
		r.Tick(testTickMillis)
		if r.State() == state {
			return i
		}
	}
	require.FailNowf(t, "state not reached", "room stuck in %s, wanted %s", r.State(), state)
	return 0
}

// startRound readies everyone twice and runs the countdown until the round
// is being simulated.
func startRound(t *testing.T, r *Room, userIDs ...string) {
	t.Helper()
	setReady(t, r, userIDs...)
	tickUntil(t, r, StateSendTargets, 1)
	tickUntil(t, r, StateWaiting, 1)
	require.Equal(t, StateSendTargets, r.LastState())
	setReady(t, r, userIDs...)
	tickUntil(t, r, StateBeginRound, 1)
	require.True(t, r.Locked())
	tickUntil(t, r, StateSimulateRound, 200)
}

func score(r *Room, userID, entityID, targetUID string) error {
	return r.HandleCustomMethod(Client{UserID: userID}, MethodRequest{
		Method: "scoreTarget",
		Param:  []interface{}{entityID, targetUID},
	})
}
