// internal/game/room_store.go
package game

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// RoomStore tracks the running rooms of this process.
type RoomStore struct {
	mu    sync.Mutex
	rooms map[uuid.UUID]*Runner
}

func NewRoomStore() *RoomStore {
	return &RoomStore{
		rooms: make(map[uuid.UUID]*Runner),
	}
}

func (s *RoomStore) AddRoom(rn *Runner) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[rn.ID()] = rn
}

func (s *RoomStore) GetRoom(id uuid.UUID) (*Runner, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rn, exists := s.rooms[id]
	return rn, exists
}

// DeleteRoom stops the room and forgets it.
func (s *RoomStore) DeleteRoom(id uuid.UUID) {
	s.mu.Lock()
	rn, ok := s.rooms[id]
	delete(s.rooms, id)
	s.mu.Unlock()
	if ok {
		rn.Stop()
	}
}

// Rooms returns the running rooms ordered by id.
func (s *RoomStore) Rooms() []*Runner {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Runner, 0, len(s.rooms))
	for _, rn := range s.rooms {
		out = append(out, rn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID().String() < out[j].ID().String() })
	return out
}
