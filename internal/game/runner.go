// internal/game/runner.go
package game

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/models"
)

// JoinRequest asks the room to admit a user. OnJoined runs inside the room
// loop right after the user is admitted, before any later room output, so a
// connection can be registered without missing replication.
type JoinRequest struct {
	UserID   string
	Username string
	EntityID string
	OnJoined func(entity models.Entity, snap Snapshot)
}

type joinCmd struct {
	req   JoinRequest
	reply chan error
}

type leaveCmd struct {
	userID string
}

type methodCmd struct {
	client Client
	req    MethodRequest
	reply  chan error
}

type attributeCmd struct {
	client Client
	userID string
	attrs  map[string]string
	reply  chan error
}

type snapshotCmd struct {
	reply chan Snapshot
}

// Runner serializes every input of one Room (ticks, joins, leaves, methods,
// attribute updates) through a single inbox drained by Run.
type Runner struct {
	room     *Room
	inbox    chan interface{}
	interval time.Duration
	quit     chan struct{}
	stopOnce sync.Once

	// OnEmpty is called from the loop, at most once, when the last user
	// leaves or when the room has had no users for IdleTimeout.
	OnEmpty func(id uuid.UUID)
	// IdleTimeout counts from creation or from the last leave. Zero disables it.
	IdleTimeout time.Duration

	idle    time.Duration
	emptied bool
}

// NewRunner wraps an initialized room. tickHz is the tick frequency.
func NewRunner(room *Room, tickHz int) *Runner {
	if tickHz <= 0 {
		tickHz = 20
	}
	return &Runner{
		room:     room,
		inbox:    make(chan interface{}, 256),
		interval: time.Second / time.Duration(tickHz),
		quit:     make(chan struct{}),
	}
}

// ID returns the id of the wrapped room.
func (rn *Runner) ID() uuid.UUID { return rn.room.ID }

// Run drives the room until ctx is done or Stop is called.
func (rn *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(rn.interval)
	defer ticker.Stop()
	last := time.Now()

	for {
		select {
		case <-ctx.Done():
			rn.Stop()
			return
		case <-rn.quit:
			return
		case cmd := <-rn.inbox:
			rn.handleCommand(cmd)
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now
			rn.room.Tick(float64(dt) / float64(time.Millisecond))
			rn.checkIdle(dt)
		}
	}
}

// checkIdle accumulates the time spent with zero users and fires OnEmpty
// once IdleTimeout is reached.
func (rn *Runner) checkIdle(dt time.Duration) {
	if rn.room.NumUsers() > 0 {
		rn.idle = 0
		return
	}
	rn.idle += dt
	if rn.IdleTimeout > 0 && rn.idle >= rn.IdleTimeout {
		rn.room.log.Infof("room idle for %s with no users", rn.idle.Round(time.Millisecond))
		rn.notifyEmpty()
	}
}

func (rn *Runner) notifyEmpty() {
	if rn.emptied || rn.OnEmpty == nil {
		return
	}
	rn.emptied = true
	rn.OnEmpty(rn.room.ID)
}

// Stop ends Run. Pending and future requests fail with ErrRoomClosed.
func (rn *Runner) Stop() {
	rn.stopOnce.Do(func() { close(rn.quit) })
}

func (rn *Runner) handleCommand(cmd interface{}) {
	switch c := cmd.(type) {
	case joinCmd:
		entity, err := rn.room.HandleUserJoined(c.req.UserID, c.req.Username, c.req.EntityID)
		if err == nil && c.req.OnJoined != nil {
			c.req.OnJoined(entity, rn.room.Snapshot())
		}
		c.reply <- err
	case leaveCmd:
		rn.room.HandleUserLeft(c.userID)
		if rn.room.NumUsers() == 0 {
			rn.notifyEmpty()
		}
	case methodCmd:
		c.reply <- rn.room.HandleCustomMethod(c.client, c.req)
	case attributeCmd:
		c.reply <- rn.room.SetUserAttributes(c.client, c.userID, c.attrs)
	case snapshotCmd:
		c.reply <- rn.room.Snapshot()
	}
}

// send enqueues cmd unless the room is stopped or ctx ends first.
func (rn *Runner) send(ctx context.Context, cmd interface{}) error {
	select {
	case rn.inbox <- cmd:
		return nil
	case <-rn.quit:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (rn *Runner) await(ctx context.Context, reply chan error) error {
	select {
	case err := <-reply:
		return err
	case <-rn.quit:
		return ErrRoomClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Join admits a user, see JoinRequest.
func (rn *Runner) Join(ctx context.Context, req JoinRequest) error {
	reply := make(chan error, 1)
	if err := rn.send(ctx, joinCmd{req: req, reply: reply}); err != nil {
		return err
	}
	return rn.await(ctx, reply)
}

// Leave reports a departed user. It does not wait for the room to process it.
func (rn *Runner) Leave(ctx context.Context, userID string) error {
	return rn.send(ctx, leaveCmd{userID: userID})
}

// CallMethod runs a custom method and returns its method-level error.
func (rn *Runner) CallMethod(ctx context.Context, c Client, req MethodRequest) error {
	reply := make(chan error, 1)
	if err := rn.send(ctx, methodCmd{client: c, req: req, reply: reply}); err != nil {
		return err
	}
	return rn.await(ctx, reply)
}

// SetAttributes applies an inbound user attribute update.
func (rn *Runner) SetAttributes(ctx context.Context, c Client, userID string, attrs map[string]string) error {
	reply := make(chan error, 1)
	if err := rn.send(ctx, attributeCmd{client: c, userID: userID, attrs: attrs, reply: reply}); err != nil {
		return err
	}
	return rn.await(ctx, reply)
}

// Snapshot returns a copy of the room state taken inside the loop.
func (rn *Runner) Snapshot(ctx context.Context) (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	if err := rn.send(ctx, snapshotCmd{reply: reply}); err != nil {
		return Snapshot{}, err
	}
	select {
	case s := <-reply:
		return s, nil
	case <-rn.quit:
		return Snapshot{}, ErrRoomClosed
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}
