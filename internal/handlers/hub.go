// internal/handlers/hub.go
package handlers

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/game"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// outboundBuffer is the number of queued messages after which a client is
// considered too slow and dropped.
const outboundBuffer = 256

// Inbound messages per second a client may sustain, and the burst on top.
const (
	inboundRate  = 30
	inboundBurst = 60
)

// clientConn is one WebSocket connection in a room. Messages reach the
// socket only through out, drained by writePump.
type clientConn struct {
	userID  string
	out     chan []byte
	cancel  context.CancelFunc
	limiter *rate.Limiter
}

func newClientConn(userID string, cancel context.CancelFunc) *clientConn {
	return &clientConn{
		userID:  userID,
		out:     make(chan []byte, outboundBuffer),
		cancel:  cancel,
		limiter: rate.NewLimiter(inboundRate, inboundBurst),
	}
}

// allowInbound reports whether the client is within its message rate.
func (c *clientConn) allowInbound() bool {
	return c.limiter == nil || c.limiter.Allow()
}

// enqueue never blocks. A full queue disconnects the client.
func (c *clientConn) enqueue(data []byte) bool {
	select {
	case c.out <- data:
		return true
	default:
		c.cancel()
		return false
	}
}

// send marshals msg and enqueues it.
func (c *clientConn) send(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	c.enqueue(data)
}

// roomHub fans room output out to every connection of one room. It is the
// room's game.Sink.
type roomHub struct {
	roomID uuid.UUID
	log    *logrus.Entry

	mu    sync.Mutex
	conns map[string]*clientConn
}

var _ game.Sink = (*roomHub)(nil)

func newRoomHub(roomID uuid.UUID, logger *logrus.Logger) *roomHub {
	return &roomHub{
		roomID: roomID,
		log:    logger.WithField("room", roomID.String()),
		conns:  make(map[string]*clientConn),
	}
}

func (h *roomHub) add(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.userID] = c
}

// remove drops c unless the user has been registered with a newer connection.
func (h *roomHub) remove(c *clientConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if cur, ok := h.conns[c.userID]; ok && cur == c {
		delete(h.conns, c.userID)
	}
}

func (h *roomHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		c.cancel()
		delete(h.conns, id)
	}
}

func (h *roomHub) sendAll(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.log.Errorf("failed to marshal outgoing %T: %v", msg, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.conns {
		if !c.enqueue(data) {
			h.log.Warnf("outbound queue full for user %s, disconnecting", id)
			delete(h.conns, id)
		}
	}
}

func (h *roomHub) Broadcast(ev game.Event) {
	h.sendAll(broadcastMessage{Type: msgBroadcast, Kind: ev.Kind, Payload: ev.Payload})
}

func (h *roomHub) SetRoomAttribute(key, value string) {
	h.sendAll(roomAttributesMessage{Type: msgRoomAttributes, Attributes: map[string]string{key: value}})
}

func (h *roomHub) SetUserAttribute(userID, key, value string) {
	h.sendAll(userAttributesMessage{Type: msgUserAttributes, UserID: userID, Attributes: map[string]string{key: value}})
}
