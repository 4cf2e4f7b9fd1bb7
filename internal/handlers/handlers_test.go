// internal/handlers/handlers_test.go
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/auth"
	"github.com/jason-s-yu/gallery/internal/cache"
	"github.com/jason-s-yu/gallery/internal/config"
	"github.com/jason-s-yu/gallery/internal/game"
	"github.com/jason-s-yu/gallery/internal/models"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRounds struct {
	mu   sync.Mutex
	recs []models.RoundRecord
}

func (f *fakeRounds) Publish(_ context.Context, rec models.RoundRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return nil
}

func (f *fakeRounds) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.recs)
}

type fakeLeaderboard struct {
	fakeRounds
	top []cache.LeaderboardEntry
}

func (f *fakeLeaderboard) RecordRound(ctx context.Context, rec models.RoundRecord) error {
	return f.Publish(ctx, rec)
}

func (f *fakeLeaderboard) Top(_ context.Context, limit int) ([]cache.LeaderboardEntry, error) {
	if limit > len(f.top) {
		limit = len(f.top)
	}
	return f.top[:limit], nil
}

func newTestServer(t *testing.T, setup ...func(*GameServer)) (*GameServer, *httptest.Server) {
	t.Helper()
	require.NoError(t, auth.Init(0))
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{TickRateHz: 50, MinReqPlayers: 2, TargetRows: 4, MaxClients: 8}

	ctx, cancel := context.WithCancel(context.Background())
	gs := NewGameServer(ctx, cfg, logger)
	for _, fn := range setup {
		fn(gs)
	}
	srv := httptest.NewServer(NewRouter(gs))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return gs, srv
}

func guestToken(t *testing.T, srv *httptest.Server, name string) guestResponse {
	t.Helper()
	body, _ := json.Marshal(guestRequest{Username: name})
	resp, err := http.Post(srv.URL+"/user/guest", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out guestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func createRoom(t *testing.T, srv *httptest.Server, token string, body string) createRoomResponse {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/room/create", strings.NewReader(body))
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: authCookieName, Value: token})
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var out createRoomResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws/" + roomID + "?token=" + token
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{Subprotocols: []string{roomSubprotocol}})
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })
	return c
}

func readMsg(t *testing.T, c *websocket.Conn) map[string]interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	var msg map[string]interface{}
	require.NoError(t, wsjson.Read(ctx, c, &msg))
	return msg
}

// readUntil reads until match returns true and fails after a timeout.
func readUntil(t *testing.T, c *websocket.Conn, match func(map[string]interface{}) bool) map[string]interface{} {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		msg := readMsg(t, c)
		if match(msg) {
			return msg
		}
	}
	require.FailNow(t, "expected message not received")
	return nil
}

func closeCode(t *testing.T, c *websocket.Conn) websocket.StatusCode {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	return websocket.CloseStatus(err)
}

func TestGuestHandler(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/user/guest", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out guestResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "Guest", out.Username)
	_, err = uuid.Parse(out.ID)
	assert.NoError(t, err)

	cookies := resp.Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, out.Token, cookies[0].Value)

	claims, err := auth.AuthenticateJWT(out.Token)
	require.NoError(t, err)
	assert.Equal(t, out.ID, claims.Subject)

	resp2, err := http.Get(srv.URL + "/user/guest")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp2.StatusCode)
}

func TestCreateAndListRooms(t *testing.T) {
	_, srv := newTestServer(t)
	alice := guestToken(t, srv, "alice")

	room := createRoom(t, srv, alice.Token, `{"minReqPlayers":3,"maxClients":-1}`)
	assert.Equal(t, 3, room.Options.MinReqPlayers)
	assert.Equal(t, 4, room.Options.NumberOfTargetRows)
	assert.Equal(t, 8, room.Options.MaxClients)

	createRoom(t, srv, alice.Token, "")

	req, _ := http.NewRequest(http.MethodGet, srv.URL+"/room/list", nil)
	req.Header.Set("Authorization", "Bearer "+alice.Token)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var rooms []roomSummary
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&rooms))
	require.Len(t, rooms, 2)
	for _, rs := range rooms {
		assert.Equal(t, 0, rs.Users)
		assert.False(t, rs.Locked)
		assert.Equal(t, "Waiting", rs.State)
	}
}

func TestRoomEndpointsRequireAuth(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/room/create", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/room/list?token=garbage")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws/" + uuid.NewString()
	_, wsResp, err := websocket.Dial(context.Background(), url, &websocket.DialOptions{Subprotocols: []string{roomSubprotocol}})
	require.Error(t, err)
	require.NotNil(t, wsResp)
	assert.Equal(t, http.StatusUnauthorized, wsResp.StatusCode)
}

func TestRoomWebSocketFlow(t *testing.T) {
	_, srv := newTestServer(t)
	alice := guestToken(t, srv, "alice")
	bob := guestToken(t, srv, "bob")
	room := createRoom(t, srv, alice.Token, "")

	ca := dialRoom(t, srv, room.ID.String(), alice.Token)
	joined := readMsg(t, ca)
	assert.Equal(t, msgJoined, joined["type"])
	assert.Equal(t, alice.ID, joined["userId"])
	state := readMsg(t, ca)
	assert.Equal(t, msgRoomState, state["type"])
	assert.Len(t, state["users"], 1)

	cb := dialRoom(t, srv, room.ID.String(), bob.Token)
	assert.Equal(t, msgJoined, readMsg(t, cb)["type"])
	state = readMsg(t, cb)
	assert.Len(t, state["users"], 2)

	// alice sees bob's readiness replicated
	readUntil(t, ca, func(m map[string]interface{}) bool {
		return m["type"] == msgUserAttributes && m["userId"] == bob.ID
	})

	ctx := context.Background()
	require.NoError(t, wsjson.Write(ctx, ca, inboundMessage{Type: msgPing}))
	readUntil(t, ca, func(m map[string]interface{}) bool { return m["type"] == msgPong })

	// unknown methods and foreign attribute writes come back as errors
	require.NoError(t, wsjson.Write(ctx, ca, inboundMessage{Type: msgCustomMethod, Method: "nope"}))
	errMsg := readUntil(t, ca, func(m map[string]interface{}) bool { return m["type"] == msgError })
	assert.Contains(t, errMsg["message"], "no method found")

	require.NoError(t, wsjson.Write(ctx, ca, inboundMessage{
		Type: msgSetAttribute, UserID: bob.ID, AttributesToSet: map[string]string{models.AttrReadyState: models.ReadyStateReady},
	}))
	errMsg = readUntil(t, ca, func(m map[string]interface{}) bool { return m["type"] == msgError })
	assert.Contains(t, errMsg["message"], "not allowed")

	for _, c := range []*websocket.Conn{ca, cb} {
		require.NoError(t, wsjson.Write(ctx, c, inboundMessage{
			Type: msgSetAttribute, AttributesToSet: map[string]string{models.AttrReadyState: models.ReadyStateReady},
		}))
	}

	lineup := readUntil(t, cb, func(m map[string]interface{}) bool {
		return m["type"] == msgBroadcast && m["kind"] == string(game.EventNewTargetLineUp)
	})
	payload := lineup["payload"].(map[string]interface{})
	assert.GreaterOrEqual(t, len(payload["targets"].([]interface{})), 10)
}

func TestRoomWebSocketRejections(t *testing.T) {
	_, srv := newTestServer(t)
	alice := guestToken(t, srv, "alice")
	room := createRoom(t, srv, alice.Token, "")

	c := dialRoom(t, srv, uuid.NewString(), alice.Token)
	assert.Equal(t, websocket.StatusCode(InvalidRoomIDError), closeCode(t, c))

	first := dialRoom(t, srv, room.ID.String(), alice.Token)
	assert.Equal(t, msgJoined, readMsg(t, first)["type"])
	dup := dialRoom(t, srv, room.ID.String(), alice.Token)
	assert.Equal(t, websocket.StatusCode(DuplicateUserError), closeCode(t, dup))

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws/" + room.ID.String() + "?token=" + alice.Token
	noProto, _, err := websocket.Dial(context.Background(), url, nil)
	require.NoError(t, err)
	defer noProto.CloseNow()
	assert.Equal(t, websocket.StatusCode(BadSubprotocolError), closeCode(t, noProto))
}

func TestRoomRemovedWhenEmpty(t *testing.T) {
	gs, srv := newTestServer(t)
	alice := guestToken(t, srv, "alice")
	room := createRoom(t, srv, alice.Token, "")

	c := dialRoom(t, srv, room.ID.String(), alice.Token)
	assert.Equal(t, msgJoined, readMsg(t, c)["type"])
	c.Close(websocket.StatusNormalClosure, "")

	require.Eventually(t, func() bool {
		_, ok := gs.Store.GetRoom(room.ID)
		return !ok
	}, 5*time.Second, 10*time.Millisecond)
	_, ok := gs.hub(room.ID)
	assert.False(t, ok)
}

func TestIdleRoomRemoved(t *testing.T) {
	gs, srv := newTestServer(t, func(gs *GameServer) {
		gs.Config.RoomIdleTimeout = 100 * time.Millisecond
	})

	var ids []uuid.UUID
	for i := 0; i < 10; i++ {
		ids = append(ids, gs.CreateRoom(game.Options{}).ID())
	}
	// a room created over http that nobody dials
	alice := guestToken(t, srv, "alice")
	ids = append(ids, createRoom(t, srv, alice.Token, "").ID)

	require.Eventually(t, func() bool {
		return len(gs.Store.Rooms()) == 0
	}, 5*time.Second, 10*time.Millisecond)
	for _, id := range ids {
		_, ok := gs.hub(id)
		assert.False(t, ok)
	}
}

func TestRoomOriginPatterns(t *testing.T) {
	_, srv := newTestServer(t, func(gs *GameServer) {
		gs.Config.AllowedOrigins = []string{"gallery.example.com"}
	})
	alice := guestToken(t, srv, "alice")
	room := createRoom(t, srv, alice.Token, "")
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/room/ws/" + room.ID.String() + "?token=" + alice.Token

	dial := func(origin string) (*websocket.Conn, *http.Response, error) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return websocket.Dial(ctx, url, &websocket.DialOptions{
			Subprotocols: []string{roomSubprotocol},
			HTTPHeader:   http.Header{"Origin": []string{origin}},
		})
	}

	_, resp, err := dial("http://evil.example.net")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	c, _, err := dial("https://gallery.example.com")
	require.NoError(t, err)
	defer c.CloseNow()
	assert.Equal(t, msgJoined, readMsg(t, c)["type"])
}

func TestPublishRound(t *testing.T) {
	gs, _ := newTestServer(t)

	// persistence disabled
	gs.publishRound(models.RoundRecord{})

	rounds := &fakeRounds{}
	lb := &fakeLeaderboard{}
	gs.Rounds = rounds
	gs.Leaderboard = lb
	gs.publishRound(models.RoundRecord{RoomID: uuid.New(), Round: 1})

	require.Eventually(t, func() bool {
		return rounds.count() == 1 && lb.count() == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestLeaderboardHandler(t *testing.T) {
	_, srv := newTestServer(t)
	resp, err := http.Get(srv.URL + "/leaderboard")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	_, srv = newTestServer(t, func(gs *GameServer) {
		gs.Leaderboard = &fakeLeaderboard{top: []cache.LeaderboardEntry{
			{UserID: "B", Username: "bob", Points: 60, Wins: 1, Rank: 1},
			{UserID: "A", Username: "alice", Points: 35, Wins: 1, Rank: 2},
		}}
	})

	resp, err = http.Get(srv.URL + "/leaderboard?limit=1")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entries []cache.LeaderboardEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "bob", entries[0].Username)

	resp2, err := http.Get(srv.URL + "/leaderboard?limit=zero")
	require.NoError(t, err)
	resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}
