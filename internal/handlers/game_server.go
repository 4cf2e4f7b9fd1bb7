// internal/handlers/game_server.go
package handlers

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jason-s-yu/gallery/internal/cache"
	"github.com/jason-s-yu/gallery/internal/config"
	"github.com/jason-s-yu/gallery/internal/game"
	"github.com/jason-s-yu/gallery/internal/models"
	"github.com/sirupsen/logrus"
)

// RoundPublisher hands finished rounds to the historian.
type RoundPublisher interface {
	Publish(ctx context.Context, rec models.RoundRecord) error
}

// LeaderboardStore keeps lifetime player totals.
type LeaderboardStore interface {
	RecordRound(ctx context.Context, rec models.RoundRecord) error
	Top(ctx context.Context, limit int) ([]cache.LeaderboardEntry, error)
}

// GameServer is a high-level struct that holds the running rooms and the
// connection hub of each of them.
type GameServer struct {
	Store  *game.RoomStore
	Config *config.Config
	Logger *logrus.Logger

	// Rounds and Leaderboard are nil when persistence is disabled.
	Rounds      RoundPublisher
	Leaderboard LeaderboardStore

	ctx  context.Context
	mu   sync.Mutex
	hubs map[uuid.UUID]*roomHub
}

// NewGameServer creates a server whose rooms live until ctx is done.
func NewGameServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) *GameServer {
	return &GameServer{
		Store:  game.NewRoomStore(),
		Config: cfg,
		Logger: logger,
		ctx:    ctx,
		hubs:   make(map[uuid.UUID]*roomHub),
	}
}

// defaultOptions are the room options taken from the configuration.
func (gs *GameServer) defaultOptions() game.Options {
	return game.Options{
		MinReqPlayers:      gs.Config.MinReqPlayers,
		NumberOfTargetRows: gs.Config.TargetRows,
		MaxClients:         gs.Config.MaxClients,
	}.WithDefaults(game.DefaultOptions())
}

// CreateRoom builds, initializes and starts a new room. The room is removed
// again once its last user leaves, or once it has had no users for
// Config.RoomIdleTimeout.
func (gs *GameServer) CreateRoom(opts game.Options) *game.Runner {
	id := uuid.New()
	hub := newRoomHub(id, gs.Logger)

	room := game.NewRoom(id, hub, gs.Logger)
	room.OnRoundEnd = gs.publishRound
	room.Initialize(opts.WithDefaults(gs.defaultOptions()))

	rn := game.NewRunner(room, gs.Config.TickRateHz)
	rn.OnEmpty = gs.removeRoom
	rn.IdleTimeout = gs.Config.RoomIdleTimeout

	gs.mu.Lock()
	gs.hubs[id] = hub
	gs.mu.Unlock()
	gs.Store.AddRoom(rn)

	go rn.Run(gs.ctx)

	gs.Logger.WithField("room", id.String()).Info("room created")
	return rn
}

func (gs *GameServer) hub(id uuid.UUID) (*roomHub, bool) {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	h, ok := gs.hubs[id]
	return h, ok
}

// room returns a running room and its hub.
func (gs *GameServer) room(id uuid.UUID) (*game.Runner, *roomHub, error) {
	rn, ok := gs.Store.GetRoom(id)
	if !ok {
		return nil, nil, game.ErrRoomNotFound
	}
	h, ok := gs.hub(id)
	if !ok {
		return nil, nil, game.ErrRoomNotFound
	}
	return rn, h, nil
}

func (gs *GameServer) removeRoom(id uuid.UUID) {
	gs.mu.Lock()
	h, ok := gs.hubs[id]
	delete(gs.hubs, id)
	gs.mu.Unlock()
	if ok {
		h.closeAll()
	}
	gs.Store.DeleteRoom(id)
	gs.Logger.WithField("room", id.String()).Info("room removed, no users left")
}

// publishRound runs on the room loop, so network calls happen elsewhere.
func (gs *GameServer) publishRound(rec models.RoundRecord) {
	if gs.Rounds == nil && gs.Leaderboard == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		log := gs.Logger.WithFields(logrus.Fields{"room": rec.RoomID.String(), "round": rec.Round})

		if gs.Rounds != nil {
			if err := gs.Rounds.Publish(ctx, rec); err != nil {
				log.Warnf("failed to queue round record: %v", err)
			}
		}
		if gs.Leaderboard != nil {
			if err := gs.Leaderboard.RecordRound(ctx, rec); err != nil {
				log.Warnf("failed to update leaderboard: %v", err)
			}
		}
	}()
}
