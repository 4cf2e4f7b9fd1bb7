// cmd/historian/main.go is an asynchronous historian service that pops finished round records from a Redis queue and persists them to a PostgreSQL database.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jason-s-yu/gallery/internal/cache"
	"github.com/jason-s-yu/gallery/internal/config"
	"github.com/jason-s-yu/gallery/internal/database"
	"github.com/jason-s-yu/gallery/internal/models"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

// popTimeout bounds each BLPop so that cancellation and flushes are noticed.
const popTimeout = 3 * time.Second

// RoundQueue is the source of finished rounds.
type RoundQueue interface {
	Pop(ctx context.Context, timeout time.Duration) (*models.RoundRecord, error)
}

// HistorianService batches round records from the queue into the database.
type HistorianService struct {
	queue      RoundQueue
	store      func(ctx context.Context, recs []models.RoundRecord) error
	batchSize  int
	flushDelay time.Duration
	log        *logrus.Logger

	batchMu sync.Mutex
	batch   []models.RoundRecord
}

func NewHistorianService(queue RoundQueue, cfg *config.Config, logger *logrus.Logger) *HistorianService {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	return &HistorianService{
		queue:      queue,
		store:      database.RecordRounds,
		batchSize:  batchSize,
		flushDelay: cfg.FlushDelay,
		log:        logger,
		batch:      make([]models.RoundRecord, 0, batchSize),
	}
}

// Run pops records until ctx is done, flushing on size and on a timer. The
// pending batch is flushed once more before returning.
func (hs *HistorianService) Run(ctx context.Context) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		hs.flushLoop(ctx)
	}()

	hs.log.Info("gallery-historian service started.")
	hs.readLoop(ctx)
	wg.Wait()

	// the run context is gone, give the last write its own deadline
	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hs.flush(flushCtx)
	hs.log.Info("gallery-historian shutting down.")
}

func (hs *HistorianService) readLoop(ctx context.Context) {
	for ctx.Err() == nil {
		rec, err := hs.queue.Pop(ctx, popTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			hs.log.Errorf("pop round record: %v", err)
			time.Sleep(time.Second)
			continue
		}
		if rec == nil {
			continue
		}
		if hs.addRecord(*rec) {
			hs.flush(ctx)
		}
	}
}

func (hs *HistorianService) flushLoop(ctx context.Context) {
	if hs.flushDelay <= 0 {
		return
	}
	ticker := time.NewTicker(hs.flushDelay)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			hs.flush(ctx)
		}
	}
}

// addRecord adds a record and reports whether the batch is full.
func (hs *HistorianService) addRecord(rec models.RoundRecord) bool {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()
	hs.batch = append(hs.batch, rec)
	return len(hs.batch) >= hs.batchSize
}

// flush writes the current batch in a single transaction. A failed batch is
// kept and retried with the next flush.
func (hs *HistorianService) flush(ctx context.Context) {
	hs.batchMu.Lock()
	defer hs.batchMu.Unlock()

	if len(hs.batch) == 0 {
		return
	}
	if err := hs.store(ctx, hs.batch); err != nil {
		hs.log.Errorf("flush %d round(s): %v", len(hs.batch), err)
		return
	}
	hs.log.Infof("Flushed %d round(s) to DB.", len(hs.batch))
	hs.batch = hs.batch[:0]
}

func main() {
	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.ConnectDB(ctx, cfg.PostgresDSN(), logger); err != nil {
		logger.Fatalf("database: %v", err)
	}
	defer database.Close()
	if err := database.EnsureSchema(ctx); err != nil {
		logger.Fatalf("database: %v", err)
	}

	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("redis: %v", err)
	}
	defer rdb.Close()

	hs := NewHistorianService(cache.NewRoundQueue(rdb, cfg.QueueName), cfg, logger)
	hs.Run(ctx)
	logger.Info("Historian shutdown complete.")
}
