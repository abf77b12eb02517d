package database

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/weathernow/weathernow/internal/metrics"
)

// MinSweepInterval is the shortest allowed pause between sweeps.
const MinSweepInterval = time.Minute

// Sweeper periodically deletes sessions idle for longer than ttl.
type Sweeper struct {
	store    Store
	ttl      time.Duration
	interval time.Duration
	log      *slog.Logger
	stopChan chan struct{}
	wg       sync.WaitGroup
}

// NewSweeper creates a background sweeper.
func NewSweeper(store Store, ttl, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval < MinSweepInterval {
		interval = MinSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		store:    store,
		ttl:      ttl,
		interval: interval,
		log:      logger,
		stopChan: make(chan struct{}),
	}
}

// SweepOnce deletes sessions idle since now-ttl.
func (s *Sweeper) SweepOnce(ctx context.Context, now time.Time) (int64, error) {
	n, err := s.store.DeleteSessionsBefore(ctx, now.Add(-s.ttl))
	if err != nil {
		return 0, err
	}
	metrics.SessionsSwept.Add(float64(n))
	return n, nil
}

// Start begins the sweep loop.
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.stopChan:
				return
			case <-time.After(s.interval):
			}

			ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
			n, err := s.SweepOnce(ctx, time.Now())
			cancel()
			if err != nil {
				s.log.Error("session sweep failed", "error", err)
			} else if n > 0 {
				s.log.Info("swept idle sessions", "count", n, "backend", s.store.DatabaseType())
			}
		}
	}()
}

// Stop stops the sweeper gracefully.
func (s *Sweeper) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
