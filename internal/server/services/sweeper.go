package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/guardshare/internal/common"
	"github.com/dmitrijs2005/guardshare/internal/logging"
	"github.com/dmitrijs2005/guardshare/internal/server/models"
	"github.com/dmitrijs2005/guardshare/internal/server/repositories/repomanager"
)

// Sweeper periodically deactivates expired links and, when a retention is
// configured, purges links that have been inactive for too long.
//
// Runs are serialised; a manual RunOnce waits for a scheduled one to finish.
type Sweeper struct {
	rm         repomanager.RepositoryManager
	logger     logging.Logger
	interval   time.Duration
	purgeAfter time.Duration
	now        func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSweeper(rm repomanager.RepositoryManager, interval, purgeAfter time.Duration, logger logging.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Sweeper{
		rm:         rm,
		logger:     logger.With("module", "sweeper"),
		interval:   interval,
		purgeAfter: purgeAfter,
		now:        time.Now,
	}
}

// Start launches the background loop. The first sweep runs immediately.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(ctx)

	s.logger.Info(ctx, "sweeper started", "interval", s.interval.String(), "purge_after", s.purgeAfter.String())
}

// Stop cancels the loop and waits for the current run to return.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.logger.Info(context.Background(), "sweeper stopped")
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	s.tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

// tick runs one scheduled pass. Failures are logged and retried on the
// next tick.
func (s *Sweeper) tick(ctx context.Context) {
	now := s.now().UTC()

	if _, err := s.RunOnce(ctx, now); err != nil {
		s.logger.Error(ctx, "sweep failed", "error", err)
	}

	if s.purgeAfter > 0 {
		if _, err := s.PurgeOldInactive(ctx, s.purgeAfter); err != nil {
			s.logger.Error(ctx, "purge failed", "error", err)
		}
	}
}

// RunOnce deactivates every active link whose expiry is before now and
// returns how many were changed. A second call with the same now changes
// nothing.
func (s *Sweeper) RunOnce(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	n, err := s.rm.Links(s.rm.Conn()).DeactivateExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("deactivate expired links: %w", err)
	}

	sweeperRunsTotal.Inc()
	sweeperDeactivatedTotal.Add(float64(n))
	s.logger.Info(ctx, "sweep finished", "deactivated", n, "duration", time.Since(start).String())
	return n, nil
}

// PurgeOldInactive permanently deletes links that are inactive and were
// last updated more than olderThan ago, together with their logs.
func (s *Sweeper) PurgeOldInactive(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, invalid("retention must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().UTC().Add(-olderThan)
	n, err := s.rm.Links(s.rm.Conn()).DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge inactive links: %w", err)
	}

	sweeperPurgedTotal.Add(float64(n))
	s.logger.Info(ctx, "purge finished", "purged", n, "cutoff", cutoff)
	return n, nil
}

// SweepNow is the superuser-triggered variant of RunOnce.
func (s *Sweeper) SweepNow(ctx context.Context, actor *models.Requester) (int64, error) {
	if !actor.IsSuperuser() {
		return 0, common.ErrorForbidden
	}
	return s.RunOnce(ctx, s.now().UTC())
}

// PurgeNow is the superuser-triggered variant of PurgeOldInactive.
func (s *Sweeper) PurgeNow(ctx context.Context, actor *models.Requester, olderThan time.Duration) (int64, error) {
	if !actor.IsSuperuser() {
		return 0, common.ErrorForbidden
	}
	return s.PurgeOldInactive(ctx, olderThan)
}
