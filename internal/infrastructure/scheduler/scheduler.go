// Package scheduler runs the periodic bulk refresh of provider rates
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/damon-houk/exchange-rate-resolver/internal/application/service"
	"github.com/damon-houk/exchange-rate-resolver/internal/infrastructure/logger"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"
)

// Refresher runs one bulk refresh across every source
type Refresher interface {
	UpdateRates(ctx context.Context) []service.UpdateResult
}

// Scheduler invokes a Refresher on a cron schedule. Runs never overlap.
type Scheduler struct {
	cron      *cron.Cron
	schedule  cron.Schedule
	refresher Refresher
	logger    logger.Logger
	timeout   time.Duration

	mu      sync.Mutex
	running bool
}

// New creates a scheduler running refresher on spec. A run is cancelled after timeout.
func New(spec string, refresher Refresher, timeout time.Duration, log logger.Logger) (*Scheduler, error) {
	const op = "scheduler.New"

	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: invalid spec %q", op, spec)
	}
	if log == nil {
		log = logger.GetDefaultLogger()
	}

	s := &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		schedule:  schedule,
		refresher: refresher,
		logger:    log,
		timeout:   timeout,
	}
	s.cron.Schedule(schedule, cron.FuncJob(s.run))
	return s, nil
}

// Start begins scheduling in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Rate refresh scheduler started", map[string]interface{}{
		"next_run": s.NextRun().Format(time.RFC3339),
	})
}

// Stop stops scheduling and waits for a running refresh to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Rate refresh scheduler stopped", nil)
}

// NextRun returns the next scheduled time after now
func (s *Scheduler) NextRun() time.Time {
	return s.schedule.Next(time.Now().UTC())
}

// RunOnce performs a refresh now unless one is already in progress
func (s *Scheduler) RunOnce(ctx context.Context) ([]service.UpdateResult, bool) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Skipping rate refresh, previous run still in progress", nil)
		return nil, false
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	results := s.refresher.UpdateRates(ctx)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	s.logger.Info("Scheduled rate refresh finished", map[string]interface{}{
		"sources":  len(results),
		"failed":   failed,
		"duration": time.Since(started).String(),
	})
	return results, true
}

func (s *Scheduler) run() {
	s.RunOnce(context.Background())
}
