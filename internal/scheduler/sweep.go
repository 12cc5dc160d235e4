// internal/scheduler/sweep.go
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

const sweepTimeout = 5 * time.Minute

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Sweeper refreshes overdue state and reports the ids that became overdue.
type Sweeper interface {
	Sweep(ctx context.Context) ([]string, error)
}

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := parser.Parse(schedule)
	return err
}

// SweepScheduler runs an overdue sweep on a cron schedule.
type SweepScheduler struct {
	sweeper  Sweeper
	schedule string
	logger   *slog.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSweeping bool
	runCtx     context.Context
	cancel     context.CancelFunc
	onSwept    func(ids []string, err error)
}

func NewSweepScheduler(sweeper Sweeper, schedule string, logger *slog.Logger) *SweepScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SweepScheduler{
		sweeper:  sweeper,
		schedule: schedule,
		logger:   logger,
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// OnSwept registers a callback for every finished sweep.
func (s *SweepScheduler) OnSwept(fn func(ids []string, err error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onSwept = fn
}

// Start schedules the sweep. The scheduler stops when ctx is done.
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}
	if err := ValidateSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.RunNow)
	if err != nil {
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancel = context.WithCancel(ctx)
	s.runCtx = cancelCtx

	s.cron.Start()
	s.isRunning = true

	s.logger.Info("scheduler: overdue sweep started", "schedule", s.schedule, "next_run", s.nextRunLocked())

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()
	return nil
}

// Stop waits for a running sweep to finish.
func (s *SweepScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancel
	s.cancel = nil
	s.runCtx = nil
	s.mu.Unlock()

	// the running job takes mu when it finishes, so wait without holding it
	<-s.cron.Stop().Done()
	s.cron.Remove(s.entryID)
	if cancel != nil {
		cancel()
	}
	s.logger.Info("scheduler: overdue sweep stopped")
}

func (s *SweepScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun is nil while the scheduler is stopped.
func (s *SweepScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.isRunning {
		return nil
	}
	t := s.nextRunLocked()
	return &t
}

func (s *SweepScheduler) nextRunLocked() time.Time {
	sched, err := parser.Parse(s.schedule)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now())
}

// RunNow performs one sweep unless one is already in progress.
func (s *SweepScheduler) RunNow() {
	s.mu.Lock()
	if s.isSweeping {
		s.mu.Unlock()
		s.logger.Info("scheduler: sweep skipped (already sweeping)")
		return
	}
	s.isSweeping = true
	onSwept := s.onSwept
	parent := s.runCtx
	s.mu.Unlock()
	if parent == nil {
		parent = context.Background()
	}

	defer func() {
		s.mu.Lock()
		s.isSweeping = false
		s.mu.Unlock()
	}()

	// a sweep in progress is cancelled along with the context given to Start
	ctx, cancel := context.WithTimeout(parent, sweepTimeout)
	defer cancel()

	start := time.Now()
	ids, err := s.sweeper.Sweep(ctx)
	if err != nil {
		s.logger.Error("scheduler: sweep failed", "error", err)
	} else {
		s.logger.Info("scheduler: sweep finished", "overdue", len(ids), "duration", time.Since(start))
	}
	if onSwept != nil {
		onSwept(ids, err)
	}
}
