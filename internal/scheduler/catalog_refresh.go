// Package scheduler runs periodic catalog maintenance.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/readstack/internal/browse"
	"github.com/mrlokans/readstack/internal/tasks"
)

// GenreWarmer refreshes the cached genre overview.
type GenreWarmer interface {
	Fetch(ctx context.Context) browse.GenreMap
}

// CatalogRefreshScheduler periodically enqueues a refresh of every saved book
// and re-fetches the genre overview.
type CatalogRefreshScheduler struct {
	schedule string
	queue    tasks.Enqueuer
	genres   GenreWarmer
	logger   *zap.Logger
	timeout  time.Duration

	cron      *cron.Cron
	entryID   cron.EntryID
	mu        sync.RWMutex
	isRunning bool

	// Not guarded by mu: Stop holds mu while waiting for a running job.
	refreshing atomic.Bool
}

// NewCatalogRefreshScheduler creates a scheduler. queue may be nil when the
// task queue is disabled; only the genre overview is refreshed then.
func NewCatalogRefreshScheduler(schedule string, queue tasks.Enqueuer, genres GenreWarmer, logger *zap.Logger) *CatalogRefreshScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogRefreshScheduler{
		schedule: schedule,
		queue:    queue,
		genres:   genres,
		logger:   logger.Named("scheduler"),
		timeout:  5 * time.Minute,
		cron:     cron.New(cron.WithParser(parser)),
	}
}

// Start registers the refresh job and starts the cron loop. The scheduler
// stops when ctx is done.
func (s *CatalogRefreshScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if err := ValidateCronSchedule(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.schedule, s.RunNow)
	if err != nil {
		return fmt.Errorf("failed to schedule catalog refresh: %w", err)
	}
	s.entryID = entryID

	s.cron.Start()
	s.isRunning = true

	next, _ := NextRunTime(s.schedule, time.Now())
	s.logger.Info("catalog refresh scheduler started",
		zap.String("schedule", s.schedule),
		zap.String("description", CronDescription(s.schedule)),
		zap.Time("next_run", next))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running job and stops the scheduler.
func (s *CatalogRefreshScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning {
		return
	}

	s.cron.Remove(s.entryID)
	<-s.cron.Stop().Done()
	s.isRunning = false

	s.logger.Info("catalog refresh scheduler stopped")
}

func (s *CatalogRefreshScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRun returns when the job fires next, or nil when stopped.
func (s *CatalogRefreshScheduler) NextRun() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	entry := s.cron.Entry(s.entryID)
	if !entry.Valid() {
		return nil
	}
	return &entry.Next
}

// RunNow enqueues the book refresh and warms the genre overview. A run that
// starts while another is in progress is skipped.
func (s *CatalogRefreshScheduler) RunNow() {
	if !s.refreshing.CompareAndSwap(false, true) {
		s.logger.Info("catalog refresh skipped, already running")
		return
	}
	defer s.refreshing.Store(false)

	if s.queue != nil {
		if _, err := s.queue.Enqueue(tasks.RefreshAllBooksTask{}); err != nil {
			s.logger.Error("failed to enqueue book refresh", zap.Error(err))
		}
	}

	if s.genres != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		genres := s.genres.Fetch(ctx)
		s.logger.Info("genre overview refreshed", zap.Int("genres", len(genres)))
	}
}
