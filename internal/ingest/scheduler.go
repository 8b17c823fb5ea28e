package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// DefaultReindexSchedule sweeps for unindexed notes every quarter hour.
const DefaultReindexSchedule = "@every 15m"

// Reindexer queues a reindex_notes job. Implemented by notes.Service.
type Reindexer interface {
	QueueReindex(ctx context.Context) error
}

// Scheduler enqueues reindex_notes jobs on a cron schedule. The worker does
// the actual embedding.
type Scheduler struct {
	cron      *rcron.Cron
	reindexer Reindexer
	logger    *slog.Logger
}

// NewScheduler validates spec (standard five-field cron or a descriptor
// such as "@hourly" or "@every 10m") and returns a stopped Scheduler.
func NewScheduler(spec string, reindexer Reindexer) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultReindexSchedule
	}
	s := &Scheduler{
		cron:      rcron.New(),
		reindexer: reindexer,
		logger:    slog.Default().With("component", "scheduler"),
	}
	if _, err := s.cron.AddFunc(spec, s.enqueue); err != nil {
		return nil, fmt.Errorf("parsing reindex schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start runs the schedule in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running enqueue to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Next reports when the reindex job is next queued. Zero before Start.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

func (s *Scheduler) enqueue() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.reindexer.QueueReindex(ctx); err != nil {
		s.logger.Error("queueing reindex failed", "error", err)
		return
	}
	s.logger.Debug("queued note reindex")
}
