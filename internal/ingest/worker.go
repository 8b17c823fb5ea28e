// Package ingest runs the background embedding jobs queued by the note
// service: one-note embeds and sweeps over notes that have no vector yet.
package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/notes"
	"github.com/kshitijshah95/ai-assistant/internal/storage"
)

// reindexBatch is how many notes one IndexMissing call embeds.
const reindexBatch = 100

// JobStore abstracts the job queue operations.
type JobStore interface {
	ClaimNextJob(ctx context.Context, types []string) (*storage.Job, error)
	CompleteJob(ctx context.Context, id string) error
	FailJob(ctx context.Context, id string, errMsg string) error
}

// NoteIndexer embeds notes and stores their vectors. Implemented by
// notes.Service.
type NoteIndexer interface {
	Index(ctx context.Context, userID, noteID string) error
	IndexMissing(ctx context.Context, limit int) (int, error)
}

// Worker processes embed_note and reindex_notes jobs from the SQLite job
// queue.
type Worker struct {
	store   JobStore
	indexer NoteIndexer
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker with the given dependencies.
// If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(store JobStore, indexer NoteIndexer, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		store:   store,
		indexer: indexer,
		poll:    pollInterval,
		logger:  slog.Default().With("component", "ingest"),
	}
}

// Run polls for jobs until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce claims and processes a single job.
// Returns true if a job was processed (regardless of success/failure).
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	job, err := w.store.ClaimNextJob(ctx, []string{notes.JobEmbedNote, notes.JobReindexNotes})
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	if err := w.processJob(ctx, job); err != nil {
		w.logger.Warn("job failed", "job_id", job.ID, "type", job.Type, "error", err)
		if failErr := w.store.FailJob(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := w.store.CompleteJob(ctx, job.ID); err != nil {
		return true, fmt.Errorf("completing job %s: %w", job.ID, err)
	}
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job *storage.Job) error {
	switch job.Type {
	case notes.JobEmbedNote:
		var payload notes.EmbedPayload
		if err := json.Unmarshal([]byte(job.PayloadJSON), &payload); err != nil {
			return fmt.Errorf("parsing payload: %w", err)
		}
		if err := w.indexer.Index(ctx, payload.UserID, payload.NoteID); err != nil {
			return fmt.Errorf("indexing note %s: %w", payload.NoteID, err)
		}
		return nil

	case notes.JobReindexNotes:
		total := 0
		for {
			n, err := w.indexer.IndexMissing(ctx, reindexBatch)
			if err != nil {
				return fmt.Errorf("reindexing notes: %w", err)
			}
			total += n
			if n < reindexBatch {
				break
			}
		}
		if total > 0 {
			w.logger.Info("reindexed notes", "count", total)
		}
		return nil

	default:
		return fmt.Errorf("unknown job type %q", job.Type)
	}
}
