package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kshitijshah95/ai-assistant/internal/notes"
)

type countingReindexer struct {
	calls atomic.Int32
	err   error
}

func (c *countingReindexer) QueueReindex(context.Context) error {
	c.calls.Add(1)
	return c.err
}

func TestNewScheduler_Specs(t *testing.T) {
	tests := []struct {
		spec    string
		wantErr bool
	}{
		{"", false},
		{"@every 15m", false},
		{"@hourly", false},
		{"*/5 * * * *", false},
		{"every so often", true},
		{"* * *", true},
	}
	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			_, err := NewScheduler(tt.spec, &countingReindexer{})
			if (err != nil) != tt.wantErr {
				t.Errorf("NewScheduler(%q) err = %v, wantErr %v", tt.spec, err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_NextAfterStart(t *testing.T) {
	s, err := NewScheduler("@every 1h", &countingReindexer{})
	if err != nil {
		t.Fatal(err)
	}
	s.Start()
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for s.Next().IsZero() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	next := s.Next()
	if d := time.Until(next); d < 59*time.Minute || d > 61*time.Minute {
		t.Errorf("next run in %v, want about an hour", d)
	}
}

func TestScheduler_EnqueuesReindexJob(t *testing.T) {
	f := setup(t)
	s, err := NewScheduler(DefaultReindexSchedule, f.notes)
	if err != nil {
		t.Fatal(err)
	}
	s.enqueue()

	n, err := f.store.PendingJobCount(context.Background(), notes.JobReindexNotes)
	if err != nil {
		t.Fatalf("PendingJobCount: %v", err)
	}
	if n != 1 {
		t.Errorf("pending reindex jobs = %d, want 1", n)
	}
}

func TestScheduler_EnqueueErrorIsLogged(t *testing.T) {
	r := &countingReindexer{err: errors.New("database is locked")}
	s, err := NewScheduler("@every 1m", r)
	if err != nil {
		t.Fatal(err)
	}
	s.enqueue()
	if r.calls.Load() != 1 {
		t.Errorf("calls = %d, want 1", r.calls.Load())
	}
}
