package services

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubPurger struct {
	cutoff time.Time
	calls  int
	n      int64
	err    error
}

func (s *stubPurger) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	s.calls++
	s.cutoff = cutoff
	return s.n, s.err
}

func TestRetentionScheduler_Disabled(t *testing.T) {
	purger := &stubPurger{}
	s, err := NewRetentionScheduler(purger, 0, "not a schedule")
	if err != nil {
		t.Fatalf("disabled scheduler must not parse the schedule: %v", err)
	}
	if s.Enabled() {
		t.Fatal("expected scheduler to be disabled")
	}
	s.Start()
	s.Stop()

	n, err := s.RunOnce(context.Background())
	if err != nil || n != 0 || purger.calls != 0 {
		t.Fatalf("disabled RunOnce must be a no-op, got n=%d err=%v calls=%d", n, err, purger.calls)
	}
}

func TestRetentionScheduler_InvalidSchedule(t *testing.T) {
	if _, err := NewRetentionScheduler(&stubPurger{}, 30, "every tuesday"); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
}

func TestRetentionScheduler_RunOnceCutoff(t *testing.T) {
	purger := &stubPurger{n: 4}
	s, err := NewRetentionScheduler(purger, 30, "@daily")
	if err != nil {
		t.Fatalf("NewRetentionScheduler: %v", err)
	}
	now := time.Date(2026, 5, 31, 3, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	n, err := s.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if n != 4 {
		t.Errorf("deleted = %d, want 4", n)
	}
	if want := time.Date(2026, 5, 1, 3, 0, 0, 0, time.UTC); !purger.cutoff.Equal(want) {
		t.Errorf("cutoff = %s, want %s", purger.cutoff, want)
	}
}

func TestRetentionScheduler_RunOnceError(t *testing.T) {
	purger := &stubPurger{err: errors.New("db down")}
	s, err := NewRetentionScheduler(purger, 7, "0 3 * * *")
	if err != nil {
		t.Fatalf("NewRetentionScheduler: %v", err)
	}
	if _, err := s.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}
