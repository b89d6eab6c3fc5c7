package services

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"chatbridge/internal/logger"
)

type inactiveChatPurger interface {
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// RetentionScheduler periodically deletes chats with no activity inside the
// retention window.
type RetentionScheduler struct {
	chats    inactiveChatPurger
	window   time.Duration
	schedule string
	cron     *cron.Cron
	now      func() time.Time
	log      *logger.Logger
}

func NewRetentionScheduler(chats inactiveChatPurger, retentionDays int, schedule string) (*RetentionScheduler, error) {
	s := &RetentionScheduler{
		chats:    chats,
		window:   time.Duration(retentionDays) * 24 * time.Hour,
		schedule: schedule,
		now:      time.Now,
		log:      logger.Get("retention"),
	}
	if retentionDays <= 0 {
		return s, nil
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	s.cron = cron.New(cron.WithParser(parser), cron.WithLocation(time.UTC))
	if _, err := s.cron.AddFunc(schedule, func() {
		s.RunOnce(context.Background())
	}); err != nil {
		return nil, fmt.Errorf("invalid retention schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *RetentionScheduler) Enabled() bool {
	return s.cron != nil
}

func (s *RetentionScheduler) Start() {
	if !s.Enabled() {
		return
	}
	s.cron.Start()
	s.log.Info("Retention scheduler started", "schedule", s.schedule, "window", s.window.String())
}

// Stop waits for a running purge to finish.
func (s *RetentionScheduler) Stop() {
	if !s.Enabled() {
		return
	}
	<-s.cron.Stop().Done()
}

// RunOnce deletes every chat inactive since before now minus the window.
func (s *RetentionScheduler) RunOnce(ctx context.Context) (int64, error) {
	if s.window <= 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	cutoff := s.now().UTC().Add(-s.window)
	n, err := s.chats.DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		s.log.Error("Retention purge failed", "cutoff", cutoff, "error", err)
		return 0, err
	}
	s.log.Info("Retention purge finished", "cutoff", cutoff, "deleted", n)
	return n, nil
}
