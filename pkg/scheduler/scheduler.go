package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"credit-engine/internal/engine"
	"credit-engine/internal/service"
)

// Scheduler runs the daily delinquency sweep on a cron schedule
type Scheduler struct {
	cron         *cron.Cron
	notification service.NotificationService
	thresholds   []int
	now          func() time.Time
	logger       *logrus.Logger
	timeout      time.Duration
}

// NewScheduler creates a new Scheduler. A nil now defaults to time.Now.
func NewScheduler(notification service.NotificationService, thresholds []int, now func() time.Time, logger *logrus.Logger) *Scheduler {
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		cron:         cron.New(cron.WithSeconds()),
		notification: notification,
		thresholds:   thresholds,
		now:          now,
		logger:       logger,
		timeout:      10 * time.Minute,
	}
}

// Start registers the sweep under expr (six fields, seconds first) and starts
// the cron loop.
func (s *Scheduler) Start(expr string) error {
	if _, err := s.cron.AddFunc(expr, s.sweep); err != nil {
		return fmt.Errorf("register delinquency sweep: %w", err)
	}
	s.cron.Start()
	s.logger.Infof("Scheduler started, delinquency sweep at %q", expr)
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("Scheduler stopped")
}

// RunNow runs the sweep for today immediately and returns the number of
// notices sent.
func (s *Scheduler) RunNow(ctx context.Context) (int, error) {
	asOf := engine.DateOf(s.now())
	s.logger.Infof("Running delinquency sweep as of %s", asOf.Format(time.DateOnly))
	return s.notification.DelinquencySweep(ctx, asOf, s.thresholds)
}

func (s *Scheduler) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	sent, err := s.RunNow(ctx)
	if err != nil {
		s.logger.Errorf("Delinquency sweep finished with errors (%d notices sent): %v", sent, err)
		return
	}
	s.logger.Infof("Delinquency sweep sent %d notices", sent)
}
