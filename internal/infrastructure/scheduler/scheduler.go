package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/wekeepgrowing/order-payments/internal/config"
	"go.uber.org/zap"
)

// Expirer moves payments past their expiry to EXPIRED.
type Expirer interface {
	ExpireStalePayments(ctx context.Context) (int, error)
}

// HealthReporter refreshes per-gateway health.
type HealthReporter interface {
	Refresh(ctx context.Context)
}

// Scheduler runs the periodic payment jobs.
type Scheduler struct {
	cron    *cron.Cron
	cfg     config.PaymentsConfig
	expirer Expirer
	health  HealthReporter
	logger  *zap.Logger
	timeout time.Duration
}

func New(cfg config.PaymentsConfig, expirer Expirer, health HealthReporter, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		cfg:     cfg,
		expirer: expirer,
		health:  health,
		logger:  logger,
		timeout: 2 * time.Minute,
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start() error {
	s.logger.Info("Starting payment scheduler",
		zap.String("expiry_schedule", s.cfg.ExpirySchedule),
		zap.String("health_schedule", s.cfg.HealthSchedule),
	)

	if _, err := s.cron.AddFunc(s.cfg.ExpirySchedule, s.expirePayments); err != nil {
		return fmt.Errorf("invalid expiry schedule %q: %w", s.cfg.ExpirySchedule, err)
	}
	if s.health != nil {
		if _, err := s.cron.AddFunc(s.cfg.HealthSchedule, s.refreshHealth); err != nil {
			return fmt.Errorf("invalid health schedule %q: %w", s.cfg.HealthSchedule, err)
		}
	}

	s.cron.Start()
	return nil
}

// Stop stops the cron scheduler. The returned context is done once running
// jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) expirePayments() {
	defer s.recoverFromPanic("expirePayments")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	expired, err := s.expirer.ExpireStalePayments(ctx)
	if err != nil {
		s.logger.Error("Expiry sweep failed", zap.Error(err))
		return
	}
	if expired > 0 {
		s.logger.Info("Expired stale payments", zap.Int("count", expired))
	}
}

func (s *Scheduler) refreshHealth() {
	defer s.recoverFromPanic("refreshHealth")

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	s.health.Refresh(ctx)
}

func (s *Scheduler) recoverFromPanic(job string) {
	if r := recover(); r != nil {
		s.logger.Error("Cron job panicked", zap.String("job", job), zap.Any("panic", r))
	}
}
