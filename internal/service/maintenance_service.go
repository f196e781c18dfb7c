package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

type reportCleaner interface {
	CleanupExpired(ctx context.Context)
}

type refreshTokenPurger interface {
	DeleteStaleRefreshTokens(ctx context.Context, cutoff time.Time) (int64, error)
}

// MaintenanceConfig schedules the periodic housekeeping jobs.
type MaintenanceConfig struct {
	ReportCleanupInterval time.Duration
	RefreshTokenTTL       time.Duration
}

// MaintenanceService runs housekeeping on a cron schedule.
type MaintenanceService struct {
	cron    *cron.Cron
	reports reportCleaner
	tokens  refreshTokenPurger
	cfg     MaintenanceConfig
	logger  *zap.Logger
	now     func() time.Time
}

// NewMaintenanceService constructs the scheduler. reports may be nil when
// report generation is disabled.
func NewMaintenanceService(reports reportCleaner, tokens refreshTokenPurger, cfg MaintenanceConfig, logger *zap.Logger) *MaintenanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = 7 * 24 * time.Hour
	}
	return &MaintenanceService{
		cron:    cron.New(),
		reports: reports,
		tokens:  tokens,
		cfg:     cfg,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Start registers the jobs and starts the scheduler.
func (s *MaintenanceService) Start(ctx context.Context) error {
	if s.reports != nil && s.cfg.ReportCleanupInterval > 0 {
		schedule := fmt.Sprintf("@every %s", s.cfg.ReportCleanupInterval)
		if _, err := s.cron.AddFunc(schedule, func() { s.reports.CleanupExpired(ctx) }); err != nil {
			return fmt.Errorf("schedule report cleanup: %w", err)
		}
	}
	if s.tokens != nil {
		if _, err := s.cron.AddFunc("@daily", func() { s.PurgeRefreshTokens(ctx) }); err != nil {
			return fmt.Errorf("schedule token purge: %w", err)
		}
	}
	s.cron.Start()
	s.logger.Info("maintenance scheduler started", zap.Int("jobs", len(s.cron.Entries())))
	return nil
}

// Stop halts the scheduler and waits for running jobs.
func (s *MaintenanceService) Stop() {
	<-s.cron.Stop().Done()
}

// PurgeRefreshTokens removes refresh tokens that expired or were revoked
// longer ago than the refresh TTL.
func (s *MaintenanceService) PurgeRefreshTokens(ctx context.Context) {
	cutoff := s.now().Add(-s.cfg.RefreshTokenTTL)
	deleted, err := s.tokens.DeleteStaleRefreshTokens(ctx, cutoff)
	if err != nil {
		s.logger.Warn("refresh token purge failed", zap.Error(err))
		return
	}
	s.logger.Info("stale refresh tokens purged", zap.Int64("count", deleted))
}
