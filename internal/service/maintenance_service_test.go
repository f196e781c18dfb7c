package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeTokenPurger struct {
	cutoff  time.Time
	deleted int64
	err     error
}

func (f *fakeTokenPurger) DeleteStaleRefreshTokens(_ context.Context, cutoff time.Time) (int64, error) {
	f.cutoff = cutoff
	return f.deleted, f.err
}

type fakeReportCleaner struct{ calls int }

func (f *fakeReportCleaner) CleanupExpired(context.Context) { f.calls++ }

func TestMaintenancePurgeUsesRefreshTTL(t *testing.T) {
	purger := &fakeTokenPurger{deleted: 3}
	svc := NewMaintenanceService(nil, purger, MaintenanceConfig{RefreshTokenTTL: 48 * time.Hour}, zap.NewNop())
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return now }

	svc.PurgeRefreshTokens(context.Background())
	assert.Equal(t, now.Add(-48*time.Hour), purger.cutoff)

	purger.err = errors.New("db down")
	assert.NotPanics(t, func() { svc.PurgeRefreshTokens(context.Background()) })
}

func TestMaintenanceStartRegistersJobs(t *testing.T) {
	cleaner := &fakeReportCleaner{}
	svc := NewMaintenanceService(cleaner, &fakeTokenPurger{}, MaintenanceConfig{ReportCleanupInterval: time.Hour}, nil)

	require.NoError(t, svc.Start(context.Background()))
	assert.Len(t, svc.cron.Entries(), 2)
	svc.Stop()

	tokensOnly := NewMaintenanceService(nil, &fakeTokenPurger{}, MaintenanceConfig{ReportCleanupInterval: time.Hour}, nil)
	require.NoError(t, tokensOnly.Start(context.Background()))
	assert.Len(t, tokensOnly.cron.Entries(), 1)
	tokensOnly.Stop()
}
