package service

import (
	"context"
	"fmt"
	"time"

	"staffdesk/account-worker/internal/app/worker/entity"
	"staffdesk/account-worker/internal/app/worker/repository"
	"staffdesk/pkg/logger"
	"staffdesk/pkg/metrics"
)

// MaintenanceService - плановые задачи обслуживания хранилищ
type MaintenanceService struct {
	accounts  repository.AccountRepository
	tokens    repository.TokenRepository
	olderThan time.Duration
	now       func() time.Time
}

func NewMaintenanceService(
	accounts repository.AccountRepository,
	tokens repository.TokenRepository,
	olderThan time.Duration,
) *MaintenanceService {
	return &MaintenanceService{
		accounts:  accounts,
		tokens:    tokens,
		olderThan: olderThan,
		now:       time.Now,
	}
}

// CleanupTokens убирает из реестра refresh токенов истёкшие jti
func (s *MaintenanceService) CleanupTokens(ctx context.Context) (int64, error) {
	removed, err := s.tokens.PruneOutstanding(ctx)
	s.record(entity.JobCleanupTokens, removed, err)
	if err != nil {
		return removed, fmt.Errorf("failed to cleanup tokens: %w", err)
	}
	return removed, nil
}

// PurgeAccounts удаляет так и не активированные учётные записи старше olderThan
func (s *MaintenanceService) PurgeAccounts(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-s.olderThan)

	purged, err := s.accounts.PurgeUnactivated(ctx, cutoff)
	s.record(entity.JobPurgeAccounts, purged, err)
	if err != nil {
		return 0, fmt.Errorf("failed to purge accounts: %w", err)
	}

	if purged > 0 {
		logger.Info().Int64("purged", purged).Time("created_before", cutoff).Msg("Purged unactivated accounts")
	}
	return purged, nil
}

func (s *MaintenanceService) record(job entity.MaintenanceJob, affected int64, err error) {
	if err != nil {
		metrics.WorkerMaintenanceRuns.WithLabelValues(string(job), "failed").Inc()
	} else {
		metrics.WorkerMaintenanceRuns.WithLabelValues(string(job), "success").Inc()
	}
	if affected > 0 {
		metrics.WorkerMaintenanceAffected.WithLabelValues(string(job)).Add(float64(affected))
	}
}
