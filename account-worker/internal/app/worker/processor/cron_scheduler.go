package processor

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"staffdesk/account-worker/internal/app/worker/entity"
	"staffdesk/account-worker/internal/app/worker/service"
	"staffdesk/pkg/logger"
)

// Schedules - расписания задач в формате cron с секундами
type Schedules struct {
	CleanupTokens string
	PurgeAccounts string
	RunOnStart    bool
}

type CronScheduler struct {
	cron        *cron.Cron
	maintenance service.MaintenanceRunner
}

func NewCronScheduler(maintenance service.MaintenanceRunner) *CronScheduler {
	cronLogger := cron.VerbosePrintfLogger(logger.Printf{Level: zerolog.DebugLevel})
	c := cron.New(
		cron.WithSeconds(),
		cron.WithLogger(cronLogger),
		// долгий прогон не должен накладываться на следующий
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	return &CronScheduler{
		cron:        c,
		maintenance: maintenance,
	}
}

func (s *CronScheduler) Start(ctx context.Context, schedules Schedules) error {
	jobs := []struct {
		name     entity.MaintenanceJob
		schedule string
		run      func(context.Context) (int64, error)
	}{
		{entity.JobCleanupTokens, schedules.CleanupTokens, s.maintenance.CleanupTokens},
		{entity.JobPurgeAccounts, schedules.PurgeAccounts, s.maintenance.PurgeAccounts},
	}

	for _, job := range jobs {
		job := job
		if _, err := s.cron.AddFunc(job.schedule, func() { s.runJob(ctx, job.name, job.run) }); err != nil {
			return fmt.Errorf("invalid schedule %q for %s: %w", job.schedule, job.name, err)
		}
		logger.Info().Str("job", string(job.name)).Str("schedule", job.schedule).Msg("Scheduled maintenance job")
	}

	s.cron.Start()
	logger.Info().Int("jobs", len(jobs)).Msg("Cron scheduler started")

	if schedules.RunOnStart {
		for _, job := range jobs {
			s.runJob(ctx, job.name, job.run)
		}
	}

	return nil
}

func (s *CronScheduler) runJob(ctx context.Context, name entity.MaintenanceJob, run func(context.Context) (int64, error)) {
	logger.Debug().Str("job", string(name)).Msg("Cron job triggered")

	affected, err := run(ctx)
	if err != nil {
		logger.Error().Err(err).Str("job", string(name)).Int64("affected", affected).Msg("Cron job failed")
		return
	}
	logger.Info().Str("job", string(name)).Int64("affected", affected).Msg("Cron job completed")
}

func (s *CronScheduler) Stop() {
	logger.Info().Msg("Stopping cron scheduler...")
	ctx := s.cron.Stop()
	<-ctx.Done()
	logger.Info().Msg("Cron scheduler stopped")
}

func (s *CronScheduler) GetEntries() []cron.Entry {
	return s.cron.Entries()
}
