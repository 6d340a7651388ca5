package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/arkade-labs/guildxp/pkg/config"
)

// Scheduler registers the recurring tasks and drives the cron loop.
type Scheduler interface {
	RegisterTasks() error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	cfg            config.JobsConfig
	guildID        int64
	log            *slog.Logger
}

// NewScheduler builds a Scheduler for one guild's recurring jobs.
func NewScheduler(redisOpt asynq.RedisConnOpt, cfg config.JobsConfig, guildID int64, log *slog.Logger) Scheduler {
	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		cfg:            cfg,
		guildID:        guildID,
		log:            log,
	}
}

// RegisterTasks wires the snapshot and report crons. The snapshot runs just
// after midnight so it captures the finished day; the report covers the
// previous day when it fires in the morning.
func (s *scheduler) RegisterTasks() error {
	snapshot, err := NewDailySnapshotTask(s.guildID)
	if err != nil {
		return fmt.Errorf("build snapshot task: %w", err)
	}
	if _, err := s.asynqScheduler.Register(s.cfg.SnapshotCron, snapshot); err != nil {
		return fmt.Errorf("register snapshot cron: %w", err)
	}

	report, err := NewDailyReportTask(s.guildID, time.Time{})
	if err != nil {
		return fmt.Errorf("build report task: %w", err)
	}
	if _, err := s.asynqScheduler.Register(s.cfg.ReportCron, report); err != nil {
		return fmt.Errorf("register report cron: %w", err)
	}

	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: registered daily snapshot and report tasks",
			slog.String("snapshot_cron", s.cfg.SnapshotCron),
			slog.String("report_cron", s.cfg.ReportCron),
		)
	}

	return nil
}

func (s *scheduler) Run() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: starting")
	}

	go func() {
		if err := s.asynqScheduler.Run(); err != nil && s.log != nil {
			s.log.ErrorContext(context.Background(), "scheduler: run failed", "error", err)
		}
	}()
}

func (s *scheduler) Shutdown() {
	if s.log != nil {
		s.log.InfoContext(context.Background(), "scheduler: shutting down")
	}

	s.asynqScheduler.Shutdown()
}
