package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/telemetry"
)

// StaleLister — выборка зависших задач.
type StaleLister interface {
	ListStale(ctx context.Context, before time.Time) ([]domain.Task, error)
}

// Sweeper периодически ищет нефинальные задачи, которые давно не обновлялись.
// Задачи не меняет: только логирует и выставляет gauge.
type Sweeper struct {
	store      StaleLister
	cronExpr   string
	staleAfter time.Duration
	now        func() time.Time
	logger     *slog.Logger
}

// Config — конфигурация Sweeper.
type Config struct {
	Store StaleLister

	// CronExpr — расписание проверки (default: "*/5 * * * *").
	CronExpr string

	// StaleAfter — сколько задача может не обновляться (default: 1h).
	StaleAfter time.Duration

	Now    func() time.Time
	Logger *slog.Logger
}

// New создаёт новый Sweeper.
func New(cfg Config) *Sweeper {
	cronExpr := cfg.CronExpr
	if cronExpr == "" {
		cronExpr = "*/5 * * * *"
	}

	staleAfter := cfg.StaleAfter
	if staleAfter <= 0 {
		staleAfter = time.Hour
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sweeper{
		store:      cfg.Store,
		cronExpr:   cronExpr,
		staleAfter: staleAfter,
		now:        now,
		logger:     logger,
	}
}

// Tick выполняет одну проверку и возвращает число зависших задач.
func (s *Sweeper) Tick(ctx context.Context) (int, error) {
	before := s.now().Add(-s.staleAfter)

	tasks, err := s.store.ListStale(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("list stale tasks: %w", err)
	}

	telemetry.StaleTasks.Set(float64(len(tasks)))

	for i := range tasks {
		task := &tasks[i]
		telemetry.WithDatasetID(telemetry.WithTaskID(s.logger, task.ID), task.DatasetID).Warn("task looks stuck",
			"type", task.Type,
			"status", task.Status,
			"updated_at", task.UpdatedAt,
			"reads", task.Reads,
			"writes", task.Writes,
		)
	}

	s.logger.Debug("stale task sweep completed", "stale", len(tasks), "before", before)
	return len(tasks), nil
}

// Run запускает проверки по расписанию и блокируется до отмены ctx.
func (s *Sweeper) Run(ctx context.Context) error {
	schedule, err := ParseCron(s.cronExpr)
	if err != nil {
		return err
	}

	c := cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC))
	c.Schedule(schedule, cron.FuncJob(func() {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("stale task sweep failed", "error", err)
		}
	}))

	s.logger.Info("starting stale task sweeper", "cron", s.cronExpr, "stale_after", s.staleAfter)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.Info("stale task sweeper stopped")
	return nil
}
