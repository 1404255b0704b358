package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/repo/memory"
	"github.com/shaiso/doc-orchestrator/internal/telemetry"
)

// --- Cron Tests ---

func TestValidateCronExpr(t *testing.T) {
	assert.NoError(t, ValidateCronExpr("*/5 * * * *"))
	assert.NoError(t, ValidateCronExpr("0 3 * * 1"))
	assert.Error(t, ValidateCronExpr("* * * *"))
	assert.Error(t, ValidateCronExpr("every minute"))
}

func TestNextRun(t *testing.T) {
	from := time.Date(2024, 1, 1, 10, 2, 30, 0, time.UTC)

	next, err := NextRun("*/5 * * * *", from)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC), next)
}

// --- Sweeper Tests ---

type failingLister struct{}

func (failingLister) ListStale(ctx context.Context, before time.Time) ([]domain.Task, error) {
	return nil, errors.New("db down")
}

func TestSweeper_Tick(t *testing.T) {
	ctx := context.Background()
	store := memory.NewTaskStore()
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	seed := func(id, datasetID string, updated time.Time, finished bool) {
		task := domain.NewTask(domain.TaskMessage{ID: id, Type: domain.TaskTypeCreate, DatasetID: datasetID}, updated)
		require.NoError(t, store.Create(ctx, task))
		if finished {
			task.MarkSaved()
			require.NoError(t, store.Update(ctx, task))
		}
	}
	seed("stuck", "d1", now.Add(-3*time.Hour), false)
	seed("fresh", "d2", now.Add(-10*time.Minute), false)
	seed("done", "d3", now.Add(-5*time.Hour), true)

	s := New(Config{
		Store:      store,
		StaleAfter: time.Hour,
		Now:        func() time.Time { return now },
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	n, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, float64(1), testutil.ToFloat64(telemetry.StaleTasks))
}

func TestSweeper_TickError(t *testing.T) {
	s := New(Config{Store: failingLister{}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})

	_, err := s.Tick(context.Background())
	assert.Error(t, err)
}

func TestSweeper_RunInvalidCron(t *testing.T) {
	s := New(Config{Store: failingLister{}, CronExpr: "bad"})
	assert.Error(t, s.Run(context.Background()))
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	s := New(Config{Store: memory.NewTaskStore(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}
