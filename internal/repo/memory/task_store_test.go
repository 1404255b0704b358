package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/repo"
)

func newTask(id, dataset string, created time.Time) *domain.Task {
	return domain.NewTask(domain.TaskMessage{ID: id, Type: domain.TaskTypeCreate, DatasetID: dataset}, created)
}

func TestTaskStore_CreateGet(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	task := newTask("t1", "d1", time.Now())

	require.NoError(t, s.Create(ctx, task))
	assert.Equal(t, int64(1), task.Version)

	got, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "d1", got.DatasetID)

	// копия не должна менять хранилище
	got.Reads = 42
	again, _ := s.Get(ctx, "t1")
	assert.Zero(t, again.Reads)

	_, err = s.Get(ctx, "missing")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestTaskStore_OneActiveTaskPerDataset(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()

	require.NoError(t, s.Create(ctx, newTask("t1", "d1", time.Now())))
	assert.ErrorIs(t, s.Create(ctx, newTask("t2", "d1", time.Now())), repo.ErrAlreadyExists)
	assert.ErrorIs(t, s.Create(ctx, newTask("t1", "d2", time.Now())), repo.ErrAlreadyExists)

	task, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	task.MarkSaved()
	require.NoError(t, s.Update(ctx, task))

	assert.NoError(t, s.Create(ctx, newTask("t2", "d1", time.Now())))
}

func TestTaskStore_UpdateVersionConflict(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	require.NoError(t, s.Create(ctx, newTask("t1", "d1", time.Now())))

	a, _ := s.Get(ctx, "t1")
	b, _ := s.Get(ctx, "t1")

	a.AddRead()
	require.NoError(t, s.Update(ctx, a))
	assert.Equal(t, int64(2), a.Version)

	b.AddWrite()
	assert.ErrorIs(t, s.Update(ctx, b), repo.ErrConflict)

	got, _ := s.Get(ctx, "t1")
	assert.Equal(t, 1, got.Reads)
	assert.Equal(t, 0, got.Writes)

	missing := newTask("nope", "d9", time.Now())
	assert.ErrorIs(t, s.Update(ctx, missing), repo.ErrNotFound)
}

func TestTaskStore_Delete(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	require.NoError(t, s.Create(ctx, newTask("t1", "d1", time.Now())))

	deleted, err := s.Delete(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", deleted.ID)

	_, err = s.Delete(ctx, "t1")
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestTaskStore_ListPagination(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	base := time.Date(2019, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c", "d"} {
		task := newTask(id, "d-"+id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, s.Create(ctx, task))
	}

	page, total, err := s.List(ctx, repo.TaskFilter{Limit: 2, Offset: 1})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)
	assert.Equal(t, "b", page[1].ID)

	page, total, err = s.List(ctx, repo.TaskFilter{Offset: 10})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Empty(t, page)
}

func TestTaskStore_ListStale(t *testing.T) {
	ctx := context.Background()
	s := NewTaskStore()
	now := time.Now()

	old := newTask("old", "d1", now.Add(-2*time.Hour))
	fresh := newTask("fresh", "d2", now)
	done := newTask("done", "d3", now.Add(-3*time.Hour))
	done.MarkSaved()
	for _, task := range []*domain.Task{old, fresh, done} {
		require.NoError(t, s.Create(ctx, task))
	}

	stale, err := s.ListStale(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "old", stale[0].ID)
}
