// Package memory — хранилище задач в памяти.
//
// Повторяет семантику repo.TaskRepo: compare-and-swap по версии,
// не больше одной активной задачи на dataset. Используется в тестах
// оркестратора, API и планировщика.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/repo"
)

// TaskStore — потокобезопасное хранилище задач в памяти.
type TaskStore struct {
	mu    sync.RWMutex
	tasks map[string]*domain.Task
}

// NewTaskStore создаёт пустое хранилище.
func NewTaskStore() *TaskStore {
	return &TaskStore{tasks: make(map[string]*domain.Task)}
}

// Create сохраняет новую задачу с версией 1.
func (s *TaskStore) Create(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[task.ID]; ok {
		return fmt.Errorf("insert task %s: %w", task.ID, repo.ErrAlreadyExists)
	}
	if !task.IsFinished() {
		for _, existing := range s.tasks {
			if existing.DatasetID == task.DatasetID && !existing.IsFinished() {
				return fmt.Errorf("insert task %s: active task %s on dataset: %w", task.ID, existing.ID, repo.ErrAlreadyExists)
			}
		}
	}

	task.Version = 1
	s.tasks[task.ID] = task.Clone()
	return nil
}

// Get возвращает копию задачи.
func (s *TaskStore) Get(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return task.Clone(), nil
}

// Update сохраняет задачу, если версия совпадает.
func (s *TaskStore) Update(ctx context.Context, task *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.tasks[task.ID]
	if !ok {
		return repo.ErrNotFound
	}
	if current.Version != task.Version {
		return fmt.Errorf("update task %s at version %d: %w", task.ID, task.Version, repo.ErrConflict)
	}

	task.Version++
	s.tasks[task.ID] = task.Clone()
	return nil
}

// Delete удаляет задачу и возвращает её.
func (s *TaskStore) Delete(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	delete(s.tasks, id)
	return task, nil
}

// List возвращает страницу задач под фильтром, новые первыми.
func (s *TaskStore) List(ctx context.Context, filter repo.TaskFilter) ([]domain.Task, int, error) {
	s.mu.RLock()
	var matched []domain.Task
	for _, task := range s.tasks {
		if filter.Matches(task) {
			matched = append(matched, *task.Clone())
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b domain.Task) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		if a.ID < b.ID {
			return -1
		}
		if a.ID > b.ID {
			return 1
		}
		return 0
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= len(matched) {
			return nil, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// ListActiveByDataset возвращает нефинальные задачи dataset.
func (s *TaskStore) ListActiveByDataset(ctx context.Context, datasetID string) ([]domain.Task, error) {
	tasks, _, err := s.List(ctx, repo.TaskFilter{DatasetID: datasetID, ActiveOnly: true})
	return tasks, err
}

// ListStale возвращает нефинальные задачи, не обновлявшиеся с before.
func (s *TaskStore) ListStale(ctx context.Context, before time.Time) ([]domain.Task, error) {
	tasks, _, err := s.List(ctx, repo.TaskFilter{UpdatedTo: &before, ActiveOnly: true})
	return tasks, err
}
