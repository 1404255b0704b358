package repo

import (
	"time"

	"github.com/shaiso/doc-orchestrator/internal/domain"
)

// TaskFilter — фильтр для выборки задач.
// Диапазоны времени полуоткрытые: [From, To).
type TaskFilter struct {
	Type      domain.TaskType
	Status    domain.TaskStatus
	DatasetID string

	CreatedFrom *time.Time
	CreatedTo   *time.Time
	UpdatedFrom *time.Time
	UpdatedTo   *time.Time

	// ActiveOnly — только нефинальные задачи.
	ActiveOnly bool

	// Limit = 0 — без ограничения.
	Limit  int
	Offset int
}

// Matches проверяет задачу на соответствие фильтру (без пагинации).
func (f TaskFilter) Matches(t *domain.Task) bool {
	if f.Type != "" && t.Type != f.Type {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.DatasetID != "" && t.DatasetID != f.DatasetID {
		return false
	}
	if f.ActiveOnly && t.IsFinished() {
		return false
	}
	if !inRange(t.CreatedAt, f.CreatedFrom, f.CreatedTo) {
		return false
	}
	if !inRange(t.UpdatedAt, f.UpdatedFrom, f.UpdatedTo) {
		return false
	}
	return true
}

func inRange(ts time.Time, from, to *time.Time) bool {
	if from != nil && ts.Before(*from) {
		return false
	}
	if to != nil && !ts.Before(*to) {
		return false
	}
	return true
}
