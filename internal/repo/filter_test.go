package repo

import (
	"testing"
	"time"

	"github.com/shaiso/doc-orchestrator/internal/domain"
)

func TestTaskFilter_Matches(t *testing.T) {
	day := func(d int) *time.Time {
		ts := time.Date(2019, 1, d, 0, 0, 0, 0, time.UTC)
		return &ts
	}

	task := domain.NewTask(domain.TaskMessage{ID: "t1", Type: domain.TaskTypeOverwrite, DatasetID: "d1"},
		time.Date(2019, 1, 2, 10, 0, 0, 0, time.UTC))

	tests := []struct {
		name   string
		filter TaskFilter
		want   bool
	}{
		{"empty", TaskFilter{}, true},
		{"type match", TaskFilter{Type: domain.TaskTypeOverwrite}, true},
		{"type mismatch", TaskFilter{Type: domain.TaskTypeCreate}, false},
		{"status", TaskFilter{Status: domain.TaskStatusInit}, true},
		{"dataset mismatch", TaskFilter{DatasetID: "d2"}, false},
		{"created on day", TaskFilter{CreatedFrom: day(2), CreatedTo: day(3)}, true},
		{"created before", TaskFilter{CreatedTo: day(2)}, false},
		{"created after", TaskFilter{CreatedFrom: day(2)}, true},
		{"updated range miss", TaskFilter{UpdatedFrom: day(3)}, false},
		{"active only", TaskFilter{ActiveOnly: true}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.filter.Matches(task); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}

	task.MarkFailed("boom")
	if (TaskFilter{ActiveOnly: true}).Matches(task) {
		t.Error("finished task should not match ActiveOnly")
	}
}
