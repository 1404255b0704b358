package api

import (
	"net/http"

	"github.com/shaiso/doc-orchestrator/internal/domain"
)

// ListTasks возвращает страницу задач с фильтрацией.
// GET /api/v1/doc-importer/task?type=...&status=...&datasetId=...&page[number]=...&page[size]=...
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	filter, page, err := ParseTaskQuery(r.URL.Query())
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	tasks, total, err := h.tasks.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]TaskSummary, len(tasks))
	for i, task := range tasks {
		result[i] = TaskSummaryFromDomain(task)
	}

	List(w, result, total, page)
}

// GetTask возвращает задачу вместе с журналом событий.
// GET /api/v1/doc-importer/task/{id}
func (h *Handler) GetTask(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, task)
}

// DeleteTask удаляет задачу и возвращает её.
// DELETE /api/v1/doc-importer/task/{id}
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	task, err := h.tasks.Delete(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	h.logger.Info("task deleted", "task_id", id, "status", task.Status)
	Success(w, task)
}

// GetTaskAnalysis возвращает диагностику задачи по журналу событий.
// GET /api/v1/doc-importer/task/{id}/analysis
func (h *Handler) GetTaskAnalysis(w http.ResponseWriter, r *http.Request) {
	task, err := h.tasks.Get(r.Context(), r.PathValue("id"))
	if HandleRepoError(w, h.logger, err, "task not found") {
		return
	}

	Success(w, domain.Analyze(task))
}
