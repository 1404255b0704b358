package api

import (
	"net/http"
)

// TasksPath — базовый путь ресурса задач.
const TasksPath = "/api/v1/doc-importer/task"

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Metrics(),
		Logging(h.logger),
	)
	admin := Chain(chain, RequireAdmin(h.adminToken))

	// Tasks
	mux.Handle("GET "+TasksPath, chain(http.HandlerFunc(h.ListTasks)))
	mux.Handle("GET "+TasksPath+"/{id}", chain(http.HandlerFunc(h.GetTask)))

	// Privileged
	mux.Handle("DELETE "+TasksPath+"/{id}", admin(http.HandlerFunc(h.DeleteTask)))
	mux.Handle("GET "+TasksPath+"/{id}/analysis", admin(http.HandlerFunc(h.GetTaskAnalysis)))
}
