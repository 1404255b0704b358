package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/repo"
)

// TaskStore — операции над задачами, нужные API.
// Реализуется repo.TaskRepo и memory.TaskStore.
type TaskStore interface {
	Get(ctx context.Context, id string) (*domain.Task, error)
	Delete(ctx context.Context, id string) (*domain.Task, error)
	List(ctx context.Context, filter repo.TaskFilter) ([]domain.Task, int, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	tasks      TaskStore
	adminToken string
	logger     *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Tasks TaskStore

	// AdminToken — bearer-токен для привилегированных операций.
	// Пустой токен закрывает их полностью.
	AdminToken string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		tasks:      cfg.Tasks,
		adminToken: cfg.AdminToken,
		logger:     logger,
	}
}
