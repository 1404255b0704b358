package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/telemetry"
)

// Dispatcher отправляет команды executor'у.
// Ответа не ждёт: дальнейший ход задачи определяют события в DOC-STATUS.
type Dispatcher struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewDispatcher создаёт Dispatcher.
func NewDispatcher(publisher Publisher, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{publisher: publisher, logger: logger}
}

// Dispatch публикует команду. ID команды генерируется, если не задан.
func (d *Dispatcher) Dispatch(ctx context.Context, cmd *domain.ExecutionMessage) error {
	if cmd.ID == "" {
		cmd.ID = uuid.NewString()
	}

	if err := d.publisher.Publish(ctx, cmd); err != nil {
		return fmt.Errorf("dispatch %s: %w", cmd.Type, err)
	}

	telemetry.ExecutorCommands.WithLabelValues(string(cmd.Type)).Inc()
	d.logger.Info("executor command dispatched",
		"task_id", cmd.TaskID,
		"type", cmd.Type,
		"command_id", cmd.ID,
	)
	return nil
}

// DeleteIndex — удалить индекс.
func (d *Dispatcher) DeleteIndex(ctx context.Context, taskID, index string) error {
	return d.Dispatch(ctx, &domain.ExecutionMessage{
		Type:   domain.ExecutionDeleteIndex,
		TaskID: taskID,
		Index:  index,
	})
}

// ConfirmImport — проверить, что импорт в индекс завершён.
func (d *Dispatcher) ConfirmImport(ctx context.Context, taskID, index string) error {
	return d.Dispatch(ctx, &domain.ExecutionMessage{
		Type:   domain.ExecutionConfirmImport,
		TaskID: taskID,
		Index:  index,
	})
}

// Reindex — перелить данные из sourceIndex в targetIndex.
func (d *Dispatcher) Reindex(ctx context.Context, taskID, sourceIndex, targetIndex string) error {
	return d.Dispatch(ctx, &domain.ExecutionMessage{
		Type:        domain.ExecutionReindex,
		TaskID:      taskID,
		SourceIndex: sourceIndex,
		TargetIndex: targetIndex,
	})
}

// ConfirmDelete — дождаться завершения delete-by-query.
func (d *Dispatcher) ConfirmDelete(ctx context.Context, taskID, elasticTaskID string) error {
	return d.Dispatch(ctx, &domain.ExecutionMessage{
		Type:          domain.ExecutionConfirmDelete,
		TaskID:        taskID,
		ElasticTaskID: elasticTaskID,
	})
}

// ConfirmReindex — дождаться завершения reindex.
func (d *Dispatcher) ConfirmReindex(ctx context.Context, taskID, elasticTaskID string, fileCount int) error {
	return d.Dispatch(ctx, &domain.ExecutionMessage{
		Type:          domain.ExecutionConfirmReindex,
		TaskID:        taskID,
		ElasticTaskID: elasticTaskID,
		FileCount:     fileCount,
	})
}
