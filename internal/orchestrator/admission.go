package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/doc-orchestrator/internal/dataset"
	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/mq"
	"github.com/shaiso/doc-orchestrator/internal/repo"
	"github.com/shaiso/doc-orchestrator/internal/telemetry"
)

// Admit принимает запрос на задачу.
//
// Если на dataset уже есть нефинальная задача, запрос отклоняется:
// причина уходит в dataset, задача не создаётся, ошибка не возвращается.
// Если после создания задачи что-то не удалось, задача удаляется,
// ссылка в dataset очищается и возвращается ошибка (сообщение будет доставлено повторно).
func (o *Orchestrator) Admit(ctx context.Context, req domain.TaskMessage) error {
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: invalid task request: %w", mq.ErrDrop, err)
	}

	execType, ok := domain.ExecutionTypeFor(req.Type)
	if !ok {
		return fmt.Errorf("%w: %w: %s", mq.ErrDrop, ErrUnknownTaskType, req.Type)
	}

	logger := telemetry.WithDatasetID(telemetry.WithTaskID(o.logger, req.ID), req.DatasetID)

	// 1. Проверяем, нет ли на dataset активной задачи
	active, err := o.store.ListActiveByDataset(ctx, req.DatasetID)
	if err != nil {
		return fmt.Errorf("list active tasks: %w", err)
	}
	if len(active) > 0 {
		return o.reject(ctx, req, execType, active, logger)
	}

	// 2. Создаём задачу
	task := domain.NewTask(req, o.now())
	if err := o.store.Create(ctx, task); err != nil {
		if errors.Is(err, repo.ErrAlreadyExists) {
			return o.resolveCreateConflict(ctx, req, execType, logger)
		}
		return fmt.Errorf("create task: %w", err)
	}

	// 3-4. Ссылка в dataset и первая команда executor'у
	if err := o.start(ctx, task, execType); err != nil {
		o.compensate(ctx, task, logger)
		telemetry.Admissions.WithLabelValues(telemetry.AdmissionFailed).Inc()
		return err
	}

	telemetry.Admissions.WithLabelValues(telemetry.AdmissionCreated).Inc()
	logger.Info("task created", "type", task.Type, "command", execType)
	return nil
}

// start связывает dataset с задачей и отправляет первую команду.
func (o *Orchestrator) start(ctx context.Context, task *domain.Task, execType domain.ExecutionType) error {
	upd := dataset.WithStatus(dataset.StatusPending).
		WithTaskRef(task.Ref()).
		WithErrorMessage("")
	if err := o.datasets.Update(ctx, task.DatasetID, upd); err != nil {
		return fmt.Errorf("link dataset %s: %w", task.DatasetID, err)
	}

	cmd := domain.NewExecutionMessage(execType, task.Message)
	return o.dispatcher.Dispatch(ctx, cmd)
}

// resume повторяет запуск задачи, оставшейся в INIT.
// Так бывает, если откат неудачного приёма не смог удалить задачу.
// Лишний EXECUTION_CREATE безопасен: второй индекс заменит первый,
// а первый уйдёт на удаление как устаревший.
func (o *Orchestrator) resume(ctx context.Context, task *domain.Task, execType domain.ExecutionType, logger *slog.Logger) error {
	if err := o.start(ctx, task, execType); err != nil {
		o.compensate(ctx, task, logger)
		telemetry.Admissions.WithLabelValues(telemetry.AdmissionFailed).Inc()
		return err
	}

	telemetry.Admissions.WithLabelValues(telemetry.AdmissionCreated).Inc()
	logger.Info("task start repeated", "type", task.Type, "command", execType)
	return nil
}

// compensate откатывает частично принятую задачу.
// Ошибки только логируются: исходная ошибка важнее.
func (o *Orchestrator) compensate(ctx context.Context, task *domain.Task, logger *slog.Logger) {
	if _, err := o.store.Delete(ctx, task.ID); err != nil && !errors.Is(err, repo.ErrNotFound) {
		logger.Error("failed to delete task after failed admission", "error", err)
	}

	upd := dataset.WithStatus(dataset.StatusPending).WithTaskRef("")
	if err := o.datasets.Update(ctx, task.DatasetID, upd); err != nil {
		logger.Error("failed to unlink dataset after failed admission", "error", err)
	}

	logger.Warn("task admission rolled back")
}

// resolveCreateConflict разбирает ErrAlreadyExists при вставке:
// либо между проверкой и вставкой появилась активная задача,
// либо задача с таким ID уже была (и завершилась).
func (o *Orchestrator) resolveCreateConflict(ctx context.Context, req domain.TaskMessage, execType domain.ExecutionType, logger *slog.Logger) error {
	active, err := o.store.ListActiveByDataset(ctx, req.DatasetID)
	if err != nil {
		return fmt.Errorf("list active tasks: %w", err)
	}
	if len(active) > 0 {
		return o.reject(ctx, req, execType, active, logger)
	}
	return fmt.Errorf("%w: task %s already exists", mq.ErrDrop, req.ID)
}

// reject сообщает dataset, что запрос отклонён.
// Повтор запроса самой активной задачи не отклоняется: задача в INIT
// запускается заново, более поздние состояния означают, что запуск уже прошёл.
func (o *Orchestrator) reject(ctx context.Context, req domain.TaskMessage, execType domain.ExecutionType, active []domain.Task, logger *slog.Logger) error {
	if len(active) == 1 && active[0].ID == req.ID {
		if active[0].Status == domain.TaskStatusInit {
			return o.resume(ctx, &active[0], execType, logger)
		}
		logger.Info("duplicate task request ignored", "status", active[0].Status)
		return nil
	}

	ids := make([]string, len(active))
	for i := range active {
		ids[i] = active[i].ID
	}
	msg := fmt.Sprintf("Task(s) %s already running, operation cancelled.", strings.Join(ids, ", "))

	upd := dataset.WithStatus(dataset.StatusPending).WithErrorMessage(msg)
	if err := o.datasets.Update(ctx, req.DatasetID, upd); err != nil {
		return fmt.Errorf("report rejection to dataset %s: %w", req.DatasetID, err)
	}

	telemetry.Admissions.WithLabelValues(telemetry.AdmissionRejected).Inc()
	logger.Warn("task request rejected",
		"running_tasks", ids,
		"error", ErrTaskAlreadyRunning,
	)
	return nil
}
