package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/doc-orchestrator/internal/dataset"
	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/mq"
	"github.com/shaiso/doc-orchestrator/internal/repo"
	"github.com/shaiso/doc-orchestrator/internal/telemetry"
)

// transition — состояние обработки одного события.
// Живёт только на время вызова обработчика.
type transition struct {
	task   *domain.Task
	event  domain.StatusMessage
	logger *slog.Logger
}

type statusHandler func(o *Orchestrator, ctx context.Context, tr *transition) error

var statusHandlers = map[domain.StatusType]statusHandler{
	domain.StatusIndexDeactivated:    (*Orchestrator).onIndexDeactivated,
	domain.StatusIndexCreated:        (*Orchestrator).onIndexCreated,
	domain.StatusReadData:            (*Orchestrator).onReadData,
	domain.StatusReadFile:            (*Orchestrator).onReadFile,
	domain.StatusWrittenData:         (*Orchestrator).onWrittenData,
	domain.StatusBlockchainGenerated: (*Orchestrator).onBlockchainGenerated,
	domain.StatusIndexDeleted:        (*Orchestrator).onIndexDeleted,
	domain.StatusPerformedDelete:     (*Orchestrator).onPerformedDelete,
	domain.StatusFinishedDelete:      (*Orchestrator).onFinishedDelete,
	domain.StatusPerformedReindex:    (*Orchestrator).onPerformedReindex,
	domain.StatusFinishedReindex:     (*Orchestrator).onFinishedReindex,
	domain.StatusImportConfirmed:     (*Orchestrator).onImportConfirmed,
	domain.StatusError:               (*Orchestrator).onError,
}

// ProcessStatus применяет событие executor'а к задаче.
//
// Побочные эффекты (dataset, команды executor'у) выполняются до сохранения задачи.
// Задача сохраняется одной CAS-записью в конце: если что-то не удалось,
// задача не меняется, а событие будет доставлено повторно.
func (o *Orchestrator) ProcessStatus(ctx context.Context, ev domain.StatusMessage) error {
	logger := telemetry.WithTaskID(o.logger, ev.TaskID).With("message_type", ev.Type)

	handler, ok := statusHandlers[ev.Type]
	if !ok {
		logger.Warn("unknown status event type, ignored")
		return nil
	}
	if ev.TaskID == "" {
		return fmt.Errorf("%w: status event %s without taskId", mq.ErrDrop, ev.Type)
	}

	// 1. Загружаем задачу
	task, err := o.store.Get(ctx, ev.TaskID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrTaskNotFound, ev.TaskID)
		}
		return fmt.Errorf("get task: %w", err)
	}

	// 2. Журнал пополняется всегда
	task.AppendLog(ev)

	// 3. Переход (для финальной задачи только журнал)
	if task.IsFinished() {
		logger.Info("event for finished task, logged only", "status", task.Status)
	} else {
		tr := &transition{task: task, event: ev, logger: logger}
		if err := handler(o, ctx, tr); err != nil {
			return err
		}
	}

	// 4. Сохраняем задачу
	task.UpdatedAt = o.now()
	if err := o.store.Update(ctx, task); err != nil {
		return fmt.Errorf("save task: %w", err)
	}

	telemetry.StatusEvents.WithLabelValues(string(ev.Type)).Inc()
	logger.Debug("status event applied",
		"status", task.Status,
		"reads", task.Reads,
		"writes", task.Writes,
		"files_processed", task.FilesProcessed,
	)
	return nil
}

// --- Индексы ---

func (o *Orchestrator) onIndexDeactivated(ctx context.Context, tr *transition) error {
	if err := o.replaceIndex(ctx, tr); err != nil {
		return err
	}
	return o.updateDataset(ctx, tr, dataset.WithStatus(dataset.StatusPending))
}

func (o *Orchestrator) onIndexCreated(ctx context.Context, tr *transition) error {
	task, ev := tr.task, tr.event

	if err := o.replaceIndex(ctx, tr); err != nil {
		return err
	}

	upd := dataset.WithStatus(dataset.StatusPending)
	switch task.Type {
	case domain.TaskTypeCreate, domain.TaskTypeOverwrite:
		upd = upd.WithTableName(ev.Index).WithSources(task.RequestedFiles())

	case domain.TaskTypeConcat:
		ds, err := o.getDataset(ctx, task)
		if err != nil {
			return err
		}
		upd = upd.WithTableName(ev.Index).
			WithSources(domain.MergeSources(ds.Sources, task.RequestedFiles()))

	case domain.TaskTypeReindex:
		if err := o.dispatcher.Reindex(ctx, task.ID, task.OldIndex(), ev.Index); err != nil {
			return err
		}
	}

	return o.updateDataset(ctx, tr, upd)
}

// replaceIndex фиксирует индекс из события.
// Устаревший индекс задачи отправляется на удаление.
func (o *Orchestrator) replaceIndex(ctx context.Context, tr *transition) error {
	stale := tr.task.ReplaceIndex(tr.event.Index)
	if stale == "" {
		return nil
	}

	tr.logger.Info("stale index superseded, counters reset",
		"stale_index", stale,
		"index", tr.event.Index,
	)
	return o.dispatcher.DeleteIndex(ctx, tr.task.ID, stale)
}

func (o *Orchestrator) onIndexDeleted(ctx context.Context, tr *transition) error {
	switch tr.task.Type {
	case domain.TaskTypeOverwrite, domain.TaskTypeDeleteIndex, domain.TaskTypeConcat:
		tr.task.SetStatus(domain.TaskStatusIndexDeleted)
		return o.finish(ctx, tr)
	default:
		// удаление после ошибки, обрабатывается отдельно
		tr.logger.Debug("index deleted event ignored", "task_type", tr.task.Type, "index", tr.event.Index)
		return nil
	}
}

// --- Чтение и запись ---

func (o *Orchestrator) onReadData(ctx context.Context, tr *transition) error {
	tr.task.AddRead()
	return o.confirmIfDrained(ctx, tr)
}

func (o *Orchestrator) onReadFile(ctx context.Context, tr *transition) error {
	tr.task.MarkFileRead()
	return o.confirmIfDrained(ctx, tr)
}

func (o *Orchestrator) onWrittenData(ctx context.Context, tr *transition) error {
	tr.task.AddWrite()
	return o.confirmIfDrained(ctx, tr)
}

// confirmIfDrained отправляет EXECUTION_CONFIRM_IMPORT один раз за цикл,
// когда всё прочитанное записано.
func (o *Orchestrator) confirmIfDrained(ctx context.Context, tr *transition) error {
	if !tr.task.ClaimImportConfirmation() {
		return nil
	}
	tr.logger.Info("import drained, requesting confirmation",
		"index", tr.task.Index,
		"reads", tr.task.Reads,
		"writes", tr.task.Writes,
	)
	return o.dispatcher.ConfirmImport(ctx, tr.task.ID, tr.task.Index)
}

func (o *Orchestrator) onBlockchainGenerated(ctx context.Context, tr *transition) error {
	if len(tr.event.Blockchain) == 0 {
		tr.logger.Warn("blockchain event without payload")
		return nil
	}
	return o.updateDataset(ctx, tr, dataset.Update{}.WithBlockchain(tr.event.Blockchain))
}

func (o *Orchestrator) onImportConfirmed(ctx context.Context, tr *transition) error {
	task := tr.task
	old := task.OldIndex()
	replaced := old != "" && old != task.Index

	switch task.Type {
	case domain.TaskTypeOverwrite:
		if replaced {
			return o.dispatcher.DeleteIndex(ctx, task.ID, old)
		}
		return o.finish(ctx, tr)

	case domain.TaskTypeConcat:
		if replaced {
			return o.dispatcher.Reindex(ctx, task.ID, old, task.Index)
		}
		return o.finish(ctx, tr)

	case domain.TaskTypeAppend:
		ds, err := o.getDataset(ctx, task)
		if err != nil {
			return err
		}
		task.MarkSaved()
		upd := dataset.WithStatus(dataset.StatusSaved).
			WithoutConnectorURL().
			WithSources(domain.MergeSources(ds.Sources, []string{ds.ConnectorURL}, task.RequestedFiles()))
		return o.updateDataset(ctx, tr, upd)

	default:
		return o.finish(ctx, tr)
	}
}

// --- Асинхронные операции поискового движка ---

func (o *Orchestrator) onPerformedDelete(ctx context.Context, tr *transition) error {
	tr.task.ElasticTaskID = tr.event.ElasticTaskID
	tr.task.SetStatus(domain.TaskStatusPerformedDeleteQuery)
	return o.dispatcher.ConfirmDelete(ctx, tr.task.ID, tr.event.ElasticTaskID)
}

func (o *Orchestrator) onFinishedDelete(ctx context.Context, tr *transition) error {
	tr.task.SetStatus(domain.TaskStatusFinishedDeleteQuery)
	return o.finish(ctx, tr)
}

func (o *Orchestrator) onPerformedReindex(ctx context.Context, tr *transition) error {
	tr.task.ElasticTaskID = tr.event.ElasticTaskID
	tr.task.SetStatus(domain.TaskStatusPerformedReindex)
	return o.dispatcher.ConfirmReindex(ctx, tr.task.ID, tr.event.ElasticTaskID, len(tr.task.RequestedFiles()))
}

func (o *Orchestrator) onFinishedReindex(ctx context.Context, tr *transition) error {
	task := tr.task

	ds, err := o.getDataset(ctx, task)
	if err != nil {
		return err
	}

	task.SetStatus(domain.TaskStatusFinishedReindex)
	task.MarkSaved()

	upd := dataset.WithStatus(dataset.StatusSaved).
		WithTableName(task.Index).
		WithoutConnectorURL().
		WithSources(domain.MergeSources(ds.Sources, []string{ds.ConnectorURL}, task.RequestedFiles()))
	if err := o.updateDataset(ctx, tr, upd); err != nil {
		return err
	}

	if old := task.OldIndex(); old != "" && old != task.Index {
		return o.dispatcher.DeleteIndex(ctx, task.ID, old)
	}
	return nil
}

// --- Ошибка ---

func (o *Orchestrator) onError(ctx context.Context, tr *transition) error {
	tr.task.MarkFailed(tr.event.Error)
	tr.logger.Warn("task failed", "error", tr.event.Error)

	upd := dataset.WithStatus(dataset.StatusFailed).WithErrorMessage(tr.event.Error)
	return o.updateDataset(ctx, tr, upd)
}

// finish переводит задачу и dataset в SAVED.
func (o *Orchestrator) finish(ctx context.Context, tr *transition) error {
	tr.task.MarkSaved()
	tr.logger.Info("task saved", "index", tr.task.Index)
	return o.updateDataset(ctx, tr, dataset.WithStatus(dataset.StatusSaved))
}

func (o *Orchestrator) getDataset(ctx context.Context, task *domain.Task) (*dataset.Dataset, error) {
	ds, err := o.datasets.Get(ctx, task.DatasetID)
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", task.DatasetID, err)
	}
	return ds, nil
}

func (o *Orchestrator) updateDataset(ctx context.Context, tr *transition, upd dataset.Update) error {
	if err := o.datasets.Update(ctx, tr.task.DatasetID, upd); err != nil {
		return fmt.Errorf("update dataset %s: %w", tr.task.DatasetID, err)
	}
	return nil
}
