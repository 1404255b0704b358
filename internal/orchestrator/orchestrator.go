package orchestrator

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/doc-orchestrator/internal/dataset"
	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/mq"
)

// TaskStore — хранилище задач.
// Update — compare-and-swap по Task.Version.
type TaskStore interface {
	Get(ctx context.Context, id string) (*domain.Task, error)
	Create(ctx context.Context, task *domain.Task) error
	Update(ctx context.Context, task *domain.Task) error
	Delete(ctx context.Context, id string) (*domain.Task, error)
	ListActiveByDataset(ctx context.Context, datasetID string) ([]domain.Task, error)
}

// DatasetService — сервис метаданных dataset.
type DatasetService interface {
	Get(ctx context.Context, id string) (*dataset.Dataset, error)
	Update(ctx context.Context, id string, upd dataset.Update) error
}

// Publisher публикует сообщения в очередь команд executor'а.
type Publisher interface {
	Publish(ctx context.Context, msg mq.Message) error
}

// Orchestrator ведёт задачи импорта.
//
// Две роли, каждая со своей очередью и одним последовательным consumer'ом:
//   - приём запросов (DOC-TASKS): проверка dataset, создание задачи, первая команда executor'у
//   - обработка событий executor'а (DOC-STATUS): автомат состояний задачи
//
// Состояние одного сообщения живёт только в стеке обработчика,
// Orchestrator между сообщениями ничего не хранит.
type Orchestrator struct {
	store      TaskStore
	datasets   DatasetService
	dispatcher *Dispatcher

	tasksQueue      *mq.Queue
	statusQueue     *mq.Queue
	maxRedeliveries int

	now    func() time.Time
	logger *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	Store    TaskStore
	Datasets DatasetService

	// Publisher — очередь команд executor'а.
	Publisher Publisher

	// Очереди для Run. Для прямых вызовов Admit/ProcessStatus не нужны.
	TasksQueue  *mq.Queue
	StatusQueue *mq.Queue

	// MaxRedeliveries — лимит повторных доставок (default: 10).
	MaxRedeliveries int

	// Now — источник времени (default: time.Now).
	Now func() time.Time

	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	maxRedeliveries := cfg.MaxRedeliveries
	if maxRedeliveries <= 0 {
		maxRedeliveries = mq.DefaultMaxRedeliveries
	}

	return &Orchestrator{
		store:           cfg.Store,
		datasets:        cfg.Datasets,
		dispatcher:      NewDispatcher(cfg.Publisher, logger),
		tasksQueue:      cfg.TasksQueue,
		statusQueue:     cfg.StatusQueue,
		maxRedeliveries: maxRedeliveries,
		now:             now,
		logger:          logger,
	}
}

// Run запускает consumer'ы обеих очередей и ждёт их завершения.
// Возвращает nil при отмене ctx и ошибку, если одна из очередей
// перестала доставлять сообщения.
func (o *Orchestrator) Run(ctx context.Context) error {
	if o.tasksQueue == nil || o.statusQueue == nil {
		return ErrQueuesNotConfigured
	}

	taskConsumer := mq.NewConsumer(o.tasksQueue, o.logger, mq.ConsumerConfig{
		Handler:         o.handleTaskRequest,
		MaxRedeliveries: o.maxRedeliveries,
	})
	statusConsumer := mq.NewConsumer(o.statusQueue, o.logger, mq.ConsumerConfig{
		Handler:         o.handleStatusEvent,
		MaxRedeliveries: o.maxRedeliveries,
	})

	o.logger.Info("starting orchestrator",
		"tasks_queue", o.tasksQueue.Name(),
		"status_queue", o.statusQueue.Name(),
		"max_redeliveries", o.maxRedeliveries,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return taskConsumer.Run(ctx) })
	g.Go(func() error { return statusConsumer.Run(ctx) })

	err := g.Wait()
	o.logger.Info("orchestrator stopped")
	return err
}

// handleTaskRequest — обработчик очереди запросов.
func (o *Orchestrator) handleTaskRequest(ctx context.Context, d *mq.Delivery) error {
	var req domain.TaskMessage
	if err := d.Decode(&req); err != nil {
		return err
	}
	return o.Admit(ctx, req)
}

// handleStatusEvent — обработчик очереди событий executor'а.
func (o *Orchestrator) handleStatusEvent(ctx context.Context, d *mq.Delivery) error {
	var ev domain.StatusMessage
	if err := d.Decode(&ev); err != nil {
		return err
	}
	return o.ProcessStatus(ctx, ev)
}
