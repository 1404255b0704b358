// doc-orchestrator — ведёт задачи импорта документов.
//
// Orchestrator:
//   - Принимает запросы на задачи из DOC-TASKS
//   - Применяет события executor'а из DOC-STATUS
//   - Отправляет команды executor'у в DOC-EXECUTOR-TASKS
//   - Периодически ищет зависшие задачи
//
// Если брокер недоступен при старте или соединение потеряно, процесс завершается.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/doc-orchestrator/internal/config"
	"github.com/shaiso/doc-orchestrator/internal/dataset"
	"github.com/shaiso/doc-orchestrator/internal/mq"
	"github.com/shaiso/doc-orchestrator/internal/orchestrator"
	"github.com/shaiso/doc-orchestrator/internal/repo"
	"github.com/shaiso/doc-orchestrator/internal/scheduler"
	"github.com/shaiso/doc-orchestrator/internal/telemetry"
)

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		telemetry.SetupLogger("ERROR", "json").Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting doc-orchestrator")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, repo.PoolConfig{URL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	if cfg.Database.Migrate {
		if err := repo.Migrate(ctx, pool); err != nil {
			logger.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}
	taskRepo := repo.NewTaskRepo(pool)

	// RabbitMQ: без брокера работать нельзя
	conn, err := mq.Dial(ctx, mq.DialConfig{
		URL:      cfg.RabbitMQ.URL,
		Attempts: cfg.RabbitMQ.ConnectAttempts,
		Delay:    cfg.RabbitMQ.ConnectDelay,
	}, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	queues := cfg.RabbitMQ.Queues
	tasksQueue, err := conn.OpenQueue(queues.Tasks, 1)
	if err != nil {
		logger.Error("failed to open queue", "queue", queues.Tasks, "error", err)
		os.Exit(1)
	}
	statusQueue, err := conn.OpenQueue(queues.Status, 1)
	if err != nil {
		logger.Error("failed to open queue", "queue", queues.Status, "error", err)
		os.Exit(1)
	}
	executorQueue, err := conn.OpenQueue(queues.ExecutorTasks, 0)
	if err != nil {
		logger.Error("failed to open queue", "queue", queues.ExecutorTasks, "error", err)
		os.Exit(1)
	}
	logger.Info("RabbitMQ connected")

	datasets := dataset.NewClient(dataset.Config{
		BaseURL:           cfg.Dataset.URL,
		Timeout:           cfg.Dataset.Timeout,
		RequestsPerSecond: cfg.Dataset.RequestsPerSecond,
		Burst:             cfg.Dataset.Burst,
	})

	orch := orchestrator.New(orchestrator.Config{
		Store:           taskRepo,
		Datasets:        datasets,
		Publisher:       mq.NewPublisher(executorQueue, logger),
		TasksQueue:      tasksQueue,
		StatusQueue:     statusQueue,
		MaxRedeliveries: cfg.RabbitMQ.MaxRedeliveries,
		Logger:          logger,
	})

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !conn.IsConnected() {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("rabbitmq disconnected"))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              ":" + cfg.Orchestrator.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return orch.Run(gctx)
	})

	if cfg.Sweeper.Enabled {
		sweeper := scheduler.New(scheduler.Config{
			Store:      taskRepo,
			CronExpr:   cfg.Sweeper.Cron,
			StaleAfter: cfg.Sweeper.StaleAfter,
			Logger:     logger,
		})
		g.Go(func() error {
			return sweeper.Run(gctx)
		})
	}

	g.Go(func() error {
		select {
		case err := <-conn.Lost():
			return err
		case <-gctx.Done():
			return nil
		}
	})

	g.Go(func() error {
		logger.Info("listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("doc-orchestrator stopped with error", "error", err)
		conn.Close()
		pool.Close()
		os.Exit(1)
	}

	logger.Info("doc-orchestrator stopped")
}
