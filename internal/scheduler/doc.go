// Package scheduler реализует проверку зависших задач.
//
// Sweeper по cron-расписанию выбирает нефинальные задачи,
// у которых updated_at старше порога, и сообщает о них в лог
// и в метрику doc_orchestrator_stale_tasks.
//
// Структура:
//   - scheduler.go — Sweeper (Tick, Run)
//   - cron.go      — разбор cron-выражений
//
// Использование:
//
//	sweeper := scheduler.New(scheduler.Config{
//	    Store:      taskRepo,
//	    CronExpr:   cfg.Sweeper.Cron,
//	    StaleAfter: cfg.Sweeper.StaleAfter,
//	    Logger:     logger,
//	})
//
//	go sweeper.Run(ctx)
//
// Sweeper задачи не меняет: единственный, кто их пишет, — обработчик статусов.
package scheduler
