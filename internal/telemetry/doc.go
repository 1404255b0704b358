// Package telemetry — логирование и метрики doc-orchestrator.
//
//   - logging.go — slog (JSON или text), logger в context, атрибуты task_id/dataset_id/queue
//   - metrics.go — счётчики Prometheus, отдаются на /metrics
package telemetry
