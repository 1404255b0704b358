package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Исходы обработки сообщения из очереди.
const (
	OutcomeAck         = "ack"
	OutcomeRedelivered = "redelivered"
	OutcomeDropped     = "dropped"
)

// Исходы приёма задачи.
const (
	AdmissionCreated  = "created"
	AdmissionRejected = "rejected"
	AdmissionFailed   = "failed"
)

// MessagesConsumed — обработанные сообщения по очереди и исходу.
var MessagesConsumed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "doc_orchestrator_messages_consumed_total",
		Help: "Total messages consumed, by queue and outcome",
	},
	[]string{"queue", "outcome"},
)

// StatusEvents — принятые события executor'а по типу.
var StatusEvents = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "doc_orchestrator_status_events_total",
		Help: "Total status events applied to tasks, by event type",
	},
	[]string{"type"},
)

// ExecutorCommands — отправленные команды executor'у по типу.
var ExecutorCommands = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "doc_orchestrator_executor_commands_total",
		Help: "Total commands published to the executor, by command type",
	},
	[]string{"type"},
)

// Admissions — результаты приёма запросов на задачи.
var Admissions = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "doc_orchestrator_admissions_total",
		Help: "Total task requests, by admission outcome",
	},
	[]string{"outcome"},
)

// StaleTasks — нефинальные задачи без обновлений дольше порога.
var StaleTasks = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "doc_orchestrator_stale_tasks",
	Help: "Non-terminal tasks not updated within the stale threshold",
})

// HTTPRequests — запросы к HTTP API.
var HTTPRequests = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "doc_orchestrator_api_http_requests_total",
		Help: "Total HTTP requests handled by the task API",
	},
	[]string{"method", "status"},
)
