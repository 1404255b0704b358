package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrTaskNotFound — событие пришло для неизвестной задачи.
	ErrTaskNotFound = errors.New("task not found")

	// ErrTaskAlreadyRunning — на dataset уже есть нефинальная задача.
	ErrTaskAlreadyRunning = errors.New("task already running for dataset")

	// ErrUnknownTaskType — тип задачи не сопоставлен ни одной команде executor'а.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrQueuesNotConfigured — Run вызван без очередей.
	ErrQueuesNotConfigured = errors.New("orchestrator queues are not configured")
)
