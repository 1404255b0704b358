package domain

// TaskStatus — статус задачи импорта.
//
// Жизненный цикл:
//
//	INIT → INDEX_CREATED → READ → SAVED
//	                            ↘ PERFORMED_DELETE_QUERY → FINISHED_DELETE_QUERY → SAVED
//	                            ↘ PERFORMED_REINDEX → FINISHED_REINDEX → SAVED
//	                            ↘ INDEX_DELETED → SAVED
//	(из любого нефинального) → ERROR
type TaskStatus string

const (
	// TaskStatusInit — задача создана, команда executor'у отправлена.
	TaskStatusInit TaskStatus = "INIT"

	// TaskStatusIndexCreated — executor создал (или деактивировал) индекс.
	TaskStatusIndexCreated TaskStatus = "INDEX_CREATED"

	// TaskStatusRead — хотя бы один файл полностью прочитан.
	TaskStatusRead TaskStatus = "READ"

	// TaskStatusIndexDeleted — старый индекс удалён.
	TaskStatusIndexDeleted TaskStatus = "INDEX_DELETED"

	// TaskStatusPerformedDeleteQuery — delete-by-query запущен в поисковом движке.
	TaskStatusPerformedDeleteQuery TaskStatus = "PERFORMED_DELETE_QUERY"

	// TaskStatusFinishedDeleteQuery — delete-by-query завершён.
	TaskStatusFinishedDeleteQuery TaskStatus = "FINISHED_DELETE_QUERY"

	// TaskStatusPerformedReindex — reindex запущен в поисковом движке.
	TaskStatusPerformedReindex TaskStatus = "PERFORMED_REINDEX"

	// TaskStatusFinishedReindex — reindex завершён.
	TaskStatusFinishedReindex TaskStatus = "FINISHED_REINDEX"

	// TaskStatusSaved — задача успешно завершена.
	TaskStatusSaved TaskStatus = "SAVED"

	// TaskStatusError — задача завершилась с ошибкой.
	TaskStatusError TaskStatus = "ERROR"
)

// TerminalStatuses — статусы, после которых задача больше не меняется.
var TerminalStatuses = []TaskStatus{TaskStatusSaved, TaskStatusError}

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSaved, TaskStatusError:
		return true
	default:
		return false
	}
}

// IsValid проверяет, что статус известен.
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusInit, TaskStatusIndexCreated, TaskStatusRead, TaskStatusIndexDeleted,
		TaskStatusPerformedDeleteQuery, TaskStatusFinishedDeleteQuery,
		TaskStatusPerformedReindex, TaskStatusFinishedReindex,
		TaskStatusSaved, TaskStatusError:
		return true
	default:
		return false
	}
}

// TaskType — тип задачи. Задаётся при создании и не меняется.
type TaskType string

const (
	TaskTypeCreate      TaskType = "TASK_CREATE"
	TaskTypeConcat      TaskType = "TASK_CONCAT"
	TaskTypeAppend      TaskType = "TASK_APPEND"
	TaskTypeOverwrite   TaskType = "TASK_OVERWRITE"
	TaskTypeDelete      TaskType = "TASK_DELETE"
	TaskTypeDeleteIndex TaskType = "TASK_DELETE_INDEX"
	TaskTypeReindex     TaskType = "TASK_REINDEX"
)

// IsValid проверяет, что тип задачи известен.
func (t TaskType) IsValid() bool {
	_, ok := ExecutionTypeFor(t)
	return ok
}

// ExecutionTypeFor возвращает первую команду executor'у для типа задачи.
// Отображение не зависит ни от чего, кроме типа.
func ExecutionTypeFor(t TaskType) (ExecutionType, bool) {
	switch t {
	case TaskTypeCreate, TaskTypeOverwrite:
		// overwrite начинается с создания нового индекса, старый удаляется позже
		return ExecutionCreate, true
	case TaskTypeConcat:
		return ExecutionConcat, true
	case TaskTypeAppend:
		return ExecutionAppend, true
	case TaskTypeDelete:
		return ExecutionDelete, true
	case TaskTypeDeleteIndex:
		return ExecutionDeleteIndex, true
	case TaskTypeReindex:
		return ExecutionCreateIndex, true
	default:
		return "", false
	}
}
