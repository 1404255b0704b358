package domain

import (
	"slices"
	"time"
)

// TaskPath — префикс обратной ссылки на задачу, которую получает dataset.
const TaskPath = "/v1/doc-importer/task/"

// Task — задача импорта источника документов в поисковый индекс.
//
// Создаётся при приёме запроса из очереди задач.
// Дальше меняется только обработчиком статусов executor'а.
type Task struct {
	// ID — идентификатор задачи. Приходит в запросе.
	ID string `json:"id"`

	// Type — тип задачи. Определяет ветку автомата, не меняется.
	Type TaskType `json:"type"`

	// Status — текущее состояние.
	Status TaskStatus `json:"status"`

	// DatasetID — dataset, который меняет задача.
	// Нефинальная задача на dataset может быть только одна.
	DatasetID string `json:"datasetId"`

	// Index — текущий целевой индекс (последний созданный executor'ом).
	Index string `json:"index,omitempty"`

	// ElasticTaskID — идентификатор асинхронной операции поискового движка
	// (delete-by-query, reindex).
	ElasticTaskID string `json:"elasticTaskId,omitempty"`

	// Reads, Writes — счётчики прочитанных и записанных порций данных.
	// Сбрасываются только при замене устаревшего индекса.
	Reads  int `json:"reads"`
	Writes int `json:"writes"`

	// FilesProcessed — сколько файлов прочитано полностью.
	FilesProcessed int `json:"filesProcessed"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// Logs — все принятые события в порядке поступления.
	Logs []StatusMessage `json:"logs"`

	// Message — исходный запрос.
	Message TaskMessage `json:"message"`

	// ConfirmImportSent — EXECUTION_CONFIRM_IMPORT уже отправлен в текущем цикле.
	ConfirmImportSent bool `json:"confirmImportSent"`

	// Version — версия записи для compare-and-swap обновлений.
	Version int64 `json:"version"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// NewTask создаёт задачу в статусе INIT из запроса.
func NewTask(msg TaskMessage, now time.Time) *Task {
	return &Task{
		ID:        msg.ID,
		Type:      msg.Type,
		Status:    TaskStatusInit,
		DatasetID: msg.DatasetID,
		Logs:      []StatusMessage{},
		Message:   msg,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsFinished возвращает true, если задача в финальном статусе.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// Ref возвращает обратную ссылку на задачу для dataset.
func (t *Task) Ref() string {
	return TaskPath + t.ID
}

// OldIndex возвращает индекс dataset на момент запроса.
func (t *Task) OldIndex() string {
	return t.Message.Index
}

// RequestedFiles возвращает файлы из запроса.
func (t *Task) RequestedFiles() []string {
	return t.Message.FileURL
}

// AppendLog добавляет событие в журнал задачи.
func (t *Task) AppendLog(ev StatusMessage) {
	t.Logs = append(t.Logs, ev)
}

// ReplaceIndex фиксирует новый индекс и переводит задачу в INDEX_CREATED.
// Если у задачи уже был другой индекс, счётчики сбрасываются,
// а старый индекс возвращается для удаления.
func (t *Task) ReplaceIndex(index string) (stale string) {
	if t.Index != "" && t.Index != index {
		stale = t.Index
		t.ResetCounters()
	}
	t.Index = index
	t.Status = TaskStatusIndexCreated
	return stale
}

// ResetCounters обнуляет счётчики чтения/записи.
func (t *Task) ResetCounters() {
	t.Reads = 0
	t.Writes = 0
	t.ConfirmImportSent = false
}

// AddRead учитывает прочитанную порцию данных.
func (t *Task) AddRead() {
	t.Reads++
}

// AddWrite учитывает записанную порцию данных.
func (t *Task) AddWrite() {
	t.Writes++
}

// MarkFileRead учитывает полностью прочитанный файл.
func (t *Task) MarkFileRead() {
	t.FilesProcessed++
	t.Status = TaskStatusRead
}

// IsDrained — условие завершения импорта: все прочитанные данные записаны.
func (t *Task) IsDrained() bool {
	return t.Writes-t.Reads == 0 && t.Status == TaskStatusRead
}

// ClaimImportConfirmation возвращает true ровно один раз за цикл,
// в котором выполняется IsDrained. Пока условие ложно, флаг сбрасывается.
func (t *Task) ClaimImportConfirmation() bool {
	if !t.IsDrained() {
		t.ConfirmImportSent = false
		return false
	}
	if t.ConfirmImportSent {
		return false
	}
	t.ConfirmImportSent = true
	return true
}

// SetStatus выставляет промежуточный статус.
func (t *Task) SetStatus(s TaskStatus) {
	t.Status = s
}

// MarkSaved переводит задачу в SAVED.
func (t *Task) MarkSaved() {
	t.Status = TaskStatusSaved
}

// MarkFailed переводит задачу в ERROR.
func (t *Task) MarkFailed(errMsg string) {
	t.Status = TaskStatusError
	t.Error = errMsg
}

// Clone возвращает глубокую копию задачи.
func (t *Task) Clone() *Task {
	c := *t
	c.Logs = slices.Clone(t.Logs)
	c.Message.FileURL = slices.Clone(t.Message.FileURL)
	return &c
}

// MergeSources объединяет списки источников без повторов и пустых значений,
// сохраняя порядок первого появления.
func MergeSources(lists ...[]string) []string {
	seen := make(map[string]struct{})
	var merged []string
	for _, list := range lists {
		for _, s := range list {
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			merged = append(merged, s)
		}
	}
	return merged
}
