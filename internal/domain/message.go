package domain

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// StatusType — тип события от executor'а (очередь статусов).
type StatusType string

const (
	StatusIndexCreated        StatusType = "STATUS_INDEX_CREATED"
	StatusIndexDeactivated    StatusType = "STATUS_INDEX_DEACTIVATED"
	StatusReadData            StatusType = "STATUS_READ_DATA"
	StatusReadFile            StatusType = "STATUS_READ_FILE"
	StatusWrittenData         StatusType = "STATUS_WRITTEN_DATA"
	StatusBlockchainGenerated StatusType = "STATUS_BLOCKCHAIN_GENERATED"
	StatusIndexDeleted        StatusType = "STATUS_INDEX_DELETED"
	StatusPerformedDelete     StatusType = "STATUS_PERFORMED_DELETE_QUERY"
	StatusFinishedDelete      StatusType = "STATUS_FINISHED_DELETE_QUERY"
	StatusPerformedReindex    StatusType = "STATUS_PERFORMED_REINDEX"
	StatusFinishedReindex     StatusType = "STATUS_FINISHED_REINDEX"
	StatusImportConfirmed     StatusType = "STATUS_IMPORT_CONFIRMED"
	StatusError               StatusType = "STATUS_ERROR"
)

// ExecutionType — тип команды executor'у.
type ExecutionType string

const (
	ExecutionCreate         ExecutionType = "EXECUTION_CREATE"
	ExecutionCreateIndex    ExecutionType = "EXECUTION_CREATE_INDEX"
	ExecutionConcat         ExecutionType = "EXECUTION_CONCAT"
	ExecutionAppend         ExecutionType = "EXECUTION_APPEND"
	ExecutionDelete         ExecutionType = "EXECUTION_DELETE"
	ExecutionDeleteIndex    ExecutionType = "EXECUTION_DELETE_INDEX"
	ExecutionConfirmImport  ExecutionType = "EXECUTION_CONFIRM_IMPORT"
	ExecutionConfirmDelete  ExecutionType = "EXECUTION_CONFIRM_DELETE"
	ExecutionReindex        ExecutionType = "EXECUTION_REINDEX"
	ExecutionConfirmReindex ExecutionType = "EXECUTION_CONFIRM_REINDEX"
)

// FileURLs — список файлов задачи.
// В JSON принимается как строка, так и массив строк.
type FileURLs []string

// UnmarshalJSON разбирает fileUrl в любом из двух форматов.
func (f *FileURLs) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "null" {
		*f = nil
		return nil
	}

	if strings.HasPrefix(trimmed, `"`) {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return err
		}
		if single == "" {
			*f = nil
			return nil
		}
		*f = FileURLs{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("fileUrl must be a string or an array of strings: %w", err)
	}
	*f = list
	return nil
}

// TaskMessage — запрос на создание задачи (очередь задач).
// Сохраняется в задаче как есть и дальше не меняется.
type TaskMessage struct {
	ID        string          `json:"id" validate:"required"`
	Type      TaskType        `json:"type" validate:"required,oneof=TASK_CREATE TASK_CONCAT TASK_APPEND TASK_OVERWRITE TASK_DELETE TASK_DELETE_INDEX TASK_REINDEX"`
	DatasetID string          `json:"datasetId" validate:"required"`
	FileURL   FileURLs        `json:"fileUrl,omitempty"`
	Provider  string          `json:"provider,omitempty"`
	Index     string          `json:"index,omitempty"`
	Query     string          `json:"query,omitempty"`
	Legend    json.RawMessage `json:"legend,omitempty"`
	DataPath  string          `json:"dataPath,omitempty"`
	Append    bool            `json:"append,omitempty"`
}

var validate = validator.New()

// Validate проверяет обязательные поля запроса.
func (m *TaskMessage) Validate() error {
	return validate.Struct(m)
}

// MessageID реализует mq.Message.
func (m *TaskMessage) MessageID() string { return m.ID }

// MessageType реализует mq.Message.
func (m *TaskMessage) MessageType() string { return string(m.Type) }

// StatusMessage — событие от executor'а.
// В логах задачи хранится целиком.
type StatusMessage struct {
	ID              string          `json:"id,omitempty"`
	Type            StatusType      `json:"type"`
	TaskID          string          `json:"taskId"`
	Index           string          `json:"index,omitempty"`
	ElasticTaskID   string          `json:"elasticTaskId,omitempty"`
	Error           string          `json:"error,omitempty"`
	File            string          `json:"file,omitempty"`
	Hash            string          `json:"hash,omitempty"`
	Blockchain      json.RawMessage `json:"blockchain,omitempty"`
	LastCheckedDate string          `json:"lastCheckedDate,omitempty"`

	// Extra — поля события, которые оркестратор не разбирает.
	// Сохраняются в журнале вместе с остальными.
	Extra map[string]json.RawMessage `json:"-"`
}

// statusFields — поля StatusMessage, разбираемые явно.
var statusFields = map[string]struct{}{
	"id": {}, "type": {}, "taskId": {}, "index": {}, "elasticTaskId": {},
	"error": {}, "file": {}, "hash": {}, "blockchain": {}, "lastCheckedDate": {},
}

// statusMessageFields — StatusMessage без собственных методов (JSON).
type statusMessageFields StatusMessage

// UnmarshalJSON разбирает известные поля, остальные складывает в Extra.
func (m *StatusMessage) UnmarshalJSON(data []byte) error {
	var known statusMessageFields
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for k := range statusFields {
		delete(all, k)
	}
	if len(all) > 0 {
		known.Extra = all
	}

	*m = StatusMessage(known)
	return nil
}

// MarshalJSON возвращает событие вместе с полями из Extra.
func (m StatusMessage) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(statusMessageFields(m))
	if err != nil || len(m.Extra) == 0 {
		return data, err
	}

	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	for k, v := range m.Extra {
		if _, ok := statusFields[k]; !ok {
			all[k] = v
		}
	}
	return json.Marshal(all)
}

// MessageID реализует mq.Message.
func (m *StatusMessage) MessageID() string { return m.ID }

// MessageType реализует mq.Message.
func (m *StatusMessage) MessageType() string { return string(m.Type) }

// ExecutionMessage — команда executor'у.
type ExecutionMessage struct {
	ID            string          `json:"id"`
	Type          ExecutionType   `json:"type"`
	TaskID        string          `json:"taskId"`
	DatasetID     string          `json:"datasetId,omitempty"`
	FileURL       FileURLs        `json:"fileUrl,omitempty"`
	Provider      string          `json:"provider,omitempty"`
	Index         string          `json:"index,omitempty"`
	SourceIndex   string          `json:"sourceIndex,omitempty"`
	TargetIndex   string          `json:"targetIndex,omitempty"`
	ElasticTaskID string          `json:"elasticTaskId,omitempty"`
	Query         string          `json:"query,omitempty"`
	Legend        json.RawMessage `json:"legend,omitempty"`
	DataPath      string          `json:"dataPath,omitempty"`
	Append        bool            `json:"append,omitempty"`
	FileCount     int             `json:"fileCount,omitempty"`
}

// MessageID реализует mq.Message.
func (m *ExecutionMessage) MessageID() string { return m.ID }

// MessageType реализует mq.Message.
func (m *ExecutionMessage) MessageType() string { return string(m.Type) }

// NewExecutionMessage строит первую команду executor'у из запроса.
func NewExecutionMessage(t ExecutionType, req TaskMessage) *ExecutionMessage {
	return &ExecutionMessage{
		Type:      t,
		TaskID:    req.ID,
		DatasetID: req.DatasetID,
		FileURL:   req.FileURL,
		Provider:  req.Provider,
		Index:     req.Index,
		Query:     req.Query,
		Legend:    req.Legend,
		DataPath:  req.DataPath,
		Append:    req.Append,
	}
}
