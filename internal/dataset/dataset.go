package dataset

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Status — статус dataset в том виде, в каком его ждёт сервис.
type Status int

const (
	StatusPending Status = 0
	StatusSaved   Status = 1
	StatusFailed  Status = 2
)

// String возвращает имя статуса для логов.
func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusSaved:
		return "saved"
	case StatusFailed:
		return "error"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// ErrNotFound — dataset не существует.
var ErrNotFound = errors.New("dataset not found")

// StatusError — сервис dataset ответил ошибкой.
type StatusError struct {
	Method string
	Path   string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("dataset service: %s %s: HTTP %d: %s", e.Method, e.Path, e.Code, e.Body)
}

// Dataset — атрибуты dataset, нужные оркестратору.
type Dataset struct {
	ID           string   `json:"id"`
	Name         string   `json:"name,omitempty"`
	TableName    string   `json:"tableName,omitempty"`
	ConnectorURL string   `json:"connectorUrl,omitempty"`
	Sources      []string `json:"sources,omitempty"`
	TaskID       string   `json:"taskId,omitempty"`
	ErrorMessage string   `json:"errorMessage,omitempty"`
}

// Update — частичное обновление dataset (PATCH).
// В запрос попадают только заданные поля.
type Update struct {
	Status       *Status
	TaskID       *string
	ErrorMessage *string
	TableName    *string
	Sources      []string
	Blockchain   json.RawMessage

	// ClearConnectorURL отправляет "connectorUrl": null.
	ClearConnectorURL bool
}

// WithStatus начинает обновление со статуса.
func WithStatus(s Status) Update {
	return Update{Status: &s}
}

// WithTaskRef выставляет обратную ссылку на задачу ("" — очистить).
func (u Update) WithTaskRef(ref string) Update {
	u.TaskID = &ref
	return u
}

// WithErrorMessage выставляет текст ошибки ("" — очистить).
func (u Update) WithErrorMessage(msg string) Update {
	u.ErrorMessage = &msg
	return u
}

// WithTableName выставляет имя индекса.
func (u Update) WithTableName(name string) Update {
	u.TableName = &name
	return u
}

// WithSources выставляет список источников, если он не пуст.
func (u Update) WithSources(sources []string) Update {
	if len(sources) > 0 {
		u.Sources = sources
	}
	return u
}

// WithoutConnectorURL очищает connectorUrl.
func (u Update) WithoutConnectorURL() Update {
	u.ClearConnectorURL = true
	return u
}

// WithBlockchain передаёт данные блокчейна как есть.
func (u Update) WithBlockchain(raw json.RawMessage) Update {
	u.Blockchain = raw
	return u
}

// MarshalJSON формирует тело PATCH-запроса.
func (u Update) MarshalJSON() ([]byte, error) {
	body := make(map[string]any)
	if u.Status != nil {
		body["status"] = int(*u.Status)
	}
	if u.TaskID != nil {
		body["taskId"] = *u.TaskID
	}
	if u.ErrorMessage != nil {
		body["errorMessage"] = *u.ErrorMessage
	}
	if u.TableName != nil {
		body["tableName"] = *u.TableName
	}
	if len(u.Sources) > 0 {
		body["sources"] = u.Sources
	}
	if len(u.Blockchain) > 0 {
		body["blockchain"] = u.Blockchain
	}
	if u.ClearConnectorURL {
		body["connectorUrl"] = nil
	}
	return json.Marshal(body)
}
