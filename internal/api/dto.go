package api

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/repo"
)

// Параметры пагинации.
const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// dayLayout — формат дат в фильтрах.
const dayLayout = "2006-01-02"

// Page — запрошенная страница (нумерация с 1).
type Page struct {
	Number int
	Size   int
}

// Offset возвращает смещение первой записи страницы.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// TaskSummary — задача в списке (без журнала событий).
type TaskSummary struct {
	ID             string             `json:"id"`
	Type           domain.TaskType    `json:"type"`
	Status         domain.TaskStatus  `json:"status"`
	DatasetID      string             `json:"datasetId"`
	Index          string             `json:"index,omitempty"`
	ElasticTaskID  string             `json:"elasticTaskId,omitempty"`
	Reads          int                `json:"reads"`
	Writes         int                `json:"writes"`
	FilesProcessed int                `json:"filesProcessed"`
	Error          string             `json:"error,omitempty"`
	Message        domain.TaskMessage `json:"message"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// TaskSummaryFromDomain конвертирует domain.Task в TaskSummary.
func TaskSummaryFromDomain(t domain.Task) TaskSummary {
	return TaskSummary{
		ID:             t.ID,
		Type:           t.Type,
		Status:         t.Status,
		DatasetID:      t.DatasetID,
		Index:          t.Index,
		ElasticTaskID:  t.ElasticTaskID,
		Reads:          t.Reads,
		Writes:         t.Writes,
		FilesProcessed: t.FilesProcessed,
		Error:          t.Error,
		Message:        t.Message,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

// ParseTaskQuery разбирает фильтры и пагинацию списка задач.
//
//	type, status, datasetId
//	createdAt, createdBefore, createdAfter (YYYY-MM-DD)
//	updatedAt, updatedBefore, updatedAfter (YYYY-MM-DD)
//	page[number], page[size]
func ParseTaskQuery(q url.Values) (repo.TaskFilter, Page, error) {
	var filter repo.TaskFilter

	if v := q.Get("type"); v != "" {
		filter.Type = domain.TaskType(v)
		if !filter.Type.IsValid() {
			return filter, Page{}, fmt.Errorf("invalid type %q", v)
		}
	}
	if v := q.Get("status"); v != "" {
		filter.Status = domain.TaskStatus(v)
		if !filter.Status.IsValid() {
			return filter, Page{}, fmt.Errorf("invalid status %q", v)
		}
	}
	filter.DatasetID = q.Get("datasetId")

	var err error
	filter.CreatedFrom, filter.CreatedTo, err = parseDayRange(q, "created")
	if err != nil {
		return filter, Page{}, err
	}
	filter.UpdatedFrom, filter.UpdatedTo, err = parseDayRange(q, "updated")
	if err != nil {
		return filter, Page{}, err
	}

	page, err := parsePage(q)
	if err != nil {
		return filter, Page{}, err
	}
	filter.Limit = page.Size
	filter.Offset = page.Offset()

	return filter, page, nil
}

// parseDayRange собирает полуоткрытый диапазон [from, to) из
// <prefix>At, <prefix>Before и <prefix>After. Все условия сужают диапазон.
func parseDayRange(q url.Values, prefix string) (from, to *time.Time, err error) {
	narrowFrom := func(t time.Time) {
		if from == nil || t.After(*from) {
			from = &t
		}
	}
	narrowTo := func(t time.Time) {
		if to == nil || t.Before(*to) {
			to = &t
		}
	}

	if v := q.Get(prefix + "At"); v != "" {
		day, err := parseDay(prefix+"At", v)
		if err != nil {
			return nil, nil, err
		}
		narrowFrom(day)
		narrowTo(day.AddDate(0, 0, 1))
	}
	if v := q.Get(prefix + "Before"); v != "" {
		day, err := parseDay(prefix+"Before", v)
		if err != nil {
			return nil, nil, err
		}
		narrowTo(day)
	}
	if v := q.Get(prefix + "After"); v != "" {
		day, err := parseDay(prefix+"After", v)
		if err != nil {
			return nil, nil, err
		}
		narrowFrom(day)
	}
	return from, to, nil
}

func parseDay(name, value string) (time.Time, error) {
	day, err := time.ParseInLocation(dayLayout, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s %q: expected YYYY-MM-DD", name, value)
	}
	return day, nil
}

func parsePage(q url.Values) (Page, error) {
	page := Page{Number: 1, Size: DefaultPageSize}

	if v := q.Get("page[number]"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Page{}, fmt.Errorf("invalid page[number] %q", v)
		}
		page.Number = n
	}
	if v := q.Get("page[size]"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Page{}, fmt.Errorf("invalid page[size] %q", v)
		}
		page.Size = min(n, MaxPageSize)
	}
	return page, nil
}
