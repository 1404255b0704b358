package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/doc-orchestrator/internal/domain"
	"github.com/shaiso/doc-orchestrator/internal/repo/memory"
)

const testToken = "s3cret"

func newTestServer(t *testing.T) (*httptest.Server, *memory.TaskStore) {
	t.Helper()

	store := memory.NewTaskStore()
	h := NewHandler(Config{
		Tasks:      store,
		AdminToken: testToken,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, store
}

func seedTask(t *testing.T, store *memory.TaskStore, id, datasetID string, taskType domain.TaskType, created time.Time) {
	t.Helper()
	task := domain.NewTask(domain.TaskMessage{
		ID:        id,
		Type:      taskType,
		DatasetID: datasetID,
		FileURL:   domain.FileURLs{"http://files/" + id + ".csv"},
	}, created)
	require.NoError(t, store.Create(context.Background(), task))

	task.AppendLog(domain.StatusMessage{Type: domain.StatusReadFile, TaskID: id, File: "http://files/" + id + ".csv"})
	task.MarkSaved()
	require.NoError(t, store.Update(context.Background(), task))
}

func doRequest(t *testing.T, method, rawURL, token string) (*http.Response, map[string]any) {
	t.Helper()

	req, err := http.NewRequest(method, rawURL, nil)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp, body
}

// --- List Tests ---

func TestListTasks_FiltersAndOmitsLogs(t *testing.T) {
	srv, store := newTestServer(t)
	day := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	seedTask(t, store, "t1", "d1", domain.TaskTypeCreate, day)
	seedTask(t, store, "t2", "d1", domain.TaskTypeAppend, day.Add(24*time.Hour))
	seedTask(t, store, "t3", "d2", domain.TaskTypeCreate, day.Add(48*time.Hour))

	resp, body := doRequest(t, http.MethodGet, srv.URL+TasksPath+"?datasetId=d1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["total"])

	data := body["data"].([]any)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	assert.Equal(t, "t2", first["id"], "newest first")
	assert.NotContains(t, first, "logs")

	_, body = doRequest(t, http.MethodGet, srv.URL+TasksPath+"?type=TASK_CREATE&createdAt=2024-03-12", "")
	data = body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "t3", data[0].(map[string]any)["id"])

	_, body = doRequest(t, http.MethodGet, srv.URL+TasksPath+"?createdBefore=2024-03-11", "")
	assert.EqualValues(t, 1, body["total"])
}

func TestListTasks_Pagination(t *testing.T) {
	srv, store := newTestServer(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		seedTask(t, store, id, "d-"+id, domain.TaskTypeCreate, base.Add(time.Duration(i)*time.Hour))
	}

	q := url.Values{"page[number]": {"2"}, "page[size]": {"2"}}
	_, body := doRequest(t, http.MethodGet, srv.URL+TasksPath+"?"+q.Encode(), "")

	assert.EqualValues(t, 3, body["total"])
	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "a", data[0].(map[string]any)["id"])

	page := body["page"].(map[string]any)
	assert.EqualValues(t, 2, page["number"])
	assert.EqualValues(t, 2, page["pages"])
}

func TestListTasks_BadQuery(t *testing.T) {
	srv, _ := newTestServer(t)

	for _, q := range []string{"type=NOPE", "status=NOPE", "createdAt=10-03-2024", "page[size]=0"} {
		resp, body := doRequest(t, http.MethodGet, srv.URL+TasksPath+"?"+q, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, q)
		assert.Contains(t, body, "error")
	}
}

func TestParseTaskQuery_Defaults(t *testing.T) {
	filter, page, err := ParseTaskQuery(url.Values{"page[size]": {"1000"}})
	require.NoError(t, err)
	assert.Equal(t, Page{Number: 1, Size: MaxPageSize}, page)
	assert.Equal(t, MaxPageSize, filter.Limit)
	assert.Zero(t, filter.Offset)

	_, page, err = ParseTaskQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, DefaultPageSize, page.Size)
}

func TestParseTaskQuery_DayRangesNarrow(t *testing.T) {
	filter, _, err := ParseTaskQuery(url.Values{
		"updatedAfter":  {"2024-03-01"},
		"updatedBefore": {"2024-03-05"},
		"updatedAt":     {"2024-03-03"},
	})
	require.NoError(t, err)

	require.NotNil(t, filter.UpdatedFrom)
	require.NotNil(t, filter.UpdatedTo)
	assert.Equal(t, time.Date(2024, 3, 3, 0, 0, 0, 0, time.UTC), *filter.UpdatedFrom)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), *filter.UpdatedTo)
}

// --- Get Tests ---

func TestGetTask(t *testing.T) {
	srv, store := newTestServer(t)
	seedTask(t, store, "t1", "d1", domain.TaskTypeCreate, time.Now())

	resp, body := doRequest(t, http.MethodGet, srv.URL+TasksPath+"/t1", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	data := body["data"].(map[string]any)
	assert.Equal(t, "t1", data["id"])
	assert.Len(t, data["logs"], 1)

	resp, body = doRequest(t, http.MethodGet, srv.URL+TasksPath+"/missing", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, string(ErrCodeNotFound), body["error"].(map[string]any)["code"])
}

// --- Admin Tests ---

func TestDeleteTask_RequiresAdmin(t *testing.T) {
	srv, store := newTestServer(t)
	seedTask(t, store, "t1", "d1", domain.TaskTypeCreate, time.Now())

	resp, _ := doRequest(t, http.MethodDelete, srv.URL+TasksPath+"/t1", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doRequest(t, http.MethodDelete, srv.URL+TasksPath+"/t1", "wrong")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body := doRequest(t, http.MethodDelete, srv.URL+TasksPath+"/t1", testToken)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "t1", body["data"].(map[string]any)["id"])

	resp, _ = doRequest(t, http.MethodDelete, srv.URL+TasksPath+"/t1", testToken)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAdminDisabledWithoutToken(t *testing.T) {
	h := NewHandler(Config{Tasks: memory.NewTaskStore(), Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)

	req := httptest.NewRequest(http.MethodDelete, TasksPath+"/t1", nil)
	req.Header.Set("Authorization", "Bearer anything")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGetTaskAnalysis(t *testing.T) {
	srv, store := newTestServer(t)
	seedTask(t, store, "t1", "d1", domain.TaskTypeCreate, time.Now())

	resp, body := doRequest(t, http.MethodGet, srv.URL+TasksPath+"/t1/analysis", testToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	data := body["data"].(map[string]any)
	assert.EqualValues(t, 1, data["originalURLCount"])
	assert.EqualValues(t, 1, data["readFileCount"])
}

func TestRecovery(t *testing.T) {
	handler := Recovery(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
