package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeAPI(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("GET "+tasksPath, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ERROR", r.URL.Query().Get("status"))
		assert.Equal(t, "2", r.URL.Query().Get("page[number]"))
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"id": "t1", "type": "TASK_CREATE", "status": "ERROR", "datasetId": "d1", "reads": 3, "writes": 1},
			},
			"total": 11,
		})
	})
	mux.HandleFunc("GET "+tasksPath+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "t1" {
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "NOT_FOUND", "message": "task not found"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"id": "t1", "type": "TASK_CREATE", "status": "SAVED", "datasetId": "d1",
			"logs": []map[string]any{{"type": "STATUS_READ_FILE"}},
		}})
	})
	mux.HandleFunc("DELETE "+tasksPath+"/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer admin" {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]string{"code": "UNAUTHORIZED", "message": "missing bearer token"}})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"id": r.PathValue("id"), "status": "SAVED"}})
	})
	mux.HandleFunc("GET "+tasksPath+"/{id}/analysis", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{
			"originalURLCount": 1,
			"fileData": map[string]any{
				"http://files/a.csv": map[string]any{"readFile": 1, "readData": 2, "writtenData": 1, "mismatchingReads": []string{"h2"}},
			},
		}})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// --- Client Tests ---

func TestClient_ListTasks(t *testing.T) {
	srv := fakeAPI(t)
	client := NewClient(srv.URL, "")

	tasks, total, err := client.ListTasks(ListTasksOpts{Status: "ERROR", Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 11, total)
	require.Len(t, tasks, 1)
	assert.Equal(t, 3, tasks[0].Reads)
}

func TestClient_GetTaskNotFound(t *testing.T) {
	srv := fakeAPI(t)
	client := NewClient(srv.URL, "")

	_, err := client.GetTask("missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "NOT_FOUND")
}

func TestClient_DeleteUsesToken(t *testing.T) {
	srv := fakeAPI(t)

	_, err := NewClient(srv.URL, "").DeleteTask("t1")
	assert.Error(t, err)

	task, err := NewClient(srv.URL, "admin").DeleteTask("t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
}

// --- Command Tests ---

func TestTaskCmd_ShowAndAnalysis(t *testing.T) {
	srv := fakeAPI(t)
	var stdout, stderr bytes.Buffer
	out := NewOutputTo(false, &stdout, &stderr)

	cmd := NewTaskCmd(func() *Client { return NewClient(srv.URL, "admin") }, func() *Output { return out })

	cmd.SetArgs([]string{"show", "t1"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "SAVED")
	assert.Contains(t, stdout.String(), "Events:")

	stdout.Reset()
	cmd.SetArgs([]string{"analysis", "t1"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "http://files/a.csv")
	assert.Contains(t, stderr.String(), "urls=1")
}

func TestTaskCmd_ListJSON(t *testing.T) {
	srv := fakeAPI(t)
	var stdout bytes.Buffer
	out := NewOutputTo(true, &stdout, &bytes.Buffer{})

	cmd := NewTaskCmd(func() *Client { return NewClient(srv.URL, "") }, func() *Output { return out })
	cmd.SetArgs([]string{"list", "--status", "ERROR", "--page", "2"})
	require.NoError(t, cmd.Execute())

	var tasks []TaskResponse
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &tasks))
	assert.Equal(t, "t1", tasks[0].ID)
}

type fakeSubmitter struct {
	submitted []*TaskRequest
	err       error
	closed    bool
}

func (s *fakeSubmitter) Submit(ctx context.Context, req *TaskRequest) error {
	if s.err != nil {
		return s.err
	}
	s.submitted = append(s.submitted, req)
	return nil
}

func (s *fakeSubmitter) Close() error {
	s.closed = true
	return nil
}

func TestSubmitCmd(t *testing.T) {
	sub := &fakeSubmitter{}
	var stderr bytes.Buffer
	out := NewOutputTo(false, &bytes.Buffer{}, &stderr)

	cmd := NewSubmitCmd(func(ctx context.Context) (Submitter, error) { return sub, nil }, func() *Output { return out })
	cmd.SetArgs([]string{"--type", "concat", "--dataset", "d1", "--file", "http://a.csv", "--file", "http://b.csv", "--index", "idx_1"})
	require.NoError(t, cmd.Execute())

	require.Len(t, sub.submitted, 1)
	req := sub.submitted[0]
	assert.Equal(t, "TASK_CONCAT", req.Type)
	assert.Equal(t, []string{"http://a.csv", "http://b.csv"}, req.FileURL)
	assert.NotEmpty(t, req.ID)
	assert.True(t, sub.closed)
	assert.Contains(t, stderr.String(), req.ID)
}

func TestSubmitCmd_Errors(t *testing.T) {
	out := NewOutputTo(false, &bytes.Buffer{}, &bytes.Buffer{})

	cmd := NewSubmitCmd(func(ctx context.Context) (Submitter, error) { return &fakeSubmitter{}, nil }, func() *Output { return out })
	cmd.SetArgs([]string{"--type", "bogus", "--dataset", "d1"})
	assert.Error(t, cmd.Execute())

	failing := &fakeSubmitter{err: errors.New("broker down")}
	cmd = NewSubmitCmd(func(ctx context.Context) (Submitter, error) { return failing, nil }, func() *Output { return out })
	cmd.SetArgs([]string{"--dataset", "d1"})
	assert.Error(t, cmd.Execute())
	assert.True(t, failing.closed)
}

func TestNormalizeTaskType(t *testing.T) {
	got, err := normalizeTaskType("delete_index")
	require.NoError(t, err)
	assert.Equal(t, "TASK_DELETE_INDEX", got)

	got, err = normalizeTaskType("TASK_REINDEX")
	require.NoError(t, err)
	assert.Equal(t, "TASK_REINDEX", got)
}
