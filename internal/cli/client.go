package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// tasksPath — ресурс задач в API.
const tasksPath = "/api/v1/doc-importer/task"

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// TaskResponse — задача из API. Logs приходят только в show.
type TaskResponse struct {
	ID             string            `json:"id"`
	Type           string            `json:"type"`
	Status         string            `json:"status"`
	DatasetID      string            `json:"datasetId"`
	Index          string            `json:"index,omitempty"`
	ElasticTaskID  string            `json:"elasticTaskId,omitempty"`
	Reads          int               `json:"reads"`
	Writes         int               `json:"writes"`
	FilesProcessed int               `json:"filesProcessed"`
	Error          string            `json:"error,omitempty"`
	Message        map[string]any    `json:"message,omitempty"`
	Logs           []json.RawMessage `json:"logs,omitempty"`
	CreatedAt      string            `json:"createdAt"`
	UpdatedAt      string            `json:"updatedAt"`
}

// FileAnalysis — диагностика одного файла.
type FileAnalysis struct {
	ReadFile          int      `json:"readFile"`
	ReadData          int      `json:"readData"`
	WrittenData       int      `json:"writtenData"`
	MismatchingReads  []string `json:"mismatchingReads"`
	MismatchingWrites []string `json:"mismatchingWrites"`
}

// AnalysisResponse — диагностика задачи из API.
type AnalysisResponse struct {
	OriginalURLCount     int                     `json:"originalURLCount"`
	FilesProcessedOnTask int                     `json:"filesProcessedOnTask"`
	ReadsOnTask          int                     `json:"readsOnTask"`
	WritesOnTask         int                     `json:"writesOnTask"`
	ReadFileCount        int                     `json:"readFileCount"`
	ReadDataCount        int                     `json:"readDataCount"`
	WrittenDataCount     int                     `json:"writtenDataCount"`
	FileDataCount        int                     `json:"fileDataCount"`
	FileData             map[string]FileAnalysis `json:"fileData"`
}

// ListTasksOpts — параметры фильтрации задач.
type ListTasksOpts struct {
	Type          string
	Status        string
	DatasetID     string
	CreatedAt     string
	CreatedBefore string
	CreatedAfter  string
	Page          int
	PageSize      int
}

func (o ListTasksOpts) values() url.Values {
	params := url.Values{}
	set := func(key, value string) {
		if value != "" {
			params.Set(key, value)
		}
	}
	set("type", o.Type)
	set("status", o.Status)
	set("datasetId", o.DatasetID)
	set("createdAt", o.CreatedAt)
	set("createdBefore", o.CreatedBefore)
	set("createdAfter", o.CreatedAfter)
	if o.Page > 0 {
		params.Set("page[number]", strconv.Itoa(o.Page))
	}
	if o.PageSize > 0 {
		params.Set("page[size]", strconv.Itoa(o.PageSize))
	}
	return params
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для API задач.
type Client struct {
	baseURL    string
	adminToken string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
// adminToken нужен только для delete и analysis.
func NewClient(baseURL, adminToken string) *Client {
	return &Client{
		baseURL:    baseURL,
		adminToken: adminToken,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ListTasks возвращает страницу задач и общее число задач под фильтром.
func (c *Client) ListTasks(opts ListTasksOpts) ([]TaskResponse, int, error) {
	var tasks []TaskResponse
	total, err := c.list(tasksPath, opts.values(), &tasks)
	return tasks, total, err
}

// GetTask возвращает задачу по ID.
func (c *Client) GetTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.get(tasksPath+"/"+url.PathEscape(id), &task)
	return &task, err
}

// DeleteTask удаляет задачу и возвращает её.
func (c *Client) DeleteTask(id string) (*TaskResponse, error) {
	var task TaskResponse
	err := c.doData(http.MethodDelete, tasksPath+"/"+url.PathEscape(id), &task)
	return &task, err
}

// GetTaskAnalysis возвращает диагностику задачи.
func (c *Client) GetTaskAnalysis(id string) (*AnalysisResponse, error) {
	var analysis AnalysisResponse
	err := c.get(tasksPath+"/"+url.PathEscape(id)+"/analysis", &analysis)
	return &analysis, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, result)
}

func (c *Client) list(path string, params url.Values, result any) (int, error) {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return 0, err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return 0, fmt.Errorf("failed to decode response: %w", err)
	}

	return lr.Total, json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, result any) error {
	resp, err := c.do(method, path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if c.adminToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.adminToken)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
