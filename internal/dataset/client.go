package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config — конфигурация клиента.
type Config struct {
	// BaseURL — адрес control tower (CT_URL).
	BaseURL string

	// Timeout — таймаут одного запроса (по умолчанию 30s).
	Timeout time.Duration

	// RequestsPerSecond, Burst — ограничение частоты запросов.
	RequestsPerSecond float64
	Burst             int

	// HTTPClient — для тестов; по умолчанию создаётся свой.
	HTTPClient *http.Client
}

// Client — HTTP-клиент сервиса dataset.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient создаёт клиент.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

type dataResponse struct {
	Data struct {
		ID         string          `json:"id"`
		Attributes json.RawMessage `json:"attributes"`
	} `json:"data"`
}

// Get возвращает dataset по ID.
func (c *Client) Get(ctx context.Context, id string) (*Dataset, error) {
	resp, err := c.do(ctx, http.MethodGet, datasetPath(id), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return nil, err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", id, err)
	}

	var ds Dataset
	if len(dr.Data.Attributes) > 0 {
		if err := json.Unmarshal(dr.Data.Attributes, &ds); err != nil {
			return nil, fmt.Errorf("decode dataset %s attributes: %w", id, err)
		}
	}
	ds.ID = dr.Data.ID
	if ds.ID == "" {
		ds.ID = id
	}
	return &ds, nil
}

// Update применяет частичное обновление.
func (c *Client) Update(ctx context.Context, id string, upd Update) error {
	resp, err := c.do(ctx, http.MethodPatch, datasetPath(id), upd)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := checkError(resp); err != nil {
		return err
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// --- HTTP helpers ---

func datasetPath(id string) string {
	return "/v1/dataset/" + url.PathEscape(id)
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("dataset rate limit: %w", err)
	}

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

func checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s: %w", resp.Request.URL.Path, ErrNotFound)
	}

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return &StatusError{
		Method: resp.Request.Method,
		Path:   resp.Request.URL.Path,
		Code:   resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}
