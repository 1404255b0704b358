package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// TaskRequest — запрос на задачу, публикуемый в очередь задач.
// Поля совпадают с тем, что читает оркестратор.
type TaskRequest struct {
	ID        string   `json:"id"`
	Type      string   `json:"type"`
	DatasetID string   `json:"datasetId"`
	FileURL   []string `json:"fileUrl,omitempty"`
	Provider  string   `json:"provider,omitempty"`
	Index     string   `json:"index,omitempty"`
	Query     string   `json:"query,omitempty"`
	DataPath  string   `json:"dataPath,omitempty"`
	Append    bool     `json:"append,omitempty"`
}

// MessageID возвращает ID запроса.
func (r *TaskRequest) MessageID() string { return r.ID }

// MessageType возвращает тип запроса.
func (r *TaskRequest) MessageType() string { return r.Type }

// Submitter отправляет запросы в брокер.
type Submitter interface {
	Submit(ctx context.Context, req *TaskRequest) error
	Close() error
}

var taskTypes = []string{
	"TASK_CREATE", "TASK_CONCAT", "TASK_APPEND", "TASK_OVERWRITE",
	"TASK_DELETE", "TASK_DELETE_INDEX", "TASK_REINDEX",
}

// normalizeTaskType принимает тип с префиксом TASK_ и без него.
func normalizeTaskType(t string) (string, error) {
	t = strings.ToUpper(strings.TrimSpace(t))
	if !strings.HasPrefix(t, "TASK_") {
		t = "TASK_" + t
	}
	for _, known := range taskTypes {
		if t == known {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown task type %q, expected one of %s", t, strings.Join(taskTypes, ", "))
}

// NewSubmitCmd создаёт команду отправки запроса на задачу.
// submitterFn вызывается после парсинга флагов.
func NewSubmitCmd(submitterFn func(ctx context.Context) (Submitter, error), outputFn func() *Output) *cobra.Command {
	var req TaskRequest
	var taskType string

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Publish a task request to the tasks queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := outputFn()

			t, err := normalizeTaskType(taskType)
			if err != nil {
				return err
			}
			req.Type = t
			if req.ID == "" {
				req.ID = uuid.NewString()
			}

			submitter, err := submitterFn(cmd.Context())
			if err != nil {
				return err
			}
			defer submitter.Close()

			if err := submitter.Submit(cmd.Context(), &req); err != nil {
				return err
			}

			out.Success(fmt.Sprintf("Task request submitted: %s", req.ID))
			out.Print(
				[]string{"ID", "TYPE", "DATASET", "FILES"},
				[][]string{{req.ID, req.Type, req.DatasetID, fmt.Sprint(len(req.FileURL))}},
				req,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&req.ID, "id", "", "Task ID (generated if empty)")
	cmd.Flags().StringVar(&taskType, "type", "TASK_CREATE", "Task type (CREATE, CONCAT, APPEND, OVERWRITE, DELETE, DELETE_INDEX, REINDEX)")
	cmd.Flags().StringVar(&req.DatasetID, "dataset", "", "Dataset ID")
	cmd.Flags().StringSliceVar(&req.FileURL, "file", nil, "File URL (repeatable)")
	cmd.Flags().StringVar(&req.Provider, "provider", "", "Source provider (csv, json, tsv, xml)")
	cmd.Flags().StringVar(&req.Index, "index", "", "Current dataset index")
	cmd.Flags().StringVar(&req.Query, "query", "", "Delete query")
	cmd.Flags().StringVar(&req.DataPath, "data-path", "", "Path to data inside the document")
	cmd.Flags().BoolVar(&req.Append, "append", false, "Append mode flag passed to the executor")
	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}
