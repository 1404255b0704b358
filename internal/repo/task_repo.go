package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/doc-orchestrator/internal/domain"
)

// uniqueViolation — код ошибки PostgreSQL для нарушения уникальности.
const uniqueViolation = "23505"

const taskColumns = `
	id, type, status, dataset_id, index_name, elastic_task_id,
	reads, writes, files_processed, error, logs, message,
	confirm_import_sent, version, created_at, updated_at
`

// taskFilterWhere — условия TaskFilter, параметры $1..$8.
const taskFilterWhere = `
	WHERE ($1::text IS NULL OR type = $1)
	  AND ($2::text IS NULL OR status = $2)
	  AND ($3::text IS NULL OR dataset_id = $3)
	  AND ($4::timestamptz IS NULL OR created_at >= $4)
	  AND ($5::timestamptz IS NULL OR created_at < $5)
	  AND ($6::timestamptz IS NULL OR updated_at >= $6)
	  AND ($7::timestamptz IS NULL OR updated_at < $7)
	  AND (NOT $8::boolean OR status NOT IN ('SAVED', 'ERROR'))
`

// TaskRepo — хранилище задач в PostgreSQL.
type TaskRepo struct {
	pool *pgxpool.Pool
}

// NewTaskRepo создаёт новый TaskRepo.
func NewTaskRepo(pool *pgxpool.Pool) *TaskRepo {
	return &TaskRepo{pool: pool}
}

// Create создаёт задачу с версией 1.
// Повтор id или вторая активная задача на dataset — ErrAlreadyExists.
func (r *TaskRepo) Create(ctx context.Context, task *domain.Task) error {
	logsJSON, messageJSON, err := marshalTaskJSON(task)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tasks (id, type, status, dataset_id, index_name, elastic_task_id,
		                   reads, writes, files_processed, error, logs, message,
		                   confirm_import_sent, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, 1, $14, $15)
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.Type,
		task.Status,
		task.DatasetID,
		task.Index,
		task.ElasticTaskID,
		task.Reads,
		task.Writes,
		task.FilesProcessed,
		nullString(task.Error),
		logsJSON,
		messageJSON,
		task.ConfirmImportSent,
		task.CreatedAt,
		task.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert task %s: %w", task.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert task: %w", err)
	}

	task.Version = 1
	return nil
}

// Get возвращает задачу по ID.
func (r *TaskRepo) Get(ctx context.Context, id string) (*domain.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1`
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// Update сохраняет задачу, если её версия не изменилась с момента чтения.
// При успехе task.Version увеличивается.
func (r *TaskRepo) Update(ctx context.Context, task *domain.Task) error {
	logsJSON, messageJSON, err := marshalTaskJSON(task)
	if err != nil {
		return err
	}

	query := `
		UPDATE tasks
		SET status = $3, index_name = $4, elastic_task_id = $5,
		    reads = $6, writes = $7, files_processed = $8, error = $9,
		    logs = $10, message = $11, confirm_import_sent = $12,
		    updated_at = $13, version = version + 1
		WHERE id = $1 AND version = $2
	`
	result, err := r.pool.Exec(ctx, query,
		task.ID,
		task.Version,
		task.Status,
		task.Index,
		task.ElasticTaskID,
		task.Reads,
		task.Writes,
		task.FilesProcessed,
		nullString(task.Error),
		logsJSON,
		messageJSON,
		task.ConfirmImportSent,
		task.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update task %s: %w", task.ID, ErrAlreadyExists)
		}
		return fmt.Errorf("update task: %w", err)
	}

	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tasks WHERE id = $1)`, task.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check task: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return fmt.Errorf("update task %s at version %d: %w", task.ID, task.Version, ErrConflict)
	}

	task.Version++
	return nil
}

// Delete удаляет задачу и возвращает её последнее состояние.
func (r *TaskRepo) Delete(ctx context.Context, id string) (*domain.Task, error) {
	query := `DELETE FROM tasks WHERE id = $1 RETURNING ` + taskColumns
	return scanTask(r.pool.QueryRow(ctx, query, id))
}

// List возвращает страницу задач и общее число задач под фильтром.
// Сортировка: новые первыми.
func (r *TaskRepo) List(ctx context.Context, filter TaskFilter) ([]domain.Task, int, error) {
	args := filterArgs(filter)

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tasks `+taskFilterWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tasks: %w", err)
	}

	query := `SELECT ` + taskColumns + ` FROM tasks ` + taskFilterWhere + `
		ORDER BY created_at DESC, id
		LIMIT NULLIF($9::int, 0) OFFSET $10
	`
	rows, err := r.pool.Query(ctx, query, append(args, filter.Limit, filter.Offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, 0, err
		}
		tasks = append(tasks, *task)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, total, nil
}

// ListActiveByDataset возвращает нефинальные задачи dataset.
func (r *TaskRepo) ListActiveByDataset(ctx context.Context, datasetID string) ([]domain.Task, error) {
	tasks, _, err := r.List(ctx, TaskFilter{DatasetID: datasetID, ActiveOnly: true})
	return tasks, err
}

// ListStale возвращает нефинальные задачи, не обновлявшиеся с before.
func (r *TaskRepo) ListStale(ctx context.Context, before time.Time) ([]domain.Task, error) {
	tasks, _, err := r.List(ctx, TaskFilter{UpdatedTo: &before, ActiveOnly: true})
	return tasks, err
}

// --- Helpers ---

func filterArgs(f TaskFilter) []any {
	return []any{
		nullString(string(f.Type)),
		nullString(string(f.Status)),
		nullString(f.DatasetID),
		f.CreatedFrom,
		f.CreatedTo,
		f.UpdatedFrom,
		f.UpdatedTo,
		f.ActiveOnly,
	}
}

func marshalTaskJSON(task *domain.Task) (logsJSON, messageJSON []byte, err error) {
	logs := task.Logs
	if logs == nil {
		logs = []domain.StatusMessage{}
	}
	logsJSON, err = json.Marshal(logs)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal logs: %w", err)
	}
	messageJSON, err = json.Marshal(task.Message)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal message: %w", err)
	}
	return logsJSON, messageJSON, nil
}

func scanTask(row pgx.Row) (*domain.Task, error) {
	var task domain.Task
	var logsJSON, messageJSON []byte
	var taskError *string

	err := row.Scan(
		&task.ID,
		&task.Type,
		&task.Status,
		&task.DatasetID,
		&task.Index,
		&task.ElasticTaskID,
		&task.Reads,
		&task.Writes,
		&task.FilesProcessed,
		&taskError,
		&logsJSON,
		&messageJSON,
		&task.ConfirmImportSent,
		&task.Version,
		&task.CreatedAt,
		&task.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}

	if taskError != nil {
		task.Error = *taskError
	}
	if err := json.Unmarshal(logsJSON, &task.Logs); err != nil {
		return nil, fmt.Errorf("unmarshal logs: %w", err)
	}
	if err := json.Unmarshal(messageJSON, &task.Message); err != nil {
		return nil, fmt.Errorf("unmarshal message: %w", err)
	}
	return &task, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
