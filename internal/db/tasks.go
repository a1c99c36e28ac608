package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const taskColumns = `id, user_id, mode, job_title, company, job_description,
	resume_data, preferences, status, result, error, created_at, completed_at`

// scanTask scans one task row from the given row scanner.
func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var preferencesJSON []byte
	err := row.Scan(&t.ID, &t.UserID, &t.Mode, &t.JobTitle, &t.Company, &t.JobDescription,
		&t.ResumeData, &preferencesJSON, &t.Status, &t.Result, &t.Error, &t.CreatedAt, &t.CompletedAt)
	if err != nil {
		return nil, err
	}
	if preferencesJSON != nil {
		t.Preferences = &TaskPreferences{}
		_ = json.Unmarshal(preferencesJSON, t.Preferences)
	}
	return &t, nil
}

// CreateTask persists a new task with status pending and returns the stored row.
func (db *DB) CreateTask(ctx context.Context, input *TaskInput) (*Task, error) {
	var preferencesJSON []byte
	if input.Preferences != nil {
		var err error
		preferencesJSON, err = json.Marshal(input.Preferences)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal preferences: %w", err)
		}
	}

	row := db.pool.QueryRow(ctx,
		`INSERT INTO tasks (user_id, mode, job_title, company, job_description, resume_data, preferences, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, 'pending')
		 RETURNING `+taskColumns,
		input.UserID, input.Mode, input.JobTitle, input.Company, input.JobDescription,
		input.ResumeData, preferencesJSON,
	)
	task, err := scanTask(row)
	if err != nil {
		return nil, mapError("create task", err)
	}
	return task, nil
}

// GetTask retrieves a task by ID, scoped to its owner. Returns nil, nil when
// no such task exists.
func (db *DB) GetTask(ctx context.Context, id, userID uuid.UUID) (*Task, error) {
	row := db.pool.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	task, err := scanTask(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, mapError("get task", err)
	}
	return task, nil
}

// ListTasksByUser retrieves all tasks owned by a user, newest first.
func (db *DB) ListTasksByUser(ctx context.Context, userID uuid.UUID) ([]Task, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, mapError("list tasks", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

// ListPendingTasks retrieves every pending task across all users, oldest
// first, for the reconciler.
func (db *DB) ListPendingTasks(ctx context.Context) ([]Task, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE status = 'pending' ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, mapError("list pending tasks", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, *task)
	}
	return tasks, nil
}

// ClaimTask conditionally transitions a pending task to running. Returns
// false when the task is no longer pending (another reconciler already
// claimed it, or the user deleted it) — the caller skips it silently.
func (db *DB) ClaimTask(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE tasks SET status = 'running' WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, mapError("claim task", err)
	}
	return result.RowsAffected() > 0, nil
}

// CompleteTask records a successful result. A write against a row the user
// deleted mid-flight affects zero rows and is deliberately not an error.
func (db *DB) CompleteTask(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE tasks SET status = 'completed', result = $1, error = NULL, completed_at = $2
		 WHERE id = $3 AND status = 'running'`,
		result, time.Now().UTC(), id,
	)
	if err != nil {
		return mapError("complete task", err)
	}
	return nil
}

// FailTask records a task-scoped failure. Zero rows affected (row deleted
// mid-flight) is tolerated for the same reason as CompleteTask.
func (db *DB) FailTask(ctx context.Context, id uuid.UUID, message string) error {
	_, err := db.pool.Exec(ctx,
		`UPDATE tasks SET status = 'failed', error = $1, completed_at = $2
		 WHERE id = $3 AND status = 'running'`,
		message, time.Now().UTC(), id,
	)
	if err != nil {
		return mapError("fail task", err)
	}
	return nil
}

// RetryTask resets a failed task to pending and clears its error so it
// re-enters the reconciliation pipeline. Returns false when the task is not
// currently failed (or does not belong to the user).
func (db *DB) RetryTask(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE tasks SET status = 'pending', error = NULL, completed_at = NULL
		 WHERE id = $1 AND user_id = $2 AND status = 'failed'`,
		id, userID,
	)
	if err != nil {
		return false, mapError("retry task", err)
	}
	return result.RowsAffected() > 0, nil
}

// DeleteTask deletes a task unconditionally, including a running one. No
// server-side cancellation happens; the in-flight dispatch's eventual write
// lands on zero rows.
func (db *DB) DeleteTask(ctx context.Context, id, userID uuid.UUID) error {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
	if err != nil {
		return mapError("delete task", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("task not found: %s", id)
	}
	return nil
}

// ClearCompletedTasks deletes every completed task owned by the user and
// returns how many were removed.
func (db *DB) ClearCompletedTasks(ctx context.Context, userID uuid.UUID) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`DELETE FROM tasks WHERE user_id = $1 AND status = 'completed'`,
		userID,
	)
	if err != nil {
		return 0, mapError("clear completed tasks", err)
	}
	return result.RowsAffected(), nil
}
