// Package task owns the lifecycle of asynchronous AI work items: creation,
// reconciliation, retry, and deletion. Each pending task is dispatched for
// processing at most once concurrently per manager instance, and task state
// is surfaced to the API in near-real time.
package task

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/curahq/cura/internal/db"
	"github.com/curahq/cura/internal/quota"
)

var (
	// ErrEmptyJobDescription is returned when a task is submitted without a
	// job description.
	ErrEmptyJobDescription = errors.New("job description is required")

	// ErrInvalidMode is returned for task modes other than analyze or build.
	ErrInvalidMode = errors.New("invalid task mode")

	// ErrNotRetryable is returned when retry is invoked on a task that is
	// not currently failed. Only failed tasks re-enter the pipeline.
	ErrNotRetryable = errors.New("task is not in a retryable state")

	// ErrTaskNotFound is returned when a task does not exist or is not
	// owned by the caller.
	ErrTaskNotFound = errors.New("task not found")
)

// Store is the persistence collaborator contract for tasks.
type Store interface {
	CreateTask(ctx context.Context, input *db.TaskInput) (*db.Task, error)
	GetTask(ctx context.Context, id, userID uuid.UUID) (*db.Task, error)
	ListTasksByUser(ctx context.Context, userID uuid.UUID) ([]db.Task, error)
	ListPendingTasks(ctx context.Context) ([]db.Task, error)
	ClaimTask(ctx context.Context, id uuid.UUID) (bool, error)
	CompleteTask(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	FailTask(ctx context.Context, id uuid.UUID, message string) error
	RetryTask(ctx context.Context, id, userID uuid.UUID) (bool, error)
	DeleteTask(ctx context.Context, id, userID uuid.UUID) error
	ClearCompletedTasks(ctx context.Context, userID uuid.UUID) (int64, error)
}

// Processor is the external processing collaborator that turns a task's
// inputs into a mode-specific result payload.
type Processor interface {
	Process(ctx context.Context, task *db.Task) (json.RawMessage, error)
}

// Limiter is the rate-limiter collaborator. A rejection is authoritative
// and final for that dispatch; the manager never silently retries past it.
type Limiter interface {
	CheckAndIncrement(ctx context.Context, userID uuid.UUID, apiType string, maxCalls int) (quota.Usage, error)
}

// Event describes a task state change, consumed by the SSE stream.
type Event struct {
	TaskID uuid.UUID `json:"task_id"`
	UserID uuid.UUID `json:"user_id"`
	Status string    `json:"status"`
}

// Config holds tuning knobs for the manager.
type Config struct {
	// PollInterval is how often the reconciler scans for pending tasks.
	PollInterval time.Duration

	// MaxConcurrentDispatches bounds how many processing calls may be in
	// flight at once across all users.
	MaxConcurrentDispatches int64

	// AnalyzeDailyLimit and BuildDailyLimit are the per-user daily quota
	// ceilings passed to the limiter, one bucket per mode.
	AnalyzeDailyLimit int
	BuildDailyLimit   int
}

// DefaultConfig returns a Config with reasonable defaults.
func DefaultConfig() Config {
	return Config{
		PollInterval:            3 * time.Second,
		MaxConcurrentDispatches: 8,
		AnalyzeDailyLimit:       20,
		BuildDailyLimit:         10,
	}
}

// apiTypeForMode maps a task mode to its quota bucket.
func apiTypeForMode(mode string) string {
	if mode == db.TaskModeBuild {
		return quota.APITypeBuild
	}
	return quota.APITypeAnalyze
}
