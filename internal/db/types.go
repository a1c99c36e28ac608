package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Task status values. Transitions are monotonic (pending → running →
// completed|failed); retry is the only back-edge (failed → pending).
const (
	TaskStatusPending   = "pending"
	TaskStatusRunning   = "running"
	TaskStatusCompleted = "completed"
	TaskStatusFailed    = "failed"
)

// Task modes. Analyze proposes edits against an existing resume; build
// drafts a resume from scratch for a job description.
const (
	TaskModeAnalyze = "analyze"
	TaskModeBuild   = "build"
)

// TaskPreferences holds the optional tuning knobs for build tasks.
type TaskPreferences struct {
	MaxExperiences          int `json:"max_experiences,omitempty"`
	MaxProjects             int `json:"max_projects,omitempty"`
	MaxBulletsPerExperience int `json:"max_bullets_per_experience,omitempty"`
	MaxBulletsPerProject    int `json:"max_bullets_per_project,omitempty"`
}

// Task represents a persisted unit of asynchronous AI work.
type Task struct {
	ID             uuid.UUID        `json:"id"`
	UserID         uuid.UUID        `json:"user_id"`
	Mode           string           `json:"mode"`
	JobTitle       string           `json:"job_title"`
	Company        string           `json:"company"`
	JobDescription string           `json:"job_description"`
	ResumeData     json.RawMessage  `json:"resume_data,omitempty"`
	Preferences    *TaskPreferences `json:"preferences,omitempty"`
	Status         string           `json:"status"`
	Result         json.RawMessage  `json:"result,omitempty"`
	Error          *string          `json:"error,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	CompletedAt    *time.Time       `json:"completed_at,omitempty"`
}

// TaskInput holds the fields required to create a task row.
type TaskInput struct {
	UserID         uuid.UUID
	Mode           string
	JobTitle       string
	Company        string
	JobDescription string
	ResumeData     json.RawMessage
	Preferences    *TaskPreferences
}

// User represents a user profile
type User struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// APIUsage is one fixed-window usage counter row for a user and API type.
type APIUsage struct {
	UserID    uuid.UUID `json:"user_id"`
	APIType   string    `json:"api_type"`
	WindowDay time.Time `json:"window_day"`
	Count     int       `json:"count"`
}
