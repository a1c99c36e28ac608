package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/curahq/cura/internal/db"
	"github.com/curahq/cura/internal/server/middleware"
	"github.com/curahq/cura/internal/task"
)

// CreateTaskRequest is the payload for submitting a new task.
type CreateTaskRequest struct {
	Mode           string              `json:"mode"`
	JobDescription string              `json:"job_description"`
	JobTitle       string              `json:"job_title,omitempty"`
	Company        string              `json:"company,omitempty"`
	ResumeData     json.RawMessage     `json:"resume_data,omitempty"`
	Preferences    *db.TaskPreferences `json:"preferences,omitempty"`
}

// handleListTasks returns the caller's tasks, newest first.
func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	tasks, err := s.manager.List(r.Context(), userID)
	if err != nil {
		s.taskError(w, err)
		return
	}
	if tasks == nil {
		tasks = []db.Task{}
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"tasks": tasks})
}

// handleCreateTask persists a new pending task and returns immediately; the
// reconciler picks it up on its next pass.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	created, err := s.manager.Add(r.Context(), task.AddRequest{
		UserID:         userID,
		Mode:           req.Mode,
		JobDescription: req.JobDescription,
		JobTitle:       req.JobTitle,
		Company:        req.Company,
		ResumeData:     req.ResumeData,
		Preferences:    req.Preferences,
	})
	if err != nil {
		if errors.Is(err, task.ErrInvalidMode) || errors.Is(err, task.ErrEmptyJobDescription) {
			s.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		s.taskError(w, err)
		return
	}

	s.jsonResponse(w, http.StatusCreated, created)
}

// handleGetTask returns one task scoped to its owner.
func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.taskRequestIDs(w, r)
	if !ok {
		return
	}

	t, err := s.manager.Get(r.Context(), taskID, userID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			s.errorResponse(w, http.StatusNotFound, "task not found")
			return
		}
		s.taskError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, t)
}

// handleRetryTask re-queues a failed task.
func (s *Server) handleRetryTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.taskRequestIDs(w, r)
	if !ok {
		return
	}

	if err := s.manager.Retry(r.Context(), taskID, userID); err != nil {
		switch {
		case errors.Is(err, task.ErrTaskNotFound):
			s.errorResponse(w, http.StatusNotFound, "task not found")
		case errors.Is(err, task.ErrNotRetryable):
			s.errorResponse(w, http.StatusConflict, err.Error())
		default:
			s.taskError(w, err)
		}
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": db.TaskStatusPending})
}

// handleDeleteTask deletes a task unconditionally, including a running one.
func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	userID, taskID, ok := s.taskRequestIDs(w, r)
	if !ok {
		return
	}

	if err := s.manager.Remove(r.Context(), taskID, userID); err != nil {
		s.errorResponse(w, http.StatusNotFound, "task not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleClearCompletedTasks bulk-deletes the caller's completed tasks.
func (s *Server) handleClearCompletedTasks(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	deleted, err := s.manager.ClearCompleted(r.Context(), userID)
	if err != nil {
		s.taskError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

// taskRequestIDs extracts the caller and the {id} path value.
func (s *Server) taskRequestIDs(w http.ResponseWriter, r *http.Request) (userID, taskID uuid.UUID, ok bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, uuid.Nil, false
	}

	taskID, err = uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "invalid task id")
		return uuid.Nil, uuid.Nil, false
	}
	return userID, taskID, true
}

// taskError maps persistence failures, surfacing the schema setup hint.
func (s *Server) taskError(w http.ResponseWriter, err error) {
	if db.IsSchemaMissing(err) {
		s.errorResponse(w, http.StatusServiceUnavailable,
			"database schema not provisioned; run `cura migrate`")
		return
	}
	s.errorResponse(w, http.StatusInternalServerError, err.Error())
}
