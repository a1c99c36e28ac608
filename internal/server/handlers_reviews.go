package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/curahq/cura/internal/db"
	"github.com/curahq/cura/internal/processing"
	"github.com/curahq/cura/internal/resume"
	"github.com/curahq/cura/internal/server/middleware"
	"github.com/curahq/cura/internal/suggest"
	"github.com/curahq/cura/internal/task"
)

// reviewRegistry holds each user's active suggestion review session.
type reviewRegistry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*suggest.Session
}

func newReviewRegistry() *reviewRegistry {
	return &reviewRegistry{sessions: make(map[uuid.UUID]*suggest.Session)}
}

func (r *reviewRegistry) get(userID uuid.UUID) *suggest.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[userID]
}

func (r *reviewRegistry) put(userID uuid.UUID, s *suggest.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[userID] = s
}

func (r *reviewRegistry) remove(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
}

// StartReviewRequest names the completed analyze task to review.
type StartReviewRequest struct {
	TaskID uuid.UUID `json:"task_id"`
}

// handleStartReview loads a completed analysis result into a fresh review
// session over a copy of the caller's stored resume. Starting a review
// replaces any session already in progress.
func (s *Server) handleStartReview(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var req StartReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TaskID == uuid.Nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	t, err := s.manager.Get(r.Context(), req.TaskID, userID)
	if err != nil {
		if errors.Is(err, task.ErrTaskNotFound) {
			s.errorResponse(w, http.StatusNotFound, "task not found")
			return
		}
		s.taskError(w, err)
		return
	}
	if t.Mode != db.TaskModeAnalyze || t.Status != db.TaskStatusCompleted {
		s.errorResponse(w, http.StatusConflict, "task has no completed analysis result")
		return
	}

	result, err := processing.DecodeAnalyzeResult(t.Result)
	if err != nil {
		s.errorResponse(w, http.StatusInternalServerError, "stored result is not a valid analysis")
		return
	}

	doc, err := s.resumes.GetResume(r.Context(), userID)
	if err != nil {
		s.taskError(w, err)
		return
	}
	if doc == nil {
		doc = &resume.Document{}
	}

	session := suggest.NewSession(doc.Clone())
	suggestions := session.Load(result.Changes)
	s.reviews.put(userID, session)

	s.jsonResponse(w, http.StatusCreated, map[string]any{
		"suggestions": suggestions,
	})
}

// handleGetReview returns the current session state: all suggestions, the
// ones no longer locatable in the document, and whether review finished.
func (s *Server) handleGetReview(w http.ResponseWriter, r *http.Request) {
	_, session, ok := s.reviewSession(w, r)
	if !ok {
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"suggestions":     session.Suggestions(),
		"unmatched":       session.Unmatched(),
		"review_complete": session.ReviewComplete(),
	})
}

// handleApplySuggestion applies one pending suggestion to the session copy.
func (s *Server) handleApplySuggestion(w http.ResponseWriter, r *http.Request) {
	_, session, ok := s.reviewSession(w, r)
	if !ok {
		return
	}

	if err := session.Apply(r.PathValue("id")); err != nil {
		s.errorResponse(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"document":        session.Document(),
		"review_complete": session.ReviewComplete(),
	})
}

// handleRejectSuggestion marks a suggestion rejected without touching the
// document.
func (s *Server) handleRejectSuggestion(w http.ResponseWriter, r *http.Request) {
	_, session, ok := s.reviewSession(w, r)
	if !ok {
		return
	}

	if err := session.Reject(r.PathValue("id")); err != nil {
		s.errorResponse(w, http.StatusNotFound, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, map[string]any{
		"review_complete": session.ReviewComplete(),
	})
}

// handleSaveReview persists the session document as the caller's resume and
// ends the session.
func (s *Server) handleSaveReview(w http.ResponseWriter, r *http.Request) {
	userID, session, ok := s.reviewSession(w, r)
	if !ok {
		return
	}

	if err := s.resumes.SaveResume(r.Context(), userID, session.Document()); err != nil {
		s.taskError(w, err)
		return
	}
	s.reviews.remove(userID)
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "saved"})
}

// handleDismissReview discards the session without saving.
func (s *Server) handleDismissReview(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.reviews.remove(userID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) reviewSession(w http.ResponseWriter, r *http.Request) (uuid.UUID, *suggest.Session, bool) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, nil, false
	}

	session := s.reviews.get(userID)
	if session == nil {
		s.errorResponse(w, http.StatusNotFound, "no review in progress")
		return uuid.Nil, nil, false
	}
	return userID, session, true
}
