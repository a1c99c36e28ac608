package server

import (
	"encoding/json"
	"net/http"

	"github.com/curahq/cura/internal/resume"
	"github.com/curahq/cura/internal/server/middleware"
)

// handleGetResume returns the caller's stored resume document.
func (s *Server) handleGetResume(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	doc, err := s.resumes.GetResume(r.Context(), userID)
	if err != nil {
		s.taskError(w, err)
		return
	}
	if doc == nil {
		s.errorResponse(w, http.StatusNotFound, "no resume saved")
		return
	}
	s.jsonResponse(w, http.StatusOK, doc)
}

// handleSaveResume stores or replaces the caller's resume document.
func (s *Server) handleSaveResume(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	var doc resume.Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if err := s.resumes.SaveResume(r.Context(), userID, &doc); err != nil {
		s.taskError(w, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "saved"})
}
