package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"

	"github.com/curahq/cura/internal/ingestion"
)

// IngestJobURLRequest names the job posting page to fetch.
type IngestJobURLRequest struct {
	URL string `json:"url"`
}

// handleIngestJobURL fetches a job posting page and returns a cleaned
// description suitable for task submission.
func (s *Server) handleIngestJobURL(w http.ResponseWriter, r *http.Request) {
	var req IngestJobURLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	parsed, err := url.Parse(req.URL)
	if err != nil || parsed.Scheme != "http" && parsed.Scheme != "https" {
		s.errorResponse(w, http.StatusBadRequest, "url must be http or https")
		return
	}

	posting, err := s.ingest(r.Context(), req.URL)
	if err != nil {
		if errors.Is(err, ingestion.ErrContentTooShort) {
			s.errorResponse(w, http.StatusUnprocessableEntity,
				"page did not contain enough job posting text")
			return
		}
		s.errorResponse(w, http.StatusBadGateway, err.Error())
		return
	}

	s.jsonResponse(w, http.StatusOK, posting)
}
