// Package server provides the HTTP REST API for Cura.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/curahq/cura/internal/config"
	"github.com/curahq/cura/internal/db"
	"github.com/curahq/cura/internal/ingestion"
	"github.com/curahq/cura/internal/llm"
	"github.com/curahq/cura/internal/processing"
	"github.com/curahq/cura/internal/quota"
	"github.com/curahq/cura/internal/resume"
	"github.com/curahq/cura/internal/server/middleware"
	"github.com/curahq/cura/internal/server/ratelimit"
	"github.com/curahq/cura/internal/task"
)

// TaskManager is the slice of the task queue manager the handlers need.
type TaskManager interface {
	List(ctx context.Context, userID uuid.UUID) ([]db.Task, error)
	Get(ctx context.Context, id, userID uuid.UUID) (*db.Task, error)
	Add(ctx context.Context, req task.AddRequest) (*db.Task, error)
	Retry(ctx context.Context, id, userID uuid.UUID) error
	Remove(ctx context.Context, id, userID uuid.UUID) error
	ClearCompleted(ctx context.Context, userID uuid.UUID) (int64, error)
	Subscribe() (<-chan task.Event, func())
	Degraded() (bool, error)
}

// ResumeStore persists each user's resume document.
type ResumeStore interface {
	GetResume(ctx context.Context, userID uuid.UUID) (*resume.Document, error)
	SaveResume(ctx context.Context, userID uuid.UUID, doc *resume.Document) error
}

// ingestFunc fetches and cleans a job posting URL.
type ingestFunc func(ctx context.Context, url string) (*ingestion.JobPosting, error)

// Server is the Cura HTTP server.
type Server struct {
	httpServer  *http.Server
	database    *db.DB
	llmClient   llm.Client
	manager     TaskManager
	taskRunner  *task.Manager
	resumes     ResumeStore
	reviews     *reviewRegistry
	ingest      ingestFunc
	rateLimiter *ratelimit.Limiter
	jwtService  *JWTService
	userService *UserService
	authHandler *AuthHandler
}

// New wires the full server from configuration: database, model client,
// task reconciler, and HTTP surface.
func New(ctx context.Context, cfg *config.ServerConfig) (*Server, error) {
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	llmClient, err := llm.NewClient(ctx, llm.DefaultConfig(), cfg.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create model client: %w", err)
	}

	manager := task.NewManager(
		database,
		processing.NewProcessor(llmClient),
		quota.NewLimiter(database),
		task.Config{
			PollInterval:            cfg.PollInterval,
			MaxConcurrentDispatches: cfg.MaxConcurrentDispatches,
			AnalyzeDailyLimit:       cfg.AnalyzeDailyLimit,
			BuildDailyLimit:         cfg.BuildDailyLimit,
		},
	)

	ingestOpts := ingestion.Options{
		UseBrowser: cfg.IngestWithBrowser,
		Extractor:  ingestion.NewExtractor(llmClient),
	}

	s := &Server{
		database:   database,
		llmClient:  llmClient,
		manager:    manager,
		taskRunner: manager,
		resumes:    database,
		reviews:    newReviewRegistry(),
		ingest: func(ctx context.Context, url string) (*ingestion.JobPosting, error) {
			return ingestion.IngestFromURL(ctx, url, ingestOpts)
		},
	}

	s.rateLimiter = ratelimit.NewLimiter(ratelimit.LoadConfig())

	passwordConfig, err := config.NewPasswordConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create password config: %w", err)
	}
	s.userService = NewUserService(database, passwordConfig)

	jwtConfig, err := config.NewJWTConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to create JWT config: %w", err)
	}
	s.jwtService = NewJWTService(jwtConfig)
	s.authHandler = NewAuthHandler(s.userService, s.jwtService)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      s.withRateLimit(s.withLogging(s.withCORS(s.routes()))),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second, // SSE streams stay open
		IdleTimeout:  60 * time.Second,
	}

	return s, nil
}

// routes builds the request mux. Everything except auth and health sits
// behind the JWT middleware.
func (s *Server) routes() http.Handler {
	authed := http.NewServeMux()

	authed.HandleFunc("GET /tasks", s.handleListTasks)
	authed.HandleFunc("POST /tasks", s.handleCreateTask)
	authed.HandleFunc("GET /tasks/events", s.handleTaskEvents)
	authed.HandleFunc("GET /tasks/{id}", s.handleGetTask)
	authed.HandleFunc("POST /tasks/{id}/retry", s.handleRetryTask)
	authed.HandleFunc("DELETE /tasks/{id}", s.handleDeleteTask)
	authed.HandleFunc("DELETE /tasks", s.handleClearCompletedTasks)

	authed.HandleFunc("GET /resume", s.handleGetResume)
	authed.HandleFunc("PUT /resume", s.handleSaveResume)

	authed.HandleFunc("POST /reviews", s.handleStartReview)
	authed.HandleFunc("GET /reviews", s.handleGetReview)
	authed.HandleFunc("POST /reviews/suggestions/{id}/apply", s.handleApplySuggestion)
	authed.HandleFunc("POST /reviews/suggestions/{id}/reject", s.handleRejectSuggestion)
	authed.HandleFunc("POST /reviews/save", s.handleSaveReview)
	authed.HandleFunc("DELETE /reviews", s.handleDismissReview)

	authed.HandleFunc("POST /ingest/job-url", s.handleIngestJobURL)

	authed.HandleFunc("PUT /auth/password", s.handleUpdatePassword)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/register", s.authHandler.Register)
	mux.HandleFunc("POST /auth/login", s.authHandler.Login)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("/", middleware.Auth(s.jwtService.AsTokenValidator())(authed))

	return mux
}

// Start runs the task reconciler and HTTP listener until interrupted, then
// shuts both down gracefully.
func (s *Server) Start() error {
	if s.taskRunner != nil {
		s.taskRunner.Start()
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("[server] listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("[server] listener error: %v", err)
		}
	}()

	<-stop
	log.Println("[server] shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if s.taskRunner != nil {
		s.taskRunner.Stop()
	}
	if s.rateLimiter != nil {
		s.rateLimiter.Stop()
	}
	if s.llmClient != nil {
		_ = s.llmClient.Close()
	}
	s.database.Close()
	log.Println("[server] stopped")
	return nil
}

// withCORS adds CORS headers.
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit enforces the per-client HTTP rate limits.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		clientID := s.extractClientID(r)
		allowed, info := s.rateLimiter.Allow(clientID, r.URL.Path, r.Method)

		s.setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withLogging adds request logging.
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log.Printf("[%s] %s %s", r.Method, r.URL.Path, r.RemoteAddr)
		next.ServeHTTP(w, r)
		log.Printf("[%s] %s completed in %v", r.Method, r.URL.Path, time.Since(start))
	})
}

// handleHealth reports liveness plus reconciler state: once polling is
// suspended the server still answers requests but is marked degraded, with
// a setup hint when the schema is missing.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}

	if degraded, cause := s.manager.Degraded(); degraded {
		body["status"] = "degraded"
		body["task_reconciler"] = "suspended"
		if cause != nil {
			body["cause"] = cause.Error()
			if db.IsSchemaMissing(cause) {
				body["hint"] = "database schema not provisioned; run `cura migrate`"
			}
		}
	}

	if err := s.database.Ping(r.Context()); err != nil {
		body["status"] = "degraded"
		body["database"] = "unreachable"
	}

	s.jsonResponse(w, http.StatusOK, body)
}

// jsonResponse writes a JSON response.
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[server] error encoding JSON response: %v", err)
	}
}

// errorResponse writes an error JSON response.
func (s *Server) errorResponse(w http.ResponseWriter, status int, message string) {
	s.jsonResponse(w, status, map[string]string{"error": message})
}

// extractClientID identifies the client by IP for HTTP rate limiting.
func (s *Server) extractClientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func (s *Server) setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", info.Limit))
		w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", info.Remaining))
		w.Header().Set("X-RateLimit-Reset", fmt.Sprintf("%d", info.ResetTime.Unix()))
	}
}

func (s *Server) rateLimitResponse(w http.ResponseWriter, info ratelimit.Info) {
	response := map[string]any{
		"error":     "rate_limit_exceeded",
		"message":   "Rate limit exceeded. Please try again later.",
		"limit":     info.Limit,
		"remaining": info.Remaining,
		"reset_at":  info.ResetTime.Format(time.RFC3339),
	}
	if info.RetryAfter > 0 {
		response["retry_after"] = int(info.RetryAfter.Seconds())
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(info.RetryAfter.Seconds())))
	}
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// handleUpdatePassword routes to the auth handler with the authenticated
// user's ID.
func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.GetUserID(r)
	if err != nil {
		s.errorResponse(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	s.authHandler.UpdatePassword(w, r, userID)
}
