package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/curahq/cura/internal/db"
	"github.com/curahq/cura/internal/quota"
)

// fakeStore is an in-memory Store with the same conditional-write
// semantics as the Postgres implementation.
type fakeStore struct {
	mu    sync.Mutex
	tasks map[uuid.UUID]*db.Task

	listErr  error
	claimErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: make(map[uuid.UUID]*db.Task)}
}

func (s *fakeStore) CreateTask(_ context.Context, input *db.TaskInput) (*db.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &db.Task{
		ID:             uuid.New(),
		UserID:         input.UserID,
		Mode:           input.Mode,
		JobTitle:       input.JobTitle,
		Company:        input.Company,
		JobDescription: input.JobDescription,
		ResumeData:     input.ResumeData,
		Preferences:    input.Preferences,
		Status:         db.TaskStatusPending,
		CreatedAt:      time.Now(),
	}
	s.tasks[t.ID] = t
	copied := *t
	return &copied, nil
}

func (s *fakeStore) GetTask(_ context.Context, id, userID uuid.UUID) (*db.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, nil
	}
	copied := *t
	return &copied, nil
}

func (s *fakeStore) ListTasksByUser(_ context.Context, userID uuid.UUID) ([]db.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []db.Task
	for _, t := range s.tasks {
		if t.UserID == userID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) ListPendingTasks(_ context.Context) ([]db.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []db.Task
	for _, t := range s.tasks {
		if t.Status == db.TaskStatusPending {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) ClaimTask(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimErr != nil {
		return false, s.claimErr
	}
	t, ok := s.tasks[id]
	if !ok || t.Status != db.TaskStatusPending {
		return false, nil
	}
	t.Status = db.TaskStatusRunning
	return true, nil
}

func (s *fakeStore) CompleteTask(_ context.Context, id uuid.UUID, result json.RawMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status != db.TaskStatusRunning {
		// Matches the SQL conditional update: zero rows is not an error.
		return nil
	}
	now := time.Now()
	t.Status = db.TaskStatusCompleted
	t.Result = result
	t.Error = nil
	t.CompletedAt = &now
	return nil
}

func (s *fakeStore) FailTask(_ context.Context, id uuid.UUID, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.Status != db.TaskStatusRunning {
		return nil
	}
	t.Status = db.TaskStatusFailed
	t.Error = &message
	return nil
}

func (s *fakeStore) RetryTask(_ context.Context, id, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID || t.Status != db.TaskStatusFailed {
		return false, nil
	}
	t.Status = db.TaskStatusPending
	t.Error = nil
	return true, nil
}

func (s *fakeStore) DeleteTask(_ context.Context, id, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return fmt.Errorf("task not found")
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeStore) ClearCompletedTasks(_ context.Context, userID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for id, t := range s.tasks {
		if t.UserID == userID && t.Status == db.TaskStatusCompleted {
			delete(s.tasks, id)
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) status(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok {
		return t.Status
	}
	return ""
}

func (s *fakeStore) errorMessage(id uuid.UUID) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.tasks[id]; ok && t.Error != nil {
		return *t.Error
	}
	return ""
}

// fakeProcessor returns canned results per task id, optionally blocking
// until released.
type fakeProcessor struct {
	mu      sync.Mutex
	calls   map[uuid.UUID]int
	errFor  map[uuid.UUID]error
	block   chan struct{}
	started chan uuid.UUID
}

func newFakeProcessor() *fakeProcessor {
	return &fakeProcessor{
		calls:  make(map[uuid.UUID]int),
		errFor: make(map[uuid.UUID]error),
	}
}

func (p *fakeProcessor) Process(_ context.Context, t *db.Task) (json.RawMessage, error) {
	p.mu.Lock()
	p.calls[t.ID]++
	p.mu.Unlock()

	if p.started != nil {
		p.started <- t.ID
	}
	if p.block != nil {
		<-p.block
	}

	p.mu.Lock()
	err := p.errFor[t.ID]
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return json.RawMessage(`{"ok":true}`), nil
}

func (p *fakeProcessor) callCount(id uuid.UUID) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[id]
}

// fakeLimiter allows everything unless denied is set.
type fakeLimiter struct {
	mu     sync.Mutex
	denied bool
	calls  []string
}

func (l *fakeLimiter) CheckAndIncrement(_ context.Context, _ uuid.UUID, apiType string, maxCalls int) (quota.Usage, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, apiType)
	if l.denied {
		return quota.Usage{
			Allowed:      false,
			CurrentCount: maxCalls + 1,
			Limit:        maxCalls,
			ResetDate:    time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		}, nil
	}
	return quota.Usage{Allowed: true, CurrentCount: 1, Limit: maxCalls, Remaining: maxCalls - 1}, nil
}

func newTestManager(store *fakeStore, proc *fakeProcessor, limiter *fakeLimiter) *Manager {
	return NewManager(store, proc, limiter, Config{
		PollInterval:            10 * time.Millisecond,
		MaxConcurrentDispatches: 8,
		AnalyzeDailyLimit:       20,
		BuildDailyLimit:         10,
	})
}

func addPending(t *testing.T, store *fakeStore, userID uuid.UUID, mode string) *db.Task {
	t.Helper()
	created, err := store.CreateTask(context.Background(), &db.TaskInput{
		UserID:         userID,
		Mode:           mode,
		JobTitle:       "Backend Engineer",
		Company:        "Acme",
		JobDescription: "Build services in Go.",
		ResumeData:     json.RawMessage(`{"basics":{"name":"A"}}`),
	})
	require.NoError(t, err)
	return created
}

func TestReconcileCompletesPendingTask(t *testing.T) {
	store := newFakeStore()
	proc := newFakeProcessor()
	m := newTestManager(store, proc, &fakeLimiter{})

	userID := uuid.New()
	created := addPending(t, store, userID, db.TaskModeAnalyze)

	require.NoError(t, m.Reconcile(context.Background()))
	m.drain()

	assert.Equal(t, db.TaskStatusCompleted, store.status(created.ID))
	got, err := m.Get(context.Background(), created.ID, userID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(got.Result))
	assert.NotNil(t, got.CompletedAt)
	assert.Nil(t, got.Error)
}

func TestReconcileDoesNotDoubleDispatch(t *testing.T) {
	store := newFakeStore()
	proc := newFakeProcessor()
	proc.block = make(chan struct{})
	proc.started = make(chan uuid.UUID, 1)
	m := newTestManager(store, proc, &fakeLimiter{})

	created := addPending(t, store, uuid.New(), db.TaskModeAnalyze)

	require.NoError(t, m.Reconcile(context.Background()))
	<-proc.started

	// A second pass while the first dispatch is still running must not
	// hand the same task to the processor again.
	require.NoError(t, m.Reconcile(context.Background()))

	close(proc.block)
	m.drain()

	assert.Equal(t, 1, proc.callCount(created.ID))
	assert.Equal(t, db.TaskStatusCompleted, store.status(created.ID))
}

func TestReconcileIsolatesFailures(t *testing.T) {
	store := newFakeStore()
	proc := newFakeProcessor()
	m := newTestManager(store, proc, &fakeLimiter{})

	userID := uuid.New()
	good := addPending(t, store, userID, db.TaskModeAnalyze)
	bad := addPending(t, store, userID, db.TaskModeAnalyze)
	proc.errFor[bad.ID] = errors.New("model returned malformed output")

	require.NoError(t, m.Reconcile(context.Background()))
	m.drain()

	assert.Equal(t, db.TaskStatusCompleted, store.status(good.ID))
	assert.Equal(t, db.TaskStatusFailed, store.status(bad.ID))
	assert.Equal(t, "model returned malformed output", store.errorMessage(bad.ID))
}

func TestReconcileQuotaExhaustedFailsTask(t *testing.T) {
	store := newFakeStore()
	proc := newFakeProcessor()
	limiter := &fakeLimiter{denied: true}
	m := newTestManager(store, proc, limiter)

	created := addPending(t, store, uuid.New(), db.TaskModeBuild)

	require.NoError(t, m.Reconcile(context.Background()))
	m.drain()

	assert.Equal(t, db.TaskStatusFailed, store.status(created.ID))
	assert.Contains(t, store.errorMessage(created.ID), "usage limit reached for build")
	assert.Equal(t, 0, proc.callCount(created.ID))
	assert.Equal(t, []string{quota.APITypeBuild}, limiter.calls)
}

func TestRetryFailedTaskRunsAgain(t *testing.T) {
	store := newFakeStore()
	proc := newFakeProcessor()
	m := newTestManager(store, proc, &fakeLimiter{})

	userID := uuid.New()
	created := addPending(t, store, userID, db.TaskModeAnalyze)
	proc.errFor[created.ID] = errors.New("transient upstream error")

	require.NoError(t, m.Reconcile(context.Background()))
	m.drain()
	require.Equal(t, db.TaskStatusFailed, store.status(created.ID))

	proc.mu.Lock()
	delete(proc.errFor, created.ID)
	proc.mu.Unlock()

	require.NoError(t, m.Retry(context.Background(), created.ID, userID))
	assert.Equal(t, db.TaskStatusPending, store.status(created.ID))

	require.NoError(t, m.Reconcile(context.Background()))
	m.drain()

	assert.Equal(t, db.TaskStatusCompleted, store.status(created.ID))
	assert.Equal(t, 2, proc.callCount(created.ID))
}

func TestRetryNonFailedTaskRejected(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store, newFakeProcessor(), &fakeLimiter{})

	userID := uuid.New()
	created := addPending(t, store, userID, db.TaskModeAnalyze)

	err := m.Retry(context.Background(), created.ID, userID)
	assert.ErrorIs(t, err, ErrNotRetryable)

	err = m.Retry(context.Background(), uuid.New(), userID)
	assert.ErrorIs(t, err, ErrTaskNotFound)
}

func TestRemoveRunningTaskLeavesNoTrace(t *testing.T) {
	store := newFakeStore()
	proc := newFakeProcessor()
	proc.block = make(chan struct{})
	proc.started = make(chan uuid.UUID, 1)
	m := newTestManager(store, proc, &fakeLimiter{})

	userID := uuid.New()
	created := addPending(t, store, userID, db.TaskModeAnalyze)

	require.NoError(t, m.Reconcile(context.Background()))
	<-proc.started

	// Delete while the dispatch is mid-flight. Its completion write must
	// land on zero rows and be swallowed.
	require.NoError(t, m.Remove(context.Background(), created.ID, userID))

	close(proc.block)
	m.drain()

	got, err := store.GetTask(context.Background(), created.ID, userID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestAddAssignsDefaultTitleAndCompany(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store, newFakeProcessor(), &fakeLimiter{})
	userID := uuid.New()

	first, err := m.Add(context.Background(), AddRequest{
		UserID:         userID,
		Mode:           db.TaskModeAnalyze,
		JobDescription: "desc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Task 1", first.JobTitle)
	assert.Equal(t, "No Company", first.Company)

	_, err = m.Add(context.Background(), AddRequest{
		UserID:         userID,
		Mode:           db.TaskModeAnalyze,
		JobDescription: "desc",
		JobTitle:       "Task 3",
	})
	require.NoError(t, err)

	next, err := m.Add(context.Background(), AddRequest{
		UserID:         userID,
		Mode:           db.TaskModeAnalyze,
		JobDescription: "desc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Task 4", next.JobTitle)
}

func TestAddDefaultTitleIgnoresNonMatchingTitles(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store, newFakeProcessor(), &fakeLimiter{})
	userID := uuid.New()

	for _, title := range []string{"task 9", "Task ", "Task nine", "My Task 12"} {
		_, err := m.Add(context.Background(), AddRequest{
			UserID:         userID,
			Mode:           db.TaskModeAnalyze,
			JobDescription: "desc",
			JobTitle:       title,
		})
		require.NoError(t, err)
	}

	got, err := m.Add(context.Background(), AddRequest{
		UserID:         userID,
		Mode:           db.TaskModeAnalyze,
		JobDescription: "desc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Task 1", got.JobTitle)
}

func TestAddValidation(t *testing.T) {
	store := newFakeStore()
	m := newTestManager(store, newFakeProcessor(), &fakeLimiter{})

	_, err := m.Add(context.Background(), AddRequest{
		UserID:         uuid.New(),
		Mode:           "summarize",
		JobDescription: "desc",
	})
	assert.ErrorIs(t, err, ErrInvalidMode)

	_, err = m.Add(context.Background(), AddRequest{
		UserID:         uuid.New(),
		Mode:           db.TaskModeAnalyze,
		JobDescription: "   ",
	})
	assert.ErrorIs(t, err, ErrEmptyJobDescription)
}

func TestStartSuspendsOnStoreFailure(t *testing.T) {
	store := newFakeStore()
	store.listErr = db.ErrSchemaMissing
	m := newTestManager(store, newFakeProcessor(), &fakeLimiter{})

	m.Start()

	require.Eventually(t, func() bool {
		degraded, _ := m.Degraded()
		return degraded
	}, time.Second, 5*time.Millisecond)

	degraded, cause := m.Degraded()
	assert.True(t, degraded)
	assert.ErrorIs(t, cause, db.ErrSchemaMissing)

	m.Stop()
}

func TestSubscribeReceivesLifecycleEvents(t *testing.T) {
	store := newFakeStore()
	proc := newFakeProcessor()
	m := newTestManager(store, proc, &fakeLimiter{})

	events, cancel := m.Subscribe()
	defer cancel()

	created, err := m.Add(context.Background(), AddRequest{
		UserID:         uuid.New(),
		Mode:           db.TaskModeAnalyze,
		JobDescription: "desc",
	})
	require.NoError(t, err)

	require.NoError(t, m.Reconcile(context.Background()))
	m.drain()

	var statuses []string
	for len(statuses) < 3 {
		select {
		case ev := <-events:
			assert.Equal(t, created.ID, ev.TaskID)
			statuses = append(statuses, ev.Status)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for events, got %v", statuses)
		}
	}
	assert.Equal(t, []string{db.TaskStatusPending, db.TaskStatusRunning, db.TaskStatusCompleted}, statuses)
}

func TestClearCompleted(t *testing.T) {
	store := newFakeStore()
	proc := newFakeProcessor()
	m := newTestManager(store, proc, &fakeLimiter{})

	userID := uuid.New()
	done := addPending(t, store, userID, db.TaskModeAnalyze)
	kept := addPending(t, store, userID, db.TaskModeAnalyze)
	proc.errFor[kept.ID] = errors.New("boom")

	require.NoError(t, m.Reconcile(context.Background()))
	m.drain()

	n, err := m.ClearCompleted(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "", store.status(done.ID))
	assert.Equal(t, db.TaskStatusFailed, store.status(kept.ID))
}
