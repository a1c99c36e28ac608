package task

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/curahq/cura/internal/db"
)

// defaultTitlePattern matches auto-assigned titles of the literal form
// "Task {digits}". A user-supplied title like "Task 3" collides with this
// scheme; the numbering deliberately does not de-duplicate against it.
var defaultTitlePattern = regexp.MustCompile(`^Task (\d+)$`)

// Manager drives tasks through their lifecycle. One instance runs inside
// the API server; the in-flight set is scoped to that instance.
type Manager struct {
	store     Store
	processor Processor
	limiter   Limiter
	config    Config

	mu       sync.Mutex
	inflight map[uuid.UUID]struct{}

	sem *semaphore.Weighted

	subMu       sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int

	degradedMu sync.Mutex
	degraded   bool
	degradedBy error

	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	dispatches sync.WaitGroup
}

// NewManager creates a task queue manager.
func NewManager(store Store, processor Processor, limiter Limiter, config Config) *Manager {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultConfig().PollInterval
	}
	if config.MaxConcurrentDispatches <= 0 {
		config.MaxConcurrentDispatches = DefaultConfig().MaxConcurrentDispatches
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		store:       store,
		processor:   processor,
		limiter:     limiter,
		config:      config,
		inflight:    make(map[uuid.UUID]struct{}),
		sem:         semaphore.NewWeighted(config.MaxConcurrentDispatches),
		subscribers: make(map[int]chan Event),
		ctx:         ctx,
		cancelFunc:  cancel,
	}
}

// Start launches the reconciliation loop.
func (m *Manager) Start() {
	m.wg.Add(1)
	go m.run()
}

// Stop cancels the loop and waits for in-flight dispatches to settle.
func (m *Manager) Stop() {
	m.cancelFunc()
	m.wg.Wait()
	m.dispatches.Wait()
}

// run ticks the reconciler until the manager is stopped or the store
// becomes unavailable.
func (m *Manager) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			if err := m.Reconcile(m.ctx); err != nil {
				// Availability circuit-breaker: once the store is detected
				// unavailable, polling stops instead of hammering a broken
				// backend. A restart (after fixing the setup) resumes it.
				m.setDegraded(err)
				if errors.Is(err, db.ErrSchemaMissing) {
					log.Printf("[tasks] schema not provisioned; run `cura migrate` and restart (reconciler suspended)")
				} else {
					log.Printf("[tasks] store unavailable, reconciler suspended: %v", err)
				}
				return
			}
		}
	}
}

// Reconcile performs one reconciliation pass: every pending task not
// already in flight is dispatched concurrently. Failures of individual
// dispatches never abort siblings or the loop.
func (m *Manager) Reconcile(ctx context.Context) error {
	pending, err := m.store.ListPendingTasks(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending tasks: %w", err)
	}

	for i := range pending {
		t := pending[i]
		if !m.markInflight(t.ID) {
			continue
		}
		m.dispatches.Add(1)
		go m.dispatch(ctx, t)
	}
	return nil
}

// markInflight records a task as having an active dispatch. Returns false
// when the task is already in flight, which guarantees at most one active
// dispatch per task id within this manager instance.
func (m *Manager) markInflight(id uuid.UUID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.inflight[id]; exists {
		return false
	}
	m.inflight[id] = struct{}{}
	return true
}

// unmarkInflight releases the in-flight slot for a task id.
func (m *Manager) unmarkInflight(id uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, id)
}

// dispatch drives a single task from pending to completed or failed.
func (m *Manager) dispatch(ctx context.Context, t db.Task) {
	defer m.dispatches.Done()
	defer m.unmarkInflight(t.ID)

	if err := m.sem.Acquire(ctx, 1); err != nil {
		// Manager stopping; the task stays pending for the next session.
		return
	}
	defer m.sem.Release(1)

	claimed, err := m.store.ClaimTask(ctx, t.ID)
	if err != nil {
		// The task remains pending and is retried on the next pass.
		log.Printf("[tasks] failed to mark task %s running: %v", t.ID, err)
		return
	}
	if !claimed {
		// Another writer claimed it, or the user deleted it. Skip silently.
		return
	}
	m.publish(Event{TaskID: t.ID, UserID: t.UserID, Status: db.TaskStatusRunning})

	apiType := apiTypeForMode(t.Mode)
	usage, err := m.limiter.CheckAndIncrement(ctx, t.UserID, apiType, m.limitForMode(t.Mode))
	if err != nil {
		m.fail(ctx, t, fmt.Sprintf("rate limit check failed: %v", err))
		return
	}
	if !usage.Allowed {
		m.fail(ctx, t, usage.LimitMessage(apiType))
		return
	}

	result, err := m.processor.Process(ctx, &t)
	if err != nil {
		m.fail(ctx, t, err.Error())
		return
	}

	if err := m.store.CompleteTask(ctx, t.ID, result); err != nil {
		log.Printf("[tasks] failed to record completion for task %s: %v", t.ID, err)
		return
	}
	log.Printf("[tasks] task %s completed (%s)", t.ID, t.Mode)
	m.publish(Event{TaskID: t.ID, UserID: t.UserID, Status: db.TaskStatusCompleted})
}

// fail records a task-scoped failure.
func (m *Manager) fail(ctx context.Context, t db.Task, message string) {
	if err := m.store.FailTask(ctx, t.ID, message); err != nil {
		log.Printf("[tasks] failed to record failure for task %s: %v", t.ID, err)
		return
	}
	log.Printf("[tasks] task %s failed: %s", t.ID, message)
	m.publish(Event{TaskID: t.ID, UserID: t.UserID, Status: db.TaskStatusFailed})
}

func (m *Manager) limitForMode(mode string) int {
	if mode == db.TaskModeBuild {
		return m.config.BuildDailyLimit
	}
	return m.config.AnalyzeDailyLimit
}

// List returns the caller's tasks, newest first.
func (m *Manager) List(ctx context.Context, userID uuid.UUID) ([]db.Task, error) {
	return m.store.ListTasksByUser(ctx, userID)
}

// Get returns one task scoped to its owner.
func (m *Manager) Get(ctx context.Context, id, userID uuid.UUID) (*db.Task, error) {
	t, err := m.store.GetTask(ctx, id, userID)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrTaskNotFound
	}
	return t, nil
}

// AddRequest holds the caller-supplied fields for a new task.
type AddRequest struct {
	UserID         uuid.UUID
	Mode           string
	JobDescription string
	JobTitle       string
	Company        string
	ResumeData     []byte
	Preferences    *db.TaskPreferences
}

// Add validates and persists a new pending task, returning the stored row.
// It returns immediately; the reconciler picks the task up on its next pass.
func (m *Manager) Add(ctx context.Context, req AddRequest) (*db.Task, error) {
	if req.Mode != db.TaskModeAnalyze && req.Mode != db.TaskModeBuild {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMode, req.Mode)
	}
	if strings.TrimSpace(req.JobDescription) == "" {
		return nil, ErrEmptyJobDescription
	}

	title := strings.TrimSpace(req.JobTitle)
	if title == "" {
		existing, err := m.store.ListTasksByUser(ctx, req.UserID)
		if err != nil {
			return nil, err
		}
		title = nextDefaultTitle(existing)
	}

	company := strings.TrimSpace(req.Company)
	if company == "" {
		company = "No Company"
	}

	created, err := m.store.CreateTask(ctx, &db.TaskInput{
		UserID:         req.UserID,
		Mode:           req.Mode,
		JobTitle:       title,
		Company:        company,
		JobDescription: req.JobDescription,
		ResumeData:     req.ResumeData,
		Preferences:    req.Preferences,
	})
	if err != nil {
		return nil, err
	}

	m.publish(Event{TaskID: created.ID, UserID: created.UserID, Status: db.TaskStatusPending})
	return created, nil
}

// nextDefaultTitle computes "Task N" where N is one greater than the highest
// N found in titles matching the literal "Task {digits}" pattern.
func nextDefaultTitle(tasks []db.Task) string {
	highest := 0
	for _, t := range tasks {
		match := defaultTitlePattern.FindStringSubmatch(t.JobTitle)
		if match == nil {
			continue
		}
		if n, err := strconv.Atoi(match[1]); err == nil && n > highest {
			highest = n
		}
	}
	return fmt.Sprintf("Task %d", highest+1)
}

// Retry resets a failed task to pending so it re-enters the pipeline.
// Retrying a task that is not failed is rejected explicitly.
func (m *Manager) Retry(ctx context.Context, id, userID uuid.UUID) error {
	reset, err := m.store.RetryTask(ctx, id, userID)
	if err != nil {
		return err
	}
	if !reset {
		t, err := m.store.GetTask(ctx, id, userID)
		if err != nil {
			return err
		}
		if t == nil {
			return ErrTaskNotFound
		}
		return fmt.Errorf("%w: status is %s", ErrNotRetryable, t.Status)
	}
	m.publish(Event{TaskID: id, UserID: userID, Status: db.TaskStatusPending})
	return nil
}

// Remove deletes a task unconditionally, including a running one. There is
// no server-side cancellation; the in-flight dispatch's eventual write lands
// on zero rows and is ignored.
func (m *Manager) Remove(ctx context.Context, id, userID uuid.UUID) error {
	return m.store.DeleteTask(ctx, id, userID)
}

// ClearCompleted deletes every completed task owned by the user.
func (m *Manager) ClearCompleted(ctx context.Context, userID uuid.UUID) (int64, error) {
	return m.store.ClearCompletedTasks(ctx, userID)
}

// Subscribe registers a task event listener. The returned cancel function
// must be called when the listener goes away.
func (m *Manager) Subscribe() (<-chan Event, func()) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	id := m.nextSubID
	m.nextSubID++
	ch := make(chan Event, 16)
	m.subscribers[id] = ch

	cancel := func() {
		m.subMu.Lock()
		defer m.subMu.Unlock()
		if existing, ok := m.subscribers[id]; ok {
			delete(m.subscribers, id)
			close(existing)
		}
	}
	return ch, cancel
}

// publish fans an event out to subscribers. Slow subscribers drop events
// rather than block the reconciler.
func (m *Manager) publish(event Event) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for _, ch := range m.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}

// Degraded reports whether the reconciler has suspended polling, and why.
func (m *Manager) Degraded() (bool, error) {
	m.degradedMu.Lock()
	defer m.degradedMu.Unlock()
	return m.degraded, m.degradedBy
}

func (m *Manager) setDegraded(err error) {
	m.degradedMu.Lock()
	defer m.degradedMu.Unlock()
	m.degraded = true
	m.degradedBy = err
}

// drain waits for all spawned dispatches to finish. Test hook.
func (m *Manager) drain() {
	m.dispatches.Wait()
}
