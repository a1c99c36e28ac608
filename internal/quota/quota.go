// Package quota enforces per-user daily usage limits on the LLM-backed
// processing APIs. It is distinct from HTTP rate limiting: quota governs how
// many analyze/build dispatches a user may consume per day, and a rejection
// is authoritative and final for that dispatch.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// API types, one usage bucket per task mode.
const (
	APITypeAnalyze = "analyze"
	APITypeBuild   = "build"
)

// Store is the persistence surface the limiter needs.
type Store interface {
	IncrementUsage(ctx context.Context, userID uuid.UUID, apiType string, day time.Time) (int, error)
}

// Usage reports the outcome of a check-and-increment call.
type Usage struct {
	Allowed      bool      `json:"allowed"`
	CurrentCount int       `json:"current_count"`
	Limit        int       `json:"limit"`
	Remaining    int       `json:"remaining"`
	ResetDate    time.Time `json:"reset_date"`
}

// LimitMessage renders the user-facing explanation for an exhausted quota.
func (u Usage) LimitMessage(apiType string) string {
	return fmt.Sprintf("usage limit reached for %s (%d/%d today, resets %s)",
		apiType, u.CurrentCount, u.Limit, u.ResetDate.Format(time.RFC3339))
}

// Limiter implements the check-and-increment contract over a usage store.
type Limiter struct {
	store Store
	now   func() time.Time
}

// NewLimiter creates a limiter backed by the given store.
func NewLimiter(store Store) *Limiter {
	return &Limiter{store: store, now: time.Now}
}

// CheckAndIncrement consumes one call from the user's daily window and
// reports whether the call is allowed. The count is incremented even for a
// denied call, so repeated attempts past the limit do not reset the window.
func (l *Limiter) CheckAndIncrement(ctx context.Context, userID uuid.UUID, apiType string, maxCalls int) (Usage, error) {
	now := l.now().UTC()
	count, err := l.store.IncrementUsage(ctx, userID, apiType, now)
	if err != nil {
		return Usage{}, fmt.Errorf("failed to check usage limit: %w", err)
	}

	remaining := maxCalls - count
	if remaining < 0 {
		remaining = 0
	}

	return Usage{
		Allowed:      count <= maxCalls,
		CurrentCount: count,
		Limit:        maxCalls,
		Remaining:    remaining,
		ResetDate:    now.Truncate(24 * time.Hour).Add(24 * time.Hour),
	}, nil
}
