package db

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IncrementUsage atomically increments the fixed-window usage counter for a
// user and API type, returning the count after the increment. The window is
// keyed by UTC calendar day.
func (db *DB) IncrementUsage(ctx context.Context, userID uuid.UUID, apiType string, day time.Time) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`INSERT INTO api_usage (user_id, api_type, window_day, count)
		 VALUES ($1, $2, $3, 1)
		 ON CONFLICT (user_id, api_type, window_day) DO UPDATE SET count = api_usage.count + 1
		 RETURNING count`,
		userID, apiType, day.UTC().Truncate(24*time.Hour),
	).Scan(&count)
	if err != nil {
		return 0, mapError("increment usage", err)
	}
	return count, nil
}

// GetUsage returns the current count for a usage window without incrementing.
func (db *DB) GetUsage(ctx context.Context, userID uuid.UUID, apiType string, day time.Time) (int, error) {
	var count int
	err := db.pool.QueryRow(ctx,
		`SELECT COALESCE(
		   (SELECT count FROM api_usage WHERE user_id = $1 AND api_type = $2 AND window_day = $3), 0)`,
		userID, apiType, day.UTC().Truncate(24*time.Hour),
	).Scan(&count)
	if err != nil {
		return 0, mapError("get usage", err)
	}
	return count, nil
}
