package db

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/curahq/cura/internal/resume"
)

// GetResume retrieves the master resume document for a user. Returns
// nil, nil when the user has not saved one yet.
func (db *DB) GetResume(ctx context.Context, userID uuid.UUID) (*resume.Document, error) {
	var content []byte
	err := db.pool.QueryRow(ctx,
		`SELECT content FROM resumes WHERE user_id = $1`,
		userID,
	).Scan(&content)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, mapError("get resume", err)
	}

	var doc resume.Document
	if err := json.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode resume document: %w", err)
	}
	return &doc, nil
}

// SaveResume upserts the master resume document for a user.
func (db *DB) SaveResume(ctx context.Context, userID uuid.UUID, doc *resume.Document) error {
	content, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal resume document: %w", err)
	}

	_, err = db.pool.Exec(ctx,
		`INSERT INTO resumes (user_id, content)
		 VALUES ($1, $2)
		 ON CONFLICT (user_id) DO UPDATE SET content = $2, updated_at = NOW()`,
		userID, content,
	)
	if err != nil {
		return mapError("save resume", err)
	}
	return nil
}
