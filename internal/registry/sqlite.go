package registry

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/studymode/tutor/internal/models"
)

const conversationsSchema = `
CREATE TABLE IF NOT EXISTS conversations (
    conversation_id TEXT PRIMARY KEY,
    user_id TEXT NOT NULL,
    title TEXT NOT NULL,
    turn_count INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_conversations_user
    ON conversations (user_id, updated_at DESC);`

// SQLiteMetadataStore is the durable MetadataStore implementation.
type SQLiteMetadataStore struct {
	db *sql.DB
}

// NewSQLiteMetadataStore initializes the conversations schema on an existing
// database handle.
func NewSQLiteMetadataStore(db *sql.DB) (*SQLiteMetadataStore, error) {
	if _, err := db.Exec(conversationsSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize conversations schema: %w", err)
	}
	return &SQLiteMetadataStore{db: db}, nil
}

// Insert implements MetadataStore.
func (s *SQLiteMetadataStore) Insert(ctx context.Context, conv *models.Conversation) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO conversations (conversation_id, user_id, title, turn_count, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?)`,
		conv.ID, conv.UserID, conv.Title, conv.TurnCount, conv.CreatedAt, conv.UpdatedAt)
	return err
}

// GetOwned implements MetadataStore. The ownership check is part of the query
// so a foreign conversation and a missing one are indistinguishable.
func (s *SQLiteMetadataStore) GetOwned(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.QueryRowContext(ctx, `
        SELECT conversation_id, user_id, title, turn_count, created_at, updated_at
        FROM conversations
        WHERE conversation_id = ? AND user_id = ?`,
		conversationID, userID).
		Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.TurnCount, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFoundOrForbidden
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load conversation: %w", err)
	}
	return &conv, nil
}

// Touch implements MetadataStore. MAX keeps updated_at monotonic even if the
// caller's clock reads earlier than a concurrent writer's.
func (s *SQLiteMetadataStore) Touch(ctx context.Context, conversationID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
        UPDATE conversations SET updated_at = MAX(updated_at, ?)
        WHERE conversation_id = ?`,
		at, conversationID)
	return err
}

// IncrementTurns implements MetadataStore.
func (s *SQLiteMetadataStore) IncrementTurns(ctx context.Context, conversationID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
        UPDATE conversations SET turn_count = turn_count + 1
        WHERE conversation_id = ?
        RETURNING turn_count`,
		conversationID).Scan(&count)
	if err == sql.ErrNoRows {
		return 0, ErrNotFoundOrForbidden
	}
	if err != nil {
		return 0, fmt.Errorf("failed to increment turn count: %w", err)
	}
	return count, nil
}

// ListByUser implements MetadataStore.
func (s *SQLiteMetadataStore) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT conversation_id, user_id, title, turn_count, created_at, updated_at
        FROM conversations
        WHERE user_id = ?
        ORDER BY updated_at DESC`,
		userID)
	if err != nil {
		return []models.Conversation{}, fmt.Errorf("failed to list conversations: %w", err)
	}
	defer rows.Close()

	conversations := make([]models.Conversation, 0)
	for rows.Next() {
		var conv models.Conversation
		if err := rows.Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.TurnCount, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
			return []models.Conversation{}, fmt.Errorf("failed to scan conversation: %w", err)
		}
		conversations = append(conversations, conv)
	}
	return conversations, rows.Err()
}

// Delete implements MetadataStore.
func (s *SQLiteMetadataStore) Delete(ctx context.Context, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE conversation_id = ?`, conversationID)
	return err
}
