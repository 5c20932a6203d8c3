package memory

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/studymode/tutor/internal/models"
)

const messagesSchema = `
CREATE TABLE IF NOT EXISTS messages (
    conversation_id TEXT NOT NULL,
    position INTEGER NOT NULL,
    role TEXT NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (conversation_id, position)
);

CREATE INDEX IF NOT EXISTS idx_messages_conversation
    ON messages (conversation_id, position);`

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore is the durable window driver backed by sqlite. Windows survive
// a restart; the bound and ordering guarantees match the in-memory driver.
type SQLiteStore struct {
	db       *sql.DB
	capacity int
	keys     *keyedMutex
}

// NewSQLiteStore creates a sqlite-backed window store on an existing database
// handle, initializing the messages schema.
func NewSQLiteStore(db *sql.DB, capacity int) (*SQLiteStore, error) {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	if _, err := db.Exec(messagesSchema); err != nil {
		return nil, fmt.Errorf("failed to initialize messages schema: %w", err)
	}
	return &SQLiteStore{db: db, capacity: capacity, keys: newKeyedMutex()}, nil
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, conversationID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	lock := s.keys.lock(conversationID)
	defer s.keys.unlock(conversationID, lock)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	var pos int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), 0) FROM messages WHERE conversation_id = ?`,
		conversationID).Scan(&pos); err != nil {
		return fmt.Errorf("failed to read window position: %w", err)
	}

	now := time.Now()
	for _, msg := range msgs {
		pos++
		created := msg.CreatedAt
		if created.IsZero() {
			created = now
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, position, role, content, created_at) VALUES (?, ?, ?, ?, ?)`,
			conversationID, pos, msg.Role, msg.Content, created); err != nil {
			return fmt.Errorf("failed to append message: %w", err)
		}
	}

	// Evict everything older than the last W positions.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM messages WHERE conversation_id = ? AND position <= ? - ?`,
		conversationID, pos, s.capacity); err != nil {
		return fmt.Errorf("failed to evict window overflow: %w", err)
	}

	return tx.Commit()
}

// History implements Store.
func (s *SQLiteStore) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT conversation_id, position, role, content, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY position ASC`,
		conversationID)
	if err != nil {
		return []models.Message{}, fmt.Errorf("failed to read window: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var msg models.Message
		if err := rows.Scan(&msg.ConversationID, &msg.Position, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return []models.Message{}, fmt.Errorf("failed to scan message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// Clear implements Store.
func (s *SQLiteStore) Clear(ctx context.Context, conversationID string) error {
	lock := s.keys.lock(conversationID)
	defer s.keys.unlock(conversationID, lock)

	if _, err := s.db.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to clear window: %w", err)
	}
	return nil
}

// Close implements Store. The database handle is shared with the metadata
// store, so closing it is left to the owner.
func (s *SQLiteStore) Close() error {
	return nil
}
