// Package memory implements the per-conversation message window: a bounded,
// ordered buffer of chat turns with FIFO eviction and interchangeable
// persistence drivers.
package memory

import (
	"context"

	"github.com/studymode/tutor/internal/models"
)

// DefaultWindowSize is the message capacity used when none is configured.
const DefaultWindowSize = 50

// Store is the message window contract. All drivers enforce the same window
// bound: a conversation never holds more than the configured capacity, and
// when an append would exceed it the oldest messages are evicted first.
type Store interface {
	// Append inserts messages at the tail of the conversation's window,
	// evicting from the head as needed. Passing a full turn (user message
	// plus assistant message) in one call keeps the pair contiguous under
	// concurrent writers. Appends for the same conversation are serialized;
	// appends for different conversations do not block each other.
	Append(ctx context.Context, conversationID string, msgs ...models.Message) error

	// History returns a snapshot of the window in insertion order. An unknown
	// conversation yields an empty slice, not an error: absent history is a
	// valid state at this layer.
	History(ctx context.Context, conversationID string) ([]models.Message, error)

	// Clear removes all messages for the conversation. Clearing an empty or
	// unknown conversation succeeds silently.
	Clear(ctx context.Context, conversationID string) error

	// Close releases any resources held by the driver.
	Close() error
}
