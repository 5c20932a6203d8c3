package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/studymode/tutor/internal/models"
)

var errStoreClosed = errors.New("window store is closed")

// window holds one conversation's buffered messages. nextPos keeps assigning
// increasing positions after eviction so positions are never reused.
type window struct {
	msgs    []models.Message
	nextPos int
}

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore keeps windows in process memory. State does not survive a
// restart; it is the development and test driver.
type InMemoryStore struct {
	capacity int

	mu      sync.RWMutex
	windows map[string]*window
	keys    *keyedMutex
}

// NewInMemoryStore creates an in-memory window store with the given capacity.
func NewInMemoryStore(capacity int) *InMemoryStore {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &InMemoryStore{
		capacity: capacity,
		windows:  make(map[string]*window),
		keys:     newKeyedMutex(),
	}
}

// Append implements Store.
func (s *InMemoryStore) Append(ctx context.Context, conversationID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	lock := s.keys.lock(conversationID)
	defer s.keys.unlock(conversationID, lock)

	s.mu.Lock()
	if s.windows == nil {
		s.mu.Unlock()
		return errStoreClosed
	}
	w, ok := s.windows[conversationID]
	if !ok {
		w = &window{nextPos: 1}
		s.windows[conversationID] = w
	}
	s.mu.Unlock()

	now := time.Now()
	for _, msg := range msgs {
		msg.ConversationID = conversationID
		msg.Position = w.nextPos
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		w.nextPos++
		w.msgs = append(w.msgs, msg)
	}
	if over := len(w.msgs) - s.capacity; over > 0 {
		w.msgs = w.msgs[over:]
	}
	return nil
}

// History implements Store.
func (s *InMemoryStore) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	s.mu.RLock()
	w, ok := s.windows[conversationID]
	s.mu.RUnlock()
	if !ok {
		return []models.Message{}, nil
	}

	lock := s.keys.lock(conversationID)
	defer s.keys.unlock(conversationID, lock)
	out := make([]models.Message, len(w.msgs))
	copy(out, w.msgs)
	return out, nil
}

// Clear implements Store.
func (s *InMemoryStore) Clear(ctx context.Context, conversationID string) error {
	lock := s.keys.lock(conversationID)
	defer s.keys.unlock(conversationID, lock)

	s.mu.Lock()
	delete(s.windows, conversationID)
	s.mu.Unlock()
	return nil
}

// Close implements Store. Later appends fail with an error instead of
// landing in a store that is going away.
func (s *InMemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.windows = nil
	return nil
}
