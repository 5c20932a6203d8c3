package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/studymode/tutor/internal/models"
)

const windowKeyPrefix = "window:"

var _ Store = (*RedisStore)(nil)

// RedisStore is the durable window driver backed by a redis list per
// conversation. RPUSH appends at the tail and LTRIM keeps only the newest W
// entries, so the window bound is enforced server-side in the same round trip.
type RedisStore struct {
	client   *redis.Client
	capacity int
	keys     *keyedMutex
}

// NewRedisStore creates a redis-backed window store with the given capacity.
func NewRedisStore(client *redis.Client, capacity int) *RedisStore {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &RedisStore{client: client, capacity: capacity, keys: newKeyedMutex()}
}

// Append implements Store.
func (s *RedisStore) Append(ctx context.Context, conversationID string, msgs ...models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	lock := s.keys.lock(conversationID)
	defer s.keys.unlock(conversationID, lock)

	key := s.key(conversationID)

	// Positions keep increasing after eviction, so read the tail's position
	// rather than the list length.
	pos := 0
	tail, err := s.client.LIndex(ctx, key, -1).Result()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read window tail: %w", err)
	}
	if err == nil {
		var last models.Message
		if err := json.Unmarshal([]byte(tail), &last); err != nil {
			return fmt.Errorf("failed to decode window tail: %w", err)
		}
		pos = last.Position
	}

	now := time.Now()
	vals := make([]interface{}, 0, len(msgs))
	for _, msg := range msgs {
		pos++
		msg.ConversationID = conversationID
		msg.Position = pos
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		b, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message: %w", err)
		}
		vals = append(vals, b)
	}

	pipe := s.client.TxPipeline()
	pipe.RPush(ctx, key, vals...)
	pipe.LTrim(ctx, key, int64(-s.capacity), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append to window: %w", err)
	}
	return nil
}

// History implements Store.
func (s *RedisStore) History(ctx context.Context, conversationID string) ([]models.Message, error) {
	vals, err := s.client.LRange(ctx, s.key(conversationID), 0, -1).Result()
	if err != nil {
		return []models.Message{}, fmt.Errorf("failed to read window: %w", err)
	}
	messages := make([]models.Message, 0, len(vals))
	for _, v := range vals {
		var msg models.Message
		if err := json.Unmarshal([]byte(v), &msg); err != nil {
			return []models.Message{}, fmt.Errorf("failed to decode message: %w", err)
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

// Clear implements Store. DEL on a missing key is a no-op, which gives the
// required idempotency for free.
func (s *RedisStore) Clear(ctx context.Context, conversationID string) error {
	lock := s.keys.lock(conversationID)
	defer s.keys.unlock(conversationID, lock)

	if err := s.client.Del(ctx, s.key(conversationID)).Err(); err != nil {
		return fmt.Errorf("failed to clear window: %w", err)
	}
	return nil
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func (s *RedisStore) key(conversationID string) string {
	return windowKeyPrefix + conversationID
}
