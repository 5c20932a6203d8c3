// Package registry owns conversation metadata: which user owns which
// conversation, titles, timestamps, and turn counters. Every access to a
// conversation goes through ownership validation here.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/studymode/tutor/internal/memory"
	"github.com/studymode/tutor/internal/models"
)

// ErrNotFoundOrForbidden is returned whenever a (user, conversation) pair does
// not match a stored record. Missing conversations and conversations owned by
// someone else produce the same error so existence is not leaked to non-owners.
var ErrNotFoundOrForbidden = errors.New("conversation not found")

// ErrUserIDRequired rejects requests that omit the user identifier before any
// side effect occurs.
var ErrUserIDRequired = errors.New("user id is required")

// DefaultTitle is used when a conversation is started without a title.
const DefaultTitle = "New Chat"

// MetadataStore is the durable CRUD collaborator for conversation records.
type MetadataStore interface {
	Insert(ctx context.Context, conv *models.Conversation) error
	// GetOwned returns the record only when conversationID belongs to userID;
	// ErrNotFoundOrForbidden otherwise.
	GetOwned(ctx context.Context, userID, conversationID string) (*models.Conversation, error)
	Touch(ctx context.Context, conversationID string, at time.Time) error
	IncrementTurns(ctx context.Context, conversationID string) (int, error)
	ListByUser(ctx context.Context, userID string) ([]models.Conversation, error)
	Delete(ctx context.Context, conversationID string) error
}

type Registry struct {
	meta    MetadataStore
	windows memory.Store
	logger  *zap.Logger
}

func New(meta MetadataStore, windows memory.Store, logger *zap.Logger) *Registry {
	return &Registry{meta: meta, windows: windows, logger: logger}
}

// Create registers a new conversation for the user and returns the record.
func (r *Registry) Create(ctx context.Context, userID, title string) (*models.Conversation, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if title == "" {
		title = DefaultTitle
	}
	now := time.Now()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.meta.Insert(ctx, conv); err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	r.logger.Debug("conversation created",
		zap.String("conversationId", conv.ID),
		zap.String("userId", userID))
	return conv, nil
}

// ValidateOwnership returns the conversation when userID is its recorded
// owner, and ErrNotFoundOrForbidden otherwise.
func (r *Registry) ValidateOwnership(ctx context.Context, userID, conversationID string) (*models.Conversation, error) {
	return r.meta.GetOwned(ctx, userID, conversationID)
}

// Touch advances the conversation's modification timestamp.
func (r *Registry) Touch(ctx context.Context, conversationID string) error {
	return r.meta.Touch(ctx, conversationID, time.Now())
}

// IncrementTurns bumps the assistant-turn counter and returns the new value.
func (r *Registry) IncrementTurns(ctx context.Context, conversationID string) (int, error) {
	return r.meta.IncrementTurns(ctx, conversationID)
}

// ListByUser returns the user's conversations, most recently updated first.
func (r *Registry) ListByUser(ctx context.Context, userID string) ([]models.Conversation, error) {
	return r.meta.ListByUser(ctx, userID)
}

// Delete removes a conversation the user owns: the message window first,
// then the metadata record. A failed clear leaves the metadata intact, so a
// retry revalidates ownership and runs the same sequence; a crash between
// the two steps leaves an empty window behind the surviving record, which a
// retried delete clears again harmlessly (Clear is idempotent).
func (r *Registry) Delete(ctx context.Context, userID, conversationID string) error {
	if _, err := r.meta.GetOwned(ctx, userID, conversationID); err != nil {
		return err
	}
	if err := r.windows.Clear(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to clear conversation window: %w", err)
	}
	if err := r.meta.Delete(ctx, conversationID); err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	r.logger.Info("conversation deleted",
		zap.String("conversationId", conversationID),
		zap.String("userId", userID))
	return nil
}

// DeleteAll removes every conversation the user owns. It is best effort
// across conversations: a window clear failure is logged and recorded but
// never stops the remaining deletions, and the metadata record is always
// removed once its deletion has been attempted successfully.
func (r *Registry) DeleteAll(ctx context.Context, userID string) error {
	convs, err := r.meta.ListByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to list conversations: %w", err)
	}

	var errs error
	for _, conv := range convs {
		if err := r.meta.Delete(ctx, conv.ID); err != nil {
			r.logger.Error("failed to delete conversation metadata",
				zap.String("conversationId", conv.ID),
				zap.Error(err))
			errs = multierr.Append(errs, err)
			continue
		}
		if err := r.windows.Clear(ctx, conv.ID); err != nil {
			r.logger.Error("failed to clear conversation window",
				zap.String("conversationId", conv.ID),
				zap.Error(err))
			errs = multierr.Append(errs, err)
		}
	}
	r.logger.Info("deleted all conversations for user",
		zap.String("userId", userID),
		zap.Int("count", len(convs)))
	return errs
}
