// Package tutor sequences a chat turn: ownership validation, window read,
// prompt assembly, the external completion call, and write-back.
package tutor

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/studymode/tutor/internal/memory"
	"github.com/studymode/tutor/internal/models"
	"github.com/studymode/tutor/internal/prompt"
	"github.com/studymode/tutor/internal/registry"
)

// ErrEmptyQuestion rejects a turn before any side effect occurs.
var ErrEmptyQuestion = errors.New("question must not be empty")

// FallbackAnswer is returned verbatim when the completion backend fails. The
// raw failure is logged, never shown to the student.
const FallbackAnswer = "I encountered a technical issue. Could you rephrase your question?"

const completionTimeout = 30 * time.Second

// AskResult is the outcome of one tutoring turn.
type AskResult struct {
	Answer         string `json:"answer"`
	TurnCount      int    `json:"turnCount"`
	MessageCount   int    `json:"messageCount"`
	ConversationID string `json:"conversationId"`
}

type Service struct {
	registry  *registry.Registry
	windows   memory.Store
	assembler *prompt.Assembler
	completer Completer
	tokens    *prompt.TokenCounter
	logger    *zap.Logger
}

func NewService(reg *registry.Registry, windows memory.Store, assembler *prompt.Assembler, completer Completer, logger *zap.Logger) *Service {
	return &Service{
		registry:  reg,
		windows:   windows,
		assembler: assembler,
		completer: completer,
		tokens:    prompt.NewTokenCounter(),
		logger:    logger,
	}
}

// Start creates a new conversation for the user.
func (s *Service) Start(ctx context.Context, userID, title string) (*models.Conversation, error) {
	return s.registry.Create(ctx, userID, title)
}

// Ask runs one tutoring turn. On completion failure the turn leaves no trace:
// nothing is appended, no counter moves, and the student gets FallbackAnswer.
func (s *Service) Ask(ctx context.Context, userID, conversationID, question, userName string) (*AskResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, ErrEmptyQuestion
	}

	conv, err := s.registry.ValidateOwnership(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	history, err := s.windows.History(ctx, conversationID)
	if err != nil {
		// Degrade to an empty window rather than failing the turn.
		s.logger.Warn("failed to read conversation window, continuing without history",
			zap.String("conversationId", conversationID),
			zap.Error(err))
		history = nil
	}

	systemPrompt := s.assembler.Assemble(userName, history)
	s.logger.Debug("assembled prompt",
		zap.String("conversationId", conversationID),
		zap.Int("historyLength", len(history)),
		zap.Int("promptTokens", s.tokens.Count(systemPrompt)))

	callCtx, cancel := context.WithTimeout(ctx, completionTimeout)
	defer cancel()

	answer, err := s.completer.Complete(callCtx, systemPrompt, question)
	if err != nil {
		if ctx.Err() != nil {
			// The caller abandoned the request; leave the window untouched.
			return nil, ctx.Err()
		}
		s.logger.Error("completion backend failed",
			zap.String("conversationId", conversationID),
			zap.String("userId", userID),
			zap.Error(err))
		return &AskResult{
			Answer:         FallbackAnswer,
			TurnCount:      conv.TurnCount,
			MessageCount:   len(history),
			ConversationID: conversationID,
		}, nil
	}

	// Both halves of the turn land in one append so concurrent turns never
	// interleave inside a pair.
	err = s.windows.Append(ctx, conversationID,
		models.Message{Role: models.RoleUser, Content: question},
		models.Message{Role: models.RoleAssistant, Content: answer},
	)
	if err != nil {
		return nil, err
	}

	if err := s.registry.Touch(ctx, conversationID); err != nil {
		s.logger.Error("failed to touch conversation",
			zap.String("conversationId", conversationID),
			zap.Error(err))
	}

	turns, err := s.registry.IncrementTurns(ctx, conversationID)
	if err != nil {
		s.logger.Error("failed to increment turn count",
			zap.String("conversationId", conversationID),
			zap.Error(err))
		turns = conv.TurnCount + 1
	}

	messageCount := len(history) + 2
	if updated, err := s.windows.History(ctx, conversationID); err == nil {
		messageCount = len(updated)
	}

	s.logger.Info("turn completed",
		zap.String("conversationId", conversationID),
		zap.String("userId", userID),
		zap.Int("turnCount", turns))

	return &AskResult{
		Answer:         answer,
		TurnCount:      turns,
		MessageCount:   messageCount,
		ConversationID: conversationID,
	}, nil
}

// History returns the conversation's window for its owner. A window read
// failure degrades to an empty list; absence of history is not an error.
func (s *Service) History(ctx context.Context, userID, conversationID string) ([]models.Message, error) {
	if _, err := s.registry.ValidateOwnership(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	history, err := s.windows.History(ctx, conversationID)
	if err != nil {
		s.logger.Warn("failed to read conversation window",
			zap.String("conversationId", conversationID),
			zap.Error(err))
		return []models.Message{}, nil
	}
	return history, nil
}

// List returns the user's conversations, most recently updated first.
func (s *Service) List(ctx context.Context, userID string) ([]models.Conversation, error) {
	return s.registry.ListByUser(ctx, userID)
}

// Delete removes one conversation the user owns.
func (s *Service) Delete(ctx context.Context, userID, conversationID string) error {
	return s.registry.Delete(ctx, userID, conversationID)
}

// DeleteAll removes every conversation the user owns.
func (s *Service) DeleteAll(ctx context.Context, userID string) error {
	return s.registry.DeleteAll(ctx, userID)
}
