package tutor

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/studymode/tutor/internal/memory"
	"github.com/studymode/tutor/internal/models"
	"github.com/studymode/tutor/internal/prompt"
	"github.com/studymode/tutor/internal/registry"
)

// fakeCompleter scripts the backend and records what it was asked.
type fakeCompleter struct {
	answer     string
	err        error
	lastSystem string
	lastUser   string
	calls      int
	block      bool
}

func (f *fakeCompleter) Complete(ctx context.Context, systemPrompt, userText string) (string, error) {
	f.calls++
	f.lastSystem = systemPrompt
	f.lastUser = userText
	if f.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func newTestService(t *testing.T, completer Completer) (*Service, *registry.Registry, memory.Store) {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "tutor.db"))
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	meta, err := registry.NewSQLiteMetadataStore(db)
	if err != nil {
		t.Fatalf("failed to create metadata store: %v", err)
	}
	windows := memory.NewInMemoryStore(50)
	reg := registry.New(meta, windows, zap.NewNop())
	assembler := prompt.NewAssembler(prompt.NewTemplate("Tutor for {userName}."))
	return NewService(reg, windows, assembler, completer, zap.NewNop()), reg, windows
}

func TestService_AskAppendsTurn(t *testing.T) {
	completer := &fakeCompleter{answer: "A for loop repeats a block of code."}
	svc, _, windows := newTestService(t, completer)
	ctx := context.Background()

	conv, err := svc.Start(ctx, "u1", "Loops")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	result, err := svc.Ask(ctx, "u1", conv.ID, "What is a for loop?", "Ada")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if result.Answer != completer.answer {
		t.Fatalf("expected backend answer, got %q", result.Answer)
	}
	if result.TurnCount != 1 {
		t.Fatalf("expected turn count 1, got %d", result.TurnCount)
	}
	if result.MessageCount != 2 {
		t.Fatalf("expected message count 2, got %d", result.MessageCount)
	}
	if result.ConversationID != conv.ID {
		t.Fatalf("expected conversation id %s, got %s", conv.ID, result.ConversationID)
	}

	history, err := svc.History(ctx, "u1", conv.ID)
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(history))
	}
	if history[0].Role != models.RoleUser || history[0].Content != "What is a for loop?" {
		t.Fatalf("unexpected first message: %+v", history[0])
	}
	if history[1].Role != models.RoleAssistant || history[1].Content != completer.answer {
		t.Fatalf("unexpected second message: %+v", history[1])
	}

	raw, err := windows.History(ctx, conv.ID)
	if err != nil {
		t.Fatalf("window read failed: %v", err)
	}
	if len(raw) != 2 {
		t.Fatalf("expected 2 messages in window, got %d", len(raw))
	}
}

func TestService_AskPassesAssembledPrompt(t *testing.T) {
	completer := &fakeCompleter{answer: "Have you tried running it?"}
	svc, _, _ := newTestService(t, completer)
	ctx := context.Background()

	conv, err := svc.Start(ctx, "u1", "Loops")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// First turn: empty window, so the base prompt goes out untouched.
	if _, err := svc.Ask(ctx, "u1", conv.ID, "I wrote the loop.", "Ada"); err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if completer.lastSystem != "Tutor for Ada." {
		t.Fatalf("expected bare base prompt on first turn, got %q", completer.lastSystem)
	}

	// Second turn: the assistant's last message asked a question, so the
	// prompt must carry the question-pending directive.
	if _, err := svc.Ask(ctx, "u1", conv.ID, "yes", "Ada"); err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	if !strings.Contains(completer.lastSystem, "Have you tried running it?") {
		t.Fatal("expected pending question quoted in prompt")
	}
	if !strings.Contains(completer.lastSystem, "direct answer to that question") {
		t.Fatal("expected question-pending directive in prompt")
	}
	if completer.lastUser != "yes" {
		t.Fatalf("expected raw user text passed through, got %q", completer.lastUser)
	}
}

func TestService_AskEmptyQuestionRejectedBeforeSideEffects(t *testing.T) {
	completer := &fakeCompleter{answer: "unused"}
	svc, _, windows := newTestService(t, completer)
	ctx := context.Background()

	conv, err := svc.Start(ctx, "u1", "Loops")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	if _, err := svc.Ask(ctx, "u1", conv.ID, "   ", "Ada"); !errors.Is(err, ErrEmptyQuestion) {
		t.Fatalf("expected ErrEmptyQuestion, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatal("backend must not be called for an empty question")
	}
	history, _ := windows.History(ctx, conv.ID)
	if len(history) != 0 {
		t.Fatal("window must not be mutated for a rejected question")
	}
}

func TestService_AskRejectsForeignConversation(t *testing.T) {
	completer := &fakeCompleter{answer: "unused"}
	svc, _, _ := newTestService(t, completer)
	ctx := context.Background()

	conv, err := svc.Start(ctx, "u1", "Loops")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.Ask(ctx, "u2", conv.ID, "What is a for loop?", "Mallory"); !errors.Is(err, registry.ErrNotFoundOrForbidden) {
		t.Fatalf("expected ErrNotFoundOrForbidden, got %v", err)
	}
	if completer.calls != 0 {
		t.Fatal("backend must not be called for a foreign conversation")
	}
}

func TestService_CompletionFailureLeavesNoTrace(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("backend timeout")}
	svc, reg, windows := newTestService(t, completer)
	ctx := context.Background()

	conv, err := svc.Start(ctx, "u1", "Loops")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	result, err := svc.Ask(ctx, "u1", conv.ID, "What is a for loop?", "Ada")
	if err != nil {
		t.Fatalf("expected fallback, not error: %v", err)
	}
	if result.Answer != FallbackAnswer {
		t.Fatalf("expected fallback answer, got %q", result.Answer)
	}
	if result.TurnCount != 0 {
		t.Fatalf("expected turn count unchanged, got %d", result.TurnCount)
	}

	history, _ := windows.History(ctx, conv.ID)
	if len(history) != 0 {
		t.Fatalf("expected no partial history, got %d messages", len(history))
	}
	got, err := reg.ValidateOwnership(ctx, "u1", conv.ID)
	if err != nil {
		t.Fatalf("validation failed: %v", err)
	}
	if got.TurnCount != 0 {
		t.Fatalf("expected persisted turn count 0, got %d", got.TurnCount)
	}
}

func TestService_CancelledTurnDoesNotMutateWindow(t *testing.T) {
	completer := &fakeCompleter{block: true}
	svc, _, windows := newTestService(t, completer)

	conv, err := svc.Start(context.Background(), "u1", "Loops")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := svc.Ask(ctx, "u1", conv.ID, "What is a for loop?", "Ada"); !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	}()
	cancel()
	<-done

	history, _ := windows.History(context.Background(), conv.ID)
	if len(history) != 0 {
		t.Fatalf("expected untouched window after cancellation, got %d messages", len(history))
	}
}

func TestService_HistoryRequiresOwnership(t *testing.T) {
	completer := &fakeCompleter{answer: "ok"}
	svc, _, _ := newTestService(t, completer)
	ctx := context.Background()

	conv, err := svc.Start(ctx, "u1", "Loops")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := svc.History(ctx, "u2", conv.ID); !errors.Is(err, registry.ErrNotFoundOrForbidden) {
		t.Fatalf("expected ErrNotFoundOrForbidden, got %v", err)
	}
}

func TestService_TurnCountAccumulates(t *testing.T) {
	completer := &fakeCompleter{answer: "Sure."}
	svc, _, _ := newTestService(t, completer)
	ctx := context.Background()

	conv, err := svc.Start(ctx, "u1", "Loops")
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	for want := 1; want <= 3; want++ {
		result, err := svc.Ask(ctx, "u1", conv.ID, "next question", "Ada")
		if err != nil {
			t.Fatalf("ask %d failed: %v", want, err)
		}
		if result.TurnCount != want {
			t.Fatalf("expected turn count %d, got %d", want, result.TurnCount)
		}
		if result.MessageCount != want*2 {
			t.Fatalf("expected message count %d, got %d", want*2, result.MessageCount)
		}
	}
}
