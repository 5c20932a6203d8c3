package prompt

import (
	"strings"

	"github.com/studymode/tutor/internal/models"
)

// Classification of the conversation's pending state, derived from the most
// recent assistant message.
type Classification int

const (
	// NoDirective: no assistant message in the window yet.
	NoDirective Classification = iota
	// QuestionPending: the assistant's last message asked a question, so the
	// incoming user text is most likely an answer to it.
	QuestionPending
	// StatementPending: the assistant's last message was a statement, so the
	// incoming user text is a reaction or follow-up.
	StatementPending
)

const (
	// recapLimit bounds how many recent messages are replayed in the prompt.
	recapLimit = 10
	// quoteLimit bounds any prior message quoted inside the directive.
	quoteLimit = 150

	// fallbackStudentName labels the student when no name is supplied.
	fallbackStudentName = "student"
)

// Phrase lists given to the model verbatim. Short user replies are ambiguous
// on their own; these anchor which ones end a topic and which continue it.
var (
	terminationPhrases  = []string{"stop", "that's all", "no more questions", "let's end here", "I'm done for today"}
	continuationPhrases = []string{"yes", "ok", "sure", "got it", "continue", "next", "done"}
)

// Assembler produces the final system prompt for a completion request. Given
// the same window and inputs the output is byte-identical: nothing here
// consults clocks, maps in iteration order, or randomness.
type Assembler struct {
	template *Template
}

func NewAssembler(template *Template) *Assembler {
	return &Assembler{template: template}
}

// Classify inspects the most recent assistant message in the window. A
// question mark anywhere in it marks the turn as question-pending. This is a
// deliberate heuristic, kept as simple as stated.
func Classify(history []models.Message) Classification {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role != models.RoleAssistant {
			continue
		}
		if strings.Contains(history[i].Content, "?") {
			return QuestionPending
		}
		return StatementPending
	}
	return NoDirective
}

// Assemble renders the base template for the student and, when the window is
// non-empty, appends a recap of recent turns and an interpretation directive.
func (a *Assembler) Assemble(userName string, history []models.Message) string {
	if userName == "" {
		userName = fallbackStudentName
	}
	base := a.template.Render(map[string]string{"userName": userName})
	if len(history) == 0 {
		return base
	}

	var b strings.Builder
	b.WriteString(base)

	b.WriteString("\n\nRecent conversation:\n")
	recap := history
	if len(recap) > recapLimit {
		recap = recap[len(recap)-recapLimit:]
	}
	for _, msg := range recap {
		b.WriteString(strings.ToUpper(msg.Role))
		b.WriteString(": ")
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	switch Classify(history) {
	case QuestionPending:
		b.WriteString("\nYour previous message asked the student a question:\n")
		b.WriteString("\"" + truncate(lastAssistant(history), quoteLimit) + "\"\n")
		b.WriteString("The student's next message is very likely a direct answer to that question. ")
		b.WriteString("Interpret short replies (affirmations, negations, completion words) in the context of that question, not as a request to stop.\n")
	case StatementPending:
		b.WriteString("\nYour previous message was a statement:\n")
		b.WriteString("\"" + truncate(lastAssistant(history), quoteLimit) + "\"\n")
		b.WriteString("The student's next message is most likely a reaction, follow-up question, or acknowledgment of that statement.\n")
	case NoDirective:
		return b.String()
	}

	b.WriteString("\nOnly treat the reply as ending the topic if it clearly matches a termination phrase such as: ")
	b.WriteString(quoteList(terminationPhrases))
	b.WriteString(".\nTreat replies such as ")
	b.WriteString(quoteList(continuationPhrases))
	b.WriteString(" as continuing the current exercise. When in doubt, continue.\n")

	return b.String()
}

func lastAssistant(history []models.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == models.RoleAssistant {
			return history[i].Content
		}
	}
	return ""
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}

func quoteList(phrases []string) string {
	quoted := make([]string, len(phrases))
	for i, p := range phrases {
		quoted[i] = "\"" + p + "\""
	}
	return strings.Join(quoted, ", ")
}
