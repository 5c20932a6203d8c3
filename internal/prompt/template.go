// Package prompt builds the system instruction sent with each completion
// request: a rendered base template plus, when history exists, a recap of
// recent turns and an interpretation directive.
package prompt

import (
	"fmt"
	"os"
	"strings"
)

// DefaultTemplate is used when no template file is configured.
const DefaultTemplate = `You are a patient, encouraging programming tutor working with {userName}.

Guidelines:
- Explain concepts step by step, using short examples where they help.
- Ask one guiding question at a time instead of giving the full solution away.
- Keep answers focused on the student's current question.
- Adjust your depth to the student's replies; if they are stuck, simplify.`

// Template substitutes named variables into a static template string.
// Placeholders use the form {name}; unknown placeholders are left untouched.
type Template struct {
	text string
}

func NewTemplate(text string) *Template {
	return &Template{text: text}
}

// LoadTemplate reads a template from disk. When path is empty the built-in
// default is used. A read failure is a startup error, not a per-request one.
func LoadTemplate(path string) (*Template, error) {
	if path == "" {
		return NewTemplate(DefaultTemplate), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt template: %w", err)
	}
	return NewTemplate(string(b)), nil
}

// Render substitutes each {key} placeholder with its value.
func (t *Template) Render(vars map[string]string) string {
	out := t.text
	for key, value := range vars {
		out = strings.ReplaceAll(out, "{"+key+"}", value)
	}
	return out
}
