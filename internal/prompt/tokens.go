package prompt

import (
	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter counts prompt tokens for logging and response metadata. When
// the tiktoken encoding is unavailable it falls back to a character-weight
// estimate, since token counts never gate behavior.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

func NewTokenCounter() *TokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

func (c *TokenCounter) Count(text string) int {
	if c == nil {
		return estimateTokens(text)
	}
	if c.enc != nil {
		return len(c.enc.Encode(text, nil, nil))
	}
	return estimateTokens(text)
}

// estimateTokens weighs ASCII at ~4 chars per token and everything else at
// ~1 char per token.
func estimateTokens(text string) int {
	weight := 0
	for _, r := range text {
		if r <= 127 {
			weight++
		} else {
			weight += 4
		}
	}
	return (weight + 3) / 4
}
