// Package token provides token-count estimation for context budgeting.
package token

import (
	"log/slog"

	"github.com/pkoukk/tiktoken-go"
)

// Tokenizer estimates how many tokens a piece of text occupies. Estimates are
// always at least 1, even for empty text.
type Tokenizer interface {
	EstimateTokens(text string) int
}

// Approx is the model-agnostic default: roughly 4 characters per token.
type Approx struct{}

// EstimateTokens returns max(1, len(text)/4).
func (Approx) EstimateTokens(text string) int {
	n := len(text) / 4
	if n < 1 {
		return 1
	}
	return n
}

type modelTokenizer struct {
	enc      *tiktoken.Tiktoken
	fallback Approx
}

// ForModel returns a tokenizer that counts with the model's own encoding when
// tiktoken knows the model, falling back to the approximation otherwise. The
// failure is logged once here; it is never propagated.
func ForModel(model string, logger *slog.Logger) Tokenizer {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		if logger != nil {
			logger.Warn("no tiktoken encoding for model, using approximation", "model", model, "error", err)
		}
		return Approx{}
	}
	return &modelTokenizer{enc: enc}
}

func (t *modelTokenizer) EstimateTokens(text string) int {
	if t.enc == nil {
		return t.fallback.EstimateTokens(text)
	}
	n := len(t.enc.Encode(text, nil, nil))
	if n < 1 {
		return 1
	}
	return n
}
