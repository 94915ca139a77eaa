package token

import (
	"strings"
	"testing"
)

func TestApproxEstimateTokens(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int
	}{
		{"empty still counts one", "", 1},
		{"short still counts one", "hi", 1},
		{"four chars per token", "abcdefgh", 2},
		{"hundred chars", strings.Repeat("x", 100), 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := (Approx{}).EstimateTokens(tt.in); got != tt.want {
				t.Errorf("EstimateTokens(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestForModelUnknownFallsBack(t *testing.T) {
	tok := ForModel("definitely-not-a-real-model", nil)
	if _, ok := tok.(Approx); !ok {
		t.Fatalf("expected Approx fallback, got %T", tok)
	}
	if got := tok.EstimateTokens(""); got != 1 {
		t.Errorf("fallback EstimateTokens(\"\") = %d, want 1", got)
	}
}

func TestForModelNeverReturnsZero(t *testing.T) {
	// Works with or without a real encoding for the model.
	tok := ForModel("gpt-4o-mini", nil)
	if got := tok.EstimateTokens(""); got < 1 {
		t.Errorf("EstimateTokens(\"\") = %d, want >= 1", got)
	}
}
