package llm

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/josefus/minne/internal/metrics"
)

// PersonaAssistant binds a persona to a model and records usage metrics.
// Token counts reported to the collector are length-based estimates; the
// providers behind langchaingo do not expose usage uniformly.
type PersonaAssistant struct {
	model     *Model
	persona   Persona
	logger    *slog.Logger
	collector *metrics.Collector
}

// NewPersonaAssistant creates an assistant for one persona.
func NewPersonaAssistant(model *Model, persona Persona, logger *slog.Logger, collector *metrics.Collector) *PersonaAssistant {
	return &PersonaAssistant{
		model:     model,
		persona:   persona,
		logger:    logger.With("persona", persona.Key),
		collector: collector,
	}
}

// Model returns the underlying LLM model name.
func (a *PersonaAssistant) Model() string {
	return a.model.Model()
}

// Persona returns the assistant's persona.
func (a *PersonaAssistant) Persona() Persona {
	return a.persona
}

func estimateTokens(text string) int64 {
	n := int64(len(text) / 4)
	if n < 1 {
		n = 1
	}
	return n
}

// Chat sends the prepared prompt through the persona's system template and
// returns the reply.
func (a *PersonaAssistant) Chat(ctx context.Context, chatID, prompt, turnID string, ts time.Time) (string, error) {
	system := a.persona.render(a.persona.System, chatID, turnID, ts)

	start := time.Now()
	reply, err := a.model.GenerateWithSystem(ctx, system, prompt)
	duration := time.Since(start)

	if err != nil {
		return "", fmt.Errorf("chat %s: %w", chatID, err)
	}

	if a.collector != nil {
		a.collector.RecordLLMUsage(metrics.OpLLMChat, duration,
			estimateTokens(system)+estimateTokens(prompt), estimateTokens(reply))
	}
	a.logger.Debug("chat completed",
		"chat_id", chatID, "prompt_len", len(prompt), "reply_len", len(reply),
		"duration_ms", duration.Milliseconds())

	return reply, nil
}

// ChatStream is Chat with incremental delivery. Chunks are forwarded to emit
// as the model produces them; the full reply is returned for post-processing
// and persistence.
func (a *PersonaAssistant) ChatStream(ctx context.Context, chatID, prompt, turnID string, ts time.Time, emit func(chunk string) error) (string, error) {
	system := a.persona.render(a.persona.System, chatID, turnID, ts)

	start := time.Now()
	reply, err := a.model.StreamWithSystem(ctx, system, prompt, emit)
	duration := time.Since(start)

	if err != nil {
		return "", fmt.Errorf("chat stream %s: %w", chatID, err)
	}

	if a.collector != nil {
		a.collector.RecordLLMUsage(metrics.OpLLMStream, duration,
			estimateTokens(system)+estimateTokens(prompt), estimateTokens(reply))
	}
	a.logger.Debug("chat stream completed",
		"chat_id", chatID, "prompt_len", len(prompt), "reply_len", len(reply),
		"duration_ms", duration.Milliseconds())

	return reply, nil
}

// Open asks the persona to produce its conversation opener.
func (a *PersonaAssistant) Open(ctx context.Context, chatID, turnID string, ts time.Time) (string, error) {
	system := a.persona.render(a.persona.System, chatID, turnID, ts)
	opening := a.persona.render(a.persona.Opening, chatID, turnID, ts)

	reply, err := a.model.GenerateWithSystem(ctx, system, opening)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", chatID, err)
	}
	return reply, nil
}
