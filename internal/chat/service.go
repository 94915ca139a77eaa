// Package chat drives one conversation turn: context retrieval, prompt
// assembly, the assistant call, reply post-processing and memory write-back.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josefus/minne/internal/metrics"
	"github.com/josefus/minne/internal/models"
	"github.com/josefus/minne/internal/token"
)

// Memory is the conversation memory surface the orchestrator needs.
type Memory interface {
	Messages(ctx context.Context, id string) []models.Message
	Update(ctx context.Context, id string, messages []models.Message)
	Retrieve(ctx context.Context, id, query string, maxTokens int, tok token.Tokenizer) []models.Message
	NextOrder(id string) int64
}

// Assistant is an opaque persona-bound LLM call.
type Assistant interface {
	Model() string
	Chat(ctx context.Context, chatID, prompt, turnID string, ts time.Time) (string, error)
	Open(ctx context.Context, chatID, turnID string, ts time.Time) (string, error)
}

// StreamingAssistant is an Assistant that can also deliver the reply
// incrementally.
type StreamingAssistant interface {
	Assistant
	ChatStream(ctx context.Context, chatID, prompt, turnID string, ts time.Time, emit func(chunk string) error) (string, error)
}

// fallbackReply is what the user sees when the assistant layer fails. The
// root cause goes to the log, never to the user.
const fallbackReply = "Sorry, I ran into a problem handling that. Please try again."

const (
	recapHeader  = "Context recap (most recent first). Use citation tags like [memory#1] when referring to these turns:\n"
	recapTrailer = "End of recap.\nCurrent conversation:\n"
)

// Result is one completed turn.
type Result struct {
	ChatID string `json:"chat_id"`
	Reply  string `json:"reply"`
}

// Service orchestrates conversation turns for one assistant persona.
type Service struct {
	assistant Assistant
	memory    Memory
	tok       token.Tokenizer
	budget    int
	collector *metrics.Collector
	logger    *slog.Logger
}

// NewService creates a chat service. budget is the context token budget per
// turn.
func NewService(assistant Assistant, memory Memory, tok token.Tokenizer, budget int, collector *metrics.Collector, logger *slog.Logger) *Service {
	return &Service{
		assistant: assistant,
		memory:    memory,
		tok:       tok,
		budget:    budget,
		collector: collector,
		logger:    logger,
	}
}

// resolveID returns the given conversation id, or a fresh random one when it
// is blank. Two blank-id calls never share a conversation.
func resolveID(chatID string) string {
	if strings.TrimSpace(chatID) == "" {
		return uuid.NewString()
	}
	return chatID
}

// Process handles one turn. It never returns an error to the caller: an
// assistant failure becomes a generic apologetic reply.
func (s *Service) Process(ctx context.Context, chatID, message string) Result {
	return s.processWith(ctx, chatID, message, nil)
}

// ProcessStream is Process with incremental delivery of the raw reply. The
// returned Result carries the post-processed form; emitted chunks are the
// model's raw output.
func (s *Service) ProcessStream(ctx context.Context, chatID, message string, emit func(chunk string) error) Result {
	return s.processWith(ctx, chatID, message, emit)
}

func (s *Service) processWith(ctx context.Context, chatID, message string, emit func(chunk string) error) Result {
	chatID = resolveID(chatID)
	turnID := uuid.NewString()
	start := time.Now()

	retrievalStart := time.Now()
	memories := s.memory.Retrieve(ctx, chatID, message, s.budget, s.tok)
	if s.collector != nil {
		s.collector.RecordTiming(metrics.OpRetrieval, time.Since(retrievalStart))
	}

	prompt, contextUsed := s.composePrompt(memories, message)

	var reply string
	var err error
	if streamer, ok := s.assistant.(StreamingAssistant); ok && emit != nil {
		reply, err = streamer.ChatStream(ctx, chatID, prompt, turnID, start, emit)
	} else {
		reply, err = s.assistant.Chat(ctx, chatID, prompt, turnID, start)
		if err == nil && emit != nil {
			err = emit(reply)
		}
	}
	if err != nil {
		s.logger.Error("assistant call failed", "chat_id", chatID, "turn_id", turnID, "error", err)
		return Result{ChatID: chatID, Reply: fallbackReply}
	}

	reply = postProcessReply(reply)
	if reply == "" {
		// A blank reply is an assistant failure in disguise; never echo it
		// or remember an empty turn.
		s.logger.Error("assistant returned empty reply", "chat_id", chatID, "turn_id", turnID)
		return Result{ChatID: chatID, Reply: fallbackReply}
	}
	s.remember(ctx, chatID, message, reply)

	s.logger.Info("turn completed",
		"chat_id", chatID,
		"model", s.assistant.Model(),
		"context_messages", contextUsed,
		"prompt_tokens", s.tok.EstimateTokens(prompt),
		"reply_len", len(reply),
		"recall_hit", contextUsed > 0,
		"follow_up_question", strings.Contains(reply, "?"),
		"duration_ms", time.Since(start).Milliseconds())

	return Result{ChatID: chatID, Reply: reply}
}

// Start opens a fresh conversation with the persona's opener and records it
// as the first assistant turn.
func (s *Service) Start(ctx context.Context, chatID string) Result {
	chatID = resolveID(chatID)
	turnID := uuid.NewString()

	opener, err := s.assistant.Open(ctx, chatID, turnID, time.Now())
	if err != nil {
		s.logger.Error("conversation opener failed", "chat_id", chatID, "error", err)
		return Result{ChatID: chatID, Reply: fallbackReply}
	}

	opener = postProcessOpener(opener)
	if opener == "" {
		s.logger.Error("assistant returned empty opener", "chat_id", chatID, "turn_id", turnID)
		return Result{ChatID: chatID, Reply: fallbackReply}
	}

	transcript := s.memory.Messages(ctx, chatID)
	msg := models.NewAIMessage(opener)
	msg.Order = s.memory.NextOrder(chatID)
	s.memory.Update(ctx, chatID, append(transcript, msg))

	return Result{ChatID: chatID, Reply: opener}
}

// composePrompt formats retrieved messages into the citation recap and
// appends the user turn. Returns the prompt and how many context messages
// survived.
func (s *Service) composePrompt(memories []models.Message, message string) (string, int) {
	if len(memories) == 0 {
		return "User: " + message, 0
	}

	recap := formatRecap(memories)
	if s.tok.EstimateTokens(recap)+s.tok.EstimateTokens(message) > s.budget {
		// Formatting overhead (headers, citation tags) can push the total
		// past the budget even though retrieval already trimmed the raw
		// segments. Retrim on the raw messages and format again.
		memories = s.retrim(memories, message)
		if len(memories) == 0 {
			return "User: " + message, 0
		}
		recap = formatRecap(memories)
	}

	return recap + "User: " + message, len(memories)
}

// retrim greedily keeps the earliest-fitting raw messages within what the
// budget leaves after the user turn.
func (s *Service) retrim(memories []models.Message, message string) []models.Message {
	budget := s.budget - s.tok.EstimateTokens(message)
	used := 0
	for i, m := range memories {
		cost := s.tok.EstimateTokens(models.FormatSegment(m))
		if used+cost > budget {
			return memories[:i]
		}
		used += cost
	}
	return memories
}

func formatRecap(memories []models.Message) string {
	var b strings.Builder
	b.WriteString(recapHeader)
	for i, m := range memories {
		fmt.Fprintf(&b, "[memory#%d] %s: %s\n", i+1, m.Role, m.Text)
	}
	b.WriteString(recapTrailer)
	return b.String()
}

// remember appends the user turn and the reply to the transcript and hands
// it to the memory layer for delta persistence.
func (s *Service) remember(ctx context.Context, chatID, userText, replyText string) {
	transcript := s.memory.Messages(ctx, chatID)

	userMsg := models.NewUserMessage(userText)
	userMsg.Order = s.memory.NextOrder(chatID)
	aiMsg := models.NewAIMessage(replyText)
	aiMsg.Order = s.memory.NextOrder(chatID)

	s.memory.Update(ctx, chatID, append(transcript, userMsg, aiMsg))
}
