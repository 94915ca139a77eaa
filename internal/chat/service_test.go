package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josefus/minne/internal/models"
	"github.com/josefus/minne/internal/token"
)

// stubMemory is an in-memory chat.Memory with canned retrieval results.
type stubMemory struct {
	transcripts map[string][]models.Message
	recall      []models.Message
	orders      map[string]int64

	retrieveCalls  []string
	retrieveBudget int
}

func newStubMemory() *stubMemory {
	return &stubMemory{
		transcripts: map[string][]models.Message{},
		orders:      map[string]int64{},
	}
}

func (m *stubMemory) Messages(_ context.Context, id string) []models.Message {
	return m.transcripts[id]
}

func (m *stubMemory) Update(_ context.Context, id string, messages []models.Message) {
	m.transcripts[id] = messages
}

func (m *stubMemory) Retrieve(_ context.Context, id, query string, maxTokens int, _ token.Tokenizer) []models.Message {
	m.retrieveCalls = append(m.retrieveCalls, query)
	m.retrieveBudget = maxTokens
	return m.recall
}

func (m *stubMemory) NextOrder(id string) int64 {
	m.orders[id]++
	return m.orders[id]
}

type stubAssistant struct {
	reply   string
	err     error
	prompts []string
	chatIDs []string
	chunks  []string
}

func (a *stubAssistant) Model() string { return "stub-model" }

func (a *stubAssistant) Chat(_ context.Context, chatID, prompt, _ string, _ time.Time) (string, error) {
	a.chatIDs = append(a.chatIDs, chatID)
	a.prompts = append(a.prompts, prompt)
	return a.reply, a.err
}

func (a *stubAssistant) Open(_ context.Context, chatID, _ string, _ time.Time) (string, error) {
	a.chatIDs = append(a.chatIDs, chatID)
	return a.reply, a.err
}

// streamingStub adds ChatStream on top of stubAssistant.
type streamingStub struct {
	stubAssistant
}

func (a *streamingStub) ChatStream(ctx context.Context, chatID, prompt, turnID string, ts time.Time, emit func(string) error) (string, error) {
	if _, err := a.Chat(ctx, chatID, prompt, turnID, ts); err != nil {
		return "", err
	}
	for _, chunk := range a.chunks {
		if err := emit(chunk); err != nil {
			return "", err
		}
	}
	return a.reply, nil
}

func newTestService(assistant Assistant, memory Memory, budget int) *Service {
	return NewService(assistant, memory, token.Approx{}, budget, nil, slog.New(slog.DiscardHandler))
}

func TestProcessRunsFullTurn(t *testing.T) {
	memory := newStubMemory()
	memory.recall = []models.Message{
		{Role: models.RoleAI, Text: "newest reply", TS: 200, Order: 2},
		{Role: models.RoleUser, Text: "older question", TS: 100, Order: 1},
	}
	assistant := &stubAssistant{reply: "Sure, the riddle continues."}
	svc := newTestService(assistant, memory, 5000)

	result := svc.Process(context.Background(), "chat-1", "what was my last guess?")

	assert.Equal(t, "chat-1", result.ChatID)
	assert.Equal(t, "Sure, the riddle continues.", result.Reply)

	require.Len(t, assistant.prompts, 1)
	prompt := assistant.prompts[0]
	assert.Contains(t, prompt, "Context recap (most recent first)")
	assert.Contains(t, prompt, "[memory#1] AI: newest reply")
	assert.Contains(t, prompt, "[memory#2] USER: older question")
	assert.Contains(t, prompt, "End of recap.")
	assert.True(t, strings.HasSuffix(prompt, "User: what was my last guess?"))

	// Both turns were written back with monotonic orders.
	transcript := memory.transcripts["chat-1"]
	require.Len(t, transcript, 2)
	assert.Equal(t, models.RoleUser, transcript[0].Role)
	assert.Equal(t, "what was my last guess?", transcript[0].Text)
	assert.Equal(t, int64(1), transcript[0].Order)
	assert.Equal(t, models.RoleAI, transcript[1].Role)
	assert.Equal(t, int64(2), transcript[1].Order)
}

func TestProcessWithoutRecallSendsBarePrompt(t *testing.T) {
	memory := newStubMemory()
	assistant := &stubAssistant{reply: "Okay, a fresh start."}
	svc := newTestService(assistant, memory, 5000)

	result := svc.Process(context.Background(), "chat-1", "hello")

	assert.Equal(t, "Okay, a fresh start.", result.Reply)
	require.Len(t, assistant.prompts, 1)
	assert.Equal(t, "User: hello", assistant.prompts[0])
}

func TestProcessGeneratesIDWhenBlank(t *testing.T) {
	memory := newStubMemory()
	assistant := &stubAssistant{reply: "Okay."}
	svc := newTestService(assistant, memory, 5000)

	first := svc.Process(context.Background(), "", "hello")
	second := svc.Process(context.Background(), "  ", "hello again")

	assert.NotEmpty(t, first.ChatID)
	assert.NotEmpty(t, second.ChatID)
	// Two blank-id calls must never share a conversation.
	assert.NotEqual(t, first.ChatID, second.ChatID)
}

func TestProcessAssistantFailureGivesFallbackReply(t *testing.T) {
	memory := newStubMemory()
	assistant := &stubAssistant{err: fmt.Errorf("model unavailable")}
	svc := newTestService(assistant, memory, 5000)

	result := svc.Process(context.Background(), "chat-1", "hello")

	assert.Equal(t, fallbackReply, result.Reply)
	// A failed turn is not written to memory.
	assert.Empty(t, memory.transcripts["chat-1"])
}

func TestProcessBlankReplyGivesFallbackReply(t *testing.T) {
	memory := newStubMemory()
	assistant := &stubAssistant{reply: "  \n\n  "}
	svc := newTestService(assistant, memory, 5000)

	result := svc.Process(context.Background(), "chat-1", "hello")

	assert.Equal(t, fallbackReply, result.Reply)
	// An empty turn must not be written back.
	assert.Empty(t, memory.transcripts["chat-1"])
}

func TestProcessRetrimsWhenFormattingOverflows(t *testing.T) {
	memory := newStubMemory()
	// Each raw message is ~25 tokens; the recap framing adds more. With a
	// budget of 60 the formatted recap of three messages overflows and the
	// retrim pass drops the tail.
	for i := 0; i < 3; i++ {
		memory.recall = append(memory.recall, models.Message{
			Role: models.RoleUser, Text: strings.Repeat("w", 94), TS: int64(i), Order: int64(i),
		})
	}
	assistant := &stubAssistant{reply: "Okay."}
	svc := newTestService(assistant, memory, 60)

	svc.Process(context.Background(), "chat-1", "short question")

	require.Len(t, assistant.prompts, 1)
	prompt := assistant.prompts[0]
	assert.Contains(t, prompt, "[memory#1]")
	assert.NotContains(t, prompt, "[memory#3]")
	assert.LessOrEqual(t, token.Approx{}.EstimateTokens(prompt), 100)
}

func TestProcessPostProcessesReply(t *testing.T) {
	memory := newStubMemory()
	assistant := &stubAssistant{reply: "  The answer is hidden.\n\n\n\nTry again.  "}
	svc := newTestService(assistant, memory, 5000)

	result := svc.Process(context.Background(), "chat-1", "hint please")

	assert.Equal(t, "Got it. The answer is hidden.\n\nTry again.", result.Reply)
	// The post-processed form is what gets remembered.
	transcript := memory.transcripts["chat-1"]
	require.Len(t, transcript, 2)
	assert.Equal(t, result.Reply, transcript[1].Text)
}

func TestProcessStreamEmitsChunks(t *testing.T) {
	memory := newStubMemory()
	assistant := &streamingStub{}
	assistant.reply = "Okay, one two three."
	assistant.chunks = []string{"Okay,", " one", " two three."}
	svc := newTestService(assistant, memory, 5000)

	var received []string
	result := svc.ProcessStream(context.Background(), "chat-1", "count", func(chunk string) error {
		received = append(received, chunk)
		return nil
	})

	assert.Equal(t, assistant.chunks, received)
	assert.Equal(t, "Okay, one two three.", result.Reply)
	assert.Len(t, memory.transcripts["chat-1"], 2)
}

func TestProcessStreamFallsBackToSingleEmit(t *testing.T) {
	memory := newStubMemory()
	assistant := &stubAssistant{reply: "Okay, all at once."}
	svc := newTestService(assistant, memory, 5000)

	var received []string
	result := svc.ProcessStream(context.Background(), "chat-1", "go", func(chunk string) error {
		received = append(received, chunk)
		return nil
	})

	assert.Equal(t, []string{"Okay, all at once."}, received)
	assert.Equal(t, "Okay, all at once.", result.Reply)
}

func TestStartRecordsOpener(t *testing.T) {
	memory := newStubMemory()
	assistant := &stubAssistant{reply: "Okay! Guess my secret object."}
	svc := newTestService(assistant, memory, 5000)

	result := svc.Start(context.Background(), "")

	assert.NotEmpty(t, result.ChatID)
	assert.Equal(t, "Okay! Guess my secret object.", result.Reply)

	transcript := memory.transcripts[result.ChatID]
	require.Len(t, transcript, 1)
	assert.Equal(t, models.RoleAI, transcript[0].Role)
	assert.Equal(t, int64(1), transcript[0].Order)
}
