package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josefus/minne/internal/chat"
	"github.com/josefus/minne/internal/metrics"
)

// fakeChatter echoes requests so handlers can be tested without a model.
type fakeChatter struct {
	lastChatID  string
	lastMessage string
	chunks      []string
}

func (f *fakeChatter) Process(_ context.Context, chatID, message string) chat.Result {
	f.lastChatID = chatID
	f.lastMessage = message
	if chatID == "" {
		chatID = "generated-id"
	}
	return chat.Result{ChatID: chatID, Reply: "echo: " + message}
}

func (f *fakeChatter) ProcessStream(ctx context.Context, chatID, message string, emit func(string) error) chat.Result {
	for _, chunk := range f.chunks {
		if err := emit(chunk); err != nil {
			break
		}
	}
	return f.Process(ctx, chatID, message)
}

func (f *fakeChatter) Start(_ context.Context, chatID string) chat.Result {
	if chatID == "" {
		chatID = "generated-id"
	}
	return chat.Result{ChatID: chatID, Reply: "welcome"}
}

func newTestServer(t *testing.T, services map[string]Chatter) *httptest.Server {
	t.Helper()
	srv := New(services, metrics.NewCollector(), slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func TestSendEndpoint(t *testing.T) {
	persona := &fakeChatter{}
	ts := newTestServer(t, map[string]Chatter{"chat": persona})

	resp, err := http.Post(ts.URL+"/api/chat/send?chatId=abc", "application/json",
		strings.NewReader(`{"message":"hello"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body sendResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "abc", body.ChatID)
	require.Len(t, body.Content, 1)
	assert.Equal(t, "text", body.Content[0].Type)
	assert.Equal(t, "echo: hello", body.Content[0].Text)

	assert.Equal(t, "abc", persona.lastChatID)
	assert.Equal(t, "hello", persona.lastMessage)
}

func TestSendRejectsBadRequests(t *testing.T) {
	ts := newTestServer(t, map[string]Chatter{"chat": &fakeChatter{}})

	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{not json`},
		{"missing message", `{}`},
		{"empty message", `{"message":""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(ts.URL+"/api/chat/send", "application/json", strings.NewReader(tt.body))
			require.NoError(t, err)
			resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestEachPersonaGetsItsOwnRoutes(t *testing.T) {
	advisor := &fakeChatter{}
	coach := &fakeChatter{}
	ts := newTestServer(t, map[string]Chatter{"advisor": advisor, "coach": coach})

	resp, err := http.Post(ts.URL+"/api/advisor/send", "application/json",
		strings.NewReader(`{"message":"which database?"}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "which database?", advisor.lastMessage)
	assert.Empty(t, coach.lastMessage)

	// Unregistered personas are not routed.
	resp, err = http.Post(ts.URL+"/api/chat/send", "application/json",
		strings.NewReader(`{"message":"hi"}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStartEndpoint(t *testing.T) {
	ts := newTestServer(t, map[string]Chatter{"chat": &fakeChatter{}})

	resp, err := http.Post(ts.URL+"/api/chat/start", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body sendResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "generated-id", body.ChatID)
	assert.Equal(t, "welcome", body.Content[0].Text)
}

func TestStatsEndpoint(t *testing.T) {
	ts := newTestServer(t, map[string]Chatter{})

	resp, err := http.Get(ts.URL + "/api/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)

	var snap metrics.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.GreaterOrEqual(t, snap.UptimeSeconds, 0.0)
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, map[string]Chatter{})

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
