package server

import (
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josefus/minne/internal/metrics"
)

func TestTokenJoiner(t *testing.T) {
	tests := []struct {
		name   string
		tokens []string
		want   string
	}{
		{
			name:   "words joined with spaces",
			tokens: []string{"the", "secret", "object"},
			want:   "the secret object",
		},
		{
			name:   "no space before closing punctuation",
			tokens: []string{"correct", "!", "well", "done", "."},
			want:   "correct! well done.",
		},
		{
			name:   "newline is its own boundary",
			tokens: []string{"first", "\n", "second"},
			want:   "first\nsecond",
		},
		{
			name:   "pre-spaced chunks pass through",
			tokens: []string{"Hel", "lo", " there"},
			want:   "Hel lo there",
		},
		{
			name:   "empty tokens are skipped",
			tokens: []string{"a", "", "b"},
			want:   "a b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			j := &tokenJoiner{}
			var b strings.Builder
			for _, token := range tt.tokens {
				b.WriteString(j.Join(token))
			}
			assert.Equal(t, tt.want, b.String())
		})
	}
}

func TestStreamEndpoint(t *testing.T) {
	persona := &fakeChatter{chunks: []string{"echo", ":", "hello", "!"}}
	srv := New(map[string]Chatter{"chat": persona}, metrics.NewCollector(), slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws/chat?chatId=abc"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"message": "hello"}))

	// Token frames arrive with reconstructed spacing, then the done frame.
	var got strings.Builder
	for {
		_, frame, err := conn.ReadMessage()
		require.NoError(t, err)

		var done streamDone
		if json.Unmarshal(frame, &done) == nil && done.Type == "done" {
			assert.Equal(t, "abc", done.ChatID)
			assert.Equal(t, "echo: hello", done.Reply)
			break
		}
		got.Write(frame)
	}
	assert.Equal(t, "echo: hello!", got.String())

	assert.Equal(t, "abc", persona.lastChatID)
	assert.Equal(t, "hello", persona.lastMessage)
}
