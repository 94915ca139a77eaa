package server

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local dev
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// streamDone is the control frame terminating one streamed turn.
type streamDone struct {
	Type   string `json:"type"`
	ChatID string `json:"chat_id"`
	Reply  string `json:"reply"`
}

// handleStream serves the websocket streaming variant: the client sends one
// JSON {message} frame per turn, the server answers with a text frame per
// token and a final JSON done frame carrying the post-processed reply.
func (s *Server) handleStream(service Chatter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			s.logger.Warn("websocket upgrade failed", "error", err)
			return
		}
		defer conn.Close()

		chatID := r.URL.Query().Get("chatId")

		for {
			var req sendRequest
			if err := conn.ReadJSON(&req); err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					s.logger.Debug("websocket read ended", "error", err)
				}
				return
			}
			if req.Message == "" {
				continue
			}

			joiner := &tokenJoiner{}
			result := service.ProcessStream(r.Context(), chatID, req.Message, func(chunk string) error {
				piece := joiner.Join(chunk)
				if piece == "" {
					return nil
				}
				return conn.WriteMessage(websocket.TextMessage, []byte(piece))
			})

			// Later turns stay in the conversation the first turn opened.
			chatID = result.ChatID

			if err := conn.WriteJSON(streamDone{Type: "done", ChatID: result.ChatID, Reply: result.Reply}); err != nil {
				s.logger.Debug("websocket write ended", "error", err)
				return
			}
		}
	}
}

// closingPunct are characters that attach to the preceding token without a
// space.
const closingPunct = ".,!?;:)]}»…'\""

// tokenJoiner reconstructs spacing for word-level stream tokens: tokens are
// joined with single spaces, except that closing punctuation attaches
// directly and newlines always form their own boundary.
type tokenJoiner struct {
	prev string
}

// Join returns the text to append for the next token.
func (j *tokenJoiner) Join(token string) string {
	if token == "" {
		return ""
	}

	prev := j.prev
	j.prev = token

	if prev == "" {
		return token
	}
	if strings.HasSuffix(prev, "\n") || strings.HasPrefix(token, "\n") {
		return token
	}
	if strings.HasSuffix(prev, " ") || strings.HasPrefix(token, " ") {
		return token
	}

	first, _ := utf8.DecodeRuneInString(token)
	if strings.ContainsRune(closingPunct, first) {
		return token
	}

	return " " + token
}
