// Package server exposes the chat personas over HTTP and websocket.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/josefus/minne/internal/chat"
	"github.com/josefus/minne/internal/metrics"
)

// maxMessageBytes bounds a single request body.
const maxMessageBytes = 64 * 1024

// Chatter is one conversation-capable persona service.
type Chatter interface {
	Process(ctx context.Context, chatID, message string) chat.Result
	ProcessStream(ctx context.Context, chatID, message string, emit func(chunk string) error) chat.Result
	Start(ctx context.Context, chatID string) chat.Result
}

// Server routes chat requests to persona services.
type Server struct {
	services  map[string]Chatter
	collector *metrics.Collector
	logger    *slog.Logger
}

// New creates a server. services maps persona keys to their chat services;
// the "chat" key serves the default persona routes.
func New(services map[string]Chatter, collector *metrics.Collector, logger *slog.Logger) *Server {
	return &Server{
		services:  services,
		collector: collector,
		logger:    logger,
	}
}

type sendRequest struct {
	Message string `json:"message"`
}

// ContentItem is one block of a structured reply.
type ContentItem struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sendResponse struct {
	ChatID  string        `json:"chat_id"`
	Content []ContentItem `json:"content"`
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	for key, service := range s.services {
		mux.HandleFunc("POST /api/"+key+"/send", s.handleSend(service))
		mux.HandleFunc("POST /api/"+key+"/start", s.handleStart(service))
		mux.HandleFunc("GET /ws/"+key, s.handleStream(service))
	}

	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	return loggingMiddleware(s.logger, mux)
}

func (s *Server) handleSend(service Chatter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		message, ok := s.readMessage(w, r)
		if !ok {
			return
		}

		result := service.Process(r.Context(), r.URL.Query().Get("chatId"), message)
		s.writeResult(w, result)
	}
}

func (s *Server) handleStart(service Chatter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result := service.Start(r.Context(), r.URL.Query().Get("chatId"))
		s.writeResult(w, result)
	}
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.collector.Snapshot()); err != nil {
		s.logger.Warn("failed to encode stats", "error", err)
	}
}

// readMessage decodes and validates the request body. On failure it writes
// the error response and returns false.
func (s *Server) readMessage(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req sendRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return "", false
	}
	if req.Message == "" {
		http.Error(w, "message must not be empty", http.StatusBadRequest)
		return "", false
	}
	return req.Message, true
}

func (s *Server) writeResult(w http.ResponseWriter, result chat.Result) {
	w.Header().Set("Content-Type", "application/json")
	response := sendResponse{
		ChatID:  result.ChatID,
		Content: []ContentItem{{Type: "text", Text: result.Reply}},
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
