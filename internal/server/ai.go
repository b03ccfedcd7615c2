package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/assistant"
	"github.com/sells-group/geoequity/pkg/anthropic"
)

type chatRequest struct {
	Message string              `json:"message"`
	Context *assistant.Context  `json:"context,omitempty"`
	History []anthropic.Message `json:"history,omitempty"`
}

type recommendationsRequest struct {
	Stores []assistant.StoreSummary `json:"stores"`
}

func (s *Server) handleAIStatus(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"claude_available": s.deps.Assistant.Available()}
	if s.deps.Assistant.Available() {
		resp["model"] = s.deps.Assistant.Model()
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleAIChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	for _, m := range req.History {
		if m.Role != anthropic.RoleUser && m.Role != anthropic.RoleAssistant {
			writeError(w, http.StatusBadRequest, "history roles must be user or assistant")
			return
		}
	}

	reply, err := s.deps.Assistant.Chat(r.Context(), assistant.ChatRequest{
		Message: req.Message,
		Context: req.Context,
		History: req.History,
	})
	if err != nil {
		writeAssistantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (s *Server) handleAIRecommendations(w http.ResponseWriter, r *http.Request) {
	var req recommendationsRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	reply, err := s.deps.Assistant.Recommendations(r.Context(), req.Stores)
	if err != nil {
		writeAssistantError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": reply.Response,
		"provider":        reply.Provider,
	})
}

func writeAssistantError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assistant.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, "Message is required")
	case errors.Is(err, assistant.ErrNoStores):
		writeError(w, http.StatusBadRequest, "No store data provided")
	case errors.Is(err, assistant.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable, "No AI provider available. Set GEOEQUITY_ANTHROPIC_KEY or CLAUDE_API_KEY.")
	default:
		zap.L().Error("server: assistant failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "AI assistant error")
	}
}
