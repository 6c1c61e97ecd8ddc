package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"bmo-gateway/internal/chat"
	"bmo-gateway/internal/upstream"
	"bmo-gateway/pkg/logging"
)

// ChatHandler serves POST /api/chat.
type ChatHandler struct {
	Chat *chat.Service
}

func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{Chat: svc}
}

// chatRequest mirrors what the UI sends: the conversation so far, an
// optional system-prompt override and optional user info.
type chatRequest struct {
	Messages []upstream.Message `json:"messages"`
	System   string             `json:"system,omitempty"`
	User     *chat.UserContext  `json:"user,omitempty"`
}

// contentBlock mirrors the upstream response schema so existing clients
// keep working unchanged.
type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatResponse struct {
	Content []contentBlock `json:"content"`
}

// ServeChat handles a chat completion request through the response cache.
func (h *ChatHandler) ServeChat(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid chat request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if len(req.Messages) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "messages is required"})
		return
	}

	text, status, err := h.Chat.Respond(ctx, req.Messages, req.System, req.User)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	w.Header().Set("X-Cache", string(status))
	writeJSON(w, http.StatusOK, chatResponse{
		Content: []contentBlock{{Type: "text", Text: text}},
	})
}
