package handlers

import (
	"net/http"

	"bmo-gateway/internal/chat"
	"bmo-gateway/internal/speech"
)

// HealthHandler reports cache occupancy and in-flight upstream calls.
// Operational visibility only.
type HealthHandler struct {
	Chat   *chat.Service
	Speech *speech.Service
}

func NewHealthHandler(chatSvc *chat.Service, speechSvc *speech.Service) *HealthHandler {
	return &HealthHandler{Chat: chatSvc, Speech: speechSvc}
}

type healthResponse struct {
	Status            string `json:"status"`
	Message           string `json:"message"`
	ResponseCacheSize int    `json:"response_cache_size"`
	TTSCacheSize      int    `json:"tts_cache_size"`
	ChatInFlight      int    `json:"chat_in_flight"`
	TTSInFlight       int    `json:"tts_in_flight"`
}

func (h *HealthHandler) ServeHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:            "ok",
		Message:           "BMO backend is running!",
		ResponseCacheSize: h.Chat.Size(),
		TTSCacheSize:      h.Speech.Size(),
		ChatInFlight:      h.Chat.InFlight(),
		TTSInFlight:       h.Speech.InFlight(),
	})
}
