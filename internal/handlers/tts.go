package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"bmo-gateway/internal/speech"
	"bmo-gateway/pkg/logging"
)

// TTSHandler serves POST /api/tts and POST /api/tts/preload.
type TTSHandler struct {
	Speech *speech.Service
}

func NewTTSHandler(svc *speech.Service) *TTSHandler {
	return &TTSHandler{Speech: svc}
}

type ttsRequest struct {
	Text string `json:"text"`
}

// ServeTTS synthesizes speech for the request text, serving repeated
// utterances from cache. The X-Cache header (HIT, MISS, DEDUP) lets the
// UI skip its "generating" state on an instant response.
func (h *TTSHandler) ServeTTS(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.L(ctx)

	var req ttsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid tts request", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	audio, status, err := h.Speech.Synthesize(ctx, req.Text)
	if err != nil {
		writeUpstreamError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("X-Cache", string(status))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(audio)
}

// ServePreload kicks off background cache priming for the fixed common
// phrase set and returns immediately.
func (h *TTSHandler) ServePreload(w http.ResponseWriter, r *http.Request) {
	queued := h.Speech.Preload(speech.CommonPhrases)

	logging.L(r.Context()).Info("tts preload started",
		zap.Int("queued", queued),
		zap.Int("phrases", len(speech.CommonPhrases)),
	)

	writeJSON(w, http.StatusAccepted, map[string]int{
		"queued":  queued,
		"phrases": len(speech.CommonPhrases),
	})
}
