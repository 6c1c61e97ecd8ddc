package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"bmo-gateway/internal/upstream"
	"bmo-gateway/pkg/logging"
)

// writeJSON sends a JSON response consistently.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeUpstreamError maps the upstream error taxonomy onto the response:
// provider rejections are relayed verbatim (status + body), transport
// failures become 502 so the UI can tell "server down" from "server said
// no", and anything else is a plain 500.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.L(r.Context())

	var statusErr *upstream.StatusError
	if errors.As(err, &statusErr) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusErr.Status)
		if len(statusErr.Body) > 0 {
			_, _ = w.Write(statusErr.Body)
		} else {
			_, _ = w.Write([]byte(`{}`))
		}
		return
	}

	if errors.Is(err, upstream.ErrMissingCredential) {
		writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error":   "api_key_not_configured",
			"message": upstream.ErrMissingCredential.Error(),
		})
		return
	}

	if errors.Is(err, upstream.ErrUnreachable) {
		writeJSON(w, http.StatusBadGateway, map[string]string{
			"error":   "upstream_unreachable",
			"message": "cannot reach the upstream provider",
		})
		return
	}

	logger.Error("request failed", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{
		"error":   "internal_server_error",
		"message": err.Error(),
	})
}
