package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// TTSConfig configures the text-to-speech client.
type TTSConfig struct {
	BaseURL string
	APIKey  string

	// VoiceID selects the reference voice on the provider side.
	VoiceID string

	Timeout time.Duration

	HTTPClient *http.Client
}

func (c *TTSConfig) withDefaults() TTSConfig {
	cfg := *c
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

// TTSClient calls the fish.audio-style TTS API and returns raw MP3 bytes.
type TTSClient struct {
	cfg        TTSConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewTTSClient validates cfg and builds a client.
func NewTTSClient(cfg TTSConfig, logger *zap.Logger) (*TTSClient, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, errors.New("tts client: BaseURL is required")
	}
	if cfg.VoiceID == "" {
		return nil, errors.New("tts client: VoiceID is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.Timeout)
	}

	return &TTSClient{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("tts_upstream"),
	}, nil
}

type providerTTSRequest struct {
	ReferenceID string `json:"reference_id"`
	Text        string `json:"text"`
	Format      string `json:"format"`
	MP3Bitrate  int    `json:"mp3_bitrate"`
	Latency     string `json:"latency"`
}

// Synthesize converts text to speech audio. Success returns the raw
// audio bytes (audio/mpeg); a non-2xx response is a *StatusError.
func (c *TTSClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	start := time.Now()

	if c.cfg.APIKey == "" {
		c.logger.Error("tts request rejected: no API key configured")
		return nil, ErrMissingCredential
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("tts client: text is required")
	}

	body, err := json.Marshal(providerTTSRequest{
		ReferenceID: c.cfg.VoiceID,
		Text:        text,
		Format:      "mp3",
		MP3Bitrate:  128,
		Latency:     "normal",
	})
	if err != nil {
		return nil, fmt.Errorf("tts client: marshal request: %w", err)
	}

	url := c.cfg.BaseURL + "/v1/tts"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("tts client: build HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("tts request failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		statusErr := &StatusError{Status: resp.StatusCode, Body: errBody}

		switch {
		case statusErr.IsAuth():
			c.logger.Error("tts provider rejected API key",
				zap.Int("status", resp.StatusCode),
			)
		case statusErr.IsRateLimited():
			c.logger.Error("tts provider rate limit or out of credits",
				zap.Int("status", resp.StatusCode),
			)
		default:
			c.logger.Error("tts provider error",
				zap.Int("status", resp.StatusCode),
				zap.String("body", truncate(string(errBody), 200)),
			)
		}
		return nil, statusErr
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("tts client: read audio body: %w", err)
	}

	c.logger.Info("tts request completed",
		zap.Int("audio_bytes", len(audio)),
		zap.Duration("duration", time.Since(start)),
	)

	return audio, nil
}

// Close releases idle connections.
func (c *TTSClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
