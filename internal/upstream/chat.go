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

const (
	anthropicVersion = "2023-06-01"

	maxRequestSize = 2 * 1024 * 1024 // 2MB total JSON payload
	maxMessageSize = 512 * 1024      // 512KB per message content
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one conversational turn on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatConfig configures the chat-completion client.
type ChatConfig struct {
	BaseURL string
	APIKey  string

	Model       string
	MaxTokens   int
	Temperature float32

	Timeout time.Duration

	// HTTPClient overrides the default pooled client (tests).
	HTTPClient *http.Client
}

func (c *ChatConfig) withDefaults() ChatConfig {
	cfg := *c
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "claude-sonnet-4-20250514"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 300
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	return cfg
}

// ChatClient calls the Anthropic-style Messages API.
type ChatClient struct {
	cfg        ChatConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewChatClient validates cfg and builds a client. A missing API key is
// tolerated here so the process still starts; each request then fails
// with ErrMissingCredential until the key is provided.
func NewChatClient(cfg ChatConfig, logger *zap.Logger) (*ChatClient, error) {
	cfg = cfg.withDefaults()
	if cfg.BaseURL == "" {
		return nil, errors.New("chat client: BaseURL is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = newHTTPClient(cfg.Timeout)
	}

	return &ChatClient{
		cfg:        cfg,
		httpClient: httpClient,
		logger:     logger.Named("chat_upstream"),
	}, nil
}

// Provider wire types, mirroring the Messages API schema.
type providerChatRequest struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float32   `json:"temperature,omitempty"`
}

type providerContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type providerChatResponse struct {
	Content []providerContentBlock `json:"content"`
}

// Complete sends the trimmed conversation plus system prompt to the
// provider and returns the assistant's text. A non-2xx response comes
// back as *StatusError with the provider's body untouched.
func (c *ChatClient) Complete(ctx context.Context, messages []Message, system string) (string, error) {
	start := time.Now()

	if c.cfg.APIKey == "" {
		c.logger.Error("chat request rejected: no API key configured")
		return "", ErrMissingCredential
	}
	if len(messages) == 0 {
		return "", errors.New("chat client: at least one message is required")
	}
	for i, m := range messages {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			return "", fmt.Errorf("chat client: invalid role %q in messages[%d]", m.Role, i)
		}
		if len(m.Content) > maxMessageSize {
			return "", fmt.Errorf("chat client: messages[%d] content too large (%d bytes, max %d)",
				i, len(m.Content), maxMessageSize)
		}
	}

	body, err := json.Marshal(providerChatRequest{
		Model:       c.cfg.Model,
		MaxTokens:   c.cfg.MaxTokens,
		System:      system,
		Messages:    messages,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat client: marshal request: %w", err)
	}
	if len(body) > maxRequestSize {
		return "", fmt.Errorf("chat client: request too large (%d bytes, max %d)", len(body), maxRequestSize)
	}

	url := c.cfg.BaseURL + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("chat client: build HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("chat request failed",
			zap.Error(err),
			zap.Duration("duration", time.Since(start)),
		)
		return "", classifyTransport(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errBody, _ := io.ReadAll(resp.Body)
		statusErr := &StatusError{Status: resp.StatusCode, Body: errBody}

		switch {
		case statusErr.IsAuth():
			c.logger.Error("chat provider rejected API key",
				zap.Int("status", resp.StatusCode),
			)
		case statusErr.IsRateLimited():
			c.logger.Error("chat provider rate limit or quota exceeded",
				zap.Int("status", resp.StatusCode),
			)
		default:
			c.logger.Error("chat provider error",
				zap.Int("status", resp.StatusCode),
				zap.String("body", truncate(string(errBody), 200)),
			)
		}
		return "", statusErr
	}

	var pResp providerChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&pResp); err != nil {
		return "", fmt.Errorf("chat client: decode upstream response: %w", err)
	}

	text := ""
	for _, block := range pResp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		c.logger.Error("chat provider returned no text content")
		return "", errors.New("chat client: provider returned no text content")
	}

	c.logger.Info("chat request completed",
		zap.String("model", c.cfg.Model),
		zap.Int("message_count", len(messages)),
		zap.Duration("duration", time.Since(start)),
	)

	return text, nil
}

// Close releases idle connections.
func (c *ChatClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
