// Package chat composes the fingerprint generator, bounded store and
// singleflight coordinator into the conversational response cache.
package chat

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"bmo-gateway/internal/cache"
	"bmo-gateway/internal/fingerprint"
	"bmo-gateway/internal/flight"
	"bmo-gateway/internal/metrics"
	"bmo-gateway/internal/upstream"
	"bmo-gateway/pkg/logging"
)

// DefaultTTL is how long a completion stays servable from cache.
const DefaultTTL = 30 * time.Minute

// DefaultCapacity bounds the response store.
const DefaultCapacity = 100

// Completer is the upstream chat operation, satisfied by
// *upstream.ChatClient.
type Completer interface {
	Complete(ctx context.Context, messages []upstream.Message, system string) (string, error)
}

// UserContext is the opaque user information supplied by the client. It
// scopes the cache key by ID and flavors the system prompt; the summary
// text itself never participates in the key.
type UserContext struct {
	ID           string `json:"id"`
	DisplayName  string `json:"name"`
	MessageCount int    `json:"message_count"`
}

// Service is the chat response cache. One instance per process, shared
// by all request handlers.
type Service struct {
	store     *cache.Store[string]
	flights   *flight.Coordinator
	completer Completer
	ttl       time.Duration
}

// NewService builds the service around an already-constructed store.
func NewService(store *cache.Store[string], completer Completer, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		store:     store,
		flights:   flight.New(),
		completer: completer,
		ttl:       ttl,
	}
}

// Respond returns the assistant reply for history, serving from cache
// when possible. Concurrent identical requests share one upstream call;
// every caller gets the same text or the same error.
//
// system overrides the built-in persona when non-empty. The prompt
// augmentation derived from user is deliberately excluded from the cache
// key, but the key is scoped by user ID so one user's reply is never
// replayed to another.
func (s *Service) Respond(ctx context.Context, history []upstream.Message, system string, user *UserContext) (string, cache.Status, error) {
	logger := logging.L(ctx)
	start := time.Now()

	trimmed := fingerprint.Trim(toFingerprint(history))
	key := s.cacheKey(trimmed, user)

	if text, ok := s.store.Get(ctx, key); ok {
		metrics.CacheRequestsTotal.WithLabelValues("chat", "hit").Inc()
		logger.Info("cache_decision",
			zap.String("cache", "chat"),
			zap.String("cache_key", key),
			zap.String("cache_result", "hit"),
			zap.Duration("total_latency", time.Since(start)),
		)
		return text, cache.StatusHit, nil
	}

	window := history
	if len(window) > fingerprint.TrimWindow {
		window = window[len(window)-fingerprint.TrimWindow:]
	}
	prompt := s.systemPrompt(system, user)

	// The in-flight registry uses its own key namespace, derived from the
	// same trimmed window as the cache key.
	v, leader, err := s.flights.Do("req:"+key, func() (any, error) {
		// The producer outlives the originating request: once dispatched
		// it runs to completion so every waiter sees a result, even if
		// the first caller disconnects.
		callCtx := context.WithoutCancel(ctx)

		text, err := s.completer.Complete(callCtx, window, prompt)
		if err != nil {
			metrics.UpstreamErrorsTotal.WithLabelValues("chat").Inc()
			return "", err
		}

		s.store.Set(callCtx, key, text, s.ttl)
		metrics.CacheEntries.WithLabelValues("chat").Set(float64(s.store.Len()))
		return text, nil
	})

	status := cache.StatusDedup
	result := "dedup"
	if leader {
		status = cache.StatusMiss
		result = "miss"
	}
	metrics.CacheRequestsTotal.WithLabelValues("chat", result).Inc()

	if err != nil {
		logger.Warn("cache_decision",
			zap.String("cache", "chat"),
			zap.String("cache_key", key),
			zap.String("cache_result", result),
			zap.Duration("total_latency", time.Since(start)),
			zap.Error(err),
		)
		return "", status, err
	}

	logger.Info("cache_decision",
		zap.String("cache", "chat"),
		zap.String("cache_key", key),
		zap.String("cache_result", result),
		zap.Duration("total_latency", time.Since(start)),
	)
	return v.(string), status, nil
}

// Size returns current cache occupancy for the health endpoint.
func (s *Service) Size() int {
	return s.store.Len()
}

// InFlight returns the number of upstream chat calls currently running.
func (s *Service) InFlight() int {
	return s.flights.InFlight()
}

// cacheKey derives the user-scoped store key from the trimmed window.
func (s *Service) cacheKey(trimmed []fingerprint.Message, user *UserContext) string {
	scope := "anon"
	if user != nil && user.ID != "" {
		scope = user.ID
	}
	return fmt.Sprintf("chat:%s:%s", scope, fingerprint.Chat(trimmed))
}

// systemPrompt combines the persona (or the request's override) with a
// short natural-language summary of who BMO is talking to.
func (s *Service) systemPrompt(system string, user *UserContext) string {
	prompt := system
	if prompt == "" {
		prompt = Persona
	}
	if user != nil && user.DisplayName != "" {
		prompt += fmt.Sprintf(
			"\n\nYou are talking to %s. You have had %d messages in this conversation. Remember their name and reference past topics naturally.",
			user.DisplayName, user.MessageCount,
		)
	}
	return prompt
}

func toFingerprint(messages []upstream.Message) []fingerprint.Message {
	out := make([]fingerprint.Message, len(messages))
	for i, m := range messages {
		out[i] = fingerprint.Message{Role: m.Role, Content: m.Content}
	}
	return out
}
