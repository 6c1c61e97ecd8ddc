// Package speech composes the fingerprint generator, bounded store and
// singleflight coordinator into the text-to-speech audio cache.
package speech

import (
	"context"
	"time"

	"go.uber.org/zap"

	"bmo-gateway/internal/cache"
	"bmo-gateway/internal/fingerprint"
	"bmo-gateway/internal/flight"
	"bmo-gateway/internal/metrics"
	"bmo-gateway/pkg/logging"
)

// DefaultTTL is longer than the chat cache's: audio for identical text
// never changes.
const DefaultTTL = 60 * time.Minute

// DefaultCapacity is smaller than the chat cache's because the payloads
// are binary audio, not short strings.
const DefaultCapacity = 50

// Synthesizer is the upstream TTS operation, satisfied by
// *upstream.TTSClient.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Service is the speech audio cache. One instance per process.
type Service struct {
	store       *cache.Store[[]byte]
	flights     *flight.Coordinator
	synthesizer Synthesizer
	ttl         time.Duration
	logger      *zap.Logger
}

// NewService builds the service around an already-constructed store.
func NewService(store *cache.Store[[]byte], synthesizer Synthesizer, ttl time.Duration, logger *zap.Logger) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:       store,
		flights:     flight.New(),
		synthesizer: synthesizer,
		ttl:         ttl,
		logger:      logger,
	}
}

// Synthesize returns the audio for text, serving from cache when the
// normalized text has been spoken before. Concurrent requests for the
// same utterance share one upstream call.
func (s *Service) Synthesize(ctx context.Context, text string) ([]byte, cache.Status, error) {
	logger := logging.L(ctx)
	start := time.Now()

	key := fingerprint.Speech(text)

	if audio, ok := s.store.Get(ctx, key); ok {
		metrics.CacheRequestsTotal.WithLabelValues("tts", "hit").Inc()
		logger.Info("cache_decision",
			zap.String("cache", "tts"),
			zap.String("cache_key", key),
			zap.String("cache_result", "hit"),
			zap.Int("audio_bytes", len(audio)),
			zap.Duration("total_latency", time.Since(start)),
		)
		return audio, cache.StatusHit, nil
	}

	v, leader, err := s.flights.Do("req:"+key, func() (any, error) {
		// Runs to completion even if the originating request goes away,
		// so every deduplicated waiter gets the audio.
		callCtx := context.WithoutCancel(ctx)

		audio, err := s.synthesizer.Synthesize(callCtx, text)
		if err != nil {
			metrics.UpstreamErrorsTotal.WithLabelValues("tts").Inc()
			return nil, err
		}

		s.store.Set(callCtx, key, audio, s.ttl)
		metrics.CacheEntries.WithLabelValues("tts").Set(float64(s.store.Len()))
		return audio, nil
	})

	status := cache.StatusDedup
	result := "dedup"
	if leader {
		status = cache.StatusMiss
		result = "miss"
	}
	metrics.CacheRequestsTotal.WithLabelValues("tts", result).Inc()

	if err != nil {
		logger.Warn("cache_decision",
			zap.String("cache", "tts"),
			zap.String("cache_key", key),
			zap.String("cache_result", result),
			zap.Duration("total_latency", time.Since(start)),
			zap.Error(err),
		)
		return nil, status, err
	}

	audio := v.([]byte)
	logger.Info("cache_decision",
		zap.String("cache", "tts"),
		zap.String("cache_key", key),
		zap.String("cache_result", result),
		zap.Int("audio_bytes", len(audio)),
		zap.Duration("total_latency", time.Since(start)),
	)
	return audio, status, nil
}

// Preload primes the cache with phrases in the background. Best-effort:
// the call returns immediately and failures are logged, never surfaced.
func (s *Service) Preload(phrases []string) int {
	queued := 0
	for _, phrase := range phrases {
		if _, ok := s.store.Get(context.Background(), fingerprint.Speech(phrase)); ok {
			continue
		}
		queued++
		go func(text string) {
			ctx := logging.WithLogger(context.Background(), s.logger)
			if _, _, err := s.Synthesize(ctx, text); err != nil {
				s.logger.Debug("tts preload failed",
					zap.String("text", text),
					zap.Error(err),
				)
			}
		}(phrase)
	}
	return queued
}

// Size returns current cache occupancy for the health endpoint.
func (s *Service) Size() int {
	return s.store.Len()
}

// InFlight returns the number of upstream TTS calls currently running.
func (s *Service) InFlight() int {
	return s.flights.InFlight()
}
