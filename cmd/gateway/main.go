package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bmo-gateway/internal/cache"
	"bmo-gateway/internal/chat"
	"bmo-gateway/internal/handlers"
	"bmo-gateway/internal/httpserver"
	"bmo-gateway/internal/metrics"
	"bmo-gateway/internal/speech"
	"bmo-gateway/internal/upstream"
	"bmo-gateway/pkg/logging"
)

type Config struct {
	Port string

	ChatBaseURL string
	ChatAPIKey  string
	ChatModel   string
	TTSBaseURL  string
	TTSAPIKey   string
	TTSVoiceID  string

	// CachePersist selects the snapshot backend: "file", "redis" or "none".
	CachePersist string
	CacheDir     string
	RedisAddr    string

	ChatCacheTTL      time.Duration
	ChatCacheCapacity int
	TTSCacheTTL       time.Duration
	TTSCacheCapacity  int

	// AllowedOrigins extends the built-in development origins.
	AllowedOrigins []string

	PreloadOnStart bool
}

func LoadConfig() Config {
	cfg := Config{
		Port: getenv("PORT", "3001"),

		ChatBaseURL: getenv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		ChatAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		ChatModel:   getenv("CHAT_MODEL", "claude-sonnet-4-20250514"),
		TTSBaseURL:  getenv("FISH_AUDIO_BASE_URL", "https://api.fish.audio"),
		TTSAPIKey:   os.Getenv("FISH_AUDIO_API_KEY"),
		TTSVoiceID:  getenv("TTS_VOICE_ID", "323847d4c5394c678e5909c2206725f6"),

		CachePersist: getenv("CACHE_PERSIST", "file"),
		CacheDir:     getenv("CACHE_DIR", "data"),
		RedisAddr:    getenv("REDIS_ADDR", "127.0.0.1:6379"),

		ChatCacheTTL:      getenvDuration("CHAT_CACHE_TTL", chat.DefaultTTL),
		ChatCacheCapacity: getenvInt("CHAT_CACHE_CAPACITY", chat.DefaultCapacity),
		TTSCacheTTL:       getenvDuration("TTS_CACHE_TTL", speech.DefaultTTL),
		TTSCacheCapacity:  getenvInt("TTS_CACHE_CAPACITY", speech.DefaultCapacity),

		PreloadOnStart: getenv("TTS_PRELOAD", "true") == "true",
	}

	// Local dev ports, the configured production origin, and Vercel
	// preview deployments.
	cfg.AllowedOrigins = []string{
		"http://localhost:3000",
		"http://localhost:5173",
		"https://*.vercel.app",
	}
	if origin := os.Getenv("FRONTEND_ORIGIN"); origin != "" {
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
	}

	return cfg
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("gateway exited with error: %v", err)
	}
}

func run() error {
	// ----- Logger -----
	logger := logging.DefaultLogger()
	defer logger.Sync()

	// ----- Metrics -----
	metrics.Register()

	// ----- Config -----
	cfg := LoadConfig()

	logger.Info("loaded config",
		zap.String("port", cfg.Port),
		zap.String("cache_persist", cfg.CachePersist),
		zap.String("chat_base_url", cfg.ChatBaseURL),
		zap.String("tts_base_url", cfg.TTSBaseURL),
		zap.String("chat_model", cfg.ChatModel),
		zap.Bool("chat_key_loaded", cfg.ChatAPIKey != ""),
		zap.Bool("tts_key_loaded", cfg.TTSAPIKey != ""),
	)
	if cfg.ChatAPIKey == "" {
		logger.Warn("ANTHROPIC_API_KEY is not set, chat requests will fail until configured")
	}
	if cfg.TTSAPIKey == "" {
		logger.Warn("FISH_AUDIO_API_KEY is not set, tts requests will fail until configured")
	}

	// ----- Snapshot persisters -----
	chatPersister, ttsPersister, err := buildPersisters(cfg, logger)
	if err != nil {
		return err
	}

	// ----- Caches -----
	chatStore := cache.New[string](cache.Config{
		Capacity:  cfg.ChatCacheCapacity,
		Persister: chatPersister,
		Logger:    logger.Named("chat_cache"),
	})
	defer chatStore.Close()

	ttsStore := cache.New[[]byte](cache.Config{
		Capacity:  cfg.TTSCacheCapacity,
		Persister: ttsPersister,
		Logger:    logger.Named("tts_cache"),
	})
	defer ttsStore.Close()

	// ----- Upstream clients -----
	chatClient, err := upstream.NewChatClient(upstream.ChatConfig{
		BaseURL: cfg.ChatBaseURL,
		APIKey:  cfg.ChatAPIKey,
		Model:   cfg.ChatModel,
	}, logger)
	if err != nil {
		return err
	}
	defer chatClient.Close()

	ttsClient, err := upstream.NewTTSClient(upstream.TTSConfig{
		BaseURL: cfg.TTSBaseURL,
		APIKey:  cfg.TTSAPIKey,
		VoiceID: cfg.TTSVoiceID,
	}, logger)
	if err != nil {
		return err
	}
	defer ttsClient.Close()

	// ----- Services -----
	chatService := chat.NewService(chatStore, chatClient, cfg.ChatCacheTTL)
	speechService := speech.NewService(ttsStore, ttsClient, cfg.TTSCacheTTL, logger.Named("speech"))

	if cfg.PreloadOnStart && cfg.TTSAPIKey != "" {
		queued := speechService.Preload(speech.CommonPhrases)
		logger.Info("tts preload started", zap.Int("queued", queued))
	}

	// ----- Handlers -----
	chatHandler := handlers.NewChatHandler(chatService)
	ttsHandler := handlers.NewTTSHandler(speechService)
	healthHandler := handlers.NewHealthHandler(chatService, speechService)

	// ----- Router + middleware -----
	r := chi.NewRouter()
	httpserver.SetupRouter(r, logger, cfg.AllowedOrigins, chatHandler, ttsHandler, healthHandler)

	// ----- HTTP server -----
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      90 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	logger.Info("starting gateway", zap.String("addr", srv.Addr))

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}()

	// ----- Graceful shutdown -----
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
		return err
	}

	logger.Info("server shutdown complete")
	return nil
}

// buildPersisters creates the snapshot backends for both caches. "none"
// keeps both caches memory-only.
func buildPersisters(cfg Config, logger *zap.Logger) (cache.Persister, cache.Persister, error) {
	switch cfg.CachePersist {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})

		chatPersister := cache.NewRedisPersister(client, "bmo:chat")
		// Fail fast if Redis is misconfigured
		if err := chatPersister.Ping(context.Background()); err != nil {
			logger.Error("redis connection failed", zap.Error(err))
			return nil, nil, err
		}
		logger.Info("redis connection established", zap.String("addr", cfg.RedisAddr))

		return chatPersister, cache.NewRedisPersister(client, "bmo:tts"), nil

	case "none":
		return nil, nil, nil

	default:
		return cache.NewFilePersister(filepath.Join(cfg.CacheDir, "chat_cache.json")),
			cache.NewFilePersister(filepath.Join(cfg.CacheDir, "tts_cache.json")),
			nil
	}
}

// getenv returns the value of the environment variable key or def if not set.
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getenvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			return d
		}
	}
	return def
}
