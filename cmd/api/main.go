package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"clone-llm/internal/buffer"
	"clone-llm/internal/cache"
	"clone-llm/internal/classify"
	"clone-llm/internal/config"
	"clone-llm/internal/db"
	"clone-llm/internal/email"
	"clone-llm/internal/embedding"
	apihttp "clone-llm/internal/http"
	"clone-llm/internal/lease"
	"clone-llm/internal/llm"
	"clone-llm/internal/memory"
	"clone-llm/internal/orchestrator"
	"clone-llm/internal/preferences"
	"clone-llm/internal/prompt"
	"clone-llm/internal/repository"
	"clone-llm/internal/router"
	"clone-llm/internal/service"
	"clone-llm/internal/worker"
)

var errPrimaryLLMNotConfigured = fmt.Errorf("primary llm base url not configured")

func main() {
	ctx := context.Background()

	if err := godotenv.Load(); err != nil {
		log.Printf("warning: loading .env: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		logger.Fatal("db connect", zap.Error(err))
	}
	defer pool.Close()

	userRepo := repository.NewPgUserRepository(pool)
	personaRepo := repository.NewPgPersonaRepository(pool)
	conversationRepo := repository.NewPgConversationRepository(pool)
	messageRepo := repository.NewPgMessageRepository(pool)
	sessionStateRepo := repository.NewPgSessionStateRepository(pool)
	memoryRepo := repository.NewPgMemoryRepository(pool)
	auditRepo := repository.NewPgAuditRepository(pool)

	var (
		redisClient  *redis.Client
		personaCache cache.Cache = cache.NewMemoryCache()
		rateLimiter  cache.RateLimiter
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := redisClient.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Warn("redis ping failed, falling back to in-process cache and rate limiter", zap.Error(err))
		} else {
			personaCache = cache.NewRedisCache(redisClient, "persona:")
			rateLimiter = cache.NewRedisRateLimiter(redisClient, time.Minute, cfg.RateLimitPerMinute)
		}
	}
	if rateLimiter == nil {
		rateLimiter = cache.NewMemoryRateLimiter(time.Minute, cfg.RateLimitPerMinute)
	}

	embedder := embedding.Deterministic{}

	primary := llm.NewHTTPProvider(cfg.PrimaryLLMBaseURL, cfg.PrimaryLLMAPIKey, cfg.ModelTotalTimeout, cfg.ModelConnectTimeout)
	secondary := llm.NewHTTPProvider(cfg.SecondaryLLMBaseURL, cfg.SecondaryLLMAPIKey, cfg.ModelTotalTimeout, cfg.ModelConnectTimeout)
	defer primary.Close()
	defer secondary.Close()

	buf := buffer.New(messageRepo, cfg.ShortTermBufferCap)
	retriever := memory.NewRetriever(memoryRepo, embedder, memory.Weights{
		Similarity: cfg.RetrievalSimilarityWeight,
		Importance: cfg.RetrievalImportanceWeight,
		Floor:      cfg.RetrievalSimilarityFloor,
	})
	extractor := memory.NewExtractor(memoryRepo, embedder, secondary, cfg.SecondaryLLMModel, cfg.MemoryDedupThreshold)

	notifier := email.NewDisabledNotifier("smtp not configured")
	if cfg.SMTPHost != "" {
		smtpNotifier, err := email.NewSMTPNotifier(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass,
			cfg.SMTPFrom, cfg.SMTPFromName, cfg.SMTPTo, cfg.SMTPUseTLS,
		)
		if err != nil {
			logger.Warn("smtp notifier init failed, audit alerts disabled", zap.Error(err))
		} else {
			notifier = smtpNotifier
		}
	}

	verifier := service.NewJWTVerifier(cfg.JWTSecret, cfg.JWTIssuer)

	pool2 := worker.NewPool(cfg.WorkerPoolSize, cfg.WorkerQueueWatermark, logger)
	leases := lease.NewManager()

	orch := orchestrator.New(orchestrator.Dependencies{
		Logger:        logger,
		Users:         userRepo,
		Personas:      personaRepo,
		Conversations: conversationRepo,
		Messages:      messageRepo,
		SessionStates: sessionStateRepo,
		Audit:         auditRepo,
		Notifier:      notifier,
		PersonaCache:  personaCache,
		Classifier:    classify.Classifier{},
		Router:        router.DefaultRouter,
		Buffer:        buf,
		Retriever:     retriever,
		Extractor:     extractor,
		Prefs:         preferences.Extractor{},
		Composer:      prompt.Composer{},
		Primary:       primary,
		Secondary:     secondary,
		Leases:        leases,
		Pool:          pool2,

		DefaultPersonaName: cfg.DefaultPersonaName,
		RetrievalK:         cfg.RetrievalTopK,
		Model:              cfg.PrimaryLLMModel,
		Temperature:        cfg.ModelTemperature,
	})

	srv := apihttp.NewServer(
		logger, orch,
		userRepo, personaRepo, conversationRepo, sessionStateRepo, memoryRepo,
		classify.Classifier{}, router.DefaultRouter, rateLimiter,
	).WithHealthChecks(
		apihttp.HealthCheck{Name: "database", Probe: func(c context.Context) error { return db.Ping(c, pool) }},
		apihttp.HealthCheck{Name: "llm", Probe: func(_ context.Context) error {
			if cfg.PrimaryLLMBaseURL == "" {
				return errPrimaryLLMNotConfigured
			}
			return nil
		}},
	)

	engine := apihttp.NewRouter(logger, srv, verifier, cfg.AllowXUserIDHeader)

	httpServer := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("starting server", zap.String("port", cfg.HTTPPort))

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}
}
