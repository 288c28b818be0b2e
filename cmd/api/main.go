package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/smartcaller/qualification-engine/cmd/mainconfig"
	"github.com/smartcaller/qualification-engine/internal/api/router"
	appconfig "github.com/smartcaller/qualification-engine/internal/config"
	"github.com/smartcaller/qualification-engine/internal/conversation"
	"github.com/smartcaller/qualification-engine/internal/observability/metrics"
	"github.com/smartcaller/qualification-engine/internal/rules"
	"github.com/smartcaller/qualification-engine/pkg/logging"
)

func main() {
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting qualification engine API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"demo_mode", cfg.DemoMode,
	)

	ctx := context.Background()
	conversationMetrics := metrics.NewConversationMetrics(nil)

	// Postgres: rules repository and outcome store. Falls back to in-memory
	// when no database is configured (demo and local development).
	var (
		rulesRepo    rules.Repository
		outcomeStore *conversation.OutcomeStore
	)
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		rulesRepo = rules.NewPostgresRepository(pool)
		outcomeStore = conversation.NewOutcomeStore(pool)
	} else {
		logger.Warn("DATABASE_URL not set, using in-memory rules repository")
		rulesRepo = rules.NewInMemoryRepository()
	}

	// Redis session store.
	var historyStore *conversation.HistoryStore
	if cfg.RedisAddr != "" {
		opts := &redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		}
		if cfg.RedisTLS {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
		rdb := redis.NewClient(opts)
		defer func() { _ = rdb.Close() }()
		historyStore = conversation.NewHistoryStore(rdb, nil, cfg.SessionTTL)
	} else {
		logger.Warn("REDIS_ADDR not set, sessions will not survive restarts")
	}

	reasoner, err := buildReasoner(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build reasoner", "error", err)
		os.Exit(1)
	}

	var recorder conversation.Recorder = conversation.NopRecorder{}
	if !cfg.DemoMode && cfg.RecorderBaseURL != "" {
		recorder = conversation.NewHTTPRecorder(cfg.RecorderBaseURL, cfg.RecorderTimeout)
	}

	manager := conversation.NewManager(conversation.ManagerConfig{
		Engine: conversation.EngineConfig{
			OpeningDelay:        cfg.OpeningDelay,
			ReplyDelay:          cfg.ReplyDelay,
			MaxMeetingReprompts: cfg.MaxMeetingReprompts,
		},
		DemoMode: cfg.DemoMode,
	}, conversation.ManagerDeps{
		Rules:    rulesRepo,
		Reasoner: reasoner,
		Recorder: recorder,
		History:  historyStore,
		Outcomes: outcomeStore,
		Logger:   logger,
		Metrics:  conversationMetrics,
	})

	queue, err := buildQueue(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build queue", "error", err)
		os.Exit(1)
	}

	dispatcher := conversation.NewDispatcher(manager, queue, logger,
		conversation.WithWorkerCount(cfg.WorkerCount),
	)

	r := router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(dispatcher, manager, logger),
		RulesHandler:        rules.NewHandler(rulesRepo, logger),
		AdminAuthSecret:     cfg.AdminJWTSecret,
		MetricsHandler:      promhttp.Handler(),
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if err := dispatcher.Shutdown(shutdownCtx); err != nil {
		logger.Error("dispatcher forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}

// buildReasoner selects the qualification backend: demo script, the HTTP
// service, or Bedrock. "auto" prefers Bedrock when a model id is configured.
func buildReasoner(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.Reasoner, error) {
	if cfg.DemoMode {
		logger.Info("demo mode enabled, using scripted reasoner")
		return conversation.NewDemoReasoner(), nil
	}

	provider := cfg.ReasonerProvider
	if provider == "auto" {
		if cfg.BedrockModelID != "" {
			provider = "bedrock"
		} else {
			provider = "http"
		}
	}

	switch provider {
	case "bedrock":
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, err
		}
		logger.Info("using bedrock reasoner", "model_id", cfg.BedrockModelID)
		return conversation.NewBedrockReasoner(bedrockruntime.NewFromConfig(awsCfg), cfg.BedrockModelID), nil
	default:
		logger.Info("using http reasoner", "base_url", cfg.ReasonerBaseURL)
		return conversation.NewHTTPReasoner(cfg.ReasonerBaseURL, cfg.ReasonerAPIKey, cfg.ReasonerTimeout), nil
	}
}

// buildQueue returns the in-memory queue for single-process deployments and
// SQS otherwise.
func buildQueue(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (conversation.Queue, error) {
	if cfg.UseMemoryQueue || cfg.DemoMode || cfg.TurnQueueURL == "" {
		logger.Info("using in-memory turn queue")
		return conversation.NewMemoryQueue(256), nil
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("using SQS turn queue", "queue_url", cfg.TurnQueueURL)
	return conversation.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.TurnQueueURL), nil
}
