package main

import (
	"context"
	"log"
	"net/http"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"trade-coach/internal/anomaly"
	"trade-coach/internal/bot"
	"trade-coach/internal/cache"
	"trade-coach/internal/config"
	"trade-coach/internal/db"
	"trade-coach/internal/gateway"
	"trade-coach/internal/handler"
	"trade-coach/internal/job"
	"trade-coach/internal/repository"
	"trade-coach/internal/service"
	"trade-coach/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newTradeRepoFunc       = repository.NewTradeRepository
	newEmbeddingClientFunc = func(cfg *config.Config) gateway.EmbeddingClient {
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		return gateway.NewOpenAIEmbeddingClient(cfg.OpenAIAPIKey, cfg.EmbeddingModel, cfg.EmbeddingDims)
	}
	newChatClientFunc = func(cfg *config.Config) gateway.LLMClient {
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		return gateway.NewOpenAIChatClient(cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}
	newQdrantGatewayFunc   = gateway.NewQdrantGateway
	ensureCollectionFunc   = func(g *gateway.QdrantGateway, ctx context.Context) error { return g.EnsureCollection(ctx) }
	newWorkflowServiceFunc = service.NewWorkflowService
	newCoachSchedulerFunc  = job.NewCoachScheduler
	startSchedulerFunc     = func(s *job.CoachScheduler, ctx context.Context) { go s.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.Default
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	initPostgresFunc(ctx, cfg.DatabaseURL)
	initRedisFunc(ctx, cfg.RedisURL)

	// Init tracing
	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	// Create repository and run migrations
	tradeRepo := newTradeRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		if err := tradeRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}

	// Create gateways
	embeddingGateway := gateway.NewEmbeddingGateway(tracer, newEmbeddingClientFunc(cfg), cfg.EmbeddingDims)
	adviceGateway := gateway.NewAdviceGateway(tracer, newChatClientFunc(cfg), cfg.AdviceMaxAttempts, 0)
	qdrantGateway := newQdrantGatewayFunc(tracer, gateway.QdrantConfig{
		URL:         cfg.QdrantURL,
		APIKey:      cfg.QdrantAPIKey,
		Collection:  cfg.QdrantCollection,
		VectorSize:  cfg.EmbeddingDims,
		MaxAttempts: cfg.StoreMaxAttempts,
	})
	if err := ensureCollectionFunc(qdrantGateway, ctx); err != nil {
		log.Printf("Warning: failed to ensure qdrant collection: %v", err)
	}

	var resultCache service.ResultCache
	if cache.Client != nil {
		resultCache = cache.NewCoachingCache(cache.Client)
	}

	// Create the workflow service
	workflowService := newWorkflowServiceFunc(tracer, service.WorkflowDeps{
		Source:            tradeRepo,
		Embedder:          embeddingGateway,
		Store:             qdrantGateway,
		Detector:          anomaly.NewEngine(),
		Advisor:           adviceGateway,
		Cache:             resultCache,
		RecentTradeCount:  cfg.RecentTradeCount,
		SimilarTradeLimit: cfg.SimilarTradeLimit,
	})

	// Start the scheduler (stopped by ctx cancel)
	scheduler := newCoachSchedulerFunc(tracer, workflowService, time.Duration(cfg.CoachIntervalSecs)*time.Second)
	startSchedulerFunc(scheduler, ctx)

	// Start Telegram bot
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	if alerts := startTelegramBotFunc(workflowService, cfg.RiskAlertThreshold); alerts != nil {
		workflowService.SetNotifier(alerts)
	}

	// Create handlers and routes
	h := newHandlerFunc(tracer, workflowService, tradeRepo, cfg.RecentTradeCount)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("trade-coach"))

	h.RegisterRoutes(r)

	srv := &http.Server{
		Addr:    httpAddrFromEnv(),
		Handler: r,
	}

	go func() {
		if err := startHTTPServerFunc(srv); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down server...")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}

func httpAddrFromEnv() string {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		return ":8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}
