package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stocksense/internal/advisor"
	"stocksense/internal/bot"
	"stocksense/internal/cache"
	"stocksense/internal/config"
	"stocksense/internal/db"
	"stocksense/internal/handler"
	"stocksense/internal/job"
	"stocksense/internal/ml/ensemble"
	"stocksense/internal/ml/features"
	"stocksense/internal/ml/registry"
	"stocksense/internal/ml/training"
	"stocksense/internal/provider"
	"stocksense/internal/repository"
	"stocksense/internal/service"
	"stocksense/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "stocksense/docs"
)

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer

	newBarRepoFunc          = repository.NewBarRepository
	newModelRegistryFunc    = registry.NewRepository
	newTrainingServiceFunc  = training.NewService
	newPredictorFunc        = ensemble.NewPredictor
	newPredictorServiceFunc = service.NewPredictorService
	newOpenAIClientFunc     = advisor.NewOpenAIClient
	newAdvisorServiceFunc   = advisor.NewAdvisorService
	startTelegramBotFunc    = bot.StartTelegramBot
	newRetrainJobFunc       = job.NewRetrainJob
	startRetrainJobFunc     = func(j *job.RetrainJob, ctx context.Context) { go j.Start(ctx) }
	newPSXProviderFunc      = provider.NewPSXProvider
	newBarPollerFunc        = job.NewBarPoller
	startBarPollerFunc      = func(p *job.BarPoller, ctx context.Context) { go p.Start(ctx) }
	newHandlerFunc          = handler.New
	newRouterFunc           = gin.Default

	setupSignalNotify      = signal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           Stocksense API
// @version         1.0
// @description     Ensemble price prediction service for KSE-30 equities.

// @host      localhost:8080
// @BasePath  /
func main() {
	loadEnvFunc()

	cfg := loadConfigFunc()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Init Postgres and Redis
	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

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

	// Create repositories and run migrations
	barRepo := newBarRepoFunc(db.Pool, tracer)
	if db.Pool != nil {
		if err := barRepo.RunMigrations(ctx); err != nil {
			log.Fatalf("failed to run migrations: %v", err)
		}
	}
	modelRegistry := newModelRegistryFunc(db.Pool, tracer)

	// Build the training and inference stack
	trainer := newTrainingServiceFunc(tracer, barRepo, training.Config{
		HorizonDays: cfg.HorizonDays,
		CVFolds:     cfg.CVFolds,
		HistoryBars: cfg.HistoryBars,
	})
	predictor := newPredictorFunc(tracer, features.NewPipeline(cfg.HorizonDays))
	predictorSvc := newPredictorServiceFunc(
		tracer, barRepo, modelRegistry, trainer, predictor, cache.Client, cfg.HistoryBars,
	)
	if err := predictorSvc.LoadFromRegistry(ctx); err != nil {
		log.Printf("could not restore model bundles: %v", err)
	}

	if cfg.TrainOnStart {
		go func() {
			summary, err := predictorSvc.TrainAll(ctx)
			if err != nil {
				log.Printf("startup training error: %v", err)
				return
			}
			log.Printf("Startup training done: trained=%d failed=%d", len(summary.Trained), len(summary.Failed))
		}()
	}

	// Daily retraining (background goroutine, stopped by ctx cancel)
	if cfg.RetrainHourUTC >= 0 {
		retrainJob := newRetrainJobFunc(tracer, predictorSvc, cfg.RetrainHourUTC)
		startRetrainJobFunc(retrainJob, ctx)
	}

	// Daily bar polling from the PSX gateway
	if cfg.PSXDataURL != "" {
		psx := newPSXProviderFunc(tracer, cfg.PSXDataURL)
		barPoller := newBarPollerFunc(psx, predictorSvc, cfg.PollIntervalMin)
		startBarPollerFunc(barPoller, ctx)
	}

	// Telegram bot (skipped without TELEGRAM_BOT_TOKEN)
	os.Setenv("TELEGRAM_BOT_TOKEN", cfg.TelegramBotToken)
	startTelegramBotFunc(predictorSvc)

	// Advisor (optional LLM)
	var llmClient advisor.LLMClient
	if cfg.OpenAIAPIKey != "" {
		llmClient = newOpenAIClientFunc(cfg.OpenAIAPIKey)
		log.Println("LLM advisor enabled")
	}
	advisorSvc := newAdvisorServiceFunc(tracer, llmClient, predictorSvc, cfg.OpenAIModel)

	// Create handlers and routes
	h := newHandlerFunc(tracer, predictorSvc, cfg.RecommendLimit)
	h.SetAdvisor(advisorSvc)
	h.SetAPIKey(cfg.APIKey)

	r := newRouterFunc()
	r.Use(otelgin.Middleware("stocksense"))

	h.RegisterRoutes(r)
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.HTTPPort),
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
