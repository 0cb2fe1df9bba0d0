package main

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"stocksense/internal/bot"
	"stocksense/internal/config"
	"stocksense/internal/job"
	"stocksense/internal/service"

	"github.com/gin-gonic/gin"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	gin.SetMode(gin.TestMode)
	restore := stubServerDeps()
	defer restore()

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit")
	}
}

func stubServerDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origNewPredictorService := newPredictorServiceFunc
	origStartTelegram := startTelegramBotFunc
	origStartRetrain := startRetrainJobFunc
	origStartPoller := startBarPollerFunc
	origNewRouter := newRouterFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc
	origStartHTTP := startHTTPServerFunc
	origShutdownHTTP := shutdownHTTPServerFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			RedisURL:        "",
			DatabaseURL:     "",
			HTTPPort:        8080,
			HorizonDays:     7,
			CVFolds:         10,
			HistoryBars:     1250,
			RetrainHourUTC:  18,
			RecommendLimit:  5,
			PSXDataURL:      "http://localhost:9",
			PollIntervalMin: 60,
		}
	}
	initPostgresFunc = func(context.Context) {}
	initRedisFunc = func(context.Context) {}
	initTracerFunc = func(ctx context.Context) (*sdktrace.TracerProvider, trace.Tracer, error) {
		tp := sdktrace.NewTracerProvider()
		return tp, tp.Tracer("test"), nil
	}
	newPredictorServiceFunc = func(
		tracer trace.Tracer,
		_ service.BarRepository,
		_ service.ModelRegistry,
		_ service.Trainer,
		_ service.Predictor,
		_ service.RedisClient,
		historyBars int,
	) *service.PredictorService {
		return service.NewPredictorService(tracer, nil, nil, nil, nil, nil, historyBars)
	}
	startTelegramBotFunc = func(bot.PredictionQuerier) {}
	startRetrainJobFunc = func(*job.RetrainJob, context.Context) {}
	startBarPollerFunc = func(*job.BarPoller, context.Context) {}
	newRouterFunc = func(...gin.OptionFunc) *gin.Engine { return gin.New() }
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}
	startHTTPServerFunc = func(*http.Server) error { return http.ErrServerClosed }
	shutdownHTTPServerFunc = func(*http.Server, context.Context) error { return nil }

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		newPredictorServiceFunc = origNewPredictorService
		startTelegramBotFunc = origStartTelegram
		startRetrainJobFunc = origStartRetrain
		startBarPollerFunc = origStartPoller
		newRouterFunc = origNewRouter
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
		startHTTPServerFunc = origStartHTTP
		shutdownHTTPServerFunc = origShutdownHTTP
	}
}
