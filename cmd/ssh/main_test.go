package main

import (
	"context"
	"os"
	"testing"
	"time"

	"stocksense/internal/advisor"
	"stocksense/internal/config"
	"stocksense/internal/service"

	"github.com/charmbracelet/ssh"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestMainBootstrap(t *testing.T) {
	restore := stubSSHDeps()
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

func TestMainRefusesWhenDisabled(t *testing.T) {
	restore := stubSSHDeps()
	defer restore()

	loadConfigFunc = func() *config.Config {
		return &config.Config{SSHEnabled: false}
	}

	done := make(chan struct{})
	go func() {
		main()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("main did not exit when SSH is disabled")
	}
}

func stubSSHDeps() func() {
	origLoadEnv := loadEnvFunc
	origLoadConfig := loadConfigFunc
	origInitPostgres := initPostgresFunc
	origInitRedis := initRedisFunc
	origInitTracer := initTracerFunc
	origNewPredictorService := newPredictorServiceFunc
	origNewOpenAIClient := newOpenAIClientFunc
	origNewWishServer := newWishServerFunc
	origSetupSignal := setupSignalNotify
	origWait := waitForSignalFunc

	loadEnvFunc = func(...string) error { return nil }
	loadConfigFunc = func() *config.Config {
		return &config.Config{
			SSHEnabled: true,
			SSHBind:    "127.0.0.1",
			SSHPort:    2222,
			SSHHostKey: ".ssh/test_key",
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
	newOpenAIClientFunc = func(string) advisor.LLMClient { return nil }
	newWishServerFunc = func(ops ...ssh.Option) (*ssh.Server, error) {
		return nil, nil
	}
	setupSignalNotify = func(c chan<- os.Signal, sig ...os.Signal) {}
	waitForSignalFunc = func(<-chan os.Signal) {}

	return func() {
		loadEnvFunc = origLoadEnv
		loadConfigFunc = origLoadConfig
		initPostgresFunc = origInitPostgres
		initRedisFunc = origInitRedis
		initTracerFunc = origInitTracer
		newPredictorServiceFunc = origNewPredictorService
		newOpenAIClientFunc = origNewOpenAIClient
		newWishServerFunc = origNewWishServer
		setupSignalNotify = origSetupSignal
		waitForSignalFunc = origWait
	}
}
