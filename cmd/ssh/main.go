package main

import (
	"context"
	"fmt"
	"log"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"stocksense/internal/advisor"
	"stocksense/internal/cache"
	"stocksense/internal/config"
	"stocksense/internal/db"
	"stocksense/internal/ml/ensemble"
	"stocksense/internal/ml/features"
	"stocksense/internal/ml/registry"
	"stocksense/internal/ml/training"
	"stocksense/internal/repository"
	"stocksense/internal/service"
	"stocksense/internal/tui"
	"stocksense/pkg/tracing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/ssh"
	"github.com/charmbracelet/wish"
	"github.com/charmbracelet/wish/bubbletea"
	"github.com/charmbracelet/wish/logging"
	"github.com/joho/godotenv"
	gossh "golang.org/x/crypto/ssh"
)

// ctxKey is a typed context key to avoid collisions.
type ctxKey string

const sshUserKey ctxKey = "ssh_user"

var (
	loadEnvFunc      = godotenv.Load
	loadConfigFunc   = config.Load
	initPostgresFunc = db.InitPostgres
	initRedisFunc    = cache.InitRedis
	initTracerFunc   = tracing.InitTracer

	newBarRepoFunc          = repository.NewBarRepository
	newSSHUserRepoFunc      = repository.NewSSHUserRepository
	newModelRegistryFunc    = registry.NewRepository
	newTrainingServiceFunc  = training.NewService
	newPredictorFunc        = ensemble.NewPredictor
	newPredictorServiceFunc = service.NewPredictorService
	newOpenAIClientFunc     = advisor.NewOpenAIClient
	newAdvisorServiceFunc   = advisor.NewAdvisorService
	newWishServerFunc       = wish.NewServer

	setupSignalNotify = ossignal.Notify
	waitForSignalFunc = func(quit <-chan os.Signal) { <-quit }
)

func main() {
	loadEnvFunc()
	cfg := loadConfigFunc()

	if !cfg.SSHEnabled {
		log.Println("SSH_ENABLED is not set, refusing to start the dashboard server")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatalf("failed to initialize tracer: %v", err)
	}
	defer func() {
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("error shutting down tracer provider: %v", err)
		}
	}()

	barRepo := newBarRepoFunc(db.Pool, tracer)
	sshUserRepo := newSSHUserRepoFunc(db.Pool, tracer)
	modelRegistry := newModelRegistryFunc(db.Pool, tracer)

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

	var llmClient advisor.LLMClient
	if cfg.OpenAIAPIKey != "" {
		llmClient = newOpenAIClientFunc(cfg.OpenAIAPIKey)
		log.Println("SSH advisor commentary enabled")
	}
	advisorSvc := newAdvisorServiceFunc(tracer, llmClient, predictorSvc, cfg.OpenAIModel)

	addr := fmt.Sprintf("%s:%d", cfg.SSHBind, cfg.SSHPort)

	srv, err := newWishServerFunc(
		wish.WithAddress(addr),
		wish.WithHostKeyPath(cfg.SSHHostKey),
		wish.WithPublicKeyAuth(func(ctx ssh.Context, key ssh.PublicKey) bool {
			fingerprint := gossh.FingerprintSHA256(key)
			user, err := sshUserRepo.FindByFingerprint(context.Background(), fingerprint)
			if err != nil {
				log.Printf("SSH auth denied: fingerprint=%s err=%v", fingerprint, err)
				return false
			}
			if user == nil {
				// First connect with this key registers the user.
				user, err = sshUserRepo.Register(context.Background(), ctx.User(), fingerprint)
				if err != nil {
					log.Printf("SSH registration failed: fingerprint=%s err=%v", fingerprint, err)
					return false
				}
				log.Printf("SSH user registered: user=%s fingerprint=%s", user.Username, fingerprint)
			}
			ctx.SetValue(sshUserKey, user)
			_ = sshUserRepo.UpdateLastLogin(context.Background(), user.ID)
			log.Printf("SSH auth accepted: user=%s fingerprint=%s", user.Username, fingerprint)
			return true
		}),
		wish.WithMiddleware(
			bubbletea.Middleware(func(s ssh.Session) (tea.Model, []tea.ProgramOption) {
				user, _ := s.Context().Value(sshUserKey).(*repository.SSHUser)

				username := "unknown"
				if user != nil {
					username = user.Username
				}

				model := tui.NewAppModel(tui.Services{
					Predictions: predictorSvc,
					Advisor:     advisorSvc,
					Username:    username,
				})
				pty, _, _ := s.Pty()
				model.SetSize(pty.Window.Width, pty.Window.Height)

				return model, []tea.ProgramOption{tea.WithAltScreen()}
			}),
			logging.Middleware(),
		),
	)
	if err != nil {
		log.Fatalf("failed to create SSH server: %v", err)
	}

	if srv != nil {
		go func() {
			log.Printf("SSH dashboard listening on %s", addr)
			if err := srv.ListenAndServe(); err != nil {
				log.Printf("SSH server stopped: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Println("Shutting down SSH server...")

	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("SSH server shutdown error: %v", err)
		}
	}

	log.Println("SSH server exited")
}
