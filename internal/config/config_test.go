package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("PREDICTION_HORIZON_DAYS", "")
	t.Setenv("HISTORY_BARS", "")
	t.Setenv("CV_FOLDS", "")
	t.Setenv("RETRAIN_HOUR_UTC", "")

	cfg := Load()
	if cfg.RedisURL != "localhost:6379" {
		t.Fatalf("expected default redis url, got %s", cfg.RedisURL)
	}
	if cfg.HorizonDays != 7 {
		t.Fatalf("expected default horizon 7, got %d", cfg.HorizonDays)
	}
	if cfg.HistoryBars != 1250 || cfg.CVFolds != 10 {
		t.Fatalf("unexpected training defaults: %+v", cfg)
	}
	if cfg.RetrainHourUTC != -1 {
		t.Fatalf("retraining should be off by default, got hour %d", cfg.RetrainHourUTC)
	}
	if cfg.HTTPPort != 8080 || cfg.RecommendLimit != 5 {
		t.Fatalf("unexpected server defaults: %+v", cfg)
	}
	if cfg.PollIntervalMin != 60 {
		t.Fatalf("expected default poll interval 60, got %d", cfg.PollIntervalMin)
	}
}

func TestLoadWithEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("REDIS_URL", "redis:6379")
	t.Setenv("PREDICTION_HORIZON_DAYS", "14")
	t.Setenv("CV_FOLDS", "5")
	t.Setenv("TRAIN_ON_START", "TRUE")
	t.Setenv("RETRAIN_HOUR_UTC", "3")
	t.Setenv("SSH_ENABLED", "true")
	t.Setenv("API_KEY", "  secret  ")
	t.Setenv("PSX_DATA_URL", "https://gateway.example")
	t.Setenv("POLL_INTERVAL_MINUTES", "15")

	cfg := Load()
	if cfg.DatabaseURL != "postgres://example" || cfg.RedisURL != "redis:6379" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	if cfg.HorizonDays != 14 || cfg.CVFolds != 5 {
		t.Fatalf("unexpected training config: %+v", cfg)
	}
	if !cfg.TrainOnStart || cfg.RetrainHourUTC != 3 || !cfg.SSHEnabled {
		t.Fatalf("flags not picked up: %+v", cfg)
	}
	if cfg.APIKey != "secret" {
		t.Fatalf("expected trimmed api key, got %q", cfg.APIKey)
	}
	if cfg.PSXDataURL != "https://gateway.example" || cfg.PollIntervalMin != 15 {
		t.Fatalf("unexpected gateway config: %+v", cfg)
	}

	t.Setenv("PREDICTION_HORIZON_DAYS", "bad")
	cfg = Load()
	if cfg.HorizonDays != 7 {
		t.Fatalf("invalid horizon should fall back to default, got %d", cfg.HorizonDays)
	}
}
