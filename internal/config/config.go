package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	DatabaseURL string
	RedisURL    string
	HTTPPort    int
	APIKey      string

	HorizonDays     int
	HistoryBars     int
	CVFolds         int
	TrainOnStart    bool
	RetrainHourUTC  int
	RecommendLimit  int

	OpenAIAPIKey     string
	OpenAIModel      string
	TelegramBotToken string

	PSXDataURL      string
	PollIntervalMin int

	SSHEnabled  bool
	SSHBind     string
	SSHPort     int
	SSHHostKey  string
}

func Load() *Config {
	cfg := &Config{
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		RedisURL:     os.Getenv("REDIS_URL"),
		OpenAIAPIKey: os.Getenv("OPENAI_API_KEY"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.HTTPPort = 8080
	if v := strings.TrimSpace(os.Getenv("HTTP_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HTTPPort = n
		}
	}

	cfg.APIKey = strings.TrimSpace(os.Getenv("API_KEY"))
	if cfg.APIKey == "" {
		log.Println("Warning: API_KEY not set, training endpoints are unauthenticated")
	}

	cfg.HorizonDays = 7
	if v := strings.TrimSpace(os.Getenv("PREDICTION_HORIZON_DAYS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HorizonDays = n
		}
	}

	cfg.HistoryBars = 1250
	if v := strings.TrimSpace(os.Getenv("HISTORY_BARS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.HistoryBars = n
		}
	}

	cfg.CVFolds = 10
	if v := strings.TrimSpace(os.Getenv("CV_FOLDS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 1 {
			cfg.CVFolds = n
		}
	}

	cfg.TrainOnStart = strings.EqualFold(strings.TrimSpace(os.Getenv("TRAIN_ON_START")), "true")

	cfg.RetrainHourUTC = -1
	if v := strings.TrimSpace(os.Getenv("RETRAIN_HOUR_UTC")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 23 {
			cfg.RetrainHourUTC = n
		}
	}

	cfg.RecommendLimit = 5
	if v := strings.TrimSpace(os.Getenv("RECOMMEND_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RecommendLimit = n
		}
	}

	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, advisor commentary will use the heuristic fallback")
	}
	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.TelegramBotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))

	cfg.PSXDataURL = strings.TrimSpace(os.Getenv("PSX_DATA_URL"))
	if cfg.PSXDataURL == "" {
		log.Println("Warning: PSX_DATA_URL not set, bar polling disabled")
	}

	cfg.PollIntervalMin = 60
	if v := strings.TrimSpace(os.Getenv("POLL_INTERVAL_MINUTES")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollIntervalMin = n
		}
	}

	cfg.SSHEnabled = strings.EqualFold(strings.TrimSpace(os.Getenv("SSH_ENABLED")), "true")

	cfg.SSHBind = strings.TrimSpace(os.Getenv("SSH_BIND"))
	if cfg.SSHBind == "" {
		cfg.SSHBind = "0.0.0.0"
	}

	cfg.SSHPort = 23234
	if v := strings.TrimSpace(os.Getenv("SSH_PORT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SSHPort = n
		}
	}

	cfg.SSHHostKey = strings.TrimSpace(os.Getenv("SSH_HOST_KEY_PATH"))
	if cfg.SSHHostKey == "" {
		cfg.SSHHostKey = ".ssh/stocksense_ed25519"
	}

	return cfg
}
