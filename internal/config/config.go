package config

import (
	"log"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string

	OpenAIAPIKey   string
	OpenAIModel    string
	EmbeddingModel string
	EmbeddingDims  int

	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string

	RecentTradeCount  int
	SimilarTradeLimit int
	StoreMaxAttempts  int
	AdviceMaxAttempts int

	CoachIntervalSecs  int
	RiskAlertThreshold int
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisURL:         os.Getenv("REDIS_URL"),
		QdrantAPIKey:     os.Getenv("QDRANT_API_KEY"),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		log.Println("Warning: OPENAI_API_KEY not set, coaching will be disabled")
	}

	cfg.OpenAIModel = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}

	cfg.EmbeddingModel = strings.TrimSpace(os.Getenv("EMBEDDING_MODEL"))
	if cfg.EmbeddingModel == "" {
		cfg.EmbeddingModel = "text-embedding-3-small"
	}

	cfg.EmbeddingDims = 768
	if v := strings.TrimSpace(os.Getenv("EMBEDDING_DIMS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.EmbeddingDims = n
		}
	}

	cfg.QdrantURL = strings.TrimSpace(os.Getenv("QDRANT_URL"))
	if cfg.QdrantURL == "" {
		cfg.QdrantURL = "http://localhost:6333"
	}

	cfg.QdrantCollection = strings.TrimSpace(os.Getenv("QDRANT_COLLECTION"))
	if cfg.QdrantCollection == "" {
		cfg.QdrantCollection = "trades"
	}

	cfg.RecentTradeCount = 10
	if v := strings.TrimSpace(os.Getenv("RECENT_TRADE_COUNT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RecentTradeCount = n
		}
	}

	cfg.SimilarTradeLimit = 5
	if v := strings.TrimSpace(os.Getenv("SIMILAR_TRADE_LIMIT")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.SimilarTradeLimit = n
		}
	}

	cfg.StoreMaxAttempts = 3
	if v := strings.TrimSpace(os.Getenv("STORE_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StoreMaxAttempts = n
		}
	}

	cfg.AdviceMaxAttempts = 2
	if v := strings.TrimSpace(os.Getenv("ADVICE_MAX_ATTEMPTS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AdviceMaxAttempts = n
		}
	}

	cfg.CoachIntervalSecs = 0
	if v := strings.TrimSpace(os.Getenv("COACH_INTERVAL_SECS")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CoachIntervalSecs = n
		}
	}

	cfg.RiskAlertThreshold = 60
	if v := strings.TrimSpace(os.Getenv("RISK_ALERT_THRESHOLD")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
			cfg.RiskAlertThreshold = n
		}
	}

	return cfg
}
