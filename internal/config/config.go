package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config хранит все настройки шлюза, читается один раз при старте
type Config struct {
	Port           string
	DatabaseURL    string
	RedisURL       string
	EthRPCURL      string
	AllowedOrigins []string
	LogLevel       string

	// Размер кольцевого буфера истории на комнату
	HistoryBufferSize int
	// Лимит сообщений при запросе истории из БД
	HistoryFetchLimit int

	AuthorizeTimeout time.Duration
	StoreTimeout     time.Duration
}

func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		if err := godotenv.Load(); err != nil {
			log.Println(".env not found, using environment variables")
		}
	}

	cfg := &Config{
		Port:              getenv("PORT", "5050"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          getenv("REDIS_URL", "redis://localhost:6379/0"),
		EthRPCURL:         os.Getenv("ETH_RPC_URL"),
		LogLevel:          getenv("LOG_LEVEL", "info"),
		HistoryBufferSize: getenvInt("HISTORY_BUFFER_SIZE", 100),
		HistoryFetchLimit: getenvInt("HISTORY_FETCH_LIMIT", 20),
		AuthorizeTimeout:  getenvDuration("AUTHORIZE_TIMEOUT", 10*time.Second),
		StoreTimeout:      getenvDuration("STORE_TIMEOUT", 5*time.Second),
	}

	origins := getenv("ALLOWED_ORIGINS", "http://localhost:3000")
	for _, o := range strings.Split(origins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	if cfg.EthRPCURL == "" {
		return nil, errors.New("ETH_RPC_URL is not set")
	}

	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
