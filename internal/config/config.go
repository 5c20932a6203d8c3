package config

import (
	"fmt"
	"os"
	"strconv"
)

// ServerConfig holds configuration for the tutor server process.
type ServerConfig struct {
	ListenAddr   string
	DBPath       string
	WindowSize   int
	WindowDriver string // "memory", "sqlite", or "redis"
	RedisAddr    string
	RedisDB      int

	LLMBaseURL  string
	LLMAPIKey   string
	LLMModel    string
	Temperature float64

	TemplatePath string
}

// LoadServerConfig reads server configuration from environment variables.
func LoadServerConfig() (ServerConfig, error) {
	cfg := ServerConfig{
		ListenAddr:   envOrDefault("TUTOR_LISTEN_ADDR", ":8100"),
		DBPath:       envOrDefault("TUTOR_DB_PATH", "tutor.db"),
		WindowSize:   envIntOrDefault("TUTOR_WINDOW_SIZE", 50),
		WindowDriver: envOrDefault("TUTOR_WINDOW_DRIVER", "sqlite"),
		RedisAddr:    envOrDefault("TUTOR_REDIS_ADDR", "localhost:6379"),
		RedisDB:      envIntOrDefault("TUTOR_REDIS_DB", 0),
		LLMBaseURL:   envOrDefault("OPENAI_BASE_URL", "http://localhost:11434/v1/"),
		LLMAPIKey:    os.Getenv("OPENAI_API_KEY"),
		LLMModel:     envOrDefault("OPENAI_MODEL", "llama3.1:8b"),
		Temperature:  envFloatOrDefault("TUTOR_TEMPERATURE", 0.7),
		TemplatePath: os.Getenv("TUTOR_PROMPT_TEMPLATE"),
	}

	switch cfg.WindowDriver {
	case "memory", "sqlite", "redis":
	default:
		return ServerConfig{}, fmt.Errorf("unknown TUTOR_WINDOW_DRIVER %q (want memory, sqlite, or redis)", cfg.WindowDriver)
	}
	if cfg.WindowSize <= 0 {
		return ServerConfig{}, fmt.Errorf("TUTOR_WINDOW_SIZE must be positive, got %d", cfg.WindowSize)
	}
	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOrDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloatOrDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
