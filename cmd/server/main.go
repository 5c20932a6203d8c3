package main

import (
	"database/sql"
	"net/http"

	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/studymode/tutor/internal/api"
	"github.com/studymode/tutor/internal/config"
	"github.com/studymode/tutor/internal/memory"
	"github.com/studymode/tutor/internal/prompt"
	"github.com/studymode/tutor/internal/registry"
	"github.com/studymode/tutor/internal/tutor"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	db, err := sql.Open("sqlite3", cfg.DBPath)
	if err != nil {
		logger.Fatal("failed to open database",
			zap.Error(err),
			zap.String("dbPath", cfg.DBPath))
	}

	meta, err := registry.NewSQLiteMetadataStore(db)
	if err != nil {
		logger.Fatal("failed to initialize metadata store", zap.Error(err))
	}

	windows, err := newWindowStore(cfg, db)
	if err != nil {
		logger.Fatal("failed to initialize window store",
			zap.Error(err),
			zap.String("driver", cfg.WindowDriver))
	}

	reg := registry.New(meta, windows, logger)

	template, err := prompt.LoadTemplate(cfg.TemplatePath)
	if err != nil {
		logger.Fatal("failed to load prompt template",
			zap.Error(err),
			zap.String("templatePath", cfg.TemplatePath))
	}

	completer, err := tutor.NewLLMCompleter(cfg.LLMBaseURL, cfg.LLMAPIKey, cfg.LLMModel, cfg.Temperature)
	if err != nil {
		logger.Fatal("failed to initialize completion backend", zap.Error(err))
	}

	svc := tutor.NewService(reg, windows, prompt.NewAssembler(template), completer, logger)

	mux := http.NewServeMux()
	api.NewHandler(svc, logger).Routes(mux)

	logger.Info("starting tutor server",
		zap.String("addr", cfg.ListenAddr),
		zap.String("windowDriver", cfg.WindowDriver),
		zap.Int("windowSize", cfg.WindowSize))
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newWindowStore(cfg config.ServerConfig, db *sql.DB) (memory.Store, error) {
	switch cfg.WindowDriver {
	case "memory":
		return memory.NewInMemoryStore(cfg.WindowSize), nil
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, DB: cfg.RedisDB})
		return memory.NewRedisStore(client, cfg.WindowSize), nil
	default:
		return memory.NewSQLiteStore(db, cfg.WindowSize)
	}
}
