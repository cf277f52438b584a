package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/solana-flash-arb/internal/advisor"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/cache"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/config"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/flags"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/jupiter"
	"github.com/aman-zulfiqar/solana-flash-arb/internal/server"
)

// env bootstrap function
func loadEnv(logger *logrus.Logger) {
	// Get the project root directory (where go.mod is)
	_, filename, _, _ := runtime.Caller(0)
	projectRoot := filepath.Join(filepath.Dir(filename), "../..")
	envPath := filepath.Join(projectRoot, ".env")

	if err := godotenv.Load(envPath); err != nil {
		logger.Warnf("no .env file found at %s, using system environment variables", envPath)
	} else {
		logger.Infof("loaded .env from %s", envPath)
	}
}

// main is the entry point for the standalone API server. It serves the
// read-only surface (health, executions, flags, analyst, quotes) without
// the execution pipeline; run cmd/arbbot for the full daemon.
func main() {
	// Initialize structured logger with custom formatting
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logger.SetLevel(logrus.InfoLevel)

	// load .env BEFORE anything reads os.Getenv
	loadEnv(logger)

	// Load and validate configuration from environment variables
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Setup signal handling for graceful shutdown (Ctrl+C, SIGTERM)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	// Initialize Redis client for execution history and runtime toggles
	rclient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rclient.Ping(ctx).Err(); err != nil {
		logger.WithError(err).Fatal("failed to connect to Redis")
	}

	store, err := cache.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create execution store")
	}

	flagStore, err := flags.NewStore(rclient)
	if err != nil {
		logger.WithError(err).Fatal("failed to create flags store")
	}

	// Initialize the analyst for natural language queries (optional)
	var analyst *advisor.Analyst
	analystBase := advisor.AnalystConfig{
		ClickHouseAddr:     cfg.ClickHouseAddr,
		ClickHouseDatabase: cfg.ClickHouseDatabase,
		ClickHouseUsername: cfg.ClickHouseUsername,
		ClickHousePassword: cfg.ClickHousePassword,
		APIKey:             cfg.AdvisorAPIKey,
		Model:              cfg.AdvisorModel,
		Logger:             logger,
	}

	// Only initialize the analyst when an API key is provided
	if cfg.AdvisorAPIKey != "" {
		a, err := advisor.NewAnalyst(ctx, analystBase)
		if err != nil {
			logger.WithError(err).Warn("failed to initialize analyst")
		} else {
			analyst = a
			defer func() {
				_ = analyst.Close()
			}()
		}
	}

	// Create handlers with all dependencies injected. Engine and Pool are
	// nil here; the pipeline endpoints respond with a configuration error.
	h := &server.Handlers{
		Cache:       store,
		Flags:       flagStore,
		Analyst:     analyst,
		AnalystBase: analystBase,
		Jupiter:     jupiter.NewClient(cfg.JupiterBaseURL, cfg.JupiterAPIKey),
		DevMode:     cfg.DevMode,
		Logger:      logger,
	}

	// Create HTTP server with configuration and handlers
	srv, err := server.NewServer(server.ServerDeps{
		Handlers: h,
		Config: server.ServerConfig{
			Addr:    cfg.ListenAddr,
			DevMode: cfg.DevMode,
			APIKey:  cfg.APIKey,
		},
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to create http server")
	}

	// Setup graceful shutdown in a separate goroutine
	go func() {
		<-sigCh // Wait for shutdown signal
		logger.Info("shutting down")
		cancel()                               // Cancel context to stop ongoing operations
		_ = srv.Shutdown(context.Background()) // Gracefully shutdown HTTP server
	}()

	// Start the HTTP server
	logger.WithField("addr", cfg.ListenAddr).Info("api server starting")
	if err := srv.Start(); err != nil {
		// "http: Server closed" is expected during graceful shutdown
		if err.Error() == "http: Server closed" {
			return
		}
		logger.WithError(err).Fatal("api server failed")
	}

	// Wait for server to be fully shut down
	if err := srv.WaitClosed(context.Background()); err != nil {
		fmt.Println(err)
	}
}
