// Package cli provides the process bootstrap shared by the commands:
// logging, .env loading, configuration, session store selection and
// signal handling.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"spendalyzer/internal/config"
	"spendalyzer/internal/log"
	"spendalyzer/internal/session"
	"spendalyzer/internal/storage"
)

// SetupLogger builds a text logger at the given level and sets it as the
// slog default. An unknown level falls back to info.
func SetupLogger(level string) *log.Logger {
	lvl, err := log.ParseLevel(level)
	logger := log.New(log.Config{
		Level:     lvl,
		Component: log.ComponentApp,
		Handler:   slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: lvl}),
	})
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Falling back to info logging", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore returns the session store selected by DATA_BACKEND.
func OpenStore(cfg *config.Config, logger *log.Logger) (session.Store, error) {
	switch cfg.DataBackend {
	case config.BackendMemory:
		logger.Info("Using in-memory session store",
			"max_sessions", cfg.MaxSessions,
			"ttl", cfg.SessionTTL.String())
		return session.NewMemoryStore(cfg.MaxSessions, cfg.SessionTTL), nil
	case config.BackendSQLite:
		repo, err := storage.NewSessionRepository(cfg.SQLiteDBPath, logger.WithComponent(log.ComponentStorage))
		if err != nil {
			return nil, fmt.Errorf("open sqlite session store: %w", err)
		}
		return repo, nil
	}
	return nil, fmt.Errorf("unsupported data backend %q", cfg.DataBackend)
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigChan)

		select {
		case sig := <-sigChan:
			logger.Info("Shutdown signal received", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}
