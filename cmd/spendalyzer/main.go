package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"spendalyzer/internal/cache"
	"spendalyzer/internal/cli"
	"spendalyzer/internal/config"
	"spendalyzer/internal/events"
	apphttp "spendalyzer/internal/http"
	"spendalyzer/internal/log"
	"spendalyzer/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()

	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, cancel := cli.SignalContext(logger)
	defer cancel()

	store, err := cli.OpenStore(cfg, logger)
	if err != nil {
		logger.Error("Failed to open session store", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	svc := services.NewDashboardService(store, openPublisher(ctx, cfg, logger), logger, cfg.InitialBudget())
	srv := apphttp.NewServer(apphttp.Options{
		Addr:             ":" + cfg.Port,
		MaxUploadBytes:   cfg.UploadLimit(),
		UploadsPerMinute: cfg.UploadsPerMinute,
	}, svc, logger)

	sweeper := cache.NewManager(nil)
	sweeper.Register(cache.CleanerFunc(func() int {
		n, err := svc.Sweep(ctx, cfg.SessionTTL)
		if err != nil {
			logger.Warn("Session sweep failed", log.FieldError, err)
		}
		return n
	}))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting spendalyzer server",
			"port", cfg.Port,
			"backend", cfg.DataBackend,
			"max_upload", cfg.MaxUploadSize)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return srv.Limiter().Run(gctx) })
	g.Go(func() error { return sweeper.Run(gctx, cfg.SessionSweepInterval) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		return nil
	})

	runErr := g.Wait()
	if err := svc.Close(); err != nil {
		logger.Error("Failed to close dashboard service", log.FieldError, err)
	}
	if runErr != nil {
		logger.Error("Server error", log.FieldError, runErr, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

// openPublisher connects to the events exchange when configured. A broker
// that is down at startup only disables events.
func openPublisher(ctx context.Context, cfg *config.Config, logger *log.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Nop{}
	}
	pub, err := events.NewAMQPPublisher(ctx, cfg.AMQPURL, cfg.AMQPExchange, logger.WithComponent(log.ComponentEvents))
	if err != nil {
		logger.Warn("Events disabled, AMQP connection failed", log.FieldError, err, "exchange", cfg.AMQPExchange)
		return events.Nop{}
	}
	logger.Info("Publishing events", "exchange", cfg.AMQPExchange)
	return pub
}
