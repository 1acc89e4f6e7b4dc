package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"

	"github.com/wolfman30/dental-agenda/cmd/mainconfig"
	"github.com/wolfman30/dental-agenda/internal/app/bootstrap"
	appconfig "github.com/wolfman30/dental-agenda/internal/config"
	"github.com/wolfman30/dental-agenda/pkg/logging"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// .env is a development convenience; real deployments set the environment.
	_ = godotenv.Load()

	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting dental-agenda API server", "env", cfg.Env, "port", cfg.Port)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// serve runs the API until ctx is cancelled or the listener fails, then
// drains in-flight requests and releases the application context.
func serve(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) error {
	awsCfg, err := loadAWS(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("load aws config: %w", err)
	}

	app, err := bootstrap.New(ctx, cfg, logger, bootstrap.Options{AWS: awsCfg})
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	app.Start()

	// No WriteTimeout: live sockets are long-lived and set their own
	// write deadlines.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           app.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		listenErr <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-listenErr:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown requested")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	return errors.Join(runErr, app.Close())
}

// loadAWS returns nil when the memory store is requested, so development
// runs need no AWS credentials at all.
func loadAWS(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*aws.Config, error) {
	if cfg.UseMemoryStore && cfg.EmailProvider != "ses" {
		logger.Info("skipping AWS config", "reason", "memory store without ses")
		return nil, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &awsCfg, nil
}
