// Command sweep deletes expired sessions, magic links and device
// authorizations once and exits. Run it from cron or a Kubernetes CronJob.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prperemyshlev/tasklane/internal/app"
	"github.com/prperemyshlev/tasklane/internal/config"
	"github.com/prperemyshlev/tasklane/internal/repository"
	"github.com/prperemyshlev/tasklane/pkg/database"
	"github.com/prperemyshlev/tasklane/pkg/observability"
	"go.uber.org/zap"
)

const sweepTimeout = 2 * time.Minute

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := observability.InitLogger(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Sweep failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	postgres, err := database.NewPostgres(cfg.Postgres.DSN())
	if err != nil {
		return err
	}
	defer func() { _ = postgres.Close() }()

	ctx, cancel := context.WithTimeout(ctx, sweepTimeout)
	defer cancel()

	services := app.NewServices(repository.NewRepositories(postgres), nil, cfg, logger)
	_, err = services.Sweeper.Run(ctx)
	return err
}
