package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cabanas/internal/clock"
	"cabanas/internal/config"
	"cabanas/internal/database"
	"cabanas/internal/domain"
	"cabanas/internal/events"
	"cabanas/internal/gateway"
	"cabanas/internal/logging"
	"cabanas/internal/notify"
	"cabanas/internal/service"

	"github.com/rs/zerolog"
)

// One-shot reconcile sweep for cron. Expires stale holds, polls the
// gateway for pending bookings past the grace window and applies the
// same transitions as the webhook path.
func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer func() { _ = closer.Close() }()
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	gw := initGateway(cfg, &logger)
	mailer := notify.NewSMTPMailer(cfg.Email, cfg.Booking.CheckInHour, cfg.Booking.CheckOutHour, &logger)
	notifier := initTelegram(cfg, &logger)
	eventBus := events.NewEventBus()

	reconciler := service.NewReconciler(db, gw, mailer, notifier, eventBus, nil, nil, clock.System{},
		time.Duration(cfg.Booking.ReconcileGraceMinutes)*time.Minute, cfg.Booking.ReconcileBatchSize, &logger)

	summary := reconciler.RunSweep(ctx)

	logger.Info().
		Int("checked", summary.Checked).
		Int("reconciled", summary.Reconciled).
		Int("errors", summary.Errors).
		Int64("expired_holds", summary.Expired).
		Msg("sweep complete")

	if summary.Errors > 0 {
		return fmt.Errorf("sweep finished with %d errors", summary.Errors)
	}
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	logger := baseLogger.With().Str("component", "reconciler").Logger()

	return cfg, logger, closer, nil
}

func initGateway(cfg *config.Config, logger *zerolog.Logger) domain.Gateway {
	if cfg.Gateway.Mode == "mock" {
		logger.Warn().Msg("payment gateway in mock mode")
		return gateway.NewMock()
	}
	return gateway.NewClient(cfg.Gateway, logger)
}

func initTelegram(cfg *config.Config, logger *zerolog.Logger) domain.Notifier {
	if !cfg.Telegram.Enabled || cfg.Telegram.BotToken == "" {
		return nil
	}
	notifier, err := notify.NewTelegramNotifier(cfg.Telegram, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}
	return notifier
}
