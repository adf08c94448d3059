package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"cabanas/internal/api"
	"cabanas/internal/clock"
	"cabanas/internal/config"
	"cabanas/internal/database"
	"cabanas/internal/domain"
	"cabanas/internal/events"
	"cabanas/internal/export"
	"cabanas/internal/gateway"
	"cabanas/internal/google"
	"cabanas/internal/logging"
	"cabanas/internal/metrics"
	"cabanas/internal/models"
	"cabanas/internal/notify"
	"cabanas/internal/repository"
	"cabanas/internal/service"
	"cabanas/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v2"
)

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

	units, err := loadUnits(cfg, &logger)
	if err != nil {
		return err
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := initDatabase(cfg, units, &logger)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	cache := initCache(redisClient, &logger)
	gw := initGateway(cfg, &logger)
	clk := clock.System{}
	eventBus := events.NewEventBus()

	sheetsService := initGoogleSheets(cfg, &logger)
	var sheetsWorker *worker.SheetsWorker
	if sheetsService != nil {
		retryPolicy := worker.RetryPolicy{MaxRetries: 5, InitialDelay: 2 * time.Second, MaxDelay: time.Minute, BackoffFactor: 2}
		sheetsWorker = worker.NewSheetsWorker(db, sheetsService, redisClient, retryPolicy, &logger)
		go sheetsWorker.Start(ctx)
	}

	mailer := notify.NewSMTPMailer(cfg.Email, cfg.Booking.CheckInHour, cfg.Booking.CheckOutHour, &logger)
	notifier := initTelegram(cfg, &logger)

	availability := service.NewAvailabilityService(db, cache, clk, cfg.Booking.CheckInHour, cfg.Booking.CheckOutHour, &logger)
	holds := service.NewHoldService(db, gw, eventBus, cache, syncWorkerOrNil(sheetsWorker), clk,
		time.Duration(cfg.Booking.HoldTTLMinutes)*time.Minute, cfg.App.BaseURL, cfg.Gateway.Currency, &logger)
	reconciler := service.NewReconciler(db, gw, mailer, notifier, eventBus, cache, syncWorkerOrNil(sheetsWorker), clk,
		time.Duration(cfg.Booking.ReconcileGraceMinutes)*time.Minute, cfg.Booking.ReconcileBatchSize, &logger)
	exporter := export.NewExporter(db, clk, cfg.Exports.Path, &logger)

	httpServer := api.NewHTTPServer(cfg.API, cfg.Gateway.Mode, db, gw, availability, holds, reconciler, exporter, eventBus, clk, &logger)

	startMetrics(ctx, cfg, &logger)
	startSweeper(ctx, reconciler, &logger)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	logger.Info().Int("http_port", cfg.API.Port).Msg("API server started")

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
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
	logger := baseLogger.With().Str("component", "api-main").Logger()

	return cfg, logger, closer, nil
}

// loadUnits reads the catalog from units.yaml, falling back to the
// units block in the main config when the file does not exist.
func loadUnits(cfg *config.Config, logger *zerolog.Logger) ([]models.Unit, error) {
	unitsPath := os.Getenv("UNITS_PATH")
	if unitsPath == "" {
		unitsPath = "configs/units.yaml"
	}

	unitsData, err := os.ReadFile(unitsPath)
	if err != nil {
		if os.IsNotExist(err) && len(cfg.Units) > 0 {
			return cfg.Units, nil
		}
		logger.Error().Err(err).Str("units_path", unitsPath).Msg("read units")
		return nil, err
	}

	var unitsConfig struct {
		Units []models.Unit `yaml:"units"`
	}
	if err := yaml.Unmarshal(unitsData, &unitsConfig); err != nil {
		logger.Error().Err(err).Str("units_path", unitsPath).Msg("parse units")
		return nil, err
	}

	if err := config.ValidateUnits(unitsConfig.Units); err != nil {
		logger.Error().Err(err).Msg("units validation failed")
		return nil, err
	}

	return unitsConfig.Units, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("create database directory")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("create exports directory")
		return err
	}
	return nil
}

func initDatabase(cfg *config.Config, units []models.Unit, logger *zerolog.Logger) (*database.DB, error) {
	db, err := database.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
		return nil, err
	}
	db.SetUnits(units)
	return db, nil
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initCache(redisClient *redis.Client, logger *zerolog.Logger) domain.AvailabilityCache {
	memory := repository.NewMemoryAvailabilityCache()
	if redisClient == nil {
		return memory
	}
	primary := repository.NewRedisAvailabilityCache(redisClient)
	return repository.NewFailoverAvailabilityCache(primary, memory, logger)
}

func initGateway(cfg *config.Config, logger *zerolog.Logger) domain.Gateway {
	if cfg.Gateway.Mode == "mock" {
		logger.Warn().Msg("payment gateway in mock mode")
		return gateway.NewMock()
	}
	return gateway.NewClient(cfg.Gateway, logger)
}

func initGoogleSheets(cfg *config.Config, logger *zerolog.Logger) *google.SheetsService {
	if !cfg.Google.Enabled || cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheetsService, err := google.NewSheetsService(cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}

	logger.Info().Msg("google sheets connected")
	return sheetsService
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

// syncWorkerOrNil keeps the services' nil checks honest: a typed nil
// inside a non-nil interface would dodge them.
func syncWorkerOrNil(w *worker.SheetsWorker) domain.SyncWorker {
	if w == nil {
		return nil
	}
	return w
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}

// startSweeper runs the reconcile loop inside the API process as a
// safety net; cron can also hit the jobs endpoint or run cmd/reconciler.
func startSweeper(ctx context.Context, reconciler *service.Reconciler, logger *zerolog.Logger) {
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				reconciler.RunSweep(ctx)
			}
		}
	}()
	logger.Info().Msg("reconcile sweeper started")
}
