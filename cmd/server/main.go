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

	"classbook/internal/api"
	"classbook/internal/config"
	"classbook/internal/directory"
	"classbook/internal/domain"
	"classbook/internal/events"
	"classbook/internal/logging"
	"classbook/internal/metrics"
	"classbook/internal/realtime"
	"classbook/internal/repository"
	"classbook/internal/scheduler"
	"classbook/internal/store"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
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
		defer (func() { _ = closer.Close() })()
	}

	dir, err := initDirectory(cfg, &logger)
	if err != nil {
		return err
	}
	defer dir.Close()

	eventBus := events.NewEventBus()
	dispatcher := realtime.NewDispatcher()
	eventBus.Subscribe(events.EventReservationCreated, dispatcher.HandleEvent)
	eventBus.Subscribe(events.EventReservationCancelled, dispatcher.HandleEvent)
	eventBus.Subscribe(events.EventWaitlistPromoted, dispatcher.HandleEvent)
	eventBus.Subscribe(events.EventWaitlistPromoted, func(*events.Event) error {
		metrics.IncWaitlistPromotions()
		return nil
	})

	reservations, waitlist, notifications, err := initStores(cfg, dir, eventBus, &logger)
	if err != nil {
		return err
	}

	sessions := initSessions(cfg, &logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reminder := scheduler.NewReminder(reservations, notifications, dir, dir, &logger,
		time.Duration(cfg.Scheduler.IntervalSeconds)*time.Second)
	go reminder.Run(ctx)

	backup := directory.NewBackupService(cfg.Database.Path, cfg.Storage.DataDir, cfg.Backup, &logger)
	go backup.Start(ctx)

	startMetrics(ctx, cfg, &logger)

	server := api.NewServer(*cfg, dir, reservations, waitlist, notifications, sessions, dispatcher, &logger)
	return startServer(ctx, server, &logger)
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
	logger := baseLogger.With().Str("component", "server-main").Logger()

	return cfg, logger, closer, nil
}

func initDirectory(cfg *config.Config, logger *zerolog.Logger) (*directory.DB, error) {
	dir, err := directory.NewDB(cfg.Database.Path, logger)
	if err != nil {
		logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init directory database")
		return nil, err
	}

	ctx := context.Background()
	if err := dir.SeedClassrooms(ctx, cfg.Classrooms); err != nil {
		dir.Close()
		return nil, fmt.Errorf("seed classrooms: %w", err)
	}
	if cfg.Admin.ID != "" {
		if err := dir.EnsureAdmin(ctx, cfg.Admin.ID, cfg.Admin.Password); err != nil {
			dir.Close()
			return nil, fmt.Errorf("ensure admin: %w", err)
		}
	}

	return dir, nil
}

func initStores(
	cfg *config.Config,
	dir *directory.DB,
	eventBus *events.EventBus,
	logger *zerolog.Logger,
) (*store.ReservationStore, *store.WaitlistStore, *store.NotificationStore, error) {
	if err := os.MkdirAll(cfg.Storage.DataDir, 0o755); err != nil {
		return nil, nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	reservations := store.NewReservationStore(
		filepath.Join(cfg.Storage.DataDir, "reservations.json"), dir, dir, eventBus, logger)
	notifications := store.NewNotificationStore(
		filepath.Join(cfg.Storage.DataDir, "notifications.json"), logger)
	waitlist := store.NewWaitlistStore(
		filepath.Join(cfg.Storage.DataDir, "waitlist.json"),
		reservations, notifications, dir, eventBus, logger)
	reservations.SetPromoter(waitlist)

	return reservations, waitlist, notifications, nil
}

// initSessions prefers Redis-backed sessions with an in-memory fallback and
// degrades to memory-only when Redis is not configured or unreachable.
func initSessions(cfg *config.Config, logger *zerolog.Logger) domain.SessionRepository {
	ttl := time.Duration(cfg.Sessions.TTLSeconds) * time.Second
	memory := repository.NewMemorySessionRepository(ttl)

	if cfg.Redis.Address == "" {
		return memory
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(context.Background(), redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, using in-memory sessions")
		return memory
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	primary := repository.NewRedisSessionRepository(redisClient, ttl)
	return repository.NewFailoverSessionRepository(primary, memory, logger)
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

func startServer(ctx context.Context, server *api.Server, logger *zerolog.Logger) error {
	go func() {
		if err := server.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http server shutdown")
	}

	logger.Info().Msg("server stopped")
	return nil
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
