package main

import (
	"context"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"petagenda/internal/api"
	"petagenda/internal/audit"
	"petagenda/internal/bot"
	"petagenda/internal/config"
	"petagenda/internal/database"
	"petagenda/internal/events"
	"petagenda/internal/export"
	"petagenda/internal/logging"
	"petagenda/internal/metrics"
	"petagenda/internal/petshop"
	"petagenda/internal/repository"
	"petagenda/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
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
		defer (func(c io.Closer) { _ = c.Close() })(closer)
	}

	if err := prepareDirectories(cfg, &logger); err != nil {
		return err
	}

	db, err := database.NewDB(cfg.Database.Path, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("Falha ao abrir o diário de auditoria")
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient, sessionRepo := initSessionRepository(ctx, cfg, &logger)
	defer func() { _ = repository.Close(redisClient) }()

	eventBus := events.NewEventBus()

	auditLog := audit.NewDispatcher(db, 0, logging.Component(&logger, "audit"))
	auditLog.Subscribe(eventBus)
	defer auditLog.Close()

	if cfg.Database.Backup.Enabled {
		backupService := database.NewBackupService(db, cfg.Database.Backup, &logger)
		go backupService.Start(ctx)
	}

	backend := petshop.NewClient(cfg.Backend, logging.Component(&logger, "petshop"))
	sessions := service.NewSessionService(sessionRepo, backend, eventBus, cfg.Session.TTL(), logging.Component(&logger, "sessions"))
	appointments := service.NewAppointmentService(backend, eventBus, cfg.Bot.Location(), logging.Component(&logger, "appointments"))
	exporter := export.NewExporter(cfg.Exports.Path)

	var gatherer prometheus.Gatherer
	if cfg.Monitoring.PrometheusEnabled {
		metrics.Register()
		gatherer = prometheus.DefaultGatherer
	}
	opsServer := api.NewHTTPServer(cfg.Monitoring.HealthCheckPort, readinessChecks(redisClient, db), gatherer, logging.Component(&logger, "http"))
	go func() {
		if err := opsServer.Start(); err != nil {
			logger.Error().Err(err).Msg("operational HTTP server error")
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = opsServer.Shutdown(shutdownCtx)
	}()

	botAPI, err := bot.NewBotAPI(cfg.Telegram)
	if err != nil {
		logger.Error().Err(err).Msg("Erro ao criar BotAPI")
		return err
	}
	tgService := service.NewTelegramService(botAPI)

	telegramBot, err := bot.NewBot(
		tgService, cfg, sessions, backend, appointments,
		auditLog, exporter, eventBus, bot.NewMetrics(nil), &logger,
	)
	if err != nil {
		logger.Error().Err(err).Msg("Erro ao criar o bot")
		return err
	}

	logger.Info().Msg("Bot iniciado...")
	telegramBot.Start(ctx)
	telegramBot.Stop()

	logger.Info().Int64("audit_dropped", auditLog.Dropped()).Msg("Shutdown complete.")
	return nil
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, err
	}
	logger := baseLogger.With().Str("component", "bot-main").Logger()
	return cfg, logger, closer, nil
}

func prepareDirectories(cfg *config.Config, logger *zerolog.Logger) error {
	if cfg == nil {
		return os.ErrInvalid
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		logger.Error().Err(err).Msg("Erro ao criar o diretório do banco")
		return err
	}
	if err := os.MkdirAll(cfg.Exports.Path, 0o755); err != nil {
		logger.Error().Err(err).Msg("Erro ao criar o diretório de exportação")
		return err
	}
	return nil
}

// initSessionRepository prefers Redis and falls back to process memory when
// Redis is missing or goes away.
func initSessionRepository(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*redis.Client, *repository.FailoverSessionRepository) {
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		if errPing := repository.Ping(ctx, redisClient); errPing != nil {
			logger.Warn().Err(errPing).Msg("Redis unavailable")
		}
	}

	ttl := cfg.Session.TTL()
	primary := repository.NewRedisSessionRepository(redisClient, ttl)
	fallback := repository.NewMemorySessionRepository(ttl)
	return redisClient, repository.NewFailoverSessionRepository(primary, fallback, logger)
}

// readinessChecks treats Redis as optional: sessions fall back to memory
// while it is down, so the bot keeps serving.
func readinessChecks(redisClient *redis.Client, db *database.DB) api.Checks {
	checks := api.Checks{
		Required: map[string]api.Check{"sqlite": db.PingContext},
	}
	if redisClient != nil {
		checks.Optional = map[string]api.Check{
			"redis": func(ctx context.Context) error {
				return repository.Ping(ctx, redisClient)
			},
		}
	}
	return checks
}
