package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/anishko/Ekho/internal/adapter/repo"
	"github.com/anishko/Ekho/internal/http/handlers"
	"github.com/anishko/Ekho/internal/http/httpapi"
	"github.com/anishko/Ekho/internal/infra"
	"github.com/anishko/Ekho/internal/infra/geoip"
	"github.com/anishko/Ekho/internal/jobs"
	"github.com/anishko/Ekho/internal/middleware"
	"github.com/anishko/Ekho/internal/providers/chat"
	"github.com/anishko/Ekho/internal/providers/veo"
	"github.com/anishko/Ekho/internal/providers/voice"
	"github.com/anishko/Ekho/internal/storage"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fileStore, err := storage.NewFileStore(cfg.StoragePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure storage")
	}

	veoClient, err := veo.NewClient(veo.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.VeoModel,
		Logger:  &logger,
		Store:   fileStore,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to configure veo client")
	}
	if cfg.GeminiAPIKey == "" {
		logger.Warn().Str("model", veoClient.Model()).Msg("gemini api key missing, using synthetic video generation")
	}

	// Job store: in-memory by default, Postgres when DATABASE_URL is set.
	var store jobs.Store = jobs.NewMemoryStore()
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect job database")
		}
		defer pool.Close()
		pgStore := jobs.NewPGStore(pool)
		if err := pgStore.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate job database")
		}
		store = pgStore
	}

	manager := jobs.NewManager(store, veoClient, logger, jobs.Config{
		PollInterval:        cfg.VeoPollInterval,
		PollTimeout:         cfg.VeoPollTimeout,
		OperationTimeout:    cfg.VeoOperationTimeout,
		MaxTransientRetries: cfg.VeoMaxRetries,
	})
	defer manager.Close()

	if cfg.JobRetention > 0 {
		sweeper, err := jobs.NewRetentionSweeper(store, cfg.JobRetention, cfg.JobRetentionSweep, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to configure retention sweeper")
		}
		sweeper.Start()
		defer sweeper.Stop()
	}

	var analytics *repo.AnalyticsRepo
	if cfg.AnalyticsDatabaseURL != "" {
		warehouse, err := infra.NewWarehouseDB(ctx, cfg)
		if err != nil {
			logger.Warn().Err(err).Msg("analytics warehouse unavailable, continuing without it")
		} else {
			defer warehouse.Close()
			analytics = repo.NewAnalyticsRepo(warehouse)
			if err := analytics.Migrate(ctx); err != nil {
				logger.Warn().Err(err).Msg("analytics migration failed, continuing without it")
				analytics = nil
			}
		}
	}

	resolver, err := geoip.NewResolver(cfg.GeoIPDBPath)
	if err != nil {
		logger.Warn().Err(err).Msg("geoip unavailable, continuing without it")
	}
	var countryLookup middleware.CountryLookup
	if resolver != nil {
		countryLookup = resolver.CountryCode
	}

	app := &handlers.App{
		Jobs:      manager,
		Responder: chat.NewGeminiResponder(chat.Options{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL, Model: cfg.GeminiModel, Logger: &logger}),
		Voice:     voice.NewClient(voice.Options{APIKey: cfg.ElevenLabsAPIKey, BaseURL: cfg.ElevenLabsBaseURL, Logger: &logger}),
		Analytics: analytics,
		Store:     fileStore,
		Cfg:       cfg,
		Logger:    logger,
	}

	server := infra.NewHTTPServer(cfg, httpapi.NewRouter(app, countryLookup))
	go func() {
		logger.Info().Str("port", cfg.Port).Msg("api listening")
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
