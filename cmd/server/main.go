package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/glasswallet/router/internal/ai"
	"github.com/glasswallet/router/internal/config"
	"github.com/glasswallet/router/internal/db"
	httpapi "github.com/glasswallet/router/internal/http"
	"github.com/glasswallet/router/internal/scheduler"
	"github.com/glasswallet/router/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := log.Level(level).With().Str("service", "glasswallet-router").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var source service.LeadSource
	if cfg.DatabaseURL == "" {
		source = db.NewMemoryStore()
		logger.Info().Msg("DATABASE_URL not set, keeping leads in memory")
	} else {
		store, err := db.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect db")
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			logger.Fatal().Err(err).Msg("failed to migrate db")
		}
		source = store
	}

	var adapter ai.Adapter
	if cfg.AIURL == "" {
		adapter = ai.MockAdapter{ModelVersion: "mock-v1"}
		logger.Info().Msg("using mock AI adapter")
	} else {
		adapter = ai.NewBreakerAdapter(
			ai.HTTPAdapter{BaseURL: cfg.AIURL},
			ai.BreakerConfig{MaxFailures: cfg.AIBreakerMaxFailures, Timeout: cfg.AIBreakerTimeout},
			logger,
		)
	}

	hours, err := service.NewWorkingHours(cfg.WorkingHoursMode, cfg.WorkingHoursStart, cfg.WorkingHoursEnd)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid working hours")
	}
	logger.Info().Str("mode", cfg.WorkingHoursMode).Msg("working hours policy")

	registry := service.NewRegistry(service.WithWorkingHours(hours))
	n, err := service.SeedRegistry(registry, cfg.AgentsFile)
	if err != nil {
		logger.Fatal().Err(err).Str("file", cfg.AgentsFile).Msg("failed to load agents")
	}
	logger.Info().Int("agents", n).Msg("agent registry seeded")

	router := service.NewRouter(registry, logger)
	processor := &service.ProcessingService{
		Source: source,
		AI:     adapter,
		Router: router,
		Logger: logger,
	}

	var sched *scheduler.Scheduler
	if cfg.ProcessCron != "" {
		sched = scheduler.New(logger)
		err := sched.Add("process-leads", cfg.ProcessCron, func(ctx context.Context) error {
			_, err := processor.Run(ctx, false)
			if errors.Is(err, service.ErrRunInProgress) {
				logger.Info().Msg("lead processing already running, skipping tick")
				return nil
			}
			return err
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("invalid PROCESS_CRON")
		}
		sched.Start()
		logger.Info().Str("schedule", cfg.ProcessCron).Msg("lead processing scheduled")
	}

	engine := httpapi.Router(ctx, cfg, httpapi.Deps{
		Source:    source,
		Router:    router,
		Processor: processor,
	}, logger)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if sched != nil {
		sched.Stop(ctxShutdown)
	}
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
