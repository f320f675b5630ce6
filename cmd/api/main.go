// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/config"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/dispatch"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/ingest"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/logging"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/persistence/postgres"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/repository"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/stream"
	httptransport "github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/transport/http"
	"github.com/oks-citadel/UGC-Content-Creation-SaaS-Platform-sub007/internal/trigger"
	"github.com/robfig/cron/v3"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	logger := logging.NewLogger(cfg.Env)

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		if err := postgres.EnsureSchema(ctx, pool, logger); err != nil {
			log.Fatalf("schema migration failed: %v", err)
		}
	}

	streamLog, err := openStream(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("stream connect failed: %v", err)
	}
	defer func() {
		if err := streamLog.Close(); err != nil {
			logger.Warn("stream close failed", "error", err)
		}
	}()

	eventRepo := repository.NewEventRepository(pool, logger)
	triggerRepo := repository.NewTriggerRepository(pool, logger)
	runRepo := repository.NewRunRepository(pool, logger)
	apiKeyRepo := repository.NewAPIKeyRepository(pool, logger)

	ingestService := ingest.NewService(ingest.Deps{
		Stream: streamLog,
		Store:  eventRepo,
		Logger: logger,
	})

	registry := trigger.NewRegistry(trigger.Deps{
		Store:  triggerRepo,
		Logger: logger,
		Cron:   cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger))),
	})

	dispatcher := dispatch.New(dispatch.Deps{
		Consumer: streamLog,
		Events:   eventRepo,
		Runs:     runRepo,
		Bindings: registry,
		Logger:   logger,
	})
	registry.OnSchedule(dispatcher.FireScheduled)

	if _, err := registry.Restore(ctx); err != nil {
		log.Fatalf("trigger restore failed: %v", err)
	}

	var wg sync.WaitGroup

	if cfg.TriggersFile != "" {
		seeder := trigger.NewSeeder(cfg.TriggersFile, registry, logger)
		if err := seeder.Apply(ctx); err != nil {
			logger.Error("trigger seed apply failed", "path", cfg.TriggersFile, "error", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := seeder.Watch(ctx); err != nil {
				logger.Error("trigger seed watch stopped", "path", cfg.TriggersFile, "error", err)
			}
		}()
	}

	registry.Start(ctx)

	if cfg.Dispatch.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("dispatcher failed", "error", err)
				stop()
			}
		}()
	}

	handler := httptransport.NewRouter(httptransport.Deps{
		Ingest:         ingestService,
		Triggers:       registry,
		Runs:           dispatcher,
		APIKeyAdmin:    apiKeyRepo,
		APIKeyResolver: apiKeyRepo,
		ReadyChecks: map[string]httptransport.HealthChecker{
			"schema": postgres.NewSchemaHealthChecker(pool),
			"stream": httptransport.HealthCheckFunc(streamLog.Ping),
		},
		Logger:     logger,
		AdminToken: cfg.AdminToken,
		MaxBatch:   cfg.Ingest.MaxBatch,
		Version:    Version,
		Commit:     Commit,
		BuildDate:  BuildDate,
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("api listening",
			"addr", cfg.HTTPAddr,
			"stream_backend", cfg.Stream.Backend,
			"dispatch_enabled", cfg.Dispatch.Enabled,
			"version", Version,
			"commit", Commit,
			"build_date", BuildDate,
		)

		if err := srv.ListenAndServe(); err != nil &&
			err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		5*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	registry.Stop()
	wg.Wait()
}

func openStream(ctx context.Context, cfg config.Config, logger *slog.Logger) (stream.Log, error) {
	switch cfg.Stream.Backend {
	case config.StreamBackendKafka:
		return stream.NewKafkaLog(stream.KafkaDeps{
			Brokers: cfg.Stream.KafkaBrokers,
			Topic:   cfg.Stream.Name,
			GroupID: cfg.Stream.KafkaGroupID,
			Logger:  logger,
		}), nil
	default:
		client, err := stream.NewRedisClient(ctx, stream.RedisConfig{
			Addr:     cfg.Stream.RedisAddr,
			Password: cfg.Stream.RedisPassword,
			DB:       cfg.Stream.RedisDB,
		})
		if err != nil {
			return nil, err
		}
		return stream.NewRedisLog(stream.RedisDeps{
			Client:    client,
			Logger:    logger,
			Stream:    cfg.Stream.Name,
			MaxLen:    cfg.Stream.MaxLen,
			Consumer:  cfg.Dispatch.Consumer,
			BatchSize: cfg.Dispatch.BatchSize,
			Block:     cfg.Dispatch.Block,
		}), nil
	}
}
