package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/trogers1052/options-monitor/internal/api"
	"github.com/trogers1052/options-monitor/internal/cache"
	"github.com/trogers1052/options-monitor/internal/config"
	"github.com/trogers1052/options-monitor/internal/csvparse"
	"github.com/trogers1052/options-monitor/internal/database"
	"github.com/trogers1052/options-monitor/internal/kafka"
	"github.com/trogers1052/options-monitor/internal/loader"
	"github.com/trogers1052/options-monitor/internal/logging"
	"github.com/trogers1052/options-monitor/internal/models"
	"github.com/trogers1052/options-monitor/internal/pipeline"
)

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.Load()
	log := logging.New(os.Stderr, cfg.Log.Level, os.Getenv("LOG_PRETTY") == "true")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, log zerolog.Logger) error {
	policy, err := csvparse.ParsePolicy(cfg.Data.RowMismatchPolicy, cfg.Data.UnparsablePolicy)
	if err != nil {
		return err
	}

	var fetcher loader.Fetcher = loader.NewFileFetcher(cfg.Data.Dir)
	if cfg.Data.BaseURL != "" {
		fetcher = loader.NewHTTPFetcher(nil, cfg.Data.BaseURL)
	}
	sources := map[string]loader.RowSource{
		models.SourceCSV: loader.NewCSVSource(fetcher, policy),
	}

	// Snapshot cache
	var snapshotCache cache.Cache = cache.NewMemory()
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rc := cache.NewRedis(client)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			return err
		}
		snapshotCache = rc
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis cache")
	}

	// Quote store
	var db *database.DB
	if cfg.Database.Enabled {
		db, err = database.New(cfg.Database.ConnectionString())
		if err != nil {
			return err
		}
		defer db.Close()
		if err := db.Migrate(cfg.Database.MigrationsDir); err != nil {
			return err
		}
		sources[models.SourcePostgres] = db
		log.Info().Str("host", cfg.Database.Host).Str("db", cfg.Database.DBName).Msg("connected to database")
	}

	projects := loader.DefaultProjects()
	for i := range projects {
		projects[i].Source = cfg.Data.Source
	}

	l := loader.New(loader.Config{
		Projects: projects,
		Sources:  sources,
		Cache:    snapshotCache,
		TTL:      cfg.Data.CacheTTL,
		Options:  pipeline.Options{MinTimeToExpiration: cfg.Data.MinTimeToExpiration},
	}, log)

	var publisher api.EventPublisher
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.QuoteTopic, cfg.Kafka.SnapshotTopic)
		defer producer.Close()
		publisher = producer

		if db != nil {
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.QuoteTopic, cfg.Kafka.GroupID, db, log)
			go func() {
				if err := consumer.Start(ctx); err != nil {
					log.Error().Err(err).Msg("kafka consumer stopped")
				}
			}()
		}
	}

	handler := api.NewHandler(l, publisher, log)
	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           api.SetupRoutes(handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
