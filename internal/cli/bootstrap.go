package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"notecard-review-service/internal/app"
	"notecard-review-service/internal/config"
	"notecard-review-service/internal/infra/memory"
	pgstore "notecard-review-service/internal/infra/postgres"
	redisstore "notecard-review-service/internal/infra/redis"
	"notecard-review-service/internal/infra/sqlite"
	"notecard-review-service/internal/infra/vault"
	"notecard-review-service/internal/logger"
)

// runtime holds everything a command needs, plus the closers of the
// connections opened for it.
type runtime struct {
	cfg     config.Config
	logger  *slog.Logger
	vault   *vault.Vault
	scanner *app.Scanner
	service *app.ReviewService
	closers []func()
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// loadConfig reads the config, installs the logger writing to w and reports
// every review setting that was replaced during normalization.
func loadConfig(path string, w io.Writer) (config.Config, *slog.Logger, error) {
	cfg, changes, err := config.Load(path)
	if err != nil {
		return cfg, nil, err
	}
	log := logger.New(w, cfg.Server.LogLevel, cfg.Server.LogFormat)
	for _, change := range changes {
		log.Warn("config value normalized", "change", change, "config", path)
	}
	return cfg, log, nil
}

// bootstrap wires storage, the deck cache, the scanner and the review service
// according to cfg.
func bootstrap(ctx context.Context, cfg config.Config, log *slog.Logger) (*runtime, error) {
	rt := &runtime{cfg: cfg, logger: log, vault: vault.New(cfg.Vault.Root)}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		rt.closers = append(rt.closers, func() { _ = redisClient.Close() })
	}

	store, err := openStore(ctx, cfg, redisClient, rt)
	if err != nil {
		rt.Close()
		return nil, err
	}

	var loader app.DeckLoader = app.NewParsingLoader(rt.vault)
	if ttl := config.TTLDuration(cfg.Deck.TTL, 0); ttl > 0 {
		if redisClient != nil {
			loader = redisstore.NewDeckCache(redisClient, loader, ttl)
		} else {
			loader = memory.NewDeckCache(loader, ttl)
		}
	}

	rt.scanner = app.NewScanner(loader, rt.vault,
		app.WithScanLimit(cfg.Vault.ScanLimit),
		app.WithScanLogger(log))
	rt.service = app.NewReviewService(store, rt.scanner, cfg.ReviewSettings(), app.WithLogger(log))
	if err := rt.service.LoadUsers(ctx); err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func openStore(ctx context.Context, cfg config.Config, redisClient *redis.Client, rt *runtime) (app.ProgressStore, error) {
	switch cfg.Storage.Driver {
	case "", "memory":
		return memory.NewProgressStore(), nil
	case "redis":
		if redisClient == nil {
			return nil, errors.New("redis store needs redis.addr")
		}
		if err := redisClient.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		return redisstore.NewProgressStore(redisClient), nil
	case "postgres":
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return nil, err
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		rt.closers = append(rt.closers, pool.Close)
		return pgstore.NewProgressStore(pool), nil
	case "sqlite":
		store, err := sqlite.Open(cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() { _ = store.Close() })
		return store, nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}
