package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-desk/internal/backend"
	"github.com/odyssey-erp/odyssey-desk/internal/observability"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-desk/internal/platform/db"
	"github.com/odyssey-erp/odyssey-desk/internal/prefs"
	"github.com/odyssey-erp/odyssey-desk/internal/views"
	"github.com/odyssey-erp/odyssey-desk/migrations"
)

const prefsKeyPrefix = "odyssey:"

// Services bundles the list machinery shared by the server, the worker and
// the terminal desk. Redis is nil when REDIS_ADDR is empty or unreachable;
// Pool is nil unless preferences live in PostgreSQL.
type Services struct {
	Config   *Config
	Logger   *slog.Logger
	Backend  *backend.Client
	Redis    *redis.Client
	Pool     *pgxpool.Pool
	Registry *views.Registry
	Cache    *views.Cache
	Prefs    *prefs.Resolver
	Views    *views.Service
}

// NewServices connects the stores named by cfg and builds the views service.
func NewServices(ctx context.Context, cfg *Config, logger *slog.Logger, metrics *observability.Metrics) (*Services, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry, err := views.LoadRegistry(cfg.ViewsFile)
	if err != nil {
		return nil, fmt.Errorf("app: load views: %w", err)
	}
	s := &Services{
		Config:   cfg,
		Logger:   logger,
		Registry: registry,
		Backend:  backend.NewClient(cfg.BackendURL, cfg.BackendTimeout, backend.WithLogger(logger)),
	}

	if cfg.RedisAddr != "" {
		client, err := cache.New(ctx, cfg.RedisAddr)
		if err != nil {
			logger.Warn("redis unavailable, list cache disabled", slog.Any("error", err))
		} else {
			s.Redis = client
		}
	}

	store, err := s.prefsStore(ctx)
	if err != nil {
		s.Close()
		return nil, err
	}

	s.Cache = views.NewCache(s.Redis, cfg.ListCacheTTL)
	s.Cache.OnLookup(metrics.CacheLookup)
	s.Views = views.NewService(views.Config{
		Registry:        registry,
		Backend:         s.Backend,
		Cache:           s.Cache,
		Logger:          logger,
		SearchMinLength: cfg.SearchMinLength,
	})
	s.Prefs = prefs.NewResolver(store, s.Views.DefaultPageSize(), cfg.DefaultPageSize, logger)
	s.Views.UsePrefs(s.Prefs)
	return s, nil
}

func (s *Services) prefsStore(ctx context.Context) (prefs.Store, error) {
	switch s.Config.PrefsStore {
	case PrefsStorePostgres:
		pool, err := db.New(ctx, s.Config.PGDSN)
		if err != nil {
			return nil, fmt.Errorf("app: prefs store: %w", err)
		}
		s.Pool = pool
		applied, err := db.Migrate(ctx, pool, migrations.Files)
		if err != nil {
			return nil, fmt.Errorf("app: prefs store: %w", err)
		}
		if len(applied) > 0 {
			s.Logger.Info("applied migrations", slog.Any("names", applied))
		}
		return prefs.NewPostgresStore(pool), nil
	case PrefsStoreRedis:
		if s.Redis != nil {
			return prefs.NewRedisStore(s.Redis, prefsKeyPrefix, s.Config.PrefsTTL), nil
		}
		s.Logger.Warn("redis unavailable, page sizes kept in memory")
	}
	return prefs.NewMemoryStore(), nil
}

// Close releases the connections opened by NewServices.
func (s *Services) Close() {
	if s == nil {
		return
	}
	if s.Pool != nil {
		s.Pool.Close()
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			s.Logger.Warn("redis close", slog.Any("error", err))
		}
	}
}
