package main

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoequity/internal/assistant"
	"github.com/sells-group/geoequity/internal/ejv"
	"github.com/sells-group/geoequity/internal/fetcher"
	"github.com/sells-group/geoequity/internal/indicators"
	"github.com/sells-group/geoequity/internal/metrics"
	"github.com/sells-group/geoequity/internal/overpass"
	"github.com/sells-group/geoequity/internal/refdata"
	"github.com/sells-group/geoequity/internal/store"
	anthropicpkg "github.com/sells-group/geoequity/pkg/anthropic"
)

// scoringEnv holds the initialized engine and its collaborators for the
// serve and score commands.
type scoringEnv struct {
	Tables    *refdata.Tables
	Engine    *ejv.Engine
	Store     store.Store // may be nil
	Proxy     *overpass.Proxy
	Assistant *assistant.Assistant
	Registry  *prometheus.Registry

	redis *redis.Client
}

// Close releases resources held by the environment.
func (e *scoringEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
	if e.redis != nil {
		_ = e.redis.Close()
	}
}

// initScoring builds the engine, cache, history store, Overpass proxy and
// assistant from cfg. Callers should defer env.Close().
func initScoring(ctx context.Context, mode string) (*scoringEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	obs := metrics.NewRecorder(reg)
	env := &scoringEnv{Tables: refdata.Default(), Registry: reg}

	cache, err := env.initCache(ctx)
	if err != nil {
		return nil, err
	}

	// Gateway reads are single-attempt; a failed read degrades to its default.
	gwFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Attempts: 1})
	gwOpts := []indicators.Option{indicators.WithObserver(obs)}
	if cache != nil {
		gwOpts = append(gwOpts, indicators.WithCache(cache))
	}
	gateway := indicators.NewGateway(cfg.Gateway.Indicators(), gwFetcher, gwOpts...)

	engine, err := ejv.NewEngine(env.Tables, gateway,
		ejv.WithObserver(obs),
		ejv.WithParams(cfg.Scoring.Params()),
	)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "init engine")
	}
	env.Engine = engine

	st, err := initStore(ctx)
	if err != nil {
		env.Close()
		return nil, err
	}
	if st != nil {
		if err := st.Migrate(ctx); err != nil {
			_ = st.Close()
			env.Close()
			return nil, eris.Wrap(err, "migrate store")
		}
		env.Store = st
	}

	proxyFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{Attempts: 1})
	env.Proxy = overpass.NewProxy(cfg.Overpass.Proxy(), proxyFetcher, overpass.WithObserver(obs))

	var client anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		client = anthropicpkg.NewClient(cfg.Anthropic.Key)
	}
	env.Assistant = assistant.New(client, assistant.Config{
		Model:       cfg.Anthropic.Model,
		MaxTokens:   cfg.Anthropic.MaxTokens,
		Temperature: cfg.Anthropic.Temperature,
	})

	zap.L().Info("scoring environment ready",
		zap.String("tables_version", env.Tables.Version),
		zap.String("cache", cfg.Cache.Driver),
		zap.String("store", cfg.Store.Driver),
		zap.Bool("assistant", env.Assistant.Available()),
	)
	return env, nil
}

// initCache returns the configured indicator cache, or nil when disabled.
func (e *scoringEnv) initCache(ctx context.Context) (indicators.Cache, error) {
	switch cfg.Cache.Driver {
	case "memory":
		return indicators.NewMemoryCache(cfg.Cache.MaxEntries, cfg.Cache.TTL()), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, eris.Wrapf(err, "ping redis %s", cfg.Cache.RedisAddr)
		}
		e.redis = client
		return indicators.NewRedisCache(client, "geoequity:indicators:", cfg.Cache.TTL()), nil
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported cache driver: %s", cfg.Cache.Driver)
	}
}

// initStore opens the configured history store, or nil when disabled.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "geoequity.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}
