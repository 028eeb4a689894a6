// Package main is the entry point for the ERP console server.
// It wires all dependencies together and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	flag "github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/pitabwire/erpconsole/internal/access"
	"github.com/pitabwire/erpconsole/internal/backend"
	"github.com/pitabwire/erpconsole/internal/config"
	"github.com/pitabwire/erpconsole/internal/dashboard"
	"github.com/pitabwire/erpconsole/internal/definition"
	"github.com/pitabwire/erpconsole/internal/form"
	"github.com/pitabwire/erpconsole/internal/navigation"
	"github.com/pitabwire/erpconsole/internal/observability"
	"github.com/pitabwire/erpconsole/internal/schema"
	"github.com/pitabwire/erpconsole/internal/session"
	"github.com/pitabwire/erpconsole/internal/transport"
	"github.com/pitabwire/erpconsole/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Step 1: Parse CLI flags.
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	envFile := flag.String("env-file", ".env", "optional dotenv file loaded before environment overrides")
	flag.Parse()

	// Step 2: Load configuration.
	if err := config.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	// Step 3: Initialize telemetry (logger, tracer, metrics).
	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "erpconsole", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	metrics := observability.InitMetrics(prometheus.DefaultRegisterer)

	// Step 4: Session store and cookie signing.
	signingKey := os.Getenv(cfg.Session.SigningKeyEnv)
	if signingKey == "" {
		logger.Error("session signing key not set", zap.String("env", cfg.Session.SigningKeyEnv))
		return 1
	}
	tokens, err := session.NewTokenCodec([]byte(signingKey))
	if err != nil {
		logger.Error("session signing key rejected", zap.Error(err))
		return 1
	}

	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()

	store, storeCloser, err := buildSessionStore(bgCtx, cfg.Session.Store, logger)
	if err != nil {
		logger.Error("session store initialization failed", zap.Error(err))
		return 1
	}
	sessions := session.NewManager(store, cfg.Session.TTL, logger)

	// Step 5: Role policy and permission resolver.
	policy, err := access.NewStaticPolicy(cfg.Access.PolicyFile)
	if err != nil {
		logger.Error("role policy load failed", zap.Error(err))
		return 1
	}
	resolver, err := access.NewResolver(policy,
		int64(cfg.Access.Cache.MaxEntries),
		cfg.Access.Cache.TTL,
		access.WithCacheObserver(metrics.RecordPermissionCache),
	)
	if err != nil {
		logger.Error("permission resolver initialization failed", zap.Error(err))
		return 1
	}
	defer resolver.Close()

	if cfg.Access.WatchPolicy {
		onReload := func() {
			resolver.Invalidate()
			metrics.RecordPolicyReload("success")
		}
		if err := access.Watch(bgCtx, policy, onReload, logger); err != nil {
			logger.Warn("policy hot reload disabled", zap.Error(err))
		}
	}

	// Step 6: Backend response schemas (optional).
	var (
		schemaSet  definition.SchemaSet
		itemChecks backend.ItemValidator
	)
	mode := schema.Mode(cfg.Backend.Schema.Mode)
	if mode != "" && mode != schema.ModeOff {
		reg, err := schema.Load(ctx, cfg.Backend.Schema.SpecFile)
		if err != nil {
			logger.Error("backend schema load failed", zap.Error(err))
			return 1
		}
		v, err := schema.NewValidator(reg, mode, logger, metrics.RecordSchemaViolation)
		if err != nil {
			logger.Error("backend schema validator failed", zap.Error(err))
			return 1
		}
		schemaSet, itemChecks = reg, v
		logger.Info("backend schema validation enabled",
			zap.String("mode", string(mode)),
			zap.Int("schemas", len(reg.Names())),
		)
	}

	// Step 7: Load definitions, validate, build registry.
	forms := form.NewValidator()
	validator := definition.NewValidator(forms, schemaSet)
	defs, err := loadDefinitions(cfg.Definitions, validator, logger)
	if err != nil {
		logger.Error("definition loading failed", zap.Error(err))
		return 1
	}
	registry := definition.NewRegistry(defs)
	metrics.SetDefinitionsLoaded(float64(registry.Count()))
	go reloadDefinitionsOnHangup(bgCtx, cfg.Definitions, validator, registry, metrics, logger)

	// Step 8: Backend client.
	client, err := backend.NewClient(cfg.Backend,
		backend.WithMetrics(metrics),
		backend.WithLogger(logger),
	)
	if err != nil {
		logger.Error("backend client initialization failed", zap.Error(err))
		return 1
	}

	// Step 9: Build HTTP router.
	readinessChecks := observability.ReadinessChecks{
		DefinitionsLoaded: func() bool { return registry.Count() > 0 },
		PolicyLoaded:      func() bool { return policy.Roles() > 0 },
		SessionStore:      store,
		Backend:           client,
	}

	router := transport.NewRouter(transport.Dependencies{
		Config:    cfg,
		Logger:    logger,
		Metrics:   metrics,
		Readiness: readinessChecks,
		Sessions:  sessions,
		Tokens:    tokens,
		Resolver:  resolver,
		Backend:   client,
		Auth:      backend.NewAuth(client),
		Schemas:   itemChecks,
		Registry:  registry,
		Forms:     forms,
		Dashboard: dashboard.NewLoader(client, cfg.Dashboard, metrics, logger),
		Menu:      navigation.NewBuilder(registry),
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Step 10: Start HTTP server.
	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("resources", registry.Count()),
		zap.String("session_store", cfg.Session.Store.Driver),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error.
	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	// Graceful shutdown sequence.
	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// Cancel background tasks.
	bgCancel()

	if storeCloser != nil {
		storeCloser()
	}

	// Flush telemetry.
	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildSessionStore creates the session store based on config.
func buildSessionStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (session.Store, func(), error) {
	switch cfg.Driver {
	case "memory", "":
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(), nil, nil

	case "redis":
		addr := os.Getenv(cfg.AddrEnv)
		if addr == "" {
			return nil, nil, fmt.Errorf("session store: %s environment variable not set", cfg.AddrEnv)
		}
		client := redis.NewClient(&redis.Options{Addr: addr, DB: cfg.DB})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("session store: ping redis: %w", err)
		}
		logger.Info("using redis session store", zap.String("addr", addr), zap.Int("db", cfg.DB))
		return session.NewRedisStore(client), func() { _ = client.Close() }, nil

	case "postgres":
		dsn := os.Getenv(cfg.DSNEnv)
		if dsn == "" {
			return nil, nil, fmt.Errorf("session store: %s environment variable not set", cfg.DSNEnv)
		}

		poolCfg, err := pgxpool.ParseConfig(dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: parse DSN: %w", err)
		}
		if cfg.MaxOpenConns > 0 {
			poolCfg.MaxConns = int32(cfg.MaxOpenConns)
		}
		poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, nil, fmt.Errorf("session store: connect: %w", err)
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("session store: ping: %w", err)
		}

		store := session.NewPgStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		go purgeExpiredSessions(ctx, store, 10*time.Minute, logger)
		logger.Info("using postgres session store")
		return store, pool.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported session store driver: %q", cfg.Driver)
	}
}

// purgeExpiredSessions periodically deletes expired rows.
func purgeExpiredSessions(ctx context.Context, store *session.PgStore, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.PurgeExpired(ctx)
			if err != nil {
				logger.Error("expired session purge failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Debug("expired sessions purged", zap.Int64("count", n))
			}
		}
	}
}

// loadDefinitions reads and validates every definition file.
func loadDefinitions(cfg config.DefinitionsConfig, validator *definition.Validator, logger *zap.Logger) ([]model.DomainDefinition, error) {
	defs, err := definition.NewLoader().LoadAll(cfg.Directories)
	if err != nil {
		return nil, err
	}
	if verrs := validator.Validate(defs); len(verrs) > 0 {
		for _, ve := range verrs {
			logger.Error("definition validation error", zap.String("error", ve.Error()))
		}
		return nil, fmt.Errorf("%d definition errors", len(verrs))
	}
	return defs, nil
}

// reloadDefinitionsOnHangup swaps in freshly loaded definitions on SIGHUP.
// A set that fails to load or validate leaves the current one in place.
func reloadDefinitionsOnHangup(ctx context.Context, cfg config.DefinitionsConfig, validator *definition.Validator, registry *definition.Registry, metrics *observability.Metrics, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			defs, err := loadDefinitions(cfg, validator, logger)
			if err != nil {
				metrics.RecordDefinitionReload("failure")
				logger.Warn("definition reload failed, keeping current definitions", zap.Error(err))
				continue
			}
			registry.Replace(defs)
			metrics.RecordDefinitionReload("success")
			metrics.SetDefinitionsLoaded(float64(registry.Count()))
			logger.Info("definitions reloaded",
				zap.Int("resources", registry.Count()),
				zap.String("checksum", registry.Checksum()),
			)
		}
	}
}
