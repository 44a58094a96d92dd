package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"redwhite/dashboard-bff/internal/audit"
	"redwhite/dashboard-bff/internal/auth"
	"redwhite/dashboard-bff/internal/config"
	"redwhite/dashboard-bff/internal/csrf"
	"redwhite/dashboard-bff/internal/events"
	"redwhite/dashboard-bff/internal/experiments"
	"redwhite/dashboard-bff/internal/httpserver"
	"redwhite/dashboard-bff/internal/migrations"
	"redwhite/dashboard-bff/internal/observability"
	"redwhite/dashboard-bff/internal/sessioncache"
	"redwhite/dashboard-bff/internal/upstream"
)

const sessionCacheSweep = time.Minute

type App struct {
	cfg      config.Config
	log      *slog.Logger
	db       *sql.DB
	redis    *redis.Client
	server   *httpserver.Server
	bridge   *events.RedisBridge
	memCache *sessioncache.Memory
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{cfg: cfg, log: observability.NewLogger()}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.cfg

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		a.db = db
		if err := db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		if err := migrations.Up(db); err != nil {
			return err
		}
		a.log.Info("database migrations applied")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		a.redis = redis.NewClient(opts)
		if err := a.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("ping redis: %w", err)
		}
	}

	authenticator, debugInfo, err := a.buildAuthenticator(ctx)
	if err != nil {
		return err
	}
	authenticator, err = a.wrapSessionCache(authenticator)
	if err != nil {
		return err
	}

	var store experiments.Store
	if a.db != nil {
		store, err = experiments.NewPGService(a.db)
	} else {
		store, err = experiments.NewServiceWithFile(cfg.ExperimentsStateFile)
	}
	if err != nil {
		return fmt.Errorf("create experiments store: %w", err)
	}
	if err := store.EnsureSeed(ctx); err != nil {
		return fmt.Errorf("seed experiments: %w", err)
	}

	hub := events.NewHub(16, a.log)
	var broadcaster events.Broadcaster = hub
	if a.redis != nil {
		a.bridge = events.NewRedisBridge(a.redis, events.DefaultChannel, hub, a.log)
		broadcaster = a.bridge
	}

	a.server = httpserver.New(cfg.HTTP, httpserver.Deps{
		Auth:            authenticator,
		CSRF:            csrf.NewGenerator(cfg.CSRFSecret),
		Experiments:     store,
		Events:          hub,
		Broadcaster:     broadcaster,
		Audit:           audit.NewLogger(cfg.AuditLogFile, a.log),
		Probes:          a.probes(),
		Logger:          a.log,
		Cookie:          cfg.Cookie,
		Gate:            cfg.Gate,
		SSE:             cfg.SSE,
		LoginRateLimit:  cfg.LoginRateLimit,
		FrontendDistDir: cfg.FrontendDistDir,
		Debug:           cfg.Debug,
		DebugInfo:       debugInfo,
	})
	return nil
}

// buildAuthenticator picks the upstream webhook when configured and the
// built-in user store otherwise.
func (a *App) buildAuthenticator(ctx context.Context) (auth.Authenticator, func() map[string]any, error) {
	cfg := a.cfg
	if cfg.Upstream.Enabled() {
		client, err := upstream.New(cfg.Upstream, a.log)
		if err != nil {
			return nil, nil, fmt.Errorf("create upstream client: %w", err)
		}
		a.log.Info("using upstream session authority", "url", cfg.Upstream.URL, "jwt_mode", client.Mode())
		return client, upstreamDebugInfo(cfg.Upstream, client), nil
	}

	var (
		users    auth.UserStore
		sessions auth.SessionStore
		err      error
	)
	if a.db != nil {
		if users, err = auth.NewPostgresUserStore(a.db); err != nil {
			return nil, nil, fmt.Errorf("create postgres user store: %w", err)
		}
		if sessions, err = auth.NewPostgresSessionStore(a.db); err != nil {
			return nil, nil, fmt.Errorf("create postgres session store: %w", err)
		}
	} else {
		if users, err = auth.NewFileUserStore(cfg.Auth.UserStateFile); err != nil {
			return nil, nil, fmt.Errorf("create user store: %w", err)
		}
	}

	svc, err := auth.NewService(users, auth.ServiceConfig{
		SessionTTL:       cfg.Auth.SessionTTL,
		SessionStateFile: cfg.Auth.SessionStateFile,
		SessionStore:     sessions,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("create auth service: %w", err)
	}
	if err := svc.LoadSessionState(ctx); err != nil {
		return nil, nil, fmt.Errorf("load auth session state: %w", err)
	}
	if err := svc.EnsureUser(ctx, auth.User{Email: cfg.Auth.BootstrapEmail, Name: "Administrador"}, cfg.Auth.BootstrapPassword); err != nil {
		return nil, nil, err
	}
	a.log.Info("using local session authority", "bootstrap_email", cfg.Auth.BootstrapEmail)

	info := func() map[string]any {
		return map[string]any{
			"authority":       "local",
			"active_sessions": len(svc.ListSessions(context.Background())),
		}
	}
	return svc, info, nil
}

func (a *App) wrapSessionCache(next auth.Authenticator) (auth.Authenticator, error) {
	ttl := a.cfg.SessionCacheTTL
	if ttl <= 0 {
		return next, nil
	}
	if a.redis != nil {
		cache, err := sessioncache.NewRedis(a.redis, ttl)
		if err != nil {
			return nil, fmt.Errorf("create redis session cache: %w", err)
		}
		return auth.NewCachedAuthenticator(next, cache, a.log), nil
	}
	a.memCache = sessioncache.NewMemory(ttl)
	return auth.NewCachedAuthenticator(next, a.memCache, a.log), nil
}

func (a *App) probes() []httpserver.Probe {
	var probes []httpserver.Probe
	if a.db != nil {
		probes = append(probes, httpserver.Probe{Name: "postgres", Ping: a.db.PingContext})
	}
	if a.redis != nil {
		rdb := a.redis
		probes = append(probes, httpserver.Probe{Name: "redis", Ping: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	return probes
}

func upstreamDebugInfo(cfg config.UpstreamConfig, client *upstream.Client) func() map[string]any {
	return func() map[string]any {
		preview := client.TokenPreview()
		return map[string]any{
			"authority":           "upstream",
			"n8n_url":             cfg.URL,
			"jwt_alg":             cfg.JWTAlg,
			"jwt_mode":            client.Mode(),
			"auth_header_present": preview != "",
			"auth_header_preview": preview,
			"timeout_s":           cfg.Timeout.Seconds(),
			"pool": map[string]int{
				"max_connections": cfg.MaxConns,
				"max_keepalive":   cfg.MaxIdleConns,
			},
		}
	}
}

func (a *App) Run(ctx context.Context) error {
	defer a.close()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server exited: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown server: %w", err)
		}
		return nil
	})

	if a.bridge != nil {
		g.Go(func() error {
			// Losing the bridge degrades broadcasts to this instance only.
			if err := a.bridge.Run(gctx); err != nil {
				a.log.Error("event bridge stopped", "error", err)
			}
			return nil
		})
	}

	if a.memCache != nil {
		g.Go(func() error {
			a.memCache.Run(gctx, sessionCacheSweep)
			return nil
		})
	}

	return g.Wait()
}

func (a *App) close() {
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
