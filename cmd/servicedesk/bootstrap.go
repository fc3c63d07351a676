package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"github.com/ulule/limiter/v3"

	"github.com/iota-uz/servicedesk/modules"
	"github.com/iota-uz/servicedesk/modules/servicedesk"
	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/infrastructure/persistence"
	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/authz"
	"github.com/iota-uz/servicedesk/pkg/configuration"
	"github.com/iota-uz/servicedesk/pkg/eventbus"
	"github.com/iota-uz/servicedesk/pkg/middleware"
	"github.com/iota-uz/servicedesk/pkg/notify"
)

// environment is a fully wired application for one command invocation.
type environment struct {
	conf *configuration.Configuration
	app  application.Application
	pool *pgxpool.Pool
	// db is the database/sql handle migrations run against; nil for the
	// memory backend.
	db      *sql.DB
	dialect goose.Dialect
}

func bootstrap(ctx context.Context, conf *configuration.Configuration) (*environment, error) {
	logger := conf.Logger()
	env := &environment{conf: conf}

	authorizer, err := authz.NewService(authz.ConfigFrom(conf))
	if err != nil {
		return nil, withCode(exitConfig, fmt.Errorf("authz: %w", err))
	}

	switch conf.Store.Backend {
	case configuration.StorePostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		env.pool, err = pgxpool.New(connectCtx, conf.Database.Opts)
		if err != nil {
			return nil, withCode(exitDB, fmt.Errorf("connect postgres: %w", err))
		}
		env.db, err = sql.Open("postgres", conf.Database.Opts)
		if err != nil {
			env.Close()
			return nil, withCode(exitDB, fmt.Errorf("open postgres: %w", err))
		}
		env.dialect = goose.DialectPostgres
	case configuration.StoreSQLite:
		env.db, err = persistence.OpenSQLite(conf.Store.SQLitePath)
		if err != nil {
			return nil, withCode(exitDB, fmt.Errorf("open sqlite %s: %w", conf.Store.SQLitePath, err))
		}
		env.dialect = goose.DialectSQLite3
	}

	submitLimit := submitLimiter(conf.RateLimit, logger)

	bundle := application.LoadBundle()
	env.app = application.New(&application.ApplicationOptions{
		Pool:     env.pool,
		Bundle:   bundle,
		EventBus: eventbus.NewEventPublisher(logger),
		Logger:   logger,
		Notifier: notify.New(notify.Options{Buffer: conf.Notify.Buffer, Logger: logger}),
		Huber: application.NewHub(&application.HuberOptions{
			Logger:      logger,
			CheckOrigin: originChecker(conf),
		}),
	})

	var repo request.Repository
	if conf.Store.Backend == configuration.StoreSQLite {
		repo = persistence.NewSQLiteRepository(env.db, env.app.Feed(), nil)
	}
	module := servicedesk.NewModule(&servicedesk.ModuleOptions{
		Repository:     repo,
		Authorizer:     authorizer,
		Location:       conf.Location(),
		SubmitLimit:    submitLimit,
		AdminLoginPath: conf.AdminLoginPath,
	})
	if err := modules.Load(env.app, module); err != nil {
		env.Close()
		return nil, withCode(exitConfig, fmt.Errorf("failed to load modules: %w", err))
	}
	return env, nil
}

func (e *environment) requireDB() error {
	if e.db == nil {
		return withCode(exitUsage, fmt.Errorf("STORE_BACKEND=%s has no schema; use sqlite or postgres", e.conf.Store.Backend))
	}
	return nil
}

func (e *environment) migrateUp(ctx context.Context) error {
	if err := e.requireDB(); err != nil {
		return err
	}
	if err := e.app.Migrations().Up(ctx, e.dialect, e.db); err != nil {
		return withCode(exitDB, err)
	}
	return nil
}

func (e *environment) Close() {
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			e.conf.Logger().WithError(err).Warn("failed to close database")
		}
	}
	if e.pool != nil {
		e.pool.Close()
	}
}

func submitLimiter(opts configuration.RateLimitOptions, logger *logrus.Logger) mux.MiddlewareFunc {
	if !opts.Enabled || opts.SubmitRPM == 0 {
		return nil
	}
	var store limiter.Store
	switch opts.Storage {
	case "redis":
		var err error
		store, err = middleware.NewRedisStore(opts.RedisURL)
		if err != nil {
			logger.WithError(err).Warn("Failed to create Redis store for rate limiting, falling back to memory")
			store = middleware.NewMemoryStore()
		}
	default:
		store = middleware.NewMemoryStore()
	}
	return middleware.RateLimit(middleware.RateLimitConfig{
		RequestsPerPeriod: opts.SubmitRPM,
		Period:            time.Minute,
		Store:             store,
	})
}

// originChecker admits websocket upgrades from the configured origin and the
// CORS allow list. Requests without an Origin header come from non-browser
// clients and are allowed.
func originChecker(conf *configuration.Configuration) func(r *http.Request) bool {
	allowed := map[string]struct{}{}
	for _, o := range append(conf.CorsOrigins(), conf.Origin) {
		allowed[strings.TrimRight(strings.ToLower(o), "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		if _, ok := allowed["*"]; ok {
			return true
		}
		_, ok := allowed[strings.ToLower(u.Scheme+"://"+u.Host)]
		return ok
	}
}
