package itf

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/composables"
)

// TestContext provides a fluent API for building postgres-backed test contexts
type TestContext struct {
	ctx     context.Context
	actor   *composables.Actor
	modules []application.Module
	dbName  string
}

func NewTestContext() *TestContext {
	return &TestContext{
		ctx: context.Background(),
	}
}

func (tc *TestContext) WithModules(modules ...application.Module) *TestContext {
	tc.modules = append(tc.modules, modules...)
	return tc
}

func (tc *TestContext) WithActor(a composables.Actor) *TestContext {
	tc.actor = &a
	return tc
}

func (tc *TestContext) WithDBName(name string) *TestContext {
	tc.dbName = name
	return tc
}

// Build creates a fresh database, registers the modules and applies their
// postgres migrations. The test is skipped when no server is reachable.
func (tc *TestContext) Build(tb testing.TB) *TestEnvironment {
	tb.Helper()

	if err := Available(); err != nil {
		tb.Skipf("postgres unavailable: %v", err)
	}
	if tc.dbName == "" {
		tc.dbName = tb.Name()
	}
	CreateDB(tc.dbName)
	pool := NewPool(DbOpts(tc.dbName))
	tb.Cleanup(pool.Close)

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	app := application.New(&application.ApplicationOptions{
		Pool:   pool,
		Logger: logger,
	})
	for _, m := range tc.modules {
		if err := m.Register(app); err != nil {
			tb.Fatal(err)
		}
	}

	db := stdlib.OpenDBFromPool(pool)
	tb.Cleanup(func() { _ = db.Close() })
	if err := app.Migrations().Up(tc.ctx, goose.DialectPostgres, db); err != nil {
		tb.Fatal(err)
	}

	ctx := composables.WithPool(tc.ctx, pool)
	if tc.actor != nil {
		ctx = composables.WithActor(ctx, *tc.actor)
	}
	return &TestEnvironment{
		Ctx:  ctx,
		Pool: pool,
		App:  app,
	}
}

type TestEnvironment struct {
	Ctx  context.Context
	Pool *pgxpool.Pool
	App  application.Application
}

// GetService is a generic helper that retrieves and casts a service
func GetService[T any](te *TestEnvironment) *T {
	var zero T
	return te.App.Service(zero).(*T)
}

// As returns the environment context acting as a.
func (te *TestEnvironment) As(a composables.Actor) context.Context {
	return composables.WithActor(te.Ctx, a)
}
