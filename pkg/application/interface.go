package application

import (
	"context"
	"embed"
	"reflect"

	"github.com/gorilla/mux"
	"github.com/iota-uz/go-i18n/v2/i18n"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/servicedesk/pkg/eventbus"
	"github.com/iota-uz/servicedesk/pkg/livequery"
	"github.com/iota-uz/servicedesk/pkg/notify"
)

type Controller interface {
	Register(r *mux.Router)
	Key() string
}

type Module interface {
	Register(app Application) error
	Name() string
}

// Worker is a long-running job started alongside the HTTP server. It returns
// when ctx is cancelled.
type Worker func(ctx context.Context) error

type SeedFunc func(ctx context.Context, app Application) error

type Seeder interface {
	Seed(ctx context.Context, app Application) error
	Register(seedFuncs ...SeedFunc)
}

// Application with a dynamically extendable service registry
type Application interface {
	// DB is nil unless the postgres backend is configured.
	DB() *pgxpool.Pool
	Logger() *logrus.Logger
	EventPublisher() eventbus.EventBus
	Notifier() *notify.Channel
	Feed() *livequery.Feed
	Websocket() Huber
	Controllers() []Controller
	Middleware() []mux.MiddlewareFunc
	Migrations() MigrationManager
	Seeder() Seeder
	RegisterControllers(controllers ...Controller)
	RegisterMiddleware(middleware ...mux.MiddlewareFunc)
	RegisterLocaleFiles(fs ...*embed.FS)
	RegisterServices(services ...any)
	RegisterWorkers(workers ...Worker)
	Workers() []Worker
	Service(service any) any
	Services() map[reflect.Type]any
	Bundle() *i18n.Bundle
	GetSupportedLanguages() []string
}
