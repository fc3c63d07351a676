package servicedesk

import (
	"embed"
	"time"

	"github.com/gorilla/mux"
	"github.com/pressly/goose/v3"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/handlers"
	"github.com/iota-uz/servicedesk/modules/servicedesk/infrastructure/persistence"
	"github.com/iota-uz/servicedesk/modules/servicedesk/presentation/controllers"
	"github.com/iota-uz/servicedesk/modules/servicedesk/services"
	"github.com/iota-uz/servicedesk/pkg/application"
)

//go:embed presentation/locales/*.json presentation/locales/*.toml
var localeFiles embed.FS

const defaultAdminLoginPath = "/admin/login"

type ModuleOptions struct {
	// Repository overrides the store. By default the module uses PostgreSQL
	// when the application has a pool and an in-memory store otherwise.
	Repository request.Repository
	// Authorizer checks role policies; nil only requires an authenticated actor.
	Authorizer services.Authorizer
	Location   *time.Location
	Now        func() time.Time
	// SubmitLimit throttles POST /servicedesk/api/requests.
	SubmitLimit    mux.MiddlewareFunc
	AdminLoginPath string
}

func NewModule(opts *ModuleOptions) application.Module {
	if opts == nil {
		opts = &ModuleOptions{}
	}
	return &Module{options: opts}
}

type Module struct {
	options *ModuleOptions
}

func (m *Module) Register(app application.Application) error {
	app.RegisterLocaleFiles(&localeFiles)
	app.Migrations().RegisterSchema(goose.DialectPostgres, persistence.PostgresMigrations())
	app.Migrations().RegisterSchema(goose.DialectSQLite3, persistence.SQLiteMigrations())

	repo := m.repository(app)
	if pg, ok := repo.(*persistence.PgRepository); ok {
		app.RegisterWorkers(pg.Listen)
	}

	requestService := services.NewRequestService(
		repo,
		app.EventPublisher(),
		app.Notifier(),
		m.options.Authorizer,
		services.WithLocation(m.options.Location),
		services.WithClock(m.options.Now),
		services.WithLogger(app.Logger()),
	)
	app.RegisterServices(
		requestService,
		services.NewLiveService(requestService, repo, app.Feed()),
		services.NewRevenueService(requestService, repo),
		services.NewExportService(requestService),
	)
	handlers.RegisterRequestEventHandlers(app.EventPublisher(), app.Logger())

	loginPath := m.options.AdminLoginPath
	if loginPath == "" {
		loginPath = defaultAdminLoginPath
	}
	live := controllers.NewLiveController(app)
	app.RegisterControllers(
		controllers.NewRequestAPIController(app, m.options.SubmitLimit),
		controllers.NewAdminController(app, loginPath),
		live,
	)
	app.RegisterWorkers(live.Relay)
	app.Seeder().Register(seedRequests(repo))
	return nil
}

func (m *Module) repository(app application.Application) request.Repository {
	if m.options.Repository != nil {
		return m.options.Repository
	}
	if app.DB() != nil {
		return persistence.NewPgRepository(app.DB(), app.Feed(), app.Logger())
	}
	return persistence.NewMemoryRepository(app.Feed(), m.options.Now)
}

func (m *Module) Name() string {
	return "servicedesk"
}
