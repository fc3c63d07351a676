package server

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/configuration"
	"github.com/iota-uz/servicedesk/pkg/constants"
	"github.com/iota-uz/servicedesk/pkg/httpapi"
	"github.com/iota-uz/servicedesk/pkg/middleware"
	"github.com/iota-uz/servicedesk/pkg/server"
)

type DefaultOptions struct {
	Logger        *logrus.Logger
	Configuration *configuration.Configuration
	Application   application.Application
	// Pool is nil unless the postgres backend is configured.
	Pool *pgxpool.Pool
}

// Default installs the shared middleware stack on the application and
// returns a server over its controllers.
func Default(options *DefaultOptions) *server.HTTPServer {
	app := options.Application
	conf := options.Configuration

	loggerOpts := middleware.DefaultLoggerOptions()
	loggerOpts.RequestIDHeader = conf.RequestIDHeader
	loggerOpts.RealIPHeader = conf.RealIPHeader

	middlewares := []mux.MiddlewareFunc{
		middleware.WithLogger(options.Logger, loggerOpts),

		middleware.Provide(constants.AppKey, app),
	}
	if options.Pool != nil {
		middlewares = append(middlewares, middleware.Provide(constants.PoolKey, options.Pool))
	}
	middlewares = append(middlewares,
		middleware.TracedMiddleware("cors"),
		middleware.Cors(conf.CorsOrigins()...),

		middleware.TracedMiddleware("identity"),
		middleware.ProvideActor(conf.Identity),
	)
	app.RegisterMiddleware(middlewares...)

	return server.NewHTTPServer(
		app,
		httpapi.StatusHandler(http.StatusNotFound, "NOT_FOUND"),
		httpapi.StatusHandler(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED"),
	)
}
