package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/iota-uz/servicedesk/internal/server"
	"github.com/iota-uz/servicedesk/modules/servicedesk/services"
	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/configuration"
	"github.com/iota-uz/servicedesk/pkg/logging"
	"github.com/iota-uz/servicedesk/pkg/metrics"
)

type serveOptions struct {
	migrate bool
	seed    bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server with the live query relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configuration.Use(), opts)
		},
	}
	cmd.Flags().BoolVar(&opts.migrate, "migrate", true, "Apply pending migrations before serving (sqlite and postgres)")
	cmd.Flags().BoolVar(&opts.seed, "seed", false, "Load demo requests before serving")
	return cmd
}

func runServe(parent context.Context, conf *configuration.Configuration, opts serveOptions) error {
	logger := conf.Logger()

	if conf.OpenTelemetry.Enabled {
		tracingCleanup := logging.SetupTracing(
			context.Background(),
			conf.OpenTelemetry.ServiceName,
			conf.OpenTelemetry.TempoURL,
		)
		defer tracingCleanup()
		logger.Info("OpenTelemetry tracing enabled, exporting to Tempo at " + conf.OpenTelemetry.TempoURL)
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	env, err := bootstrap(ctx, conf)
	if err != nil {
		return err
	}
	defer env.Close()
	app := env.app

	if opts.migrate && env.db != nil {
		if err := env.migrateUp(ctx); err != nil {
			return err
		}
	}
	if opts.seed {
		if err := app.Seeder().Seed(ctx, app); err != nil {
			return withCode(exitDB, err)
		}
	}

	if conf.Prometheus.Enabled {
		app.RegisterControllers(metrics.NewPrometheusController(metrics.Options{Path: conf.Prometheus.Path}))
	}
	srv := server.Default(&server.DefaultOptions{
		Logger:        logger,
		Configuration: conf,
		Application:   app,
		Pool:          env.pool,
	})

	var wg sync.WaitGroup
	for _, worker := range app.Workers() {
		wg.Add(1)
		go func(w application.Worker) {
			defer wg.Done()
			if err := w(ctx); err != nil {
				logger.WithError(err).Error("background worker stopped")
			}
		}(worker)
	}

	logger.Infof("Listening on: %s", conf.Origin)
	serveErr := srv.Start(ctx, conf.SocketAddress)
	stop()

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	requests := app.Service(services.RequestService{}).(*services.RequestService)
	if err := requests.Drain(drainCtx); err != nil {
		logger.WithError(err).Warn("pending submissions did not finish before shutdown")
	}
	wg.Wait()
	return serveErr
}
