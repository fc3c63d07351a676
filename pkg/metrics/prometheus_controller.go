// Package metrics serves the process collectors over HTTP. The service desk
// mutation, live query and notification counters register with the default
// registry and show up here.
package metrics

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iota-uz/servicedesk/pkg/application"
)

const DefaultPath = "/debug/prometheus"

type Options struct {
	Path string
	// Gatherer defaults to prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

type PrometheusController struct {
	path    string
	handler http.Handler
}

func NewPrometheusController(opts Options) *PrometheusController {
	if opts.Path == "" {
		opts.Path = DefaultPath
	}
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	return &PrometheusController{
		path: opts.Path,
		handler: promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{
			ErrorHandling:     promhttp.ContinueOnError,
			EnableOpenMetrics: true,
		}),
	}
}

func (c *PrometheusController) Key() string {
	return c.path
}

func (c *PrometheusController) Register(r *mux.Router) {
	r.Handle(c.path, c.handler).Methods(http.MethodGet, http.MethodHead)
}

var _ application.Controller = (*PrometheusController)(nil)
