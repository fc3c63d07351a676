package services

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/pkg/notify"
	"github.com/iota-uz/servicedesk/pkg/serrors"
)

var tracer = otel.Tracer("servicedesk-services")

var mutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "servicedesk",
	Subsystem: "requests",
	Name:      "mutations_total",
	Help:      "Service request mutations by operation and outcome.",
}, []string{"operation", "outcome"})

func outcome(err error) string {
	var verrs serrors.ValidationErrors
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &verrs), request.IsViolation(err):
		return "invalid"
	case errors.Is(err, request.ErrConflict):
		return "conflict"
	case notify.IsPermissionDenied(err):
		return "denied"
	default:
		return "error"
	}
}

func observe(operation string, err error) {
	mutationsTotal.WithLabelValues(operation, outcome(err)).Inc()
}
