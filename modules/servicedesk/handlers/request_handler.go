package handlers

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/pkg/eventbus"
)

var (
	submittedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servicedesk",
		Subsystem: "requests",
		Name:      "submitted_total",
		Help:      "Service requests stored, by device category.",
	}, []string{"category"})

	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servicedesk",
		Subsystem: "requests",
		Name:      "transitions_total",
		Help:      "Applied status changes, by edge.",
	}, []string{"from", "to"})

	billedAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "servicedesk",
		Subsystem: "requests",
		Name:      "billed_amount_total",
		Help:      "Sum of costs recorded at completion.",
	})
)

// RequestEventsHandler turns lifecycle events into an audit log and metrics.
type RequestEventsHandler struct {
	logger *logrus.Entry
}

// RegisterRequestEventHandlers subscribes to the request events on bus and
// returns a function that removes the subscriptions.
func RegisterRequestEventHandlers(bus eventbus.EventBus, logger *logrus.Logger) func() {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	h := &RequestEventsHandler{logger: logger.WithField("component", "servicedesk-audit")}
	unsubscribe := []func(){
		bus.Subscribe(h.onSubmitted),
		bus.Subscribe(h.onStatusChanged),
		bus.Subscribe(h.onCompleted),
	}
	return func() {
		for _, fn := range unsubscribe {
			fn()
		}
	}
}

func (h *RequestEventsHandler) onSubmitted(ctx context.Context, e *request.SubmittedEvent) {
	submittedTotal.WithLabelValues(string(e.Request.Category())).Inc()
	h.logger.WithFields(logrus.Fields{
		"request":  e.Request.ID().String(),
		"actor":    e.ActorID,
		"category": e.Request.Category(),
	}).Info("service request submitted")
}

func (h *RequestEventsHandler) onStatusChanged(ctx context.Context, e *request.StatusChangedEvent) {
	transitionsTotal.WithLabelValues(string(e.From), string(e.To)).Inc()
	h.logger.WithFields(logrus.Fields{
		"request": e.Request.ID().String(),
		"actor":   e.ActorID,
		"from":    e.From,
		"to":      e.To,
	}).Info("service request status changed")
}

func (h *RequestEventsHandler) onCompleted(ctx context.Context, e *request.CompletedEvent) {
	transitionsTotal.WithLabelValues(string(e.From), string(request.StatusCompleted)).Inc()
	fields := logrus.Fields{
		"request": e.Request.ID().String(),
		"actor":   e.ActorID,
		"from":    e.From,
	}
	if cost, ok := e.Request.Cost(); ok {
		amount, _ := cost.Float64()
		billedAmountTotal.Add(amount)
		fields["cost"] = cost.StringFixed(2)
	}
	h.logger.WithFields(fields).Info("service request completed")
}
