// Package notify carries read and write failures from any component to a
// single consumer, usually the UI notification surface.
package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/servicedesk/pkg/composables"
	"github.com/iota-uz/servicedesk/pkg/intl"
	"github.com/iota-uz/servicedesk/pkg/serrors"
)

type Kind string

const (
	KindPermissionDenied Kind = "permission-denied"
	KindError            Kind = "error"
)

const (
	CodePermissionDenied = "PERMISSION_DENIED"
	codeAuthzForbidden   = "AUTHZ_FORBIDDEN"
)

var (
	ErrListenerAttached = errors.New("notify: a listener is already attached")
	ErrPermissionDenied = serrors.NewError(CodePermissionDenied, "permission denied", "Notifications.PermissionDenied.Message")
)

var notificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "servicedesk",
	Subsystem: "notify",
	Name:      "notifications_total",
	Help:      "Notifications reported to the error channel by kind and outcome.",
}, []string{"kind", "outcome"})

type Notification struct {
	Kind      Kind      `json:"kind"`
	Operation string    `json:"operation"`
	Subject   string    `json:"subject,omitempty"`
	// Actor is the user whose operation failed; empty for system work.
	Actor     string    `json:"-"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	At        time.Time `json:"at"`
	Err       error     `json:"-"`
}

// IsPermissionDenied reports whether err was raised by an access rule.
func IsPermissionDenied(err error) bool {
	switch serrors.Code(err) {
	case CodePermissionDenied, codeAuthzForbidden:
		return true
	}
	return false
}

type Options struct {
	Buffer int
	Logger *logrus.Logger
	// Classify overrides IsPermissionDenied.
	Classify func(error) bool
	Now      func() time.Time
}

type Channel struct {
	ch       chan Notification
	attached atomic.Bool
	dropped  atomic.Uint64
	log      *logrus.Entry
	classify func(error) bool
	now      func() time.Time
}

func New(opts Options) *Channel {
	if opts.Buffer <= 0 {
		opts.Buffer = 64
	}
	if opts.Classify == nil {
		opts.Classify = IsPermissionDenied
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Channel{
		ch:       make(chan Notification, opts.Buffer),
		log:      logger.WithField("component", "notify"),
		classify: opts.Classify,
		now:      opts.Now,
	}
}

// Report classifies err and enqueues a notification for the listener.
// It never blocks; when the buffer is full the notification is dropped.
func (c *Channel) Report(ctx context.Context, operation, subject string, err error) {
	if err == nil {
		return
	}
	n := Notification{
		Operation: operation,
		Subject:   subject,
		At:        c.now(),
		Err:       err,
	}
	if actor, aerr := composables.UseActor(ctx); aerr == nil {
		n.Actor = actor.ID
	}
	if c.classify(err) {
		n.Kind = KindPermissionDenied
		n.Title = intl.T(ctx, "Notifications.PermissionDenied.Title", "Permission Denied", nil)
		n.Message = intl.T(ctx, "Notifications.PermissionDenied.Message", "You do not have permission to perform this action.", nil)
	} else {
		n.Kind = KindError
		n.Title = intl.T(ctx, "Notifications.Error.Title", "Something went wrong", nil)
		n.Message = err.Error()
		var base *serrors.BaseError
		if errors.As(err, &base) {
			l, _ := intl.UseLocalizer(ctx)
			n.Message = base.Localize(l)
		}
	}
	c.Publish(n)
}

func (c *Channel) Publish(n Notification) bool {
	select {
	case c.ch <- n:
		notificationsTotal.WithLabelValues(string(n.Kind), "queued").Inc()
		return true
	default:
		c.dropped.Add(1)
		notificationsTotal.WithLabelValues(string(n.Kind), "dropped").Inc()
		c.log.WithFields(logrus.Fields{
			"kind":      n.Kind,
			"operation": n.Operation,
			"subject":   n.Subject,
		}).WithError(n.Err).Warn("notification dropped: buffer full")
		return false
	}
}

// Listen drains the channel into handler until ctx is done. Only one
// listener may be attached at a time.
func (c *Channel) Listen(ctx context.Context, handler func(context.Context, Notification)) error {
	if !c.attached.CompareAndSwap(false, true) {
		return ErrListenerAttached
	}
	defer c.attached.Store(false)

	for {
		select {
		case <-ctx.Done():
			return nil
		case n := <-c.ch:
			c.dispatch(ctx, handler, n)
		}
	}
}

func (c *Channel) dispatch(ctx context.Context, handler func(context.Context, Notification), n Notification) {
	defer func() {
		if r := recover(); r != nil {
			c.log.WithField("panic", r).Error("notification handler panicked")
		}
	}()
	handler(ctx, n)
	notificationsTotal.WithLabelValues(string(n.Kind), "delivered").Inc()
}

func (c *Channel) Attached() bool { return c.attached.Load() }

func (c *Channel) Dropped() uint64 { return c.dropped.Load() }

func (c *Channel) Pending() int { return len(c.ch) }
