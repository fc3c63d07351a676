// Package livequery keeps a caller bound to the current result of a query.
// Every change that may affect the result triggers a refetch and the whole
// result set is delivered again as a Snapshot.
package livequery

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type State int

const (
	StateLoading State = iota
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateFailed:
		return "error"
	default:
		return "loading"
	}
}

// Snapshot is the complete result of a query at one point in time.
// Data is only meaningful when State is StateReady.
type Snapshot[T any] struct {
	State   State
	Data    T
	Err     error
	Version uint64
	At      time.Time
}

type Fetcher[T any] func(ctx context.Context) (T, error)

var (
	activeSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "servicedesk",
		Subsystem: "livequery",
		Name:      "subscriptions_active",
		Help:      "Live subscriptions currently established.",
	}, []string{"name"})

	fetchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servicedesk",
		Subsystem: "livequery",
		Name:      "fetches_total",
		Help:      "Snapshot fetches by subscription name and result.",
	}, []string{"name", "result"})
)

type config struct {
	name    string
	onError func(error)
	now     func() time.Time
}

type Option func(*config)

// WithName labels the subscription in metrics.
func WithName(name string) Option {
	return func(c *config) { c.name = name }
}

// WithErrorHandler is invoked once when a fetch fails.
func WithErrorHandler(fn func(error)) Option {
	return func(c *config) { c.onError = fn }
}

func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// Subscription delivers snapshots until it is closed, its context ends or a
// fetch fails. A failed fetch is terminal: the Failed snapshot is delivered
// and the subscription releases itself.
type Subscription[T any] struct {
	cfg     config
	updates chan Snapshot[T]
	cancel  context.CancelFunc
	done    chan struct{}
	release func()

	mu      sync.RWMutex
	current Snapshot[T]
}

// Subscribe registers with feed before the first fetch so no change between
// registration and the initial snapshot is lost.
func Subscribe[T any](ctx context.Context, feed *Feed, match Matcher, fetch Fetcher[T], opts ...Option) *Subscription[T] {
	cfg := config{name: "default", now: time.Now}
	for _, opt := range opts {
		opt(&cfg)
	}

	signal, release := feed.register(match)
	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription[T]{
		cfg:     cfg,
		updates: make(chan Snapshot[T], 1),
		cancel:  cancel,
		done:    make(chan struct{}),
		release: release,
		current: Snapshot[T]{State: StateLoading, At: cfg.now()},
	}
	activeSubscriptions.WithLabelValues(cfg.name).Inc()
	go s.run(ctx, fetch, signal)
	return s
}

func (s *Subscription[T]) run(ctx context.Context, fetch Fetcher[T], signal <-chan struct{}) {
	defer close(s.done)
	defer close(s.updates)
	defer activeSubscriptions.WithLabelValues(s.cfg.name).Dec()
	defer s.release()

	if !s.refresh(ctx, fetch) {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case <-signal:
			if !s.refresh(ctx, fetch) {
				return
			}
		}
	}
}

// refresh reports whether the subscription should keep running.
func (s *Subscription[T]) refresh(ctx context.Context, fetch Fetcher[T]) bool {
	data, err := fetch(ctx)
	if ctx.Err() != nil {
		return false
	}

	s.mu.Lock()
	snap := Snapshot[T]{Version: s.current.Version + 1, At: s.cfg.now()}
	if err != nil {
		snap.State = StateFailed
		snap.Err = err
	} else {
		snap.State = StateReady
		snap.Data = data
	}
	s.current = snap
	s.mu.Unlock()

	if err != nil {
		fetchesTotal.WithLabelValues(s.cfg.name, "error").Inc()
		if s.cfg.onError != nil {
			s.cfg.onError(err)
		}
	} else {
		fetchesTotal.WithLabelValues(s.cfg.name, "ok").Inc()
	}
	s.deliver(snap)
	return err == nil
}

// deliver keeps only the newest undelivered snapshot in the buffer. It is
// called from the worker goroutine only.
func (s *Subscription[T]) deliver(snap Snapshot[T]) {
	select {
	case s.updates <- snap:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	s.updates <- snap
}

// Updates is closed when the subscription ends.
func (s *Subscription[T]) Updates() <-chan Snapshot[T] {
	return s.updates
}

func (s *Subscription[T]) Current() Snapshot[T] {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Done is closed once the worker has exited and the feed registration is
// released.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

// Close is idempotent and returns after the subscription is released.
// Snapshots not yet received are discarded, so Updates yields nothing once
// Close has returned.
func (s *Subscription[T]) Close() {
	s.cancel()
	<-s.done
	for range s.updates {
	}
}

// Scoped opens a subscription, hands it to fn and always closes it.
func Scoped[T any](ctx context.Context, open func(context.Context) (*Subscription[T], error), fn func(*Subscription[T]) error) error {
	sub, err := open(ctx)
	if err != nil {
		return err
	}
	defer sub.Close()
	return fn(sub)
}
