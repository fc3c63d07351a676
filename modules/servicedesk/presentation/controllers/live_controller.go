package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/servicedesk/modules/servicedesk/domain/aggregates/request"
	"github.com/iota-uz/servicedesk/modules/servicedesk/presentation/mappers"
	"github.com/iota-uz/servicedesk/modules/servicedesk/services"
	"github.com/iota-uz/servicedesk/pkg/application"
	"github.com/iota-uz/servicedesk/pkg/intl"
	"github.com/iota-uz/servicedesk/pkg/livequery"
	"github.com/iota-uz/servicedesk/pkg/middleware"
	"github.com/iota-uz/servicedesk/pkg/notify"
	"github.com/iota-uz/servicedesk/pkg/serrors"
)

const (
	actionWatch   = "watch"
	actionUnwatch = "unwatch"
)

// clientMessage is what a live client sends over the socket.
type clientMessage struct {
	Action string         `json:"action"`
	Scope  string         `json:"scope"`
	ID     string         `json:"id"`
	Filter request.Filter `json:"filter"`
}

// liveSession is the watch state of one connection. mu orders snapshot
// frames: a frame is written only while its subscription is the current one.
type liveSession struct {
	binding *livequery.Binding[services.Watch, []request.Request]

	mu  sync.Mutex
	sub *livequery.Subscription[[]request.Request]
}

func (s *liveSession) swap(sub *livequery.Subscription[[]request.Request]) (same bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	same = sub != nil && s.sub == sub
	s.sub = sub
	return same
}

// sendIf writes the frame built by build while sub is still current.
func (s *liveSession) sendIf(sub *livequery.Subscription[[]request.Request], conn application.Connection, build func() any) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sub != sub {
		return false, nil
	}
	return true, conn.SendJSON(build())
}

// LiveController pushes query snapshots and notifications to websocket
// clients. Each connection holds at most one watch at a time.
type LiveController struct {
	app      application.Application
	live     *services.LiveService
	hub      application.Huber
	notifier *notify.Channel
	logger   *logrus.Entry
	basePath string

	mu       sync.Mutex
	sessions map[uint64]*liveSession
}

func NewLiveController(app application.Application) *LiveController {
	c := &LiveController{
		app:      app,
		live:     app.Service(services.LiveService{}).(*services.LiveService),
		hub:      app.Websocket(),
		notifier: app.Notifier(),
		logger:   app.Logger().WithField("component", "servicedesk-live"),
		basePath: "/servicedesk/live",
		sessions: make(map[uint64]*liveSession),
	}
	c.hub.OnMessage(c.handleMessage)
	c.hub.OnDisconnect(c.handleDisconnect)
	return c
}

func (c *LiveController) Key() string {
	return c.basePath
}

func (c *LiveController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(
		middleware.RequireActor(),
		middleware.ProvideLocalizer(c.app),
	)
	router.Handle("/ws", c.hub)
}

func (c *LiveController) session(conn application.Connection) *liveSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.sessions[conn.ID()]
	if !ok {
		s = &liveSession{binding: c.live.NewBinding()}
		c.sessions[conn.ID()] = s
	}
	return s
}

func (c *LiveController) handleMessage(ctx context.Context, conn application.Connection, payload []byte) error {
	var msg clientMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return c.sendError(ctx, conn, "INVALID_JSON", intl.T(ctx, "ServiceDesk.Errors.InvalidJSON", "invalid json", nil))
	}
	switch msg.Action {
	case actionWatch:
		return c.watch(ctx, conn, services.Watch{Scope: msg.Scope, ID: msg.ID, Filter: msg.Filter})
	case actionUnwatch:
		s := c.session(conn)
		s.swap(nil)
		s.binding.Release()
		return nil
	default:
		return c.sendError(ctx, conn, "UNKNOWN_ACTION", intl.T(ctx, "ServiceDesk.Errors.UnknownAction", "unknown action", nil))
	}
}

// watch binds the connection to w. Repeating the current watch re-sends the
// latest snapshot instead of opening a new subscription.
func (c *LiveController) watch(ctx context.Context, conn application.Connection, w services.Watch) error {
	s := c.session(conn)
	sub, err := s.binding.Bind(conn.Context(), w)
	if err != nil {
		s.swap(nil)
		return c.sendServiceError(ctx, conn, err)
	}

	if s.swap(sub) {
		_, err := s.sendIf(sub, conn, func() any { return c.snapshotFrame(ctx, conn, w, sub.Current()) })
		return err
	}
	go c.pump(ctx, conn, s, w, sub)
	return nil
}

// pump forwards snapshots until the subscription ends or is replaced. A
// failed snapshot is the last one a subscription delivers.
func (c *LiveController) pump(ctx context.Context, conn application.Connection, s *liveSession, w services.Watch, sub *livequery.Subscription[[]request.Request]) {
	for snap := range sub.Updates() {
		sent, err := s.sendIf(sub, conn, func() any { return c.snapshotFrame(ctx, conn, w, snap) })
		if !sent {
			return
		}
		if err != nil {
			c.logger.WithField("connection", conn.ID()).WithError(err).Debug("snapshot not delivered")
		}
	}
}

func (c *LiveController) snapshotFrame(ctx context.Context, conn application.Connection, w services.Watch, snap livequery.Snapshot[[]request.Request]) any {
	msg := ""
	if snap.State == livequery.StateFailed {
		msg = localizeError(ctx, snap.Err, intl.T(ctx, "ServiceDesk.Errors.LiveFailed", "live updates stopped", nil))
	}
	return mappers.SnapshotToViewModel(w, snap, conn.Actor().IsAdmin(), msg)
}

func (c *LiveController) sendServiceError(ctx context.Context, conn application.Connection, err error) error {
	code := serrors.Code(err)
	if code == "" {
		code = "INTERNAL"
	}
	frame := map[string]any{
		"type":    "error",
		"code":    code,
		"message": localizeError(ctx, err, intl.T(ctx, "ServiceDesk.Errors.Internal", "internal error", nil)),
	}
	var verrs serrors.ValidationErrors
	if errors.As(err, &verrs) {
		l, _ := intl.UseLocalizer(ctx)
		frame["code"] = "VALIDATION_FAILED"
		frame["fields"] = serrors.LocalizeValidationErrors(verrs, l)
	}
	return conn.SendJSON(frame)
}

func (c *LiveController) sendError(_ context.Context, conn application.Connection, code, message string) error {
	return conn.SendJSON(map[string]any{
		"type":    "error",
		"code":    code,
		"message": message,
	})
}

func (c *LiveController) handleDisconnect(ctx context.Context, conn application.Connection) error {
	c.mu.Lock()
	s, ok := c.sessions[conn.ID()]
	delete(c.sessions, conn.ID())
	c.mu.Unlock()
	if ok {
		s.binding.Release()
	}
	return nil
}

// Sessions reports the connections holding live state.
func (c *LiveController) Sessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// Relay is the single consumer of the notification channel. It delivers each
// notification to the sockets of the actor whose operation failed, or to every
// socket for system failures. It returns when ctx is cancelled.
func (c *LiveController) Relay(ctx context.Context) error {
	return c.notifier.Listen(ctx, c.deliver)
}

func (c *LiveController) deliver(ctx context.Context, n notify.Notification) {
	channel := application.ChannelAuthenticated
	if n.Actor != "" {
		channel = application.ChannelForActor(n.Actor)
	}
	frame := mappers.NotificationToViewModel(n)
	err := c.hub.ForEach(channel, func(_ context.Context, conn application.Connection) error {
		if err := conn.SendJSON(frame); err != nil {
			c.logger.WithField("connection", conn.ID()).WithError(err).Debug("notification not delivered")
		}
		return nil
	})
	if err != nil {
		c.logger.WithError(err).Warn("notification relay failed")
	}
}

var _ application.Controller = (*LiveController)(nil)
