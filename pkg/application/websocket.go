package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/servicedesk/pkg/composables"
)

const (
	ChannelAuthenticated = "authenticated"
	ChannelAdmins        = "role/admin"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
	sendBuffer     = 32
)

var ErrSlowConsumer = errors.New("websocket: send buffer full")

func ChannelForActor(id string) string {
	return "user/" + id
}

type Connection interface {
	ID() uint64
	Actor() composables.Actor
	// Context is cancelled when the connection goes away.
	Context() context.Context
	SendJSON(v any) error
	Close() error
}

type WsCallback func(ctx context.Context, conn Connection) error

// MessageHandler receives every text frame a client sends.
type MessageHandler func(ctx context.Context, conn Connection, payload []byte) error

type HuberOptions struct {
	Logger      *logrus.Logger
	CheckOrigin func(r *http.Request) bool
}

type Huber interface {
	http.Handler
	ForEach(channel string, f WsCallback) error
	OnMessage(h MessageHandler)
	OnDisconnect(f WsCallback)
	Connections() int
}

func NewHub(opts *HuberOptions) Huber {
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &huber{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     opts.CheckOrigin,
		},
		channels: make(map[string]map[*connection]struct{}),
	}
}

type huber struct {
	logger   *logrus.Logger
	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu           sync.RWMutex
	channels     map[string]map[*connection]struct{}
	onMessage    MessageHandler
	onDisconnect WsCallback
}

func (h *huber) OnMessage(fn MessageHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onMessage = fn
}

func (h *huber) OnDisconnect(fn WsCallback) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconnect = fn
}

// ServeHTTP upgrades authenticated requests and blocks until the client
// disconnects.
func (h *huber) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	actor, err := composables.UseActor(r.Context())
	if err != nil {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		composables.UseLogger(r.Context()).WithError(err).Warn("websocket upgrade failed")
		return
	}

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	conn := &connection{
		id:     h.nextID.Add(1),
		actor:  actor,
		ctx:    ctx,
		cancel: cancel,
		ws:     ws,
		send:   make(chan []byte, sendBuffer),
	}
	h.join(conn, ChannelAuthenticated, ChannelForActor(actor.ID))
	if actor.IsAdmin() {
		h.join(conn, ChannelAdmins)
	}
	log := composables.UseLogger(ctx).WithField("connection", conn.id)
	log.Debug("websocket connected")

	go conn.writePump(log)
	h.readPump(conn, log)

	cancel()
	h.leave(conn)
	h.mu.RLock()
	onDisconnect := h.onDisconnect
	h.mu.RUnlock()
	if onDisconnect != nil {
		if err := onDisconnect(ctx, conn); err != nil {
			log.WithError(err).Warn("websocket disconnect callback failed")
		}
	}
	log.Debug("websocket disconnected")
}

func (h *huber) readPump(conn *connection, log *logrus.Entry) {
	conn.ws.SetReadLimit(maxMessageSize)
	if err := conn.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.ws.SetPongHandler(func(string) error {
		return conn.ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		kind, payload, err := conn.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("unexpected websocket close")
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		h.mu.RLock()
		handler := h.onMessage
		h.mu.RUnlock()
		if handler == nil {
			continue
		}
		if err := handler(conn.ctx, conn, payload); err != nil {
			log.WithError(err).Debug("websocket message rejected")
		}
	}
}

func (h *huber) join(conn *connection, channels ...string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range channels {
		members, ok := h.channels[ch]
		if !ok {
			members = make(map[*connection]struct{})
			h.channels[ch] = members
		}
		members[conn] = struct{}{}
	}
}

func (h *huber) leave(conn *connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch, members := range h.channels {
		delete(members, conn)
		if len(members) == 0 {
			delete(h.channels, ch)
		}
	}
}

func (h *huber) Connections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[ChannelAuthenticated])
}

// ForEach calls f for every connection in channel and stops at the first error.
func (h *huber) ForEach(channel string, f WsCallback) error {
	h.mu.RLock()
	conns := make([]*connection, 0, len(h.channels[channel]))
	for c := range h.channels[channel] {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		if err := f(c.ctx, c); err != nil {
			return fmt.Errorf("connection %d: %w", c.id, err)
		}
	}
	return nil
}

type connection struct {
	id     uint64
	actor  composables.Actor
	ctx    context.Context
	cancel context.CancelFunc
	ws     *websocket.Conn
	send   chan []byte
}

func (c *connection) ID() uint64 { return c.id }

func (c *connection) Actor() composables.Actor { return c.actor }

func (c *connection) Context() context.Context { return c.ctx }

func (c *connection) SendJSON(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case <-c.ctx.Done():
		return c.ctx.Err()
	case c.send <- payload:
		return nil
	default:
		return ErrSlowConsumer
	}
}

func (c *connection) Close() error {
	c.cancel()
	return nil
}

func (c *connection) writePump(log *logrus.Entry) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case <-c.ctx.Done():
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case payload := <-c.send:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			if err := c.ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
