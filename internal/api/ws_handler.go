package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/phrazzld/workforce-api/internal/events"
	"github.com/phrazzld/workforce-api/internal/platform/logger"
)

// WebSocket defaults.
const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultReadLimit    = 64 * 1024
)

// errChannelClosed is returned by Send after Close.
var errChannelClosed = errors.New("websocket channel closed")

// WSConfig holds WebSocket options.
type WSConfig struct {
	// WriteTimeout bounds each message send. Zero selects DefaultWriteTimeout.
	WriteTimeout time.Duration

	// ReadLimit bounds inbound message size in bytes. Zero selects
	// DefaultReadLimit.
	ReadLimit int64
}

// WSHandler upgrades subscribers to WebSocket connections.
type WSHandler struct {
	broadcaster *events.Broadcaster
	upgrader    websocket.Upgrader
	cfg         WSConfig
	logger      *slog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(broadcaster *events.Broadcaster, cfg WSConfig, logger *slog.Logger) *WSHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for WSHandler")
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = DefaultReadLimit
	}
	return &WSHandler{
		broadcaster: broadcaster,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from other origins.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		cfg:    cfg,
		logger: logger.With(slog.String("component", "ws_handler")),
	}
}

// Subscribe handles GET /ws/{client_id}. It blocks for the lifetime of the
// connection.
func (h *WSHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "client_id")
	log := logger.FromContextOrDefault(r.Context(), h.logger).With(slog.String("client_id", clientID))

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already written an error response.
		log.Debug("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	conn.SetReadLimit(h.cfg.ReadLimit)

	ctx := logger.WithLogger(r.Context(), log)
	ch := newWSChannel(clientID, conn, h.cfg.WriteTimeout)
	if err := h.broadcaster.Subscribe(ctx, ch); err != nil {
		log.Debug("subscribe failed", slog.String("error", err.Error()))
		return
	}
	defer func() {
		h.broadcaster.Drop(ch)
		_ = ch.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket closed unexpectedly", slog.String("error", err.Error()))
			}
			return
		}
		if err := h.broadcaster.HandleInbound(ctx, ch, data); err != nil {
			return
		}
	}
}

// wsChannel adapts a WebSocket connection to events.Channel.
// Writes are serialized because a gorilla connection supports one
// concurrent writer.
type wsChannel struct {
	id           string
	conn         *websocket.Conn
	writeTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

func newWSChannel(id string, conn *websocket.Conn, writeTimeout time.Duration) *wsChannel {
	return &wsChannel{id: id, conn: conn, writeTimeout: writeTimeout}
}

func (c *wsChannel) ID() string { return c.id }

func (c *wsChannel) Send(ctx context.Context, msg events.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errChannelClosed
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(msg)
}

func (c *wsChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
