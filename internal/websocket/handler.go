package websocket

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"vidgrab/internal/config"
)

// Handler upgrades HTTP requests and attaches the connection to the hub.
type Handler struct {
	hub        *Hub
	dispatcher Dispatcher
	limiter    Limiter
	cfg        config.WebSocketConfig
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

// NewHandler creates the upgrade handler. An empty allowedOrigins accepts
// any origin.
func NewHandler(hub *Hub, dispatcher Dispatcher, limiter Limiter, cfg config.WebSocketConfig, allowedOrigins []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		hub:        hub,
		dispatcher: dispatcher,
		limiter:    limiter,
		cfg:        cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     checkOrigin(allowedOrigins),
		},
		logger: logger.With(slog.String("component", "websocket.handler")),
	}
}

// ServeHTTP handles websocket requests from the peer
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "WebSocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	// The request context ends when ServeHTTP returns; keep only its values.
	ctx := context.WithoutCancel(r.Context())
	client := NewClient(ctx, h.hub, NewConnectionWrapper(conn), h.dispatcher, h.limiter, h.cfg, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func checkOrigin(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}
