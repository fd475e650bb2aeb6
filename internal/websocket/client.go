package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"vidgrab/internal/config"
	"vidgrab/internal/infrastructure"
	"vidgrab/internal/middleware"
	"vidgrab/pkg/contracts"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer
	maxMessageSize = 4096

	sendBuffer = 256
)

// RateLimitedError is the error text for throttled verification attempts.
const RateLimitedError = "rate limit exceeded"

// Dispatcher answers one request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req contracts.Request) contracts.Response
}

// Limiter throttles verification attempts per remote host.
type Limiter interface {
	Allow(key string) bool
}

// Client is a middleman between the websocket connection and the hub
type Client struct {
	hub        *Hub
	conn       Connection
	dispatcher Dispatcher
	limiter    Limiter

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	pingPeriod time.Duration
	pongWait   time.Duration

	id          string
	remoteAddr  string
	connectedAt time.Time
	ctx         context.Context
	logger      *slog.Logger
}

// NewClient creates a client for conn. limiter may be nil.
func NewClient(ctx context.Context, hub *Hub, conn Connection, dispatcher Dispatcher, limiter Limiter, cfg config.WebSocketConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.New().String()
	ctx = infrastructure.EnsureTraceID(ctx)

	return &Client{
		hub:         hub,
		conn:        conn,
		dispatcher:  dispatcher,
		limiter:     limiter,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		pingPeriod:  cfg.PingPeriod,
		pongWait:    cfg.PongWait,
		id:          id,
		remoteAddr:  conn.RemoteAddr(),
		connectedAt: time.Now(),
		ctx:         ctx,
		logger: logger.With(
			slog.String("component", "websocket.client"),
			slog.String("client_id", id),
		),
	}
}

// ID returns the client id.
func (c *Client) ID() string { return c.id }

// close stops the write pump. Safe to call more than once.
func (c *Client) close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// enqueue queues a frame without blocking. It reports false if the frame
// was dropped.
func (c *Client) enqueue(message []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- message:
		return true
	default:
		c.hub.metrics.dropped(c.ctx)
		c.logger.WarnContext(c.ctx, "Client send buffer full, dropping frame")
		return false
	}
}

// ReadPump reads message frames, dispatches them and queues the replies.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.ErrorContext(c.ctx, "Unexpected WebSocket close error", slog.String("error", err.Error()))
			}
			return
		}

		var frame contracts.Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.reply("", contracts.Fail("invalid message: "+err.Error()))
			continue
		}
		if frame.Type == "heartbeat" {
			continue
		}
		c.hub.metrics.message(c.ctx, "in", frame.Type)
		if frame.Type != contracts.FrameMessage || frame.Request == nil {
			c.reply(frame.ID, contracts.Fail("invalid message: expected a message frame"))
			continue
		}

		c.reply(frame.ID, c.handle(*frame.Request))
	}
}

func (c *Client) handle(req contracts.Request) contracts.Response {
	if req.Action == contracts.ActionVerifyAuthCode && c.limiter != nil &&
		!c.limiter.Allow(middleware.RemoteHost(c.remoteAddr)) {
		c.logger.WarnContext(c.ctx, "verifyAuthCode throttled", slog.String("remote_addr", c.remoteAddr))
		return contracts.Fail(RateLimitedError)
	}
	return c.dispatcher.Dispatch(c.ctx, req)
}

func (c *Client) reply(id string, resp contracts.Response) {
	data, err := json.Marshal(contracts.Frame{
		Type:      contracts.FrameResponse,
		ID:        id,
		Response:  &resp,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		c.logger.ErrorContext(c.ctx, "Error marshaling response", slog.String("error", err.Error()))
		return
	}
	if c.enqueue(data) {
		c.hub.metrics.message(c.ctx, "out", contracts.FrameResponse)
	}
}

// WritePump writes queued frames and keepalive pings to the connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.ErrorContext(c.ctx, "Error writing message to WebSocket", slog.String("error", err.Error()))
				return
			}
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.DebugContext(c.ctx, "Failed to send ping message", slog.String("error", err.Error()))
				return
			}
		}
	}
}
