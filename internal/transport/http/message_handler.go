package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/render"

	"vidgrab/internal/middleware"
	"vidgrab/pkg/contracts"
)

// maxMessageBytes bounds the request body of POST /api/messages.
const maxMessageBytes = 4096

// Dispatcher answers one protocol request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req contracts.Request) contracts.Response
}

// Limiter throttles verification attempts per remote host.
type Limiter interface {
	Allow(key string) bool
}

// MessageHandler exposes the message protocol over HTTP.
type MessageHandler struct {
	dispatcher Dispatcher
	limiter    Limiter
	logger     *slog.Logger
}

// NewMessageHandler creates the handler. limiter may be nil.
func NewMessageHandler(dispatcher Dispatcher, limiter Limiter, logger *slog.Logger) *MessageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &MessageHandler{
		dispatcher: dispatcher,
		limiter:    limiter,
		logger:     logger.With(slog.String("handler", "messages")),
	}
}

// Post handles POST /api/messages. Protocol failures are answered with
// {success:false,error}; only malformed bodies and throttling change the
// status code.
func (h *MessageHandler) Post(w http.ResponseWriter, r *http.Request) {
	var req contracts.Request
	r.Body = http.MaxBytesReader(w, r.Body, maxMessageBytes)
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		h.logger.WarnContext(r.Context(), "malformed message", slog.String("error", err.Error()))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, contracts.Fail("invalid message: "+err.Error()))
		return
	}

	if req.Action == contracts.ActionVerifyAuthCode && h.limiter != nil &&
		!h.limiter.Allow(middleware.RemoteHost(r.RemoteAddr)) {
		h.logger.WarnContext(r.Context(), "verifyAuthCode throttled", slog.String("remote_addr", r.RemoteAddr))
		w.Header().Set("Retry-After", "5")
		render.Status(r, http.StatusTooManyRequests)
		render.JSON(w, r, contracts.Fail("rate limit exceeded"))
		return
	}

	render.JSON(w, r, h.dispatcher.Dispatch(r.Context(), req))
}
