package services

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"vidgrab/internal/config"
	apperrors "vidgrab/internal/errors"
	"vidgrab/internal/license"
	"vidgrab/pkg/contracts"
)

// Licensing is what the router needs from LicenseService.
type Licensing interface {
	DeviceID(ctx context.Context) (string, error)
	DownloadCount(ctx context.Context) (int, error)
	IncrementDownloadCount(ctx context.Context) (int, error)
	IsAuthorized(ctx context.Context) (bool, error)
	VerifyAuthCode(ctx context.Context, code, deviceID string) (license.Result, error)
	Config(ctx context.Context) (config.AppConfig, error)
	AuthRemaining(ctx context.Context) (RemainingInfo, error)
}

// Router maps protocol actions to handlers.
type Router struct {
	licensing Licensing
	validate  *validator.Validate
	logger    *slog.Logger
}

// NewRouter creates a Router.
func NewRouter(licensing Licensing, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		licensing: licensing,
		validate:  validator.New(),
		logger:    logger.With(slog.String("component", "message_router")),
	}
}

// Dispatch handles one request. It never panics and never returns a Go
// error; failures are reported in the response.
func (r *Router) Dispatch(ctx context.Context, req contracts.Request) (resp contracts.Response) {
	ctx, span := otel.Tracer("vidgrab/services").Start(ctx, "message."+string(req.Action))
	defer span.End()
	span.SetAttributes(attribute.String("action", string(req.Action)))

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.ErrorContext(ctx, "message handler panicked",
				slog.String("action", string(req.Action)),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())))
			span.SetStatus(codes.Error, "panic")
			resp = contracts.Fail("internal error")
		}
	}()

	if err := r.validate.Struct(req); err != nil {
		r.logger.WarnContext(ctx, "invalid message", slog.String("error", err.Error()))
		span.SetStatus(codes.Error, "invalid message")
		return contracts.Fail(fmt.Sprintf("invalid message: %v", err))
	}

	resp, err := r.handle(ctx, req)
	if err != nil {
		r.logger.ErrorContext(ctx, "message failed",
			slog.String("action", string(req.Action)),
			slog.String("error", err.Error()),
			slog.Bool("storage", apperrors.IsStorage(err)))
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return contracts.Fail(err.Error())
	}
	return resp
}

func (r *Router) handle(ctx context.Context, req contracts.Request) (contracts.Response, error) {
	ok := contracts.Response{Success: true}

	switch req.Action {
	case contracts.ActionGetDeviceID:
		id, err := r.licensing.DeviceID(ctx)
		if err != nil {
			return contracts.Response{}, err
		}
		ok.DeviceID = id

	case contracts.ActionGetDownloadCount:
		n, err := r.licensing.DownloadCount(ctx)
		if err != nil {
			return contracts.Response{}, err
		}
		ok.Count = &n

	case contracts.ActionIncrementDownloadCount:
		n, err := r.licensing.IncrementDownloadCount(ctx)
		if err != nil {
			return contracts.Response{}, err
		}
		ok.Count = &n

	case contracts.ActionIsAuthorized:
		authorized, err := r.licensing.IsAuthorized(ctx)
		if err != nil {
			return contracts.Response{}, err
		}
		ok.IsAuthorized = &authorized

	case contracts.ActionVerifyAuthCode:
		res, err := r.licensing.VerifyAuthCode(ctx, req.AuthCode, req.DeviceID)
		if err != nil {
			return contracts.Response{}, err
		}
		ok.IsAuthorized = &res.Authorized
		if res.Authorized {
			exp := res.ExpiresAt
			ok.ExpiresAt = &exp
		}

	case contracts.ActionGetConfig:
		cfg, err := r.licensing.Config(ctx)
		if err != nil {
			return contracts.Response{}, err
		}
		ok.Config = &contracts.AppConfig{
			MaxDownloads:   cfg.MaxDownloads,
			AuthExpiryDays: cfg.AuthExpiryDays,
			Name:           cfg.Name,
			Version:        cfg.Version,
		}

	case contracts.ActionGetAuthRemaining:
		info, err := r.licensing.AuthRemaining(ctx)
		if err != nil {
			return contracts.Response{}, err
		}
		active := info.Active
		ok.IsAuthorized = &active
		if info.Active {
			exp := info.ExpiresAt
			ok.ExpiresAt = &exp
			ok.Remaining = license.FormatRemaining(info.Remaining)
		}

	default:
		r.logger.WarnContext(ctx, "unknown action", slog.String("action", string(req.Action)))
		return contracts.Fail(contracts.UnknownActionError), nil
	}
	return ok, nil
}
