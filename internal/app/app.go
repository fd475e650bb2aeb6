package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"vidgrab/internal/config"
	"vidgrab/internal/infrastructure"
	"vidgrab/internal/middleware"
	"vidgrab/internal/services"
	"vidgrab/internal/store"
	handlers "vidgrab/internal/transport/http"
	ws "vidgrab/internal/websocket"
	"vidgrab/pkg/contracts"
)

// Application is the web server and everything it owns.
type Application struct {
	Config        *config.Config
	Logger        *slog.Logger
	OTelProviders *infrastructure.OTelProviders
	Store         store.Store
	Licensing     *Licensing
	Grabber       *Grabber
	Hub           *ws.Hub
	Services      *ServiceContainer
	Router        *chi.Mux
	Server        *http.Server

	verifyLimiter *middleware.KeyedLimiter
}

// ServiceContainer holds the request-facing services.
type ServiceContainer struct {
	License *services.LicenseService
	Router  *services.Router
	Health  *services.HealthService
	Page    *services.PageService
}

// NewApplication opens the store and wires every component. Nothing
// listens until Run.
func NewApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Application, error) {
	logger.InfoContext(ctx, "Application starting",
		slog.String("version", contracts.GetFullVersionString()),
		slog.String("store", cfg.Store.DSN))

	otelProviders, err := infrastructure.InitializeOTel(infrastructure.DefaultOTelConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}

	a := &Application{
		Config:        cfg,
		Logger:        logger,
		OTelProviders: otelProviders,
	}
	if err := a.initializeServices(ctx); err != nil {
		a.closeResources(ctx)
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a.setupRouter()
	a.createServer()
	return a, nil
}

func (a *Application) initializeServices(ctx context.Context) error {
	st, err := store.Open(ctx, a.Config.Store.DSN)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	a.Store = st

	meter := a.OTelProviders.Meter
	if a.Licensing, err = NewLicensing(ctx, st, a.Config, meter, a.Logger); err != nil {
		return err
	}

	wsMetrics, err := ws.InitializeMetrics(meter)
	if err != nil {
		return err
	}
	a.Hub = ws.NewHub(a.Logger, wsMetrics)

	if a.Grabber, err = NewGrabber(ctx, a.Config, a.Licensing, a.Hub, meter, a.Logger); err != nil {
		return err
	}

	if v := a.Config.Security.VerifyRateLimit; v.Enabled {
		a.verifyLimiter = middleware.NewKeyedLimiter(v.RPS, v.Burst)
	}

	a.Services = &ServiceContainer{
		License: a.Licensing.Service,
		Router:  services.NewRouter(a.Licensing.Service, a.Logger),
		Health:  services.NewHealthService(st, a.Hub, a.Logger),
		Page:    a.Grabber.Page,
	}
	return nil
}

// limiter hides a nil *KeyedLimiter behind a nil interface.
func (a *Application) limiter() ws.Limiter {
	if a.verifyLimiter == nil {
		return nil
	}
	return a.verifyLimiter
}

// setupRouter configures the HTTP router with all routes
func (a *Application) setupRouter() {
	r := chi.NewRouter()

	// Order: RequestID → RealIP → OTel → Logger → Recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// The websocket upgrade needs the raw ResponseWriter, so /ws sits
	// outside the wrapping middleware.
	cors := a.Config.Security.AllowedOrigins
	r.Handle("/ws", ws.NewHandler(a.Hub, a.Services.Router, a.limiter(), a.Config.WebSocket, cors, a.Logger))

	if a.OTelProviders.PrometheusHTTP != nil {
		r.Handle("/metrics", a.OTelProviders.PrometheusHTTP)
	}

	r.Group(func(r chi.Router) {
		otelMiddleware, err := middleware.NewOTelMiddleware(a.OTelProviders, a.Logger)
		if err != nil {
			a.Logger.Error("Failed to create OpenTelemetry middleware", slog.String("error", err.Error()))
		} else {
			r.Use(otelMiddleware.Handler)
		}
		r.Use(middleware.StructuredLogger(a.Logger))
		r.Use(middleware.Recoverer(a.Logger))
		r.Use(middleware.SecurityHeaders)
		r.Use(middleware.CORS(middleware.CORSConfig{
			AllowedOrigins: cors,
			Logger:         a.Logger,
		}))
		if rl := a.Config.Security.RateLimit; rl.Enabled {
			r.Use(middleware.NewRateLimiter(rl.RPS, rl.Burst, a.Logger).Handler)
		}

		r.Route("/api", func(r chi.Router) {
			r.Use(render.SetContentType(render.ContentTypeJSON))

			health := handlers.NewHealthHandler(a.Services.Health, a.Logger)
			r.Get("/health", health.HealthCheck)
			r.Get("/version", health.Version)

			r.Post("/messages", handlers.NewMessageHandler(a.Services.Router, a.limiter(), a.Logger).Post)
			r.Post("/grab", handlers.NewGrabHandler(a.Services.Page, a.Logger).Post)
		})
	})

	a.Router = r
}

// createServer creates the HTTP server
func (a *Application) createServer() {
	a.Server = &http.Server{
		Addr:           fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:        a.Router,
		ReadTimeout:    a.Config.Server.ReadTimeout,
		WriteTimeout:   a.Config.Server.WriteTimeout,
		IdleTimeout:    a.Config.Server.IdleTimeout,
		MaxHeaderBytes: a.Config.Server.MaxHeaderBytes,
	}
}

// Run serves until ctx is cancelled or the listener fails, then shuts
// down gracefully.
func (a *Application) Run(ctx context.Context) error {
	a.Hub.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.InfoContext(ctx, "HTTP server listening", slog.String("addr", a.Server.Addr))
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Stop(context.WithoutCancel(ctx))
	})
	return g.Wait()
}

// Stop gracefully stops the application
func (a *Application) Stop(ctx context.Context) error {
	a.Logger.InfoContext(ctx, "Shutting down application")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.Config.Server.ShutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if err := a.Server.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("server shutdown: %w", err))
	}
	a.Hub.Stop()
	if err := a.closeResources(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}

	a.Logger.InfoContext(ctx, "Application shutdown complete")
	return result.ErrorOrNil()
}

func (a *Application) closeResources(ctx context.Context) error {
	var result *multierror.Error
	if a.Grabber != nil {
		if err := a.Grabber.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close store: %w", err))
		}
	}
	if a.OTelProviders != nil {
		if err := a.OTelProviders.Shutdown(ctx); err != nil {
			result = multierror.Append(result, fmt.Errorf("otel shutdown: %w", err))
		}
	}
	return result.ErrorOrNil()
}
