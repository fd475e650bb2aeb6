package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"go.opentelemetry.io/otel/metric"

	"vidgrab/internal/browser"
	"vidgrab/internal/config"
	"vidgrab/internal/download"
	"vidgrab/internal/media"
	"vidgrab/internal/services"
)

// Grabber is the download side: page loading, the strategy pipeline and
// the gated grab services.
type Grabber struct {
	// Session is nil when the browser is disabled or failed to start.
	Session  *browser.Session
	Loader   services.PageLoader
	Pipeline *download.Pipeline
	Grab     *services.GrabService
	Page     *services.PageService
}

// NewGrabber builds the pipeline fetch → embedded → capture. Without a
// browser the last two are inapplicable and pages are parsed statically.
// meter may be nil.
func NewGrabber(ctx context.Context, cfg *config.Config, lic *Licensing, notifier download.Notifier, meter metric.Meter, logger *slog.Logger) (*Grabber, error) {
	dl := cfg.Download
	saver := download.DirSaver{Dir: dl.OutputDir}

	var metrics *download.Metrics
	if meter != nil {
		var err error
		if metrics, err = download.InitializeMetrics(meter); err != nil {
			return nil, err
		}
	}

	g := &Grabber{}
	session, err := browser.New(ctx, cfg.Browser, saver, logger,
		browser.WithReleaseGrace(dl.ReleaseGrace),
		browser.WithUserAgent(dl.UserAgent))
	switch {
	case err == nil:
		g.Session = session
	case errors.Is(err, browser.ErrDisabled):
		logger.InfoContext(ctx, "browser disabled, embedded and capture strategies are off")
	default:
		logger.WarnContext(ctx, "browser unavailable, embedded and capture strategies are off",
			slog.String("error", err.Error()))
	}

	// Interfaces stay nil without a session so the strategies report
	// themselves inapplicable.
	var (
		embedded download.EmbeddedContext
		recorder download.Recorder
		loader   services.PageLoader = media.StaticLoader{
			Client:    &http.Client{Timeout: dl.FetchTimeout},
			UserAgent: dl.UserAgent,
		}
	)
	if g.Session != nil {
		embedded, recorder, loader = g.Session, g.Session, g.Session
	}

	steps := []download.Step{
		{
			Strategy: download.NewFetchStrategy(saver, dl.ReleaseGrace, logger, download.WithUserAgent(dl.UserAgent)),
			Timeout:  dl.FetchTimeout,
		},
		{
			Strategy: download.NewEmbeddedStrategy(embedded),
			Timeout:  dl.EmbeddedTimeout,
		},
		{
			Strategy: download.NewCaptureStrategy(recorder, saver, dl.CaptureCeiling, dl.CaptureFPS, dl.ReleaseGrace, logger),
			// Recording runs for the ceiling; the rest covers start-up and save.
			Timeout: dl.CaptureCeiling + dl.FetchTimeout,
		},
	}
	g.Pipeline = download.NewPipeline(steps, notifier, logger, metrics)
	g.Grab = services.NewGrabService(lic.Gate, lic.Counter, media.NewResolver(logger), g.Pipeline, logger)
	g.Loader = loader
	g.Page = services.NewPageService(loader, g.Grab, logger)

	logger.InfoContext(ctx, "download pipeline ready",
		slog.Any("strategies", g.Pipeline.Strategies()),
		slog.String("output_dir", dl.OutputDir),
		slog.Bool("browser", g.Session != nil))
	return g, nil
}

// Close stops the browser, if any.
func (g *Grabber) Close() error {
	if g.Session == nil {
		return nil
	}
	if err := g.Session.Close(); err != nil {
		return fmt.Errorf("close browser: %w", err)
	}
	return nil
}
