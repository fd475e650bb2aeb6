package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"vidgrab/internal/download"
	apperrors "vidgrab/internal/errors"
	"vidgrab/internal/license"
	"vidgrab/internal/media"
)

// Target is one media element to save.
type Target struct {
	Element media.Element
	Page    media.Page
	// Filename overrides the default video_<millis>.mp4.
	Filename string
}

// GrabResult reports what happened to a Target.
type GrabResult struct {
	Decision license.Decision
	// SourceURL is the resolved location, empty when none was found.
	SourceURL string
	Outcome   download.Outcome
	// Count is the usage counter after the attempt, when it was incremented.
	Count int
}

// GrabService runs gated save attempts.
type GrabService struct {
	gate     *license.Gate
	counter  *license.UsageCounter
	resolver *media.Resolver
	pipeline *download.Pipeline
	logger   *slog.Logger
	now      func() time.Time
}

// NewGrabService creates a GrabService.
func NewGrabService(gate *license.Gate, counter *license.UsageCounter, resolver *media.Resolver, pipeline *download.Pipeline, logger *slog.Logger) *GrabService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GrabService{
		gate:     gate,
		counter:  counter,
		resolver: resolver,
		pipeline: pipeline,
		logger:   logger.With(slog.String("service", "grab")),
		now:      time.Now,
	}
}

// Grab checks the gate, resolves a source and runs the pipeline. It returns
// errors.ErrAuthorizationRequired when the gate refuses. A failed download
// is not an error: the pipeline has already notified the user and the
// outcome says so. The counter is incremented only for counted attempts
// that saved a file.
func (g *GrabService) Grab(ctx context.Context, target Target) (GrabResult, error) {
	now := g.now()
	decision, err := g.gate.CanDownload(ctx, now)
	if err != nil {
		return GrabResult{}, err
	}
	res := GrabResult{Decision: decision}
	if !decision.Allowed {
		g.logger.InfoContext(ctx, "download refused, license code required")
		return res, apperrors.ErrAuthorizationRequired
	}

	if url, ok := g.resolver.Resolve(ctx, target.Element, target.Page); ok {
		res.SourceURL = url
	}

	req := download.Request{
		URL:      res.SourceURL,
		Filename: target.Filename,
		Element:  target.Element,
	}
	if target.Page != nil {
		req.PageURL = target.Page.URL()
	}
	if req.Filename == "" {
		req.Filename = download.DefaultFilename(now)
	}

	res.Outcome = g.pipeline.Download(ctx, req)
	if !res.Outcome.Saved || !decision.Counted {
		return res, nil
	}

	n, err := g.counter.Increment(ctx)
	if err != nil {
		return res, fmt.Errorf("record download: %w", err)
	}
	res.Count = n
	return res, nil
}
