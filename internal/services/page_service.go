package services

import (
	"context"
	"fmt"
	"log/slog"

	"vidgrab/internal/media"
)

// PageLoader snapshots the document at a URL.
type PageLoader interface {
	Load(ctx context.Context, pageURL string) (*media.PageSnapshot, error)
}

// PageResult reports every attempt made on a page.
type PageResult struct {
	PageURL string
	Videos  int
	Results []GrabResult
}

// Saved counts the attempts that produced a file.
func (r PageResult) Saved() int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome.Saved {
			n++
		}
	}
	return n
}

// PageService grabs every video element of a page.
type PageService struct {
	loader PageLoader
	grab   *GrabService
	logger *slog.Logger
}

// NewPageService creates a PageService.
func NewPageService(loader PageLoader, grab *GrabService, logger *slog.Logger) *PageService {
	if logger == nil {
		logger = slog.Default()
	}
	return &PageService{
		loader: loader,
		grab:   grab,
		logger: logger.With(slog.String("service", "page")),
	}
}

// GrabPage loads pageURL and runs Grab for each video in document order.
// It stops at the first error, returning the results gathered so far; a
// refusal from the gate surfaces as errors.ErrAuthorizationRequired.
func (p *PageService) GrabPage(ctx context.Context, pageURL string) (PageResult, error) {
	page, err := p.loader.Load(ctx, pageURL)
	if err != nil {
		return PageResult{PageURL: pageURL}, fmt.Errorf("load page: %w", err)
	}

	out := PageResult{PageURL: page.URL(), Videos: len(page.Videos)}
	p.logger.InfoContext(ctx, "page loaded",
		slog.String("url", out.PageURL),
		slog.Int("videos", out.Videos))

	for _, el := range page.Videos {
		res, err := p.grab.Grab(ctx, Target{Element: el, Page: page})
		if err != nil {
			if res.Outcome.Saved {
				out.Results = append(out.Results, res)
			}
			return out, err
		}
		out.Results = append(out.Results, res)
	}
	return out, nil
}
