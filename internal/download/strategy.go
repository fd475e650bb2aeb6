// Package download saves a resolved media source through an ordered chain
// of strategies, stopping at the first that succeeds.
package download

import (
	"context"
	"fmt"
	"time"

	"vidgrab/internal/media"
)

// Request describes one save attempt.
type Request struct {
	// URL is the resolved source; empty when the resolver found none.
	URL string
	// Filename is the name the saved file should get.
	Filename string
	// Element is the originating media element, used by capture.
	Element media.Element
	// PageURL is sent as Referer where relevant.
	PageURL string
}

// Saved describes a completed save.
type Saved struct {
	Path  string
	Bytes int64
}

// Strategy is one way of getting bytes onto disk.
type Strategy interface {
	Name() string
	// Applicable is checked before Attempt; false skips the strategy.
	Applicable(req Request) bool
	// Attempt performs exactly one save on success.
	Attempt(ctx context.Context, req Request) (Saved, error)
}

// Step pairs a strategy with its timeout.
type Step struct {
	Strategy Strategy
	Timeout  time.Duration
}

// DefaultFilename is video_<unix millis>.mp4.
func DefaultFilename(now time.Time) string {
	return fmt.Sprintf("video_%d.mp4", now.UnixMilli())
}

// fetchable reports whether u can be requested from outside the page.
func fetchable(u string) bool {
	return u != "" && !media.IsLocalHandle(u)
}
