package license

import (
	"context"
	"log/slog"
	"time"
)

// Decision is the result of CanDownload.
type Decision struct {
	Allowed bool
	// Counted is true when the attempt consumes the free allowance and the
	// usage counter must be incremented after a successful save.
	Counted bool
}

// Gate decides whether a download may proceed.
type Gate struct {
	counter      *UsageCounter
	records      *RecordStore
	maxDownloads int
	logger       *slog.Logger
	metrics      *Metrics
}

// NewGate creates a Gate allowing maxDownloads unlicensed downloads.
func NewGate(counter *UsageCounter, records *RecordStore, maxDownloads int, logger *slog.Logger, metrics *Metrics) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		counter:      counter,
		records:      records,
		maxDownloads: maxDownloads,
		logger:       logger.With(slog.String("component", "license_gate")),
		metrics:      metrics,
	}
}

// MaxDownloads returns the configured free allowance.
func (g *Gate) MaxDownloads() int { return g.maxDownloads }

// IsAuthorized reports whether an unexpired grant exists at now, clearing
// an expired grant the first time it is observed.
func (g *Gate) IsAuthorized(ctx context.Context, now time.Time) (bool, error) {
	active, cleared, err := g.records.Observe(ctx, now)
	if err != nil {
		return false, err
	}
	if cleared {
		g.metrics.recordExpiration(ctx)
		g.logger.InfoContext(ctx, "authorization expired", slog.Time("observed_at", now))
	}
	return active, nil
}

// UnderLimit reports whether the free allowance is not yet used up.
func (g *Gate) UnderLimit(ctx context.Context) (bool, error) {
	n, err := g.counter.Count(ctx)
	if err != nil {
		return false, err
	}
	return n < g.maxDownloads, nil
}

// CanDownload is UnderLimit || IsAuthorized.
func (g *Gate) CanDownload(ctx context.Context, now time.Time) (Decision, error) {
	under, err := g.UnderLimit(ctx)
	if err != nil {
		return Decision{}, err
	}

	var d Decision
	if under {
		d = Decision{Allowed: true, Counted: true}
	} else {
		authorized, err := g.IsAuthorized(ctx, now)
		if err != nil {
			return Decision{}, err
		}
		d = Decision{Allowed: authorized}
	}

	g.metrics.recordDecision(ctx, d)
	g.logger.DebugContext(ctx, "download decision",
		slog.Bool("allowed", d.Allowed),
		slog.Bool("counted", d.Counted),
	)
	return d, nil
}

// Remaining returns the time left on an active grant. ok is false when no
// grant is active.
func (g *Gate) Remaining(ctx context.Context, now time.Time) (remaining time.Duration, expiresAt time.Time, ok bool, err error) {
	rec, err := g.records.Load(ctx)
	if err != nil {
		return 0, time.Time{}, false, err
	}
	if rec.ExpiresAt.IsZero() {
		return 0, time.Time{}, false, nil
	}
	left := rec.ExpiresAt.Sub(now)
	if left <= 0 {
		return 0, rec.ExpiresAt, false, nil
	}
	return left, rec.ExpiresAt, true, nil
}
