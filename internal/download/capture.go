package download

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"vidgrab/internal/media"
)

// Recorder re-encodes a live element's frames for at most ceiling.
type Recorder interface {
	Record(ctx context.Context, el media.Element, ceiling time.Duration, fps int) ([]byte, error)
}

// CaptureStrategy records the playing element when nothing can be fetched.
type CaptureStrategy struct {
	recorder Recorder
	ceiling  time.Duration
	fps      int
	staged   *stagedSaver
	logger   *slog.Logger
}

// NewCaptureStrategy creates the recording strategy. A nil recorder makes
// it permanently inapplicable.
func NewCaptureStrategy(recorder Recorder, saver Saver, ceiling time.Duration, fps int, grace time.Duration, logger *slog.Logger) *CaptureStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("strategy", "capture"))
	return &CaptureStrategy{
		recorder: recorder,
		ceiling:  ceiling,
		fps:      fps,
		staged:   &stagedSaver{saver: saver, grace: grace, logger: logger},
		logger:   logger,
	}
}

func (c *CaptureStrategy) Name() string { return "capture" }

func (c *CaptureStrategy) Applicable(req Request) bool {
	return c.recorder != nil && req.Element != nil && req.Element.Recordable()
}

// Attempt records up to the ceiling and saves the result.
func (c *CaptureStrategy) Attempt(ctx context.Context, req Request) (Saved, error) {
	data, err := c.recorder.Record(ctx, req.Element, c.ceiling, c.fps)
	if err != nil {
		return Saved{}, fmt.Errorf("record: %w", err)
	}
	if len(data) == 0 {
		return Saved{}, errors.New("recording produced no data")
	}
	c.logger.InfoContext(ctx, "recording complete", slog.Int("size_bytes", len(data)))
	return c.staged.saveFrom(ctx, bytes.NewReader(data), req.Filename)
}
