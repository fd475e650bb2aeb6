package download

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const defaultStepTimeout = 2 * time.Minute

// Outcome reports how a Download ended.
type Outcome struct {
	Saved    bool
	Strategy string
	Path     string
	Bytes    int64
	// Err aggregates every strategy failure; informational only.
	Err error
}

// Pipeline tries its steps in order until one saves.
type Pipeline struct {
	steps    []Step
	notifier Notifier
	logger   *slog.Logger
	metrics  *Metrics
	now      func() time.Time
}

// NewPipeline creates a Pipeline. Steps run in the given order.
func NewPipeline(steps []Step, notifier Notifier, logger *slog.Logger, metrics *Metrics) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if notifier == nil {
		notifier = LogNotifier{Logger: logger}
	}
	return &Pipeline{
		steps:    steps,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "download_pipeline")),
		metrics:  metrics,
		now:      time.Now,
	}
}

// Strategies lists the configured strategy names in order.
func (p *Pipeline) Strategies() []string {
	names := make([]string, len(p.steps))
	for i, s := range p.steps {
		names[i] = s.Strategy.Name()
	}
	return names
}

// Select returns the name of the first applicable strategy, or "".
func (p *Pipeline) Select(req Request) string {
	for _, s := range p.steps {
		if s.Strategy.Applicable(req) {
			return s.Strategy.Name()
		}
	}
	return ""
}

// Download never returns an error. When every strategy fails or none
// applies, exactly one notice is sent.
func (p *Pipeline) Download(ctx context.Context, req Request) Outcome {
	if req.Filename == "" {
		req.Filename = DefaultFilename(p.now())
	}

	tracer := otel.Tracer("vidgrab/download")
	ctx, span := tracer.Start(ctx, "download.pipeline",
		trace.WithAttributes(attribute.String("filename", req.Filename)))
	defer span.End()

	var errs *multierror.Error
	for _, step := range p.steps {
		s := step.Strategy
		if !s.Applicable(req) {
			p.logger.DebugContext(ctx, "strategy not applicable", slog.String("strategy", s.Name()))
			continue
		}
		if ctx.Err() != nil {
			errs = multierror.Append(errs, ctx.Err())
			break
		}

		saved, err := p.attempt(ctx, step, req)
		if err == nil {
			p.metrics.recordSaved(ctx, saved.Bytes)
			p.logger.InfoContext(ctx, "download saved",
				slog.String("strategy", s.Name()),
				slog.String("path", saved.Path),
				slog.Int64("size_bytes", saved.Bytes))
			span.SetAttributes(attribute.String("strategy", s.Name()))
			return Outcome{Saved: true, Strategy: s.Name(), Path: saved.Path, Bytes: saved.Bytes, Err: errs.ErrorOrNil()}
		}

		errs = multierror.Append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		p.logger.WarnContext(ctx, "strategy failed, trying next",
			slog.String("strategy", s.Name()),
			slog.String("error", err.Error()))
	}

	if errs == nil {
		errs = multierror.Append(errs, fmt.Errorf("no applicable strategy"))
	}
	span.SetStatus(codes.Error, "exhausted")
	p.metrics.recordExhausted(ctx)
	p.logger.ErrorContext(ctx, "all download strategies failed",
		slog.String("filename", req.Filename),
		slog.String("error", errs.Error()))

	p.notifier.Notify(context.WithoutCancel(ctx), Notice{
		Filename: req.Filename,
		URL:      req.URL,
		Message:  FailureMessage,
		At:       p.now(),
	})
	return Outcome{Err: errs.ErrorOrNil()}
}

func (p *Pipeline) attempt(ctx context.Context, step Step, req Request) (saved Saved, err error) {
	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ctx, span := otel.Tracer("vidgrab/download").Start(stepCtx, "download.strategy."+step.Strategy.Name())
	defer span.End()

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("strategy panicked: %v", r)
		}
		p.metrics.recordAttempt(ctx, step.Strategy.Name(), err, time.Since(start))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return step.Strategy.Attempt(ctx, req)
}
