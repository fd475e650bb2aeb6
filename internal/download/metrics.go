package download

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const MeterName = "vidgrab/download"

// Metrics holds pipeline instruments. A nil *Metrics is a valid no-op.
type Metrics struct {
	Attempts  metric.Int64Counter
	Duration  metric.Float64Histogram
	Bytes     metric.Int64Counter
	Exhausted metric.Int64Counter
}

// InitializeMetrics creates the pipeline instruments on meter.
func InitializeMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.Attempts, err = meter.Int64Counter(
		"download_strategy_attempts_total",
		metric.WithDescription("Strategy attempts by strategy and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy attempts counter: %w", err)
	}

	m.Duration, err = meter.Float64Histogram(
		"download_strategy_duration_seconds",
		metric.WithDescription("Strategy attempt duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create strategy duration histogram: %w", err)
	}

	m.Bytes, err = meter.Int64Counter(
		"download_saved_bytes_total",
		metric.WithDescription("Bytes saved by successful downloads"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create saved bytes counter: %w", err)
	}

	m.Exhausted, err = meter.Int64Counter(
		"download_exhausted_total",
		metric.WithDescription("Downloads where every strategy failed"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create exhausted counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) recordAttempt(ctx context.Context, strategy string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	attrs := metric.WithAttributes(
		attribute.String("strategy", strategy),
		attribute.String("result", result),
	)
	m.Attempts.Add(ctx, 1, attrs)
	m.Duration.Record(ctx, d.Seconds(), attrs)
}

func (m *Metrics) recordSaved(ctx context.Context, n int64) {
	if m == nil {
		return
	}
	m.Bytes.Add(ctx, n)
}

func (m *Metrics) recordExhausted(ctx context.Context) {
	if m == nil {
		return
	}
	m.Exhausted.Add(ctx, 1)
}
