package license

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const MeterName = "vidgrab/license"

// Metrics holds the license OpenTelemetry instruments. A nil *Metrics is a
// valid no-op.
type Metrics struct {
	ValidationAttempts metric.Int64Counter
	ValidationDuration metric.Float64Histogram
	GateDecisions      metric.Int64Counter
	Expirations        metric.Int64Counter
}

// InitializeMetrics creates the license instruments on meter.
func InitializeMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.ValidationAttempts, err = meter.Int64Counter(
		"license_validation_attempts_total",
		metric.WithDescription("License code validations by result"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation attempts counter: %w", err)
	}

	m.ValidationDuration, err = meter.Float64Histogram(
		"license_validation_duration_seconds",
		metric.WithDescription("License code validation duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create validation duration histogram: %w", err)
	}

	m.GateDecisions, err = meter.Int64Counter(
		"license_gate_decisions_total",
		metric.WithDescription("Download gate decisions by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create gate decisions counter: %w", err)
	}

	m.Expirations, err = meter.Int64Counter(
		"license_expirations_total",
		metric.WithDescription("Authorization records cleared on expiry"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create expirations counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) recordValidation(ctx context.Context, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	m.ValidationAttempts.Add(ctx, 1, resultAttr(ok))
	m.ValidationDuration.Record(ctx, d.Seconds(), resultAttr(ok))
}

func (m *Metrics) recordDecision(ctx context.Context, d Decision) {
	if m == nil {
		return
	}
	outcome := "denied"
	switch {
	case d.Allowed && d.Counted:
		outcome = "under_limit"
	case d.Allowed:
		outcome = "licensed"
	}
	m.GateDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) recordExpiration(ctx context.Context) {
	if m == nil {
		return
	}
	m.Expirations.Add(ctx, 1)
}
