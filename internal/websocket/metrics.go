package websocket

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const MeterName = "vidgrab/websocket"

// Metrics holds websocket instruments. A nil *Metrics records nothing.
type Metrics struct {
	Connections metric.Int64UpDownCounter
	Messages    metric.Int64Counter
	Dropped     metric.Int64Counter
}

// InitializeMetrics creates the websocket instruments on meter.
func InitializeMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.Connections, err = meter.Int64UpDownCounter(
		"websocket_connections_active",
		metric.WithDescription("Number of active WebSocket connections"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connections counter: %w", err)
	}

	m.Messages, err = meter.Int64Counter(
		"websocket_messages_total",
		metric.WithDescription("WebSocket frames by direction and type"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create messages counter: %w", err)
	}

	m.Dropped, err = meter.Int64Counter(
		"websocket_dropped_messages_total",
		metric.WithDescription("Frames dropped because a client buffer was full"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create dropped counter: %w", err)
	}

	return m, nil
}

func (m *Metrics) connected(ctx context.Context, delta int64) {
	if m == nil {
		return
	}
	m.Connections.Add(ctx, delta)
}

func (m *Metrics) message(ctx context.Context, direction, frameType string) {
	if m == nil {
		return
	}
	m.Messages.Add(ctx, 1, metric.WithAttributes(
		attribute.String("direction", direction),
		attribute.String("type", frameType),
	))
}

func (m *Metrics) dropped(ctx context.Context) {
	if m == nil {
		return
	}
	m.Dropped.Add(ctx, 1)
}
