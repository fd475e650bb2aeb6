package services

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"time"

	"vidgrab/internal/store"
	"vidgrab/pkg/contracts"
)

// ClientCounter reports connected websocket clients.
type ClientCounter interface {
	ClientCount() int
}

// HealthStatus represents the health status response
type HealthStatus struct {
	Status    string                   `json:"status"`
	Timestamp time.Time                `json:"timestamp"`
	Version   string                   `json:"version"`
	Uptime    string                   `json:"uptime"`
	Services  map[string]ServiceHealth `json:"services"`
	Runtime   map[string]interface{}   `json:"runtime,omitempty"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// HealthService provides health check functionality
type HealthService struct {
	store     store.Store
	clients   ClientCounter
	startTime time.Time
	logger    *slog.Logger
}

// NewHealthService creates a HealthService. clients may be nil.
func NewHealthService(s store.Store, clients ClientCounter, logger *slog.Logger) *HealthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthService{
		store:     s,
		clients:   clients,
		startTime: time.Now(),
		logger:    logger.With(slog.String("service", "health")),
	}
}

// HealthCheck probes the store and reports "ok" or "degraded".
func (hs *HealthService) HealthCheck(ctx context.Context) HealthStatus {
	status := HealthStatus{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   contracts.Version,
		Uptime:    time.Since(hs.startTime).Round(time.Second).String(),
		Services:  map[string]ServiceHealth{},
		Runtime: map[string]interface{}{
			"go_version": runtime.Version(),
			"goroutines": runtime.NumGoroutine(),
		},
	}

	probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := hs.store.Get(probeCtx, store.KeyDeviceID); err != nil && !errors.Is(err, store.ErrNotFound) {
		hs.logger.WarnContext(ctx, "store health probe failed", slog.String("error", err.Error()))
		status.Status = "degraded"
		status.Services["store"] = ServiceHealth{Status: "error", Message: err.Error()}
	} else {
		status.Services["store"] = ServiceHealth{Status: "ok"}
	}

	if hs.clients != nil {
		status.Runtime["websocket_clients"] = hs.clients.ClientCount()
	}
	return status
}
