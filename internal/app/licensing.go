package app

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/metric"

	"vidgrab/internal/config"
	"vidgrab/internal/device"
	"vidgrab/internal/license"
	"vidgrab/internal/services"
	"vidgrab/internal/store"
)

// Licensing groups the components that read and write license state.
type Licensing struct {
	AppConfig config.AppConfig
	Identity  *device.Identity
	Records   *license.RecordStore
	Counter   *license.UsageCounter
	Gate      *license.Gate
	Validator *license.Validator
	Service   *services.LicenseService
}

// NewLicensing builds the licensing stack on st. The app config is
// initialised in the store on first run and the device id is created
// eagerly so it appears in the startup log. meter may be nil.
func NewLicensing(ctx context.Context, st store.Store, cfg *config.Config, meter metric.Meter, logger *slog.Logger) (*Licensing, error) {
	appCfg, err := services.EnsureAppConfig(ctx, st, cfg.License.AppConfigPath, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise app config: %w", err)
	}

	policy, err := license.ParseExpiryPolicy(cfg.License.ExpiryPolicy)
	if err != nil {
		return nil, fmt.Errorf("invalid license config: %w", err)
	}

	var metrics *license.Metrics
	if meter != nil {
		if metrics, err = license.InitializeMetrics(meter); err != nil {
			return nil, err
		}
	}

	l := &Licensing{AppConfig: appCfg}
	l.Identity = device.NewIdentity(st, logger)
	l.Records = license.NewRecordStore(st, store.NewKeyLock())
	l.Counter = license.NewUsageCounter(st)
	l.Gate = license.NewGate(l.Counter, l.Records, appCfg.MaxDownloads, logger, metrics)
	l.Validator = license.NewValidator(l.Records, license.ValidatorConfig{
		DefaultTerm:  appCfg.DefaultTerm(),
		ExpiryPolicy: policy,
	}, logger, metrics)
	l.Service = services.NewLicenseService(services.LicenseDeps{
		Store:         st,
		Identity:      l.Identity,
		Counter:       l.Counter,
		Gate:          l.Gate,
		Validator:     l.Validator,
		AppConfigPath: cfg.License.AppConfigPath,
	}, logger)

	deviceID, err := l.Identity.GetOrCreate(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read device id: %w", err)
	}
	logger.InfoContext(ctx, "licensing ready",
		slog.String("device_id", deviceID),
		slog.Int("max_downloads", appCfg.MaxDownloads),
		slog.String("expiry_policy", string(policy)))

	return l, nil
}
