package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"vidgrab/internal/config"
	"vidgrab/internal/device"
	"vidgrab/internal/license"
	"vidgrab/internal/store"
)

// RemainingInfo describes the time left on an active grant.
type RemainingInfo struct {
	Active    bool
	Remaining time.Duration
	ExpiresAt time.Time
}

// LicenseDeps are the collaborators of LicenseService.
type LicenseDeps struct {
	Store         store.Store
	Identity      *device.Identity
	Counter       *license.UsageCounter
	Gate          *license.Gate
	Validator     *license.Validator
	AppConfigPath string
}

// LicenseService implements the licensing half of the message protocol.
type LicenseService struct {
	deps   LicenseDeps
	logger *slog.Logger
	now    func() time.Time
}

// NewLicenseService creates a LicenseService.
func NewLicenseService(deps LicenseDeps, logger *slog.Logger) *LicenseService {
	if logger == nil {
		logger = slog.Default()
	}
	return &LicenseService{
		deps:   deps,
		logger: logger.With(slog.String("service", "license")),
		now:    time.Now,
	}
}

// DeviceID returns the installation identity, creating it on first use.
func (s *LicenseService) DeviceID(ctx context.Context) (string, error) {
	return s.deps.Identity.GetOrCreate(ctx)
}

// DownloadCount returns the number of counted downloads.
func (s *LicenseService) DownloadCount(ctx context.Context) (int, error) {
	return s.deps.Counter.Count(ctx)
}

// IncrementDownloadCount bumps the usage counter and returns the new value.
func (s *LicenseService) IncrementDownloadCount(ctx context.Context) (int, error) {
	n, err := s.deps.Counter.Increment(ctx)
	if err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "download counted", slog.Int("count", n))
	return n, nil
}

// IsAuthorized reports whether an unexpired grant exists.
func (s *LicenseService) IsAuthorized(ctx context.Context) (bool, error) {
	return s.deps.Gate.IsAuthorized(ctx, s.now())
}

// maxAuthCodeLen bounds codes handed to the validator; longer input is
// rejected like any other invalid code.
const maxAuthCodeLen = 512

// VerifyAuthCode validates code for deviceID, or for this installation when
// deviceID is empty.
func (s *LicenseService) VerifyAuthCode(ctx context.Context, code, deviceID string) (license.Result, error) {
	code = strings.TrimSpace(code)
	if code == "" || len(code) > maxAuthCodeLen {
		s.logger.InfoContext(ctx, "license code rejected", slog.Int("length", len(code)))
		return license.Result{}, nil
	}

	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" {
		id, err := s.deps.Identity.GetOrCreate(ctx)
		if err != nil {
			return license.Result{}, err
		}
		deviceID = id
	}
	return s.deps.Validator.Validate(ctx, code, deviceID, s.now())
}

// Config returns the persisted app config, re-initialising it from the
// static resource when absent.
func (s *LicenseService) Config(ctx context.Context) (config.AppConfig, error) {
	return EnsureAppConfig(ctx, s.deps.Store, s.deps.AppConfigPath, s.logger)
}

// AuthRemaining reports the time left on the current grant.
func (s *LicenseService) AuthRemaining(ctx context.Context) (RemainingInfo, error) {
	now := s.now()
	// Observe first so an expired grant is cleared before reporting.
	authorized, err := s.deps.Gate.IsAuthorized(ctx, now)
	if err != nil || !authorized {
		return RemainingInfo{}, err
	}
	left, expiresAt, ok, err := s.deps.Gate.Remaining(ctx, now)
	if err != nil {
		return RemainingInfo{}, err
	}
	return RemainingInfo{Active: ok, Remaining: left, ExpiresAt: expiresAt}, nil
}
