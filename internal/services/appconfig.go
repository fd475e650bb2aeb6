package services

import (
	"context"
	"fmt"
	"log/slog"

	"vidgrab/internal/config"
	"vidgrab/internal/store"
)

// EnsureAppConfig returns the persisted app config, initialising it from
// the static resource at path (or the embedded one) when the key is absent.
// A resource that fails to load falls back to the built-in defaults.
func EnsureAppConfig(ctx context.Context, s store.Store, path string, logger *slog.Logger) (config.AppConfig, error) {
	var cfg config.AppConfig
	found, err := store.GetJSON(ctx, s, store.KeyConfig, &cfg)
	if err != nil {
		return config.AppConfig{}, err
	}
	if found {
		return cfg, nil
	}

	cfg, loadErr := config.LoadAppConfig(path)
	if loadErr != nil {
		logger.WarnContext(ctx, "app config resource unavailable, using defaults",
			slog.String("path", path),
			slog.String("error", loadErr.Error()))
	}
	if err := store.SetJSON(ctx, s, store.KeyConfig, cfg); err != nil {
		return config.AppConfig{}, fmt.Errorf("persist app config: %w", err)
	}
	logger.InfoContext(ctx, "app config initialised",
		slog.Int("max_downloads", cfg.MaxDownloads),
		slog.Int("auth_expiry_days", cfg.AuthExpiryDays))
	return cfg, nil
}
