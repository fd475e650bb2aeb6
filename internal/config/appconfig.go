package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
)

//go:embed config.json
var embeddedAppConfig []byte

// AppConfig is the static application resource read by the license gate.
//
// Observed deployments disagree on the free allowance (1 and 10). The value
// is configuration; the shipped default is 10.
type AppConfig struct {
	MaxDownloads   int    `json:"maxDownloads" validate:"gte=0"`
	AuthExpiryDays int    `json:"authExpiryDays" validate:"gt=0"`
	Name           string `json:"name" validate:"required"`
	Version        string `json:"version" validate:"required"`
}

// DefaultAppConfig is used when the resource cannot be loaded.
func DefaultAppConfig() AppConfig {
	return AppConfig{
		MaxDownloads:   10,
		AuthExpiryDays: 30,
		Name:           "vidgrab",
		Version:        "1.0.0",
	}
}

// DefaultTerm is AuthExpiryDays as a duration.
func (a AppConfig) DefaultTerm() time.Duration {
	return time.Duration(a.AuthExpiryDays) * 24 * time.Hour
}

// LoadAppConfig reads path, or the embedded resource when path is empty.
// On any failure it returns DefaultAppConfig together with the error.
func LoadAppConfig(path string) (AppConfig, error) {
	data := embeddedAppConfig
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return DefaultAppConfig(), fmt.Errorf("read app config: %w", err)
		}
		data = b
	}
	return ParseAppConfig(data)
}

// ParseAppConfig decodes and validates raw JSON.
func ParseAppConfig(data []byte) (AppConfig, error) {
	var cfg AppConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return DefaultAppConfig(), fmt.Errorf("decode app config: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return DefaultAppConfig(), fmt.Errorf("invalid app config: %w", err)
	}
	return cfg, nil
}
