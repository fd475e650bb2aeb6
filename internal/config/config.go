package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable.
const EnvPrefix = "VIDGRAB"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Security  SecurityConfig  `yaml:"security" envconfig:"SECURITY"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Store     StoreConfig     `yaml:"store" envconfig:"STORE"`
	License   LicenseConfig   `yaml:"license" envconfig:"LICENSE"`
	Download  DownloadConfig  `yaml:"download" envconfig:"DOWNLOAD"`
	Browser   BrowserConfig   `yaml:"browser" envconfig:"BROWSER"`
	WebSocket WebSocketConfig `yaml:"websocket" envconfig:"WEBSOCKET"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" validate:"gt=0"`
}

// SecurityConfig contains security-related configuration
type SecurityConfig struct {
	AllowedOrigins []string        `yaml:"allowed_origins" envconfig:"ALLOWED_ORIGINS" validate:"min=1"`
	RateLimit      RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	// VerifyRateLimit throttles verifyAuthCode per remote address.
	VerifyRateLimit RateLimitConfig `yaml:"verify_rate_limit" envconfig:"VERIFY_RATE_LIMIT"`
}

// RateLimitConfig contains rate limiting configuration
type RateLimitConfig struct {
	Enabled bool    `yaml:"enabled" envconfig:"ENABLED"`
	RPS     float64 `yaml:"rps" envconfig:"RPS" validate:"gte=0"`
	Burst   int     `yaml:"burst" envconfig:"BURST" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development" envconfig:"DEVELOPMENT"`
}

// StoreConfig selects the persisted state backend.
type StoreConfig struct {
	// DSN is "memory", "sqlite://PATH" or "redis://HOST:PORT/DB".
	DSN string `yaml:"dsn" envconfig:"DSN" validate:"required"`
}

// LicenseConfig tunes license validation.
type LicenseConfig struct {
	// AppConfigPath overrides the embedded config.json.
	AppConfigPath string `yaml:"app_config_path" envconfig:"APP_CONFIG_PATH"`
	// ExpiryPolicy is "fallback" or "reject".
	ExpiryPolicy string `yaml:"expiry_policy" envconfig:"EXPIRY_POLICY" validate:"omitempty,oneof=fallback reject"`
}

// DownloadConfig configures the save pipeline.
type DownloadConfig struct {
	OutputDir       string        `yaml:"output_dir" envconfig:"OUTPUT_DIR" validate:"required"`
	FetchTimeout    time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" validate:"gt=0"`
	EmbeddedTimeout time.Duration `yaml:"embedded_timeout" envconfig:"EMBEDDED_TIMEOUT" validate:"gt=0"`
	CaptureCeiling  time.Duration `yaml:"capture_ceiling" envconfig:"CAPTURE_CEILING" validate:"gt=0"`
	CaptureFPS      int           `yaml:"capture_fps" envconfig:"CAPTURE_FPS" validate:"min=1,max=60"`
	ReleaseGrace    time.Duration `yaml:"release_grace" envconfig:"RELEASE_GRACE" validate:"gte=0"`
	UserAgent       string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// BrowserConfig configures the chromedp allocator.
type BrowserConfig struct {
	Enabled  bool   `yaml:"enabled" envconfig:"ENABLED"`
	Headless bool   `yaml:"headless" envconfig:"HEADLESS"`
	ExecPath string `yaml:"exec_path" envconfig:"EXEC_PATH"`
}

// WebSocketConfig contains WebSocket configuration
type WebSocketConfig struct {
	ReadBufferSize  int           `yaml:"read_buffer_size" envconfig:"READ_BUFFER_SIZE" validate:"gt=0"`
	WriteBufferSize int           `yaml:"write_buffer_size" envconfig:"WRITE_BUFFER_SIZE" validate:"gt=0"`
	PingPeriod      time.Duration `yaml:"ping_period" envconfig:"PING_PERIOD" validate:"gt=0"`
	PongWait        time.Duration `yaml:"pong_wait" envconfig:"PONG_WAIT" validate:"gtfield=PingPeriod"`
}

// Load builds the configuration from defaults, the config file and the
// environment.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML path; empty skips the file.
func LoadFile(configFile string) (*Config, error) {
	cfg := Default()

	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg.
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct tags.
func (c *Config) Validate() error {
	return validator.New().Struct(c)
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(EnvPrefix + "_CONFIG_FILE"); p != "" {
		return p
	}

	locations := []string{
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			AllowedOrigins: []string{"http://localhost:8080"},
			RateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     100,
				Burst:   50,
			},
			VerifyRateLimit: RateLimitConfig{
				Enabled: true,
				RPS:     0.2,
				Burst:   5,
			},
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Store: StoreConfig{
			DSN: "sqlite://data/vidgrab.db",
		},
		License: LicenseConfig{
			ExpiryPolicy: "fallback",
		},
		Download: DownloadConfig{
			OutputDir:       "downloads",
			FetchTimeout:    2 * time.Minute,
			EmbeddedTimeout: 2 * time.Minute,
			CaptureCeiling:  5 * time.Second,
			CaptureFPS:      30,
			ReleaseGrace:    500 * time.Millisecond,
		},
		Browser: BrowserConfig{
			Enabled:  true,
			Headless: true,
		},
		WebSocket: WebSocketConfig{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			PingPeriod:      30 * time.Second,
			PongWait:        60 * time.Second,
		},
	}
}
