package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFile(t *testing.T) {
	tests := []struct {
		name        string
		env         map[string]string
		yaml        string
		wantErr     bool
		validateCfg func(*testing.T, *Config)
	}{
		{
			name: "defaults only",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Server.Port)
				assert.Equal(t, 15*time.Second, cfg.Server.ReadTimeout)
				assert.Equal(t, "sqlite://data/vidgrab.db", cfg.Store.DSN)
				assert.Equal(t, 500*time.Millisecond, cfg.Download.ReleaseGrace)
				assert.Equal(t, 5*time.Second, cfg.Download.CaptureCeiling)
				assert.Equal(t, 30, cfg.Download.CaptureFPS)
				assert.Equal(t, "fallback", cfg.License.ExpiryPolicy)
			},
		},
		{
			name: "file overrides defaults",
			yaml: "server:\n  port: 9090\nstore:\n  dsn: memory\nlicense:\n  expiry_policy: reject\n",
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 9090, cfg.Server.Port)
				assert.Equal(t, "memory", cfg.Store.DSN)
				assert.Equal(t, "reject", cfg.License.ExpiryPolicy)
				assert.Equal(t, 15*time.Second, cfg.Server.WriteTimeout)
			},
		},
		{
			name: "env overrides file",
			yaml: "server:\n  port: 9090\n",
			env: map[string]string{
				"VIDGRAB_SERVER_PORT":            "7070",
				"VIDGRAB_DOWNLOAD_OUTPUT_DIR":    "/tmp/out",
				"VIDGRAB_DOWNLOAD_FETCH_TIMEOUT": "10s",
			},
			validateCfg: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 7070, cfg.Server.Port)
				assert.Equal(t, "/tmp/out", cfg.Download.OutputDir)
				assert.Equal(t, 10*time.Second, cfg.Download.FetchTimeout)
			},
		},
		{
			name:    "invalid port",
			env:     map[string]string{"VIDGRAB_SERVER_PORT": "70000"},
			wantErr: true,
		},
		{
			name:    "invalid expiry policy",
			env:     map[string]string{"VIDGRAB_LICENSE_EXPIRY_POLICY": "sometimes"},
			wantErr: true,
		},
		{
			name:    "malformed yaml",
			yaml:    "server: [",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			path := ""
			if tt.yaml != "" {
				path = filepath.Join(t.TempDir(), "config.yaml")
				require.NoError(t, os.WriteFile(path, []byte(tt.yaml), 0o600))
			}

			cfg, err := LoadFile(path)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.validateCfg(t, cfg)
		})
	}
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadAppConfig(t *testing.T) {
	t.Run("embedded resource", func(t *testing.T) {
		cfg, err := LoadAppConfig("")
		require.NoError(t, err)
		assert.Equal(t, DefaultAppConfig(), cfg)
		assert.Equal(t, 30*24*time.Hour, cfg.DefaultTerm())
	})

	t.Run("file resource", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"maxDownloads":1,"authExpiryDays":7,"name":"x","version":"2"}`), 0o600))

		cfg, err := LoadAppConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 1, cfg.MaxDownloads)
		assert.Equal(t, 7, cfg.AuthExpiryDays)
	})

	t.Run("missing file falls back to defaults", func(t *testing.T) {
		cfg, err := LoadAppConfig(filepath.Join(t.TempDir(), "nope.json"))
		assert.Error(t, err)
		assert.Equal(t, DefaultAppConfig(), cfg)
	})

	t.Run("invalid values fall back to defaults", func(t *testing.T) {
		cfg, err := ParseAppConfig([]byte(`{"maxDownloads":-1,"authExpiryDays":0}`))
		assert.Error(t, err)
		assert.Equal(t, DefaultAppConfig(), cfg)
	})

	t.Run("malformed json falls back to defaults", func(t *testing.T) {
		cfg, err := ParseAppConfig([]byte(`{`))
		assert.Error(t, err)
		assert.Equal(t, DefaultAppConfig(), cfg)
	})
}
