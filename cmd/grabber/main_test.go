package main

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidgrab/internal/config"
	apperrors "vidgrab/internal/errors"
)

func TestCodePrompt(t *testing.T) {
	var out bytes.Buffer
	p := &codePrompt{in: bufio.NewScanner(strings.NewReader("  ABC123  \n\n")), out: &out}

	code, ok := p.ask()
	assert.True(t, ok)
	assert.Equal(t, "ABC123", code)
	assert.Contains(t, out.String(), "Enter license code")

	_, ok = p.ask()
	assert.False(t, ok, "blank line ends prompting")

	_, ok = p.ask()
	assert.False(t, ok, "exhausted input ends prompting")
}

func twoVideoSite(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/watch", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html><body><video src="/a.mp4"></video><video src="/b.mp4"></video></body></html>`)
	})
	mux.HandleFunc("/a.mp4", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "first") })
	mux.HandleFunc("/b.mp4", func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "second") })
	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)
	return site
}

func testConfig(t *testing.T, maxDownloads int) *config.Config {
	t.Helper()
	dir := t.TempDir()
	appCfg := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(appCfg,
		[]byte(`{"maxDownloads":`+strconv.Itoa(maxDownloads)+`,"authExpiryDays":30}`), 0o600))

	cfg := config.Default()
	cfg.Store.DSN = "memory"
	cfg.Browser.Enabled = false
	cfg.License.AppConfigPath = appCfg
	cfg.Download.OutputDir = filepath.Join(dir, "out")
	cfg.Download.FetchTimeout = 5 * time.Second
	return cfg
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRun_SavesEveryVideo(t *testing.T) {
	cfg := testConfig(t, 5)
	site := twoVideoSite(t)

	var out bytes.Buffer
	err := run(context.Background(), cfg, site.URL+"/watch", "", strings.NewReader(""), &out, discard())
	require.NoError(t, err)

	assert.Contains(t, out.String(), "2 video(s)")
	entries, err := os.ReadDir(cfg.Download.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_StopsWhenLimitReachedWithoutCode(t *testing.T) {
	cfg := testConfig(t, 1)
	site := twoVideoSite(t)

	var out bytes.Buffer
	err := run(context.Background(), cfg, site.URL+"/watch", "", strings.NewReader(""), &out, discard())
	require.ErrorIs(t, err, apperrors.ErrAuthorizationRequired)

	assert.Contains(t, out.String(), "[0] saved")
	assert.Contains(t, out.String(), "Enter license code")
	entries, err := os.ReadDir(cfg.Download.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRun_RejectsBadCode(t *testing.T) {
	cfg := testConfig(t, 1)
	site := twoVideoSite(t)

	err := run(context.Background(), cfg, site.URL+"/watch", "not-a-code", strings.NewReader(""), io.Discard, discard())
	assert.EqualError(t, err, "license code rejected")
}
