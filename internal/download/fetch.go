package download

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// FetchStrategy downloads the source directly over HTTP without cookies or
// credentials.
type FetchStrategy struct {
	client    *http.Client
	userAgent string
	staged    *stagedSaver
	logger    *slog.Logger
}

// FetchOption customises a FetchStrategy.
type FetchOption func(*FetchStrategy)

// WithHTTPClient replaces the default client. It must not carry a cookie jar.
func WithHTTPClient(c *http.Client) FetchOption {
	return func(f *FetchStrategy) { f.client = c }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) FetchOption {
	return func(f *FetchStrategy) { f.userAgent = ua }
}

// WithStagingDir places staging files under dir.
func WithStagingDir(dir string) FetchOption {
	return func(f *FetchStrategy) { f.staged.stageDir = dir }
}

// NewFetchStrategy creates the direct-download strategy.
func NewFetchStrategy(saver Saver, grace time.Duration, logger *slog.Logger, opts ...FetchOption) *FetchStrategy {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("strategy", "fetch"))
	f := &FetchStrategy{
		client: &http.Client{},
		staged: &stagedSaver{saver: saver, grace: grace, logger: logger},
		logger: logger,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FetchStrategy) Name() string { return "fetch" }

func (f *FetchStrategy) Applicable(req Request) bool { return fetchable(req.URL) }

// Attempt GETs the URL. A non-2xx response whose body is non-empty is
// still saved; some hosts mislabel successful media responses.
func (f *FetchStrategy) Attempt(ctx context.Context, req Request) (Saved, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return Saved{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Accept", "video/*")
	if f.userAgent != "" {
		httpReq.Header.Set("User-Agent", f.userAgent)
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		return Saved{}, fmt.Errorf("download failed for %s: %w", req.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.logger.WarnContext(ctx, "unexpected HTTP status, keeping body if any",
			slog.String("url", req.URL),
			slog.Int("status_code", resp.StatusCode))
	}

	saved, err := f.staged.saveFrom(ctx, resp.Body, req.Filename)
	if err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return Saved{}, fmt.Errorf("bad status for %s: %s: %w", req.URL, resp.Status, err)
		}
		return Saved{}, err
	}

	f.logger.InfoContext(ctx, "File downloaded successfully",
		slog.String("file", saved.Path),
		slog.Int64("size_bytes", saved.Bytes),
		slog.Float64("size_mb", float64(saved.Bytes)/1024/1024))
	return saved, nil
}
