package media

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxDocumentBytes caps how much of a page StaticLoader reads.
const maxDocumentBytes = 8 << 20

// StaticLoader fetches a page over HTTP and snapshots it without running
// scripts. Its elements are never recordable.
type StaticLoader struct {
	Client    *http.Client
	UserAgent string
}

// Load fetches pageURL and parses it.
func (l StaticLoader) Load(ctx context.Context, pageURL string) (*PageSnapshot, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build page request: %w", err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")
	if l.UserAgent != "" {
		req.Header.Set("User-Agent", l.UserAgent)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch page: %s", resp.Status)
	}

	// Redirects change the base for relative sources.
	base := pageURL
	if resp.Request != nil && resp.Request.URL != nil {
		base = resp.Request.URL.String()
	}
	return ParseDocument(io.LimitReader(resp.Body, maxDocumentBytes), base)
}
