package download

import (
	"context"
	"fmt"
)

// EmbeddedContext loads a URL in an isolated browser context and saves the
// response from inside it. Implementations must tear the context down
// before returning.
type EmbeddedContext interface {
	SaveFromContext(ctx context.Context, url, filename string) (Saved, error)
}

// EmbeddedStrategy delegates to an isolated browser context.
type EmbeddedStrategy struct {
	browser EmbeddedContext
}

// NewEmbeddedStrategy creates the strategy. A nil browser makes it
// permanently inapplicable.
func NewEmbeddedStrategy(browser EmbeddedContext) *EmbeddedStrategy {
	return &EmbeddedStrategy{browser: browser}
}

func (e *EmbeddedStrategy) Name() string { return "embedded" }

func (e *EmbeddedStrategy) Applicable(req Request) bool {
	return e.browser != nil && fetchable(req.URL)
}

func (e *EmbeddedStrategy) Attempt(ctx context.Context, req Request) (Saved, error) {
	saved, err := e.browser.SaveFromContext(ctx, req.URL, req.Filename)
	if err != nil {
		return Saved{}, fmt.Errorf("embedded save: %w", err)
	}
	return saved, nil
}
