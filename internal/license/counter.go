package license

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"

	apperrors "vidgrab/internal/errors"
	"vidgrab/internal/store"
)

const maxCASRetries = 16

// UsageCounter tracks downloads consumed against the free limit.
type UsageCounter struct {
	store store.Store
}

// NewUsageCounter creates a counter over s.
func NewUsageCounter(s store.Store) *UsageCounter {
	return &UsageCounter{store: s}
}

// Count returns the current count; a missing key is zero.
func (c *UsageCounter) Count(ctx context.Context) (int, error) {
	n, _, err := c.read(ctx)
	return n, err
}

// Increment adds one and returns the new count. The update is a
// compare-and-swap loop so concurrent increments are not lost.
func (c *UsageCounter) Increment(ctx context.Context) (int, error) {
	for attempt := 0; attempt < maxCASRetries; attempt++ {
		n, raw, err := c.read(ctx)
		if err != nil {
			return 0, err
		}
		next := []byte(strconv.Itoa(n + 1))
		ok, err := c.store.CompareAndSwap(ctx, store.KeyDownloadCount, raw, next)
		if err != nil {
			return 0, apperrors.NewStorageError("increment download count", err)
		}
		if ok {
			return n + 1, nil
		}
	}
	return 0, apperrors.NewStorageError("increment download count", errors.New("too much contention"))
}

// read returns the count and the raw stored bytes (nil when absent).
func (c *UsageCounter) read(ctx context.Context) (int, []byte, error) {
	raw, err := c.store.Get(ctx, store.KeyDownloadCount)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, apperrors.NewStorageError("read download count", err)
	}
	var n int
	if err := json.Unmarshal(raw, &n); err != nil || n < 0 {
		// Corrupt values restart from zero but still CAS against the raw bytes.
		return 0, raw, nil
	}
	return n, raw, nil
}
