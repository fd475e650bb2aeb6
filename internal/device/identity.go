// Package device owns the persisted installation identifier that license
// codes are bound to.
package device

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "vidgrab/internal/errors"
	"vidgrab/internal/store"
)

// Prefix starts every generated identifier.
const Prefix = "VID_"

// Identity returns a stable per-installation id, creating it on first use.
type Identity struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
	randN  func(n int) int

	group singleflight.Group

	cacheMutex sync.RWMutex
	cache      string
}

// Option customises an Identity.
type Option func(*Identity)

// WithClock overrides the creation clock.
func WithClock(now func() time.Time) Option {
	return func(i *Identity) { i.now = now }
}

// WithRand overrides the random suffix source.
func WithRand(randN func(n int) int) Option {
	return func(i *Identity) { i.randN = randN }
}

// NewIdentity creates an Identity over s.
func NewIdentity(s store.Store, logger *slog.Logger, opts ...Option) *Identity {
	if logger == nil {
		logger = slog.Default()
	}
	i := &Identity{
		store:  s,
		logger: logger.With(slog.String("component", "device_identity")),
		now:    time.Now,
		randN:  rand.IntN,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Generate builds a fresh identifier: "VID_" + epoch millis + "_" + [0,1e6).
func Generate(now time.Time, randN func(n int) int) string {
	return fmt.Sprintf("%s%d_%d", Prefix, now.UnixMilli(), randN(1_000_000))
}

// GetOrCreate returns the persisted id, creating and persisting one if none
// exists. When two writers race, the stored value wins.
func (i *Identity) GetOrCreate(ctx context.Context) (string, error) {
	i.cacheMutex.RLock()
	cached := i.cache
	i.cacheMutex.RUnlock()
	if cached != "" {
		return cached, nil
	}

	v, err, _ := i.group.Do(store.KeyDeviceID, func() (interface{}, error) {
		return i.load(ctx)
	})
	if err != nil {
		return "", err
	}

	id := v.(string)
	i.cacheMutex.Lock()
	i.cache = id
	i.cacheMutex.Unlock()
	return id, nil
}

func (i *Identity) load(ctx context.Context) (string, error) {
	var id string
	// old is the value the create CAS must replace: nil when absent, the
	// stored bytes when an empty id was persisted.
	old, err := i.store.Get(ctx, store.KeyDeviceID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		old = nil
	case err != nil:
		return "", apperrors.NewStorageError("read device id", err)
	default:
		if err := json.Unmarshal(old, &id); err != nil {
			return "", apperrors.NewStorageError("read device id", err)
		}
		if id != "" {
			return id, nil
		}
	}

	candidate := Generate(i.now(), i.randN)
	raw, err := json.Marshal(candidate)
	if err != nil {
		return "", err
	}

	created, err := i.store.CompareAndSwap(ctx, store.KeyDeviceID, old, raw)
	if err != nil {
		return "", apperrors.NewStorageError("persist device id", err)
	}
	if created {
		i.logger.InfoContext(ctx, "device id created", slog.String("device_id", candidate))
		return candidate, nil
	}

	// Lost the race; adopt whatever the other writer stored.
	found, err := store.GetJSON(ctx, i.store, store.KeyDeviceID, &id)
	if err != nil {
		return "", apperrors.NewStorageError("read device id", err)
	}
	if !found || id == "" {
		return "", apperrors.NewStorageError("read device id", errors.New("device id vanished after create"))
	}
	return id, nil
}
