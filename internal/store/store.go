// Package store provides the persisted key-value state shared by the
// licensing and usage components.
//
// Every backend offers atomic single-key Get, Set and CompareAndSwap.
// Updates spanning several keys are not atomic across keys; callers that
// need read-then-write consistency on one key combine KeyLock with
// CompareAndSwap.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	apperrors "vidgrab/internal/errors"
)

// Persisted key names.
const (
	KeyDeviceID        = "deviceId"
	KeyDownloadCount   = "downloadCount"
	KeyIsAuthorized    = "isAuthorized"
	KeyAuthExpiryTime  = "authExpiryTime"
	KeyAuthGrantedTime = "authGrantedTime"
	KeyConfig          = "config"
)

// ErrNotFound is returned by Get when the key has never been written.
var ErrNotFound = apperrors.ErrNotFound

// Store is an atomic single-key byte store.
type Store interface {
	// Get returns the stored value or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set overwrites the value.
	Set(ctx context.Context, key string, value []byte) error
	// CompareAndSwap replaces the value only if the current value equals old.
	// A nil old means the key must be absent (create-if-absent).
	CompareAndSwap(ctx context.Context, key string, old, new []byte) (bool, error)
	// Delete removes the key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Close() error
}

// GetJSON decodes the value stored at key into v. It reports false when
// the key is absent.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) (bool, error) {
	raw, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return false, apperrors.NewStorageError(fmt.Sprintf("decode %s", key), err)
	}
	return true, nil
}

// SetJSON encodes v and stores it at key.
func SetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("encode %s", key), err)
	}
	return s.Set(ctx, key, raw)
}

// Open selects a backend from a DSN: "memory", "sqlite://PATH" or
// "redis://HOST:PORT/DB".
func Open(ctx context.Context, dsn string) (Store, error) {
	switch {
	case dsn == "" || dsn == "memory":
		return NewMemory(), nil
	case strings.HasPrefix(dsn, "sqlite://"):
		s, err := OpenSQLite(ctx, strings.TrimPrefix(dsn, "sqlite://"))
		if err != nil {
			return nil, err
		}
		return s, nil
	case strings.HasPrefix(dsn, "redis://"):
		s, err := OpenRedis(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, apperrors.NewConfigError("unsupported store dsn", fmt.Errorf("%q", dsn))
	}
}
