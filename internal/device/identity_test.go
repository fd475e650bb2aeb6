package device

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "vidgrab/internal/errors"
	"vidgrab/internal/store"
)

var idPattern = regexp.MustCompile(`^VID_\d+_\d{1,6}$`)

func TestGenerate(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := Generate(now, func(int) int { return 42 })
	assert.Equal(t, "VID_1700000000123_42", id)
}

func TestIdentity_GetOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("creates once and reuses", func(t *testing.T) {
		s := store.NewMemory()
		id := NewIdentity(s, nil)

		first, err := id.GetOrCreate(ctx)
		require.NoError(t, err)
		assert.Regexp(t, idPattern, first)

		second, err := id.GetOrCreate(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, second)

		// A fresh instance over the same store sees the persisted value.
		other, err := NewIdentity(s, nil).GetOrCreate(ctx)
		require.NoError(t, err)
		assert.Equal(t, first, other)
	})

	t.Run("existing id is returned untouched", func(t *testing.T) {
		s := store.NewMemory()
		require.NoError(t, store.SetJSON(ctx, s, store.KeyDeviceID, "VID_1_2"))

		got, err := NewIdentity(s, nil).GetOrCreate(ctx)
		require.NoError(t, err)
		assert.Equal(t, "VID_1_2", got)
	})

	t.Run("empty stored id is replaced", func(t *testing.T) {
		s := store.NewMemory()
		require.NoError(t, store.SetJSON(ctx, s, store.KeyDeviceID, ""))

		got, err := NewIdentity(s, nil).GetOrCreate(ctx)
		require.NoError(t, err)
		assert.Regexp(t, idPattern, got)

		var persisted string
		found, err := store.GetJSON(ctx, s, store.KeyDeviceID, &persisted)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, got, persisted)

		again, err := NewIdentity(s, nil).GetOrCreate(ctx)
		require.NoError(t, err)
		assert.Equal(t, got, again)
	})

	t.Run("concurrent callers agree", func(t *testing.T) {
		s := store.NewMemory()
		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			ids = map[string]struct{}{}
		)
		for n := 0; n < 10; n++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				got, err := NewIdentity(s, nil).GetOrCreate(ctx)
				if assert.NoError(t, err) {
					mu.Lock()
					ids[got] = struct{}{}
					mu.Unlock()
				}
			}()
		}
		wg.Wait()
		assert.Len(t, ids, 1)
	})

	t.Run("store failure surfaces as storage error", func(t *testing.T) {
		_, err := NewIdentity(failingStore{store.NewMemory()}, nil).GetOrCreate(ctx)
		require.Error(t, err)
		assert.True(t, apperrors.IsStorage(err))
	})
}

type failingStore struct{ *store.Memory }

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk unavailable")
}
