package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runContract exercises the behaviour every backend must share.
func runContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "absent")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k1", []byte(`"v1"`)))
		v, err := s.Get(ctx, "k1")
		require.NoError(t, err)
		assert.Equal(t, []byte(`"v1"`), v)
	})

	t.Run("set overwrites", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k2", []byte("1")))
		require.NoError(t, s.Set(ctx, "k2", []byte("2")))
		v, err := s.Get(ctx, "k2")
		require.NoError(t, err)
		assert.Equal(t, []byte("2"), v)
	})

	t.Run("create if absent", func(t *testing.T) {
		ok, err := s.CompareAndSwap(ctx, "k3", nil, []byte("first"))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = s.CompareAndSwap(ctx, "k3", nil, []byte("second"))
		require.NoError(t, err)
		assert.False(t, ok)

		v, err := s.Get(ctx, "k3")
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), v)
	})

	t.Run("swap on match only", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k4", []byte("a")))

		ok, err := s.CompareAndSwap(ctx, "k4", []byte("b"), []byte("c"))
		require.NoError(t, err)
		assert.False(t, ok)

		ok, err = s.CompareAndSwap(ctx, "k4", []byte("a"), []byte("c"))
		require.NoError(t, err)
		assert.True(t, ok)

		v, err := s.Get(ctx, "k4")
		require.NoError(t, err)
		assert.Equal(t, []byte("c"), v)
	})

	t.Run("swap on missing key with old value", func(t *testing.T) {
		ok, err := s.CompareAndSwap(ctx, "k5", []byte("x"), []byte("y"))
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, "k6", []byte("x")))
		require.NoError(t, s.Delete(ctx, "k6"))
		_, err := s.Get(ctx, "k6")
		assert.ErrorIs(t, err, ErrNotFound)
		require.NoError(t, s.Delete(ctx, "k6"))
	})

	t.Run("json helpers", func(t *testing.T) {
		var n int
		found, err := GetJSON(ctx, s, "counter", &n)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, SetJSON(ctx, s, "counter", 7))
		found, err = GetJSON(ctx, s, "counter", &n)
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, 7, n)
	})

	t.Run("concurrent create if absent has one winner", func(t *testing.T) {
		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := s.CompareAndSwap(ctx, "race", nil, []byte{byte(i)})
				assert.NoError(t, err)
				if ok {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})
}

func TestMemoryStore(t *testing.T) {
	runContract(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	runContract(t, s)
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, KeyDeviceID, []byte(`"VID_1_2"`)))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	v, err := s.Get(ctx, KeyDeviceID)
	require.NoError(t, err)
	assert.Equal(t, []byte(`"VID_1_2"`), v)
}

func TestRedisStore(t *testing.T) {
	url := os.Getenv("VIDGRAB_TEST_REDIS_URL")
	if url == "" {
		t.Skip("VIDGRAB_TEST_REDIS_URL not set")
	}
	s, err := OpenRedis(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, k := range []string{"k1", "k2", "k3", "k4", "k5", "k6", "counter", "race"} {
			_ = s.Delete(context.Background(), k)
		}
		_ = s.Close()
	})

	runContract(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := Open(ctx, "memory")
		require.NoError(t, err)
		assert.IsType(t, &Memory{}, s)
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := Open(ctx, "sqlite://"+filepath.Join(t.TempDir(), "x.db"))
		require.NoError(t, err)
		defer s.Close()
		assert.IsType(t, &SQLite{}, s)
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := Open(ctx, "etcd://localhost")
		assert.Error(t, err)
	})
}
