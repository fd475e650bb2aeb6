package download

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// Handle is an ephemeral local copy of downloaded bytes. It lives in a temp
// file until Release, which is normally scheduled with ReleaseAfter once
// the save has been issued.
type Handle struct {
	path string
	size int64

	mu       sync.Mutex
	released bool
	timer    *time.Timer
}

// Stage copies r into a new temp file under dir ("" uses the OS default).
// Reads stop when ctx is done.
func Stage(ctx context.Context, dir string, r io.Reader) (*Handle, error) {
	f, err := os.CreateTemp(dir, "vidgrab-*.part")
	if err != nil {
		return nil, fmt.Errorf("create staging file: %w", err)
	}

	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: r})
	closeErr := f.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(f.Name())
		return nil, fmt.Errorf("stage bytes: %w", err)
	}
	return &Handle{path: f.Name(), size: n}, nil
}

// Path is the staging file location.
func (h *Handle) Path() string { return h.path }

// Size is the number of staged bytes.
func (h *Handle) Size() int64 { return h.size }

// Open reads the staged bytes.
func (h *Handle) Open() (*os.File, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil, fmt.Errorf("handle %s already released", h.path)
	}
	return os.Open(h.path)
}

// Release deletes the staging file. It is idempotent.
func (h *Handle) Release() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return nil
	}
	h.released = true
	if h.timer != nil {
		h.timer.Stop()
	}
	if err := os.Remove(h.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Released reports whether Release has run.
func (h *Handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

// ReleaseAfter schedules Release after grace. The handle outlives the
// request context on purpose: the save consumer may still be reading.
func (h *Handle) ReleaseAfter(grace time.Duration, done func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.released {
		return
	}
	h.timer = time.AfterFunc(grace, func() {
		err := h.Release()
		if done != nil {
			done(err)
		}
	})
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
