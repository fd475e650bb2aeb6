package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Saver performs the single save action for a staged handle.
type Saver interface {
	Save(ctx context.Context, h *Handle, filename string) (string, error)
}

// DirSaver writes into a directory, never overwriting an existing file.
type DirSaver struct {
	Dir string
}

// Save copies the handle to Dir/filename, adding -1, -2... on collision.
func (s DirSaver) Save(ctx context.Context, h *Handle, filename string) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	src, err := h.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()

	dst, path, err := createUnique(s.Dir, sanitizeFilename(filename))
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, &ctxReader{ctx: ctx, r: src}); err != nil {
		dst.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	return path, nil
}

func createUnique(dir, filename string) (*os.File, string, error) {
	ext := filepath.Ext(filename)
	stem := strings.TrimSuffix(filename, ext)
	for i := 0; i < 1000; i++ {
		name := filename
		if i > 0 {
			name = fmt.Sprintf("%s-%d%s", stem, i, ext)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			return f, path, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
	}
	return nil, "", fmt.Errorf("no free name for %s in %s", filename, dir)
}

func sanitizeFilename(name string) string {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return DefaultFilename(time.Now())
	}
	return name
}

// stagedSaver is the shared tail of byte-producing strategies: stage, save
// once, release the staging handle after a grace delay.
type stagedSaver struct {
	saver    Saver
	stageDir string
	grace    time.Duration
	logger   *slog.Logger
}

func (s *stagedSaver) saveFrom(ctx context.Context, r io.Reader, filename string) (Saved, error) {
	h, err := Stage(ctx, s.stageDir, r)
	if err != nil {
		return Saved{}, err
	}
	if h.Size() == 0 {
		_ = h.Release()
		return Saved{}, errors.New("empty body")
	}

	path, err := s.saver.Save(ctx, h, filename)
	if err != nil {
		_ = h.Release()
		return Saved{}, fmt.Errorf("save: %w", err)
	}

	h.ReleaseAfter(s.grace, func(err error) {
		if err != nil {
			s.logger.Warn("release staging file failed",
				slog.String("path", h.Path()),
				slog.String("error", err.Error()))
		}
	})
	return Saved{Path: path, Bytes: h.Size()}, nil
}
