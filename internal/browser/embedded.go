package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/chromedp"

	"vidgrab/internal/download"
)

// downloadStartWait bounds how long a failed navigation may still turn
// into a download.
const downloadStartWait = 3 * time.Second

// SaveFromContext opens url in a fresh tab, lets Chrome download it, and
// hands the result to the saver. The tab is closed before returning.
func (s *Session) SaveFromContext(ctx context.Context, url, filename string) (download.Saved, error) {
	if s.saver == nil {
		return download.Saved{}, errors.New("no saver configured")
	}
	stageDir, err := os.MkdirTemp("", "vidgrab-tab-*")
	if err != nil {
		return download.Saved{}, fmt.Errorf("create tab download dir: %w", err)
	}
	keepDir := false
	defer func() {
		if !keepDir {
			_ = os.RemoveAll(stageDir)
		}
	}()

	tabCtx, closeTab := chromedp.NewContext(s.browserCtx)
	defer closeTab()

	w := newDownloadWatch()
	chromedp.ListenTarget(tabCtx, w.handle)
	if err := attach(tabCtx); err != nil {
		return download.Saved{}, err
	}
	runCtx, cancel := bind(tabCtx, ctx)
	defer cancel()

	if err := chromedp.Run(runCtx, browser.SetDownloadBehavior(browser.SetDownloadBehaviorBehaviorAllowAndName).
		WithDownloadPath(stageDir).
		WithEventsEnabled(true)); err != nil {
		return download.Saved{}, fmt.Errorf("set download behavior: %w", err)
	}

	// Media URLs usually render in a player instead of downloading, so a
	// same-origin anchor with the download attribute is clicked afterwards.
	navErr := chromedp.Run(runCtx, chromedp.Navigate(url))
	if navErr != nil {
		select {
		case <-w.begun:
		case <-time.After(downloadStartWait):
			return download.Saved{}, fmt.Errorf("navigate %s: %w", url, navErr)
		case <-runCtx.Done():
			return download.Saved{}, runCtx.Err()
		}
	}
	if !w.started() {
		if err := chromedp.Run(runCtx, chromedp.Evaluate(anchorScript(filename), nil)); err != nil {
			return download.Saved{}, fmt.Errorf("trigger download: %w", err)
		}
	}

	var guid string
	select {
	case res := <-w.done:
		if res.err != nil {
			return download.Saved{}, res.err
		}
		guid = res.guid
	case <-runCtx.Done():
		return download.Saved{}, fmt.Errorf("waiting for download: %w", runCtx.Err())
	}

	f, err := os.Open(filepath.Join(stageDir, guid))
	if err != nil {
		return download.Saved{}, fmt.Errorf("open tab download: %w", err)
	}
	h, err := download.Stage(ctx, stageDir, f)
	f.Close()
	if err != nil {
		return download.Saved{}, err
	}
	if h.Size() == 0 {
		_ = h.Release()
		return download.Saved{}, errors.New("empty body")
	}

	path, err := s.saver.Save(ctx, h, filename)
	if err != nil {
		_ = h.Release()
		return download.Saved{}, fmt.Errorf("save: %w", err)
	}

	keepDir = true
	h.ReleaseAfter(s.grace, func(err error) {
		if err != nil {
			s.logger.Warn("release tab download failed", slog.String("error", err.Error()))
		}
		_ = os.RemoveAll(stageDir)
	})

	s.logger.InfoContext(ctx, "saved from isolated tab",
		slog.String("url", url),
		slog.String("path", path),
		slog.Int64("size_bytes", h.Size()))
	return download.Saved{Path: path, Bytes: h.Size()}, nil
}

type downloadResult struct {
	guid string
	err  error
}

// downloadWatch tracks the first download of a tab.
type downloadWatch struct {
	begun     chan struct{}
	done      chan downloadResult
	beginOnce sync.Once
	doneOnce  sync.Once
}

func newDownloadWatch() *downloadWatch {
	return &downloadWatch{
		begun: make(chan struct{}),
		done:  make(chan downloadResult, 1),
	}
}

func (w *downloadWatch) started() bool {
	select {
	case <-w.begun:
		return true
	default:
		return false
	}
}

func (w *downloadWatch) handle(ev interface{}) {
	switch e := ev.(type) {
	case *browser.EventDownloadWillBegin:
		w.beginOnce.Do(func() { close(w.begun) })
	case *browser.EventDownloadProgress:
		switch e.State {
		case browser.DownloadProgressStateCompleted:
			w.beginOnce.Do(func() { close(w.begun) })
			w.doneOnce.Do(func() { w.done <- downloadResult{guid: e.GUID} })
		case browser.DownloadProgressStateCanceled:
			w.doneOnce.Do(func() { w.done <- downloadResult{err: errors.New("download canceled by browser")} })
		}
	}
}

func anchorScript(filename string) string {
	return fmt.Sprintf(`(() => {
	const a = document.createElement('a');
	a.href = location.href;
	a.download = %q;
	document.body.appendChild(a);
	a.click();
	a.remove();
})()`, filename)
}
