package browser

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"vidgrab/internal/media"
)

// indexed is implemented by elements taken from a browser snapshot.
type indexed interface {
	DOMIndex() int
}

// Record re-encodes the element's frames through a canvas and MediaRecorder
// at fps, stopping at ceiling or when playback ends.
func (s *Session) Record(ctx context.Context, el media.Element, ceiling time.Duration, fps int) ([]byte, error) {
	idx, err := elementIndex(el)
	if err != nil {
		return nil, err
	}
	pageCtx, err := s.page()
	if err != nil {
		return nil, err
	}
	runCtx, cancel := bind(pageCtx, ctx)
	defer cancel()

	var encoded string
	script := recordScript(idx, ceiling, fps)
	if err := chromedp.Run(runCtx, chromedp.Evaluate(script, &encoded, awaitPromise)); err != nil {
		return nil, fmt.Errorf("record element %d: %w", idx, err)
	}

	data, err := decodeRecording(encoded)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "element recorded",
		slog.Int("index", idx),
		slog.Int("size_bytes", len(data)),
		slog.Duration("ceiling", ceiling))
	return data, nil
}

func elementIndex(el media.Element) (int, error) {
	ix, ok := el.(indexed)
	if !ok {
		return 0, errors.New("element is not attached to a browser page")
	}
	if ix.DOMIndex() < 0 {
		return 0, fmt.Errorf("invalid element index %d", ix.DOMIndex())
	}
	return ix.DOMIndex(), nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func decodeRecording(encoded string) ([]byte, error) {
	if encoded == "" {
		return nil, errors.New("recording produced no data")
	}
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode recording: %w", err)
	}
	return data, nil
}

func recordScript(index int, ceiling time.Duration, fps int) string {
	if fps <= 0 {
		fps = 30
	}
	return fmt.Sprintf(recordTemplate, index, ceiling.Milliseconds(), fps)
}

const recordTemplate = `(async (index, ceilingMs, fps) => {
	const v = document.querySelectorAll('video')[index];
	if (!v) throw new Error('video element not found');
	const canvas = document.createElement('canvas');
	canvas.width = v.videoWidth;
	canvas.height = v.videoHeight;
	const g = canvas.getContext('2d');
	const stream = canvas.captureStream(fps);
	const type = ['video/webm;codecs=vp9', 'video/webm'].find(t => MediaRecorder.isTypeSupported(t));
	const rec = new MediaRecorder(stream, type ? {mimeType: type} : undefined);
	const chunks = [];
	rec.ondataavailable = e => { if (e.data && e.data.size) chunks.push(e.data); };
	const stopped = new Promise(r => { rec.onstop = r; });
	let drawing = true;
	const draw = () => {
		if (!drawing) return;
		g.drawImage(v, 0, 0, canvas.width, canvas.height);
		setTimeout(draw, 1000 / fps);
	};
	if (v.paused) { try { await v.play(); } catch (e) {} }
	draw();
	rec.start();
	const stopAt = Date.now() + ceilingMs;
	await new Promise(r => {
		const t = setInterval(() => {
			if (v.ended || Date.now() >= stopAt) { clearInterval(t); r(); }
		}, 50);
	});
	drawing = false;
	rec.stop();
	await stopped;
	const buf = new Uint8Array(await new Blob(chunks).arrayBuffer());
	let bin = '';
	for (let i = 0; i < buf.length; i += 0x8000) {
		bin += String.fromCharCode.apply(null, buf.subarray(i, i + 0x8000));
	}
	return btoa(bin);
})(%d, %d, %d)`
