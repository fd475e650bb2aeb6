package media

import (
	"context"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// auxiliaryAttrs are probed, in order, when the element only exposes a
// local handle.
var auxiliaryAttrs = []string{"src", "data-src", "data-video-src", "data-url"}

// localSchemes mark in-page handles that cannot be fetched from outside.
var localSchemes = []string{"blob:", "mediasource:"}

var scriptMediaURL = regexp.MustCompile(`(?i)https?://[^\s"'<>\\()]+?\.(?:mp4|webm|ogg|m4v|mov)\b(?:\?[^\s"'<>\\()]*)?`)

// Resolver finds a fetchable location for a media element.
type Resolver struct {
	logger *slog.Logger
}

// NewResolver creates a Resolver.
func NewResolver(logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{logger: logger.With(slog.String("component", "media_resolver"))}
}

// Resolve returns the first usable location, trying in order the src
// attribute, the first nested source, the current playback location,
// auxiliary attributes when only a local handle was found, and finally URLs
// embedded in inline scripts. It reports false when none is usable; that is
// "nothing to fetch", not an error.
func (r *Resolver) Resolve(ctx context.Context, el Element, page Page) (string, bool) {
	if el == nil {
		return "", false
	}
	base := ""
	if page != nil {
		base = page.URL()
	}

	best := ""
	candidates := []struct {
		from  string
		value string
	}{
		{"src", el.Attr("src")},
		{"source", firstSource(el)},
		{"currentSrc", el.CurrentSrc()},
	}
	for _, c := range candidates {
		if isPlaceholder(c.value) {
			continue
		}
		best = absolutize(c.value, base)
		r.logger.DebugContext(ctx, "media candidate", slog.String("from", c.from), slog.String("url", best))
		break
	}

	if best != "" && !IsLocalHandle(best) {
		return best, true
	}

	if best != "" {
		for _, name := range auxiliaryAttrs {
			v := el.Attr(name)
			if isPlaceholder(v) || IsLocalHandle(v) {
				continue
			}
			r.logger.DebugContext(ctx, "media source from auxiliary attribute", slog.String("attr", name))
			return absolutize(v, base), true
		}
	}

	if page != nil {
		for _, script := range page.InlineScripts() {
			if m := scriptMediaURL.FindString(script); m != "" {
				r.logger.DebugContext(ctx, "media source from inline script", slog.String("url", m))
				return m, true
			}
		}
	}

	return "", false
}

// IsLocalHandle reports whether u is an in-page handle such as blob:.
func IsLocalHandle(u string) bool {
	lower := strings.ToLower(strings.TrimSpace(u))
	for _, scheme := range localSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return false
}

func firstSource(el Element) string {
	if sources := el.SourceURLs(); len(sources) > 0 {
		return sources[0]
	}
	return ""
}

func isPlaceholder(v string) bool {
	v = strings.TrimSpace(v)
	lower := strings.ToLower(v)
	switch {
	case v == "", v == "#", lower == "about:blank":
		return true
	case strings.HasPrefix(lower, "javascript:"):
		return true
	case strings.HasPrefix(lower, "data:"):
		comma := strings.IndexByte(v, ',')
		return comma < 0 || comma == len(v)-1
	}
	return false
}

// absolutize resolves ref against base; unparseable input is returned as is.
func absolutize(ref, base string) string {
	ref = strings.TrimSpace(ref)
	if base == "" || IsLocalHandle(ref) {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(u).String()
}
