// Package media locates a saveable source for an on-page media element.
package media

import "strings"

// Element is the read-only view of a media element the resolver needs.
type Element interface {
	// Attr returns the attribute value or "".
	Attr(name string) string
	// SourceURLs lists nested <source> locations in document order.
	SourceURLs() []string
	// CurrentSrc is the location the player actually resolved, if known.
	CurrentSrc() string
	// Recordable reports whether the element is live and has decoded frames.
	Recordable() bool
}

// Page is the document an element lives in.
type Page interface {
	URL() string
	InlineScripts() []string
}

// ElementSnapshot is a captured copy of a <video> element. Static documents
// produce snapshots with Live false; a browser session fills in the playback
// fields.
type ElementSnapshot struct {
	Index      int               `json:"index"`
	Attrs      map[string]string `json:"attrs"`
	Sources    []string          `json:"sources"`
	Current    string            `json:"currentSrc"`
	Live       bool              `json:"live"`
	Width      int               `json:"videoWidth"`
	Height     int               `json:"videoHeight"`
	ReadyState int               `json:"readyState"`
}

func (e *ElementSnapshot) Attr(name string) string {
	if e.Attrs == nil {
		return ""
	}
	return strings.TrimSpace(e.Attrs[strings.ToLower(name)])
}

func (e *ElementSnapshot) SourceURLs() []string { return e.Sources }

func (e *ElementSnapshot) CurrentSrc() string { return strings.TrimSpace(e.Current) }

// Recordable requires current frame data (HAVE_CURRENT_DATA or better).
func (e *ElementSnapshot) Recordable() bool {
	return e.Live && e.Width > 0 && e.Height > 0 && e.ReadyState >= 2
}

// DOMIndex is the element's position among the page's <video> elements.
func (e *ElementSnapshot) DOMIndex() int { return e.Index }

// PageSnapshot is a captured document.
type PageSnapshot struct {
	PageURL string             `json:"url"`
	Scripts []string           `json:"scripts"`
	Videos  []*ElementSnapshot `json:"videos"`
}

func (p *PageSnapshot) URL() string { return p.PageURL }

func (p *PageSnapshot) InlineScripts() []string { return p.Scripts }
