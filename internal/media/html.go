package media

import (
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ParseDocument reads static HTML and snapshots every <video> element and
// inline script. Nested <source> locations are kept raw; the resolver
// resolves them against pageURL.
func ParseDocument(r io.Reader, pageURL string) (*PageSnapshot, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	page := &PageSnapshot{PageURL: pageURL}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Video:
				page.Videos = append(page.Videos, snapshotVideo(n, len(page.Videos)))
			case atom.Script:
				if attr(n, "src") == "" {
					page.Scripts = append(page.Scripts, textContent(n))
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return page, nil
}

func snapshotVideo(n *html.Node, index int) *ElementSnapshot {
	el := &ElementSnapshot{Index: index, Attrs: make(map[string]string, len(n.Attr))}
	for _, a := range n.Attr {
		el.Attrs[strings.ToLower(a.Key)] = a.Val
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == atom.Source {
			if src := strings.TrimSpace(attr(c, "src")); src != "" {
				el.Sources = append(el.Sources, src)
			}
		}
	}
	return el
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
