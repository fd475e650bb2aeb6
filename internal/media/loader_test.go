package media

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticLoader_Load(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/watch/page", http.StatusFound)
	})
	mux.HandleFunc("/watch/page", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-agent", r.UserAgent())
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body>
			<video src="clip.mp4"></video>
			<video><source src="/b.webm"></video>
			<script>var cfg = {"file": "https://cdn.example/c.mp4"};</script>
		</body></html>`))
	})
	mux.HandleFunc("/gone", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	loader := StaticLoader{UserAgent: "test-agent"}

	t.Run("follows redirects and keeps final url as base", func(t *testing.T) {
		page, err := loader.Load(context.Background(), srv.URL+"/old")
		require.NoError(t, err)
		assert.Equal(t, srv.URL+"/watch/page", page.URL())
		require.Len(t, page.Videos, 2)
		assert.Equal(t, "clip.mp4", page.Videos[0].Attr("src"))
		assert.Equal(t, []string{"/b.webm"}, page.Videos[1].SourceURLs())
		assert.False(t, page.Videos[0].Recordable())
		require.Len(t, page.InlineScripts(), 1)

		url, ok := NewResolver(nil).Resolve(context.Background(), page.Videos[0], page)
		require.True(t, ok)
		assert.Equal(t, srv.URL+"/watch/clip.mp4", url)
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		_, err := loader.Load(context.Background(), srv.URL+"/gone")
		assert.ErrorContains(t, err, "404")
	})
}
