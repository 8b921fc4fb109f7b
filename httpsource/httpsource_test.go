package httpsource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/gogpu/maptile/coords"
)

func TestFetchReturnsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("tile-bytes"))
	}))
	defer srv.Close()

	c := New(0)
	body, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if string(body) != "tile-bytes" {
		t.Errorf("got %q, want %q", body, "tile-bytes")
	}
}

func TestFetchNonOKStatusIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := New(0)
	if _, err := c.Fetch(context.Background(), srv.URL); err == nil {
		t.Error("expected an error for a 404 response")
	}
}

func TestFetchResolves304FromCache(t *testing.T) {
	var requests int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&requests, 1)
		if n == 1 {
			w.Header().Set("ETag", `"v1"`)
			w.Write([]byte("first-body"))
			return
		}
		if r.Header.Get("If-None-Match") != `"v1"` {
			t.Errorf("expected conditional request to carry the cached ETag, got %q", r.Header.Get("If-None-Match"))
		}
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	c := New(0)
	first, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("first Fetch: %v", err)
	}

	second, err := c.Fetch(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("second Fetch: %v", err)
	}
	if string(second) != string(first) {
		t.Errorf("got %q from the 304 response, want the cached body %q", second, first)
	}
	if requests != 2 {
		t.Fatalf("got %d requests, want 2", requests)
	}
}

func TestURLForBuildsConventionalPath(t *testing.T) {
	builder := URLFor("https://tiles.example.com/v1/")
	got := builder(coords.TileCoords{X: 3, Y: 5, Z: 7})
	want := "https://tiles.example.com/v1/7/3/5.pbf"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
