// Package httpsource implements the default tile transport (component
// C14): a net/http client plus a small in-memory ETag cache so a 304
// response resolves transparently to the previously fetched body,
// matching apc.HttpClient's Fetch(url) -> bytes | error contract.
//
// Grounded on the retrieved pack's own tile-fetching client (a
// net/http.Client with a timeout, GET, and status-code handling), with
// the ETag/conditional-request layer added for spec.md §6's "304 ->
// cached bytes" requirement.
package httpsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gogpu/maptile/coords"
)

// DefaultTimeout bounds a single tile fetch (grounded on the pack's own
// tile client's 30s http.Client.Timeout).
const DefaultTimeout = 30 * time.Second

// Client is the default apc.HttpClient implementation.
type Client struct {
	http  *http.Client
	cache *etagCache
}

// New returns a Client with the given per-request timeout. Zero uses
// DefaultTimeout.
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http:  &http.Client{Timeout: timeout},
		cache: newEtagCache(),
	}
}

// Fetch issues GET url and returns its body. A 200 response is cached by
// ETag (if present) for future conditional requests; a 304 resolves to
// the previously cached body; any other status is a failure (spec.md
// §6: "Status 200 -> bytes; 304 -> cached bytes... other statuses ->
// failure").
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("httpsource: build request for %s: %w", url, err)
	}
	if etag, ok := c.cache.etag(url); ok {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpsource: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("httpsource: read %s: %w", url, err)
		}
		c.cache.store(url, resp.Header.Get("ETag"), body)
		return body, nil
	case http.StatusNotModified:
		if body, ok := c.cache.body(url); ok {
			return body, nil
		}
		return nil, fmt.Errorf("httpsource: %s: 304 with no cached body", url)
	default:
		return nil, fmt.Errorf("httpsource: %s: unexpected status %s", url, resp.Status)
	}
}

// URLFor returns a render.URLFor-compatible builder over baseURL,
// following the {scheme}/{z}/{x}/{y}.pbf convention (spec.md §6).
func URLFor(baseURL string) func(coords.TileCoords) string {
	base := strings.TrimSuffix(baseURL, "/")
	return func(c coords.TileCoords) string {
		return fmt.Sprintf("%s/%d/%d/%d.pbf", base, c.Z, c.X, c.Y)
	}
}

type cacheEntry struct {
	etag string
	body []byte
}

// etagCache is an in-memory, per-URL ETag/body cache. Unbounded: a
// long-running embedder is expected to front this with its own eviction
// policy if URL cardinality grows unbounded (spec.md §3 names the HTTP
// cache as an external, separately-owned concern).
type etagCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

func newEtagCache() *etagCache {
	return &etagCache{entries: make(map[string]cacheEntry)}
}

func (c *etagCache) etag(url string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[url]
	if !ok || e.etag == "" {
		return "", false
	}
	return e.etag, true
}

func (c *etagCache) body(url string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[url]
	return e.body, ok
}

func (c *etagCache) store(url, etag string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = cacheEntry{etag: etag, body: body}
}
