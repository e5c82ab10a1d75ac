// Package client builds outbound HTTP clients.
package client

import (
	"net/http"
	"time"

	"github.com/gregjones/httpcache"
	"github.com/gregjones/httpcache/diskcache"
)

const defaultTimeout = 10 * time.Second

// NewCachingHTTPClient creates an HTTP client which honours Cache-Control on
// responses. Google serves its JWKS with a max-age, so key refetches between
// rotations are answered locally.
//
// An empty cacheDir keeps the cache in memory; otherwise it persists across
// restarts on disk.
func NewCachingHTTPClient(cacheDir string) *http.Client {
	var cache httpcache.Cache = httpcache.NewMemoryCache()
	if cacheDir != "" {
		cache = diskcache.New(cacheDir)
	}

	return &http.Client{
		Transport: httpcache.NewTransport(cache),
		Timeout:   defaultTimeout,
	}
}
