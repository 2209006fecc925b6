// Copyright 2026 The conda-forge admin-requests Authors
// SPDX-License-Identifier: Apache-2.0

package github

import "sync"

// etagCache maps request URLs to the ETag and body of their last 200
// response. GETs to a cached URL send If-None-Match; a 304 reply is
// served from the cache and does not count against the rate limit.
// Checks and runs often look up the same repository several times, so
// most repeats are free.
//
// Entries live as long as the Client. There is no eviction: a run
// touches a bounded set of URLs.
type etagCache struct {
	mu      sync.Mutex
	entries map[string]etagEntry
}

type etagEntry struct {
	etag string
	body []byte
}

func newETagCache() *etagCache {
	return &etagCache{entries: make(map[string]etagEntry)}
}

// get returns the cached ETag for url, or "".
func (cache *etagCache) get(url string) string {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return cache.entries[url].etag
}

// body returns the cached body for url, or nil.
func (cache *etagCache) body(url string) []byte {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return cache.entries[url].body
}

// put records a response. Responses without an ETag are not cached.
func (cache *etagCache) put(url, etag string, body []byte) {
	if etag == "" {
		return
	}
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[url] = etagEntry{etag: etag, body: body}
}

// invalidate drops the entry for url.
func (cache *etagCache) invalidate(url string) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	delete(cache.entries, url)
}
