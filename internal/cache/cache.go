// Package cache is the URL-keyed dedup store of one load session. Each
// entry is a promise handle: consumers that hit the cache while the asset
// is still compiling attach a continuation to the handle instead of polling,
// and the handle resolves exactly once when compilation finishes.
//
// The cache and its handles are confined to the session's dispatch
// goroutine; no locking is needed because no two continuations ever run
// concurrently.
package cache

import "github.com/vk/spritegrid/internal/asset"

// Handle is the promise for one cached asset. It resolves (or fails)
// exactly once; late subscribers run immediately.
type Handle struct {
	url     string
	builtin bool
	done    bool
	value   *asset.Asset
	err     error
	waiters []func(*asset.Asset, error)
}

// URL returns the metadata-document URL keying the handle.
func (h *Handle) URL() string { return h.url }

// Done reports whether the handle has reached its terminal state, resolved
// or failed.
func (h *Handle) Done() bool { return h.done }

// Asset returns the resolved asset, nil before resolution or on failure.
func (h *Handle) Asset() *asset.Asset { return h.value }

// Then attaches a continuation, invoked with the resolved asset or the
// failure. If the handle is already settled the continuation runs
// immediately, on the caller's (dispatch) goroutine either way.
func (h *Handle) Then(fn func(*asset.Asset, error)) {
	if h.done {
		fn(h.value, h.err)
		return
	}
	h.waiters = append(h.waiters, fn)
}

// Resolve settles the handle with a fully compiled asset and runs every
// waiting continuation. Resolving a settled handle is a no-op: the first
// settlement wins and the asset is never rebuilt.
func (h *Handle) Resolve(a *asset.Asset) {
	h.settle(a, nil)
}

// Fail settles the handle with the compilation failure.
func (h *Handle) Fail(err error) {
	h.settle(nil, err)
}

func (h *Handle) settle(a *asset.Asset, err error) {
	if h.done {
		return
	}
	h.done = true
	h.value = a
	h.err = err
	waiters := h.waiters
	h.waiters = nil
	for _, fn := range waiters {
		fn(a, err)
	}
}

// Cache maps metadata-document URLs to asset handles.
type Cache struct {
	entries map[string]*Handle
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: map[string]*Handle{}}
}

// Lookup returns the handle for a URL if one exists.
func (c *Cache) Lookup(url string) (*Handle, bool) {
	h, ok := c.entries[url]
	return h, ok
}

// Insert registers a new pending handle for a URL. At most one handle ever
// exists per URL within a session; inserting over an existing entry returns
// the existing handle so all consumers share one asset.
func (c *Cache) Insert(url string, builtin bool) *Handle {
	if h, ok := c.entries[url]; ok {
		return h
	}
	h := &Handle{url: url, builtin: builtin}
	c.entries[url] = h
	return h
}

// Clear drops the session's entries. With keepBuiltins, entries marked as
// built-in survive into the next session.
func (c *Cache) Clear(keepBuiltins bool) {
	if !keepBuiltins {
		c.entries = map[string]*Handle{}
		return
	}
	kept := map[string]*Handle{}
	for url, h := range c.entries {
		if h.builtin {
			kept[url] = h
		}
	}
	c.entries = kept
}

// Len returns the number of entries.
func (c *Cache) Len() int { return len(c.entries) }
