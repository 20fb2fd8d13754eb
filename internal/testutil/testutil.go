// Package testutil provides shared helpers for integration-style load
// tests: a URL-keyed mock fetcher with per-URL delays and failures, a
// thread-safe log buffer, and tiny PNG builders.
package testutil

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"time"

	"github.com/vk/spritegrid/internal/fetch"
)

// SafeBuffer is a thread-safe buffer for capturing log output in tests.
type SafeBuffer struct {
	b  bytes.Buffer
	mu sync.Mutex
}

// Write implements the io.Writer interface for SafeBuffer.
func (b *SafeBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.Write(p)
}

// String implements the fmt.Stringer interface for SafeBuffer.
func (b *SafeBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.b.String()
}

// MockFetcher serves payloads from an in-memory file map. Delays and
// failures are injectable per URL, and every fetch is recorded.
type MockFetcher struct {
	mu      sync.Mutex
	files   map[string][]byte
	delays  map[string]time.Duration
	errors  map[string]error
	calls   []string
	reloads []string
}

// NewMockFetcher builds a fetcher over string payloads.
func NewMockFetcher(files map[string]string) *MockFetcher {
	f := &MockFetcher{
		files:  map[string][]byte{},
		delays: map[string]time.Duration{},
		errors: map[string]error{},
	}
	for url, body := range files {
		f.files[url] = []byte(body)
	}
	return f
}

// SetBinary installs a binary payload.
func (f *MockFetcher) SetBinary(url string, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[url] = data
}

// SetDelay makes fetches of url take at least d.
func (f *MockFetcher) SetDelay(url string, d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delays[url] = d
}

// SetError makes fetches of url fail.
func (f *MockFetcher) SetError(url string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors[url] = err
}

// Calls returns the fetched URLs in completion-start order.
func (f *MockFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// Reloads returns the URLs fetched with the force-reload flag set.
func (f *MockFetcher) Reloads() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.reloads))
	copy(out, f.reloads)
	return out
}

// Fetch implements fetch.Fetcher.
func (f *MockFetcher) Fetch(ctx context.Context, url string, kind fetch.Kind, forceReload bool) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	if forceReload {
		f.reloads = append(f.reloads, url)
	}
	delay := f.delays[url]
	failure := f.errors[url]
	data, ok := f.files[url]
	f.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if failure != nil {
		return nil, &fetch.Error{URL: url, Err: failure}
	}
	if !ok {
		return nil, &fetch.Error{URL: url, Err: fmt.Errorf("no such file")}
	}
	return data, nil
}

// SolidPNG encodes a w x h PNG filled with one color.
func SolidPNG(w, h int, c color.NRGBA) []byte {
	return PNG(w, h, func(x, y int) color.NRGBA { return c })
}

// PNG encodes a w x h PNG with a per-pixel color function.
func PNG(w, h int, at func(x, y int) color.NRGBA) []byte {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, at(x, y))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic(err)
	}
	return buf.Bytes()
}
