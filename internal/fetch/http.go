package fetch

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/vk/spritegrid/internal/ctxlog"
)

// HTTPFetcher fetches payloads over HTTP(S) using a shared resty client.
type HTTPFetcher struct {
	client *resty.Client
}

// NewHTTPFetcher creates an HTTP fetcher with the given request timeout.
// A zero timeout disables the deadline; a stalled fetch then stalls the
// whole load session, which is the documented behavior.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	client := resty.New()
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPFetcher{client: client}
}

// Fetch implements the Fetcher interface.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string, kind Kind, forceReload bool) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Fetching over HTTP.", "url", url, "kind", kind.String(), "forceReload", forceReload)

	req := f.client.R().SetContext(ctx)
	if forceReload {
		req.SetHeader("Cache-Control", "no-cache")
		req.SetHeader("Pragma", "no-cache")
	}

	resp, err := req.Get(url)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	if resp.IsError() {
		return nil, &Error{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}

	body := resp.Bytes()
	logger.Debug("HTTP fetch complete.", "url", url, "bytes", len(body))
	return body, nil
}

// Close releases the client's idle connections.
func (f *HTTPFetcher) Close() error {
	return f.client.Close()
}
