package fetch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/spritegrid/internal/ctxlog"
)

// FileFetcher serves payloads from a directory tree. URLs are slash-separated
// paths relative to the root; escaping the root is rejected.
type FileFetcher struct {
	root string
}

// NewFileFetcher creates a fetcher rooted at dir.
func NewFileFetcher(dir string) *FileFetcher {
	return &FileFetcher{root: dir}
}

// Fetch implements the Fetcher interface. forceReload is a no-op: the
// filesystem has no transport-level cache to bypass.
func (f *FileFetcher) Fetch(ctx context.Context, url string, kind Kind, forceReload bool) ([]byte, error) {
	logger := ctxlog.FromContext(ctx)

	clean := filepath.Clean(filepath.FromSlash(strings.TrimPrefix(url, "/")))
	if clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return nil, &Error{URL: url, Err: fmt.Errorf("path escapes fetch root")}
	}

	full := filepath.Join(f.root, clean)
	logger.Debug("Reading local file.", "url", url, "path", full, "kind", kind.String())

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, &Error{URL: url, Err: err}
	}
	return data, nil
}
