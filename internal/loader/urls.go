package loader

import (
	"net/url"
	"path"
	"strings"
)

// resolveURL resolves a reference against the document it appeared in.
// Absolute references (scheme or leading slash) pass through; everything
// else is joined onto the base document's directory.
func resolveURL(base, ref string) string {
	if ref == "" {
		return base
	}
	if strings.Contains(ref, "://") || strings.HasPrefix(ref, "/") {
		return ref
	}
	if base == "" {
		return ref
	}
	if u, err := url.Parse(base); err == nil && u.Scheme != "" {
		if r, err := u.Parse(ref); err == nil {
			return r.String()
		}
	}
	dir := path.Dir(base)
	if dir == "." {
		return ref
	}
	return path.Join(dir, ref)
}

// baseName returns the last path element of a URL without its extension
// chain, used as the default asset name for sheets reached through a map.
func baseName(u string) string {
	name := path.Base(u)
	if i := strings.IndexByte(name, '.'); i > 0 {
		name = name[:i]
	}
	return name
}
