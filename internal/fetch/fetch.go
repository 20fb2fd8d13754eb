// Package fetch defines the injected fetch capability the loader runs on:
// a payload-kind-tagged byte fetch over HTTP or a local directory tree.
package fetch

import (
	"context"
	"fmt"
)

// Kind describes the payload a request expects. It is advisory for the
// transport (content negotiation, logging); every fetch returns raw bytes
// and the caller's preprocessor or decoder gives them shape.
type Kind int

const (
	// Text is a UTF-8 text payload (scripts, docs, tabular data).
	Text Kind = iota
	// Binary is an opaque byte payload (sound samples, pixel data).
	Binary
	// Document is a structured metadata document (JSON).
	Document
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Binary:
		return "binary"
	case Document:
		return "document"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fetcher retrieves the payload behind a URL. Implementations may serve
// from a transport-level cache unless forceReload is set.
type Fetcher interface {
	Fetch(ctx context.Context, url string, kind Kind, forceReload bool) ([]byte, error)
}

// Error wraps a transport failure with the URL it occurred on.
type Error struct {
	URL string
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

// Unwrap exposes the underlying transport error.
func (e *Error) Unwrap() error { return e.Err }
