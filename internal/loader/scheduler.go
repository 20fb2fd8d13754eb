// Package loader drives a manifest load: it decodes the root manifest, fans
// out fetches for scripts, metadata documents and their payloads, compiles
// assets from fetch-completion continuations, and publishes the GameSource
// aggregate once the request set drains.
//
// Concurrency model: fetch I/O and payload preprocessing run on per-request
// goroutines, but every continuation is dispatched from a single loop in
// Scheduler.Run, so no two continuations ever run concurrently and no
// in-memory structure the continuations touch needs locking. The only
// shared bookkeeping is the pending-request counter, incremented at
// Schedule time: a continuation that registers nested requests therefore
// always raises the counter before its own completion lowers it, which is
// what keeps the drain signal from firing early.
package loader

import (
	"context"
	"sync/atomic"

	"github.com/vk/spritegrid/internal/ctxlog"
	"github.com/vk/spritegrid/internal/fetch"
)

// Request is one asynchronous fetch registration.
type Request struct {
	// URL to fetch.
	URL string
	// Kind is the expected payload kind.
	Kind fetch.Kind
	// ForceReload bypasses any transport-level cache.
	ForceReload bool
	// Tolerable marks a failure as non-fatal: it is logged as a warning and
	// the load continues.
	Tolerable bool
	// Preprocess, if set, transforms the raw payload off the dispatch loop
	// (on the request's own goroutine) before OnSuccess sees it.
	Preprocess func(ctx context.Context, data []byte) (any, error)
	// OnSuccess is the success continuation, run on the dispatch loop. The
	// payload is the preprocessor result, or the raw []byte without one.
	// A returned error is fatal and aborts the session.
	OnSuccess func(ctx context.Context, payload any) error
	// OnFailure, if set, handles a fetch or preprocess failure and the load
	// continues. A request lacking OnFailure (and not Tolerable) is fatal
	// on failure.
	OnFailure func(ctx context.Context, err error)
}

// completion is applied on the dispatch loop.
type completion func(ctx context.Context) error

// Scheduler tracks the dynamic set of in-flight requests of one session and
// signals a single drain when, after Finalize, the set empties, even though
// new requests keep being registered by running requests' continuations.
type Scheduler struct {
	fetcher     fetch.Fetcher
	pending     atomic.Int64
	finalized   atomic.Bool
	completions chan completion
	warnings    []Warning
}

// NewScheduler creates a scheduler over the given fetch capability.
func NewScheduler(fetcher fetch.Fetcher) *Scheduler {
	return &Scheduler{
		fetcher:     fetcher,
		completions: make(chan completion, 64),
	}
}

// Schedule registers one request and returns immediately. It may be called
// before Run and from within continuations; the pending counter is raised
// before the fetch goroutine starts.
func (s *Scheduler) Schedule(ctx context.Context, req Request) {
	s.pending.Add(1)
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Scheduling fetch.", "url", req.URL, "kind", req.Kind.String(), "pending", s.pending.Load())

	// Tag every transport log line of this request with its URL.
	reqCtx := ctxlog.With(ctx, "url", req.URL)
	go func() {
		data, err := s.fetcher.Fetch(reqCtx, req.URL, req.Kind, req.ForceReload)
		var payload any = data
		if err == nil && req.Preprocess != nil {
			payload, err = req.Preprocess(reqCtx, data)
		}
		s.post(ctx, func(ctx context.Context) error {
			defer s.pending.Add(-1)
			if err != nil {
				return s.settleFailure(ctx, req, err)
			}
			return req.OnSuccess(ctx, payload)
		})
	}()
}

// post hands a completion to the dispatch loop, dropping it if the session
// was superseded or aborted.
func (s *Scheduler) post(ctx context.Context, c completion) {
	select {
	case s.completions <- c:
	case <-ctx.Done():
	}
}

func (s *Scheduler) settleFailure(ctx context.Context, req Request, err error) error {
	logger := ctxlog.FromContext(ctx)
	if req.OnFailure != nil {
		logger.Debug("Request failed, handled by failure continuation.", "url", req.URL, "error", err)
		req.OnFailure(ctx, err)
		return nil
	}
	if req.Tolerable {
		logger.Warn("Tolerated fetch failure.", "url", req.URL, "error", err)
		s.Warn(req.URL, err.Error())
		return nil
	}
	return err
}

// Finalize marks registration complete. The drain fires once Finalize has
// been called and every request, including ones registered transitively
// from continuations, has completed or been tolerated.
func (s *Scheduler) Finalize() {
	if s.finalized.CompareAndSwap(false, true) {
		// Wake the dispatch loop in case the set already drained.
		select {
		case s.completions <- func(context.Context) error { return nil }:
		default:
		}
	}
}

// Run dispatches continuations until the request set drains or a fatal
// error aborts the session. It returns nil exactly once per session, at the
// drain event.
func (s *Scheduler) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	for {
		if s.finalized.Load() && s.pending.Load() == 0 {
			logger.Debug("Request set drained.")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case apply := <-s.completions:
			if err := apply(ctx); err != nil {
				logger.Error("Load aborted.", "error", err)
				return err
			}
		}
	}
}

// Warn records a non-fatal diagnostic. Must be called from the dispatch
// loop (or before Run starts).
func (s *Scheduler) Warn(url, message string) {
	s.warnings = append(s.warnings, Warning{URL: url, Message: message})
}

// Warnings returns the diagnostics collected so far.
func (s *Scheduler) Warnings() []Warning {
	return s.warnings
}
