package loader

import (
	"context"
	"sort"

	"github.com/vk/spritegrid/internal/asset"
	"github.com/vk/spritegrid/internal/cache"
	"github.com/vk/spritegrid/internal/ctxlog"
	"github.com/vk/spritegrid/internal/fetch"
	"github.com/vk/spritegrid/internal/pixel"
	"github.com/vk/spritegrid/internal/sheet"
	"github.com/vk/spritegrid/internal/stats"
)

// BuiltinFontURL keys the built-in fallback font in the cache. Built-in
// entries survive across load sessions, which is why user asset names may
// not start with the reserved prefix.
const BuiltinFontURL = "_builtin/font.font.json"

// builtinFontCharset is the printable ASCII range, row-major in the
// generated atlas.
const builtinFontCharset = " !\"#$%&'()*+,-./0123456789:;<=>?" +
	"@ABCDEFGHIJKLMNOPQRSTUVWXYZ[\\]^_" +
	"`abcdefghijklmnopqrstuvwxyz{|}~"

// Loader owns the process-wide load state: the fetch capability, the asset
// cache (built-ins included) and the orientation-id allocator. At most one
// load session is active at a time; starting a new Load supersedes the
// prior session.
type Loader struct {
	fetcher fetch.Fetcher
	cache   *cache.Cache
	ids     *sheet.IDAllocator
	cancel  context.CancelFunc
}

// New creates a loader and seeds the built-in assets.
func New(fetcher fetch.Fetcher) *Loader {
	l := &Loader{
		fetcher: fetcher,
		cache:   cache.New(),
		ids:     sheet.NewIDAllocator(),
	}
	h := l.cache.Insert(BuiltinFontURL, true)
	h.Resolve(builtinFont(l.ids))
	return l
}

// Cache exposes the loader's cache for tests.
func (l *Loader) Cache() *cache.Cache { return l.cache }

// Load runs one manifest load session to completion and returns the
// published GameSource. A session already in flight is superseded: its
// context is cancelled, its non-built-in cache entries are dropped, and its
// late fetch completions are ignored. Prompt cancellation of already-issued
// fetches is not guaranteed.
func (l *Loader) Load(ctx context.Context, manifestURL string) (*asset.GameSource, error) {
	superseding := l.cancel != nil
	if superseding {
		l.cancel()
		l.cache.Clear(true)
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel

	s := &session{
		sched:       NewScheduler(l.fetcher),
		cache:       l.cache,
		ids:         l.ids,
		src:         asset.NewGameSource(),
		manifestURL: manifestURL,
		reload:      superseding,
	}
	return s.run(ctx)
}

// session is the state of one manifest load.
type session struct {
	sched       *Scheduler
	cache       *cache.Cache
	ids         *sheet.IDAllocator
	src         *asset.GameSource
	manifestURL string

	// reload marks a superseding session; the manifest is refetched past any
	// transport cache so a stale copy cannot pin the old asset graph.
	reload bool
}

func (s *session) run(ctx context.Context) (*asset.GameSource, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting load session.", "manifest", s.manifestURL)

	s.sched.Schedule(ctx, Request{
		URL:         s.manifestURL,
		Kind:        fetch.Document,
		ForceReload: s.reload,
		OnSuccess: func(ctx context.Context, payload any) error {
			return s.applyManifest(ctx, payload.([]byte))
		},
	})
	s.sched.Finalize()

	if err := s.sched.Run(ctx); err != nil {
		return nil, err
	}

	// Drain event: the whole asset graph is terminal, run the accountant
	// and publish.
	s.src.Report = stats.Collect(s.src)
	logger.Info("Load session drained.",
		"assets", len(s.src.Assets),
		"pixelBytes", s.src.Report.PixelBytes,
		"warnings", len(s.sched.Warnings()))
	return s.src, nil
}

// applyManifest is the manifest fetch continuation: it validates the
// manifest and fans out every dependent fetch.
func (s *session) applyManifest(ctx context.Context, data []byte) error {
	m, err := decodeManifest(s.manifestURL, data)
	if err != nil {
		return err
	}

	s.src.Title = m.Title
	s.src.ScreenSize = m.ScreenSize
	s.src.Modes = m.Modes
	s.src.StartMode = m.StartMode

	s.scheduleScripts(ctx, m.Scripts)
	s.scheduleDocs(ctx, m.Docs)

	if h, ok := s.cache.Lookup(BuiltinFontURL); ok {
		h.Then(func(a *asset.Asset, err error) {
			if err == nil && a != nil {
				s.src.Assets[a.Name] = a
				s.src.Register(a)
			}
		})
	}

	for _, name := range sortedKeys(m.Assets) {
		if err := s.loadAsset(ctx, name, m.Assets[name]); err != nil {
			return err
		}
	}

	if err := s.declareConstants(ctx, m); err != nil {
		return err
	}
	return nil
}

func (s *session) scheduleScripts(ctx context.Context, urls []string) {
	s.src.Scripts = make([]asset.Script, len(urls))
	for i, ref := range urls {
		scriptURL := resolveURL(s.manifestURL, ref)
		s.src.Scripts[i] = asset.Script{URL: scriptURL}
		idx := i
		s.sched.Schedule(ctx, Request{
			URL:  scriptURL,
			Kind: fetch.Text,
			OnSuccess: func(ctx context.Context, payload any) error {
				s.src.Scripts[idx].Text = string(payload.([]byte))
				return nil
			},
		})
	}
}

func (s *session) scheduleDocs(ctx context.Context, urls []string) {
	s.src.Docs = make([]asset.Doc, len(urls))
	for i, ref := range urls {
		docURL := resolveURL(s.manifestURL, ref)
		s.src.Docs[i] = asset.Doc{URL: docURL}
		idx := i
		s.sched.Schedule(ctx, Request{
			URL:       docURL,
			Kind:      fetch.Text,
			Tolerable: true,
			OnSuccess: func(ctx context.Context, payload any) error {
				s.src.Docs[idx].Text = string(payload.([]byte))
				return nil
			},
		})
	}
}

// builtinFont generates the fallback glyph atlas: a blank 16x6 grid of 8x8
// cells covering printable ASCII. Game scripts can rely on it existing
// before any user asset resolves.
func builtinFont(ids *sheet.IDAllocator) *asset.Asset {
	const cols, rows, cell = 16, 6, 8
	base := &pixel.Buffer{W: cols * cell, H: rows * cell, Pix: make([]uint16, cols*cell*rows*cell)}
	for i := range base.Pix {
		base.Pix[i] = pixel.Pack(255, 255, 255, 255)
	}
	mirrored := &pixel.Buffer{W: base.W, H: base.H, Pix: base.Pix}

	meta := &sheet.Meta{SpriteSize: [2]int{cell, cell}}
	sh, err := sheet.Compile("_builtin/font", meta, base, mirrored, ids)
	if err != nil {
		// The generated geometry is fixed; a failure here is a programmer error.
		panic(err)
	}
	return &asset.Asset{
		Name:    "_builtin/font",
		Kind:    asset.KindFont,
		MetaURL: BuiltinFontURL,
		Font:    asset.NewFont(sh, cell, cell, 0, builtinFontCharset),
	}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	// Deterministic fan-out order: display indexes must not depend on map
	// iteration order.
	sort.Strings(keys)
	return keys
}
