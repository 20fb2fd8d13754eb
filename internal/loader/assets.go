package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vk/spritegrid/internal/asset"
	"github.com/vk/spritegrid/internal/cache"
	"github.com/vk/spritegrid/internal/ctxlog"
	"github.com/vk/spritegrid/internal/fetch"
	"github.com/vk/spritegrid/internal/pixel"
	"github.com/vk/spritegrid/internal/sheet"
	"github.com/vk/spritegrid/internal/tilemap"
)

// quantized is the preprocessor output for pixel payloads.
type quantized struct {
	base     *pixel.Buffer
	mirrored *pixel.Buffer
}

// loadAsset dedups one manifest asset declaration through the cache and, on
// a miss, starts the fetch/compile chain for its kind.
func (s *session) loadAsset(ctx context.Context, name, ref string) error {
	metaURL := resolveURL(s.manifestURL, ref)
	kind, err := asset.KindForURL(metaURL)
	if err != nil {
		return configErrf(metaURL, "asset %q: %v", name, err)
	}

	register := func(a *asset.Asset, err error) {
		if err != nil || a == nil {
			return
		}
		s.src.Assets[name] = a
		s.src.Register(a)
	}

	if kind == asset.KindSheet {
		s.ensureSheet(ctx, metaURL).Then(register)
		return nil
	}

	if h, ok := s.cache.Lookup(metaURL); ok {
		ctxlog.FromContext(ctx).Debug("Asset cache hit.", "name", name, "url", metaURL)
		h.Then(register)
		return nil
	}
	h := s.cache.Insert(metaURL, false)
	h.Then(register)

	switch kind {
	case asset.KindFont:
		s.loadFont(ctx, metaURL, h)
	case asset.KindSound:
		s.loadSound(ctx, metaURL, h)
	case asset.KindMap:
		s.loadMap(ctx, metaURL, h)
	}
	return nil
}

// ensureSheet returns the (possibly in-flight) handle compiling the sheet
// behind a metadata URL. Maps and direct declarations share one handle, so
// at most one sheet is ever compiled per URL within a session.
func (s *session) ensureSheet(ctx context.Context, metaURL string) *cache.Handle {
	if h, ok := s.cache.Lookup(metaURL); ok {
		ctxlog.FromContext(ctx).Debug("Sheet cache hit.", "url", metaURL)
		return h
	}
	h := s.cache.Insert(metaURL, false)
	s.sched.Schedule(ctx, Request{
		URL:  metaURL,
		Kind: fetch.Document,
		OnSuccess: func(ctx context.Context, payload any) error {
			return s.compileSheet(ctx, metaURL, payload.([]byte), h)
		},
	})
	return h
}

// compileSheet is stage two of the sheet chain: the metadata document has
// arrived, fetch the pixel payload and compile on its completion. The pixel
// decode and quantization run as the payload request's preprocessor, off
// the dispatch loop.
func (s *session) compileSheet(ctx context.Context, metaURL string, data []byte, h *cache.Handle) error {
	var meta sheet.Meta
	if err := json.Unmarshal(data, &meta); err != nil {
		cfg := configErrf(metaURL, "decoding sheet metadata: %v", err)
		h.Fail(cfg)
		return cfg
	}
	if meta.Image == "" {
		cfg := configErrf(metaURL, "sheet metadata is missing the image field")
		h.Fail(cfg)
		return cfg
	}
	imageURL := resolveURL(metaURL, meta.Image)

	s.sched.Schedule(ctx, Request{
		URL:  imageURL,
		Kind: fetch.Binary,
		Preprocess: func(ctx context.Context, data []byte) (any, error) {
			img, err := pixel.DecodePNG(data)
			if err != nil {
				return nil, err
			}
			base, mirrored := pixel.Quantize(img, meta.Region)
			return &quantized{base: base, mirrored: mirrored}, nil
		},
		OnSuccess: func(ctx context.Context, payload any) error {
			q := payload.(*quantized)
			sh, err := sheet.Compile(baseName(metaURL), &meta, q.base, q.mirrored, s.ids)
			if err != nil {
				cfg := configErrf(metaURL, "%v", err)
				h.Fail(cfg)
				return cfg
			}
			s.checkLicense(metaURL, meta.License)
			h.Resolve(&asset.Asset{
				Name:       baseName(metaURL),
				Kind:       asset.KindSheet,
				MetaURL:    metaURL,
				SourceURLs: []string{metaURL, imageURL},
				Credits:    meta.Credits,
				License:    meta.License,
				Sheet:      sh,
			})
			return nil
		},
	})
	return nil
}

// fontMeta is the decoded font metadata document.
type fontMeta struct {
	Image     string `json:"image"`
	GlyphSize [2]int `json:"glyph_size"`
	Charset   string `json:"charset"`
	Spacing   int    `json:"spacing"`
	Credits   string `json:"credits"`
	License   string `json:"license"`
}

func (s *session) loadFont(ctx context.Context, metaURL string, h *cache.Handle) {
	s.sched.Schedule(ctx, Request{
		URL:  metaURL,
		Kind: fetch.Document,
		OnSuccess: func(ctx context.Context, payload any) error {
			var meta fontMeta
			if err := json.Unmarshal(payload.([]byte), &meta); err != nil {
				cfg := configErrf(metaURL, "decoding font metadata: %v", err)
				h.Fail(cfg)
				return cfg
			}
			if meta.Image == "" || meta.Charset == "" {
				cfg := configErrf(metaURL, "font metadata needs image and charset")
				h.Fail(cfg)
				return cfg
			}
			imageURL := resolveURL(metaURL, meta.Image)

			s.sched.Schedule(ctx, Request{
				URL:  imageURL,
				Kind: fetch.Binary,
				Preprocess: func(ctx context.Context, data []byte) (any, error) {
					img, err := pixel.DecodePNG(data)
					if err != nil {
						return nil, err
					}
					base, mirrored := pixel.Quantize(img, nil)
					return &quantized{base: base, mirrored: mirrored}, nil
				},
				OnSuccess: func(ctx context.Context, payload any) error {
					q := payload.(*quantized)
					sheetMeta := &sheet.Meta{Image: meta.Image, SpriteSize: meta.GlyphSize}
					sh, err := sheet.Compile(baseName(metaURL), sheetMeta, q.base, q.mirrored, s.ids)
					if err != nil {
						cfg := configErrf(metaURL, "%v", err)
						h.Fail(cfg)
						return cfg
					}
					s.checkLicense(metaURL, meta.License)
					h.Resolve(&asset.Asset{
						Name:       baseName(metaURL),
						Kind:       asset.KindFont,
						MetaURL:    metaURL,
						SourceURLs: []string{metaURL, imageURL},
						Credits:    meta.Credits,
						License:    meta.License,
						Font:       asset.NewFont(sh, meta.GlyphSize[0], meta.GlyphSize[1], meta.Spacing, meta.Charset),
					})
					return nil
				},
			})
			return nil
		},
	})
}

// soundMeta is the decoded sound metadata document.
type soundMeta struct {
	Sample  string   `json:"sample"`
	Gain    *float64 `json:"gain"`
	Loop    bool     `json:"loop"`
	Credits string   `json:"credits"`
	License string   `json:"license"`
}

func (s *session) loadSound(ctx context.Context, metaURL string, h *cache.Handle) {
	s.sched.Schedule(ctx, Request{
		URL:  metaURL,
		Kind: fetch.Document,
		OnSuccess: func(ctx context.Context, payload any) error {
			var meta soundMeta
			if err := json.Unmarshal(payload.([]byte), &meta); err != nil {
				cfg := configErrf(metaURL, "decoding sound metadata: %v", err)
				h.Fail(cfg)
				return cfg
			}
			if meta.Sample == "" {
				cfg := configErrf(metaURL, "sound metadata is missing the sample field")
				h.Fail(cfg)
				return cfg
			}
			gain := 1.0
			if meta.Gain != nil {
				gain = *meta.Gain
			}
			sampleURL := resolveURL(metaURL, meta.Sample)

			s.sched.Schedule(ctx, Request{
				URL:  sampleURL,
				Kind: fetch.Binary,
				OnSuccess: func(ctx context.Context, payload any) error {
					s.checkLicense(metaURL, meta.License)
					h.Resolve(&asset.Asset{
						Name:       baseName(metaURL),
						Kind:       asset.KindSound,
						MetaURL:    metaURL,
						SourceURLs: []string{metaURL, sampleURL},
						Credits:    meta.Credits,
						License:    meta.License,
						Sound:      &asset.Sound{Data: payload.([]byte), Gain: gain, Loop: meta.Loop},
					})
					return nil
				},
			})
			return nil
		},
	})
}

// loadMap runs the three chained stages of map composition: the map
// metadata document, the spritesheet it names (through the cache, so a
// sheet already compiling is awaited rather than rebuilt), and finally the
// tile-layer document resolved against the compiled sheet.
func (s *session) loadMap(ctx context.Context, metaURL string, h *cache.Handle) {
	s.sched.Schedule(ctx, Request{
		URL:  metaURL,
		Kind: fetch.Document,
		OnSuccess: func(ctx context.Context, payload any) error {
			var meta tilemap.Meta
			if err := json.Unmarshal(payload.([]byte), &meta); err != nil {
				cfg := configErrf(metaURL, "decoding map metadata: %v", err)
				h.Fail(cfg)
				return cfg
			}
			if meta.Sheet == "" || meta.Tilemap == "" {
				cfg := configErrf(metaURL, "map metadata needs sheet and tilemap")
				h.Fail(cfg)
				return cfg
			}
			sheetURL := resolveURL(metaURL, meta.Sheet)
			tilemapURL := resolveURL(metaURL, meta.Tilemap)

			s.ensureSheet(ctx, sheetURL).Then(func(sa *asset.Asset, err error) {
				if err != nil {
					h.Fail(err)
					return
				}
				s.sched.Schedule(ctx, Request{
					URL:  tilemapURL,
					Kind: fetch.Text,
					OnSuccess: func(ctx context.Context, payload any) error {
						doc, err := tilemap.ParseDocument(payload.([]byte))
						if err != nil {
							cfg := configErrf(tilemapURL, "%v", err)
							h.Fail(cfg)
							return cfg
						}
						m, err := tilemap.Build(doc, sa.Sheet, meta.FlipY)
						if err != nil {
							cfg := configErrf(tilemapURL, "%v", err)
							h.Fail(cfg)
							return cfg
						}
						s.checkLicense(metaURL, meta.License)
						h.Resolve(&asset.Asset{
							Name:       baseName(metaURL),
							Kind:       asset.KindMap,
							MetaURL:    metaURL,
							SourceURLs: []string{metaURL, sheetURL, tilemapURL},
							Credits:    meta.Credits,
							License:    meta.License,
							Map:        m,
						})
						return nil
					},
				})
			})
			return nil
		},
	})
}

// knownLicensePrefixes is the set of license identifiers the accountant can
// attribute. Anything else is surfaced as a warning, not an error.
var knownLicensePrefixes = []string{
	"CC0", "CC-BY", "MIT", "OFL", "public domain", "proprietary",
}

func (s *session) checkLicense(url, license string) {
	if license == "" {
		return
	}
	for _, prefix := range knownLicensePrefixes {
		if strings.HasPrefix(license, prefix) {
			return
		}
	}
	s.sched.Warn(url, fmt.Sprintf("unrecognized license text %q", license))
}
