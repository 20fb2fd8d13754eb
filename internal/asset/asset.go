// Package asset defines the published asset types: the tagged union over
// fonts, spritesheets, sounds and maps, and the GameSource aggregate handed
// to consumers once a load session drains.
package asset

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vk/spritegrid/internal/constants"
	"github.com/vk/spritegrid/internal/sheet"
	"github.com/vk/spritegrid/internal/tilemap"
)

// Kind tags the asset union.
type Kind int

const (
	// KindFont is a glyph atlas compiled from a bitmap font image.
	KindFont Kind = iota
	// KindSheet is a compiled spritesheet.
	KindSheet
	// KindSound is a sound sample.
	KindSound
	// KindMap is a composed tile map.
	KindMap
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindFont:
		return "font"
	case KindSheet:
		return "sheet"
	case KindSound:
		return "sound"
	case KindMap:
		return "map"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// kindSuffixes maps the metadata-document filename suffix to the asset kind.
var kindSuffixes = []struct {
	suffix string
	kind   Kind
}{
	{".font.json", KindFont},
	{".sheet.json", KindSheet},
	{".sound.json", KindSound},
	{".map.json", KindMap},
}

// KindForURL infers the asset kind from the metadata document's filename
// suffix. An unrecognized suffix is a configuration error.
func KindForURL(url string) (Kind, error) {
	for _, ks := range kindSuffixes {
		if strings.HasSuffix(url, ks.suffix) {
			return ks.kind, nil
		}
	}
	return 0, fmt.Errorf("cannot infer asset kind from %q (expected a .font/.sheet/.sound/.map .json suffix)", url)
}

// Font is a compiled bitmap font: a glyph atlas plus the charset mapping
// runes to cells in declaration order.
type Font struct {
	Sheet   *sheet.Sheet
	GlyphW  int
	GlyphH  int
	Spacing int
	Charset string
	glyphs  map[rune]*sheet.Sprite
}

// NewFont builds the rune lookup over a compiled glyph atlas. Charset runes
// map to grid cells row-major.
func NewFont(sh *sheet.Sheet, glyphW, glyphH, spacing int, charset string) *Font {
	f := &Font{Sheet: sh, GlyphW: glyphW, GlyphH: glyphH, Spacing: spacing, Charset: charset}
	f.glyphs = make(map[rune]*sheet.Sprite, len(charset))
	cols, _ := sh.Size()
	i := 0
	for _, r := range charset {
		if sp := sh.At(i%cols, i/cols); sp != nil {
			f.glyphs[r] = sp
		}
		i++
	}
	return f
}

// Glyph returns the sprite for a rune.
func (f *Font) Glyph(r rune) (*sheet.Sprite, bool) {
	sp, ok := f.glyphs[r]
	return sp, ok
}

// Sound is a loaded sound sample.
type Sound struct {
	Data []byte
	Gain float64
	Loop bool
}

// Asset is one loaded resource. Once published to the cache an asset is
// never structurally mutated; only Order is rewritten when the asset is
// re-registered after a cache hit.
type Asset struct {
	Name    string
	Kind    Kind
	MetaURL string
	// SourceURLs lists every URL the asset was built from: the metadata
	// document plus its payload documents.
	SourceURLs []string
	Credits    string
	License    string
	// Order is the display-order index assigned at registration.
	Order int

	Sheet *sheet.Sheet
	Font  *Font
	Sound *Sound
	Map   *tilemap.Map
}

// Script is one fetched script source.
type Script struct {
	URL  string
	Text string
}

// Doc is one fetched documentation text.
type Doc struct {
	URL  string
	Text string
}

// Report is the resource accounting computed after a session drains.
type Report struct {
	// Credits is the deduplicated credits text in display order.
	Credits []string
	// PixelBytes counts quantized pixel memory, both buffers.
	PixelBytes int
	// SoundBytes counts sample memory.
	SoundBytes int
	// SpriteCount counts base sprites across all sheets.
	SpriteCount int
	// MapCells counts layer cells across all maps.
	MapCells int
	// AssetCounts is the number of assets per kind.
	AssetCounts map[Kind]int
}

// GameSource is the root aggregate published to collaborators after the
// load session's drain event.
type GameSource struct {
	Title      string
	ScreenSize string
	Modes      []string
	StartMode  string
	Scripts    []Script
	Docs       []Doc
	Assets     map[string]*Asset
	Constants  *constants.Set
	// Report is filled by the resource accountant as the final load step.
	Report *Report

	order     int
	rendered  map[*Asset]bool
	renderArr []*Asset
}

// NewGameSource creates an empty aggregate.
func NewGameSource() *GameSource {
	return &GameSource{
		Assets:    map[string]*Asset{},
		Constants: constants.NewSet(),
		rendered:  map[*Asset]bool{},
	}
}

// Register inserts an asset into the global render-order array and assigns
// its display-order index. Re-registering (a cache hit re-inserting the
// same asset) is idempotent: the asset keeps a single slot and its index is
// rewritten, most recent wins.
func (g *GameSource) Register(a *Asset) {
	a.Order = g.order
	g.order++
	if g.rendered[a] {
		return
	}
	g.rendered[a] = true
	g.renderArr = append(g.renderArr, a)
}

// RenderOrder returns the registered assets sorted by display-order index.
func (g *GameSource) RenderOrder() []*Asset {
	out := make([]*Asset, len(g.renderArr))
	copy(out, g.renderArr)
	sort.Slice(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return out
}
