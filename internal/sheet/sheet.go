// Package sheet compiles a quantized pixel buffer and its metadata document
// into a frozen sprite atlas: a (column, row) grid of sprites, a name table
// of sprites and animation sequences, and three mirror variants per sprite.
// Builder state is mutable; the published Sheet, Sprite and Animation values
// are immutable once Compile returns.
package sheet

import (
	"fmt"

	"github.com/vk/spritegrid/internal/pixel"
)

// AlphaClass classifies the alpha content of a sprite's pixel block.
type AlphaClass int

const (
	// Opaque means every pixel is fully opaque.
	Opaque AlphaClass = iota
	// Mask means alpha is binary: fully opaque or fully transparent.
	Mask
	// Blend means at least one pixel carries fractional alpha and the
	// sprite requires alpha blending.
	Blend
)

// Mode is an animation extrapolation policy.
type Mode int

const (
	// Loop reduces the frame counter modulo the sequence period.
	Loop Mode = iota
	// Clamp freezes at the first/last sprite outside the sequence range.
	Clamp
	// Oscillate ping-pongs: forward to the end, then backward.
	Oscillate
)

// ModeFromString parses an extrapolation policy name. The empty string
// defaults to loop.
func ModeFromString(s string) (Mode, error) {
	switch s {
	case "", "loop":
		return Loop, nil
	case "clamp":
		return Clamp, nil
	case "oscillate":
		return Oscillate, nil
	}
	return Loop, fmt.Errorf("unknown animation mode %q", s)
}

// Sprite is one cell of a compiled sheet, or a mirror variant of one. All
// fields are fixed at compile time.
type Sprite struct {
	// Name is the registered name, empty for unnamed cells and mirrors.
	Name string
	// Col, Row locate the cell in the sheet grid.
	Col, Row int
	// X, Y is the pixel offset of the cell block in the sheet buffer.
	X, Y int
	// W, H is the cell size in pixels.
	W, H int
	// PivotX, PivotY is the normalized pivot, 0.5/0.5 = center.
	PivotX, PivotY float64
	// ID is the per-orientation identity. The four orientation variants of
	// a sprite occupy one id block: base, base+1 (flip-X), base+2 (flip-Y),
	// base+3 (both).
	ID int
	// ScaleX, ScaleY are +1 or -1; mirrors negate the flipped axis.
	ScaleX, ScaleY int
	// Alpha is the blend requirement of the pixel block.
	Alpha AlphaClass
	// Source points back to the base sprite on mirror variants, nil on the
	// base sprite itself. Non-owning.
	Source *Sprite

	sheet    *Sheet
	mirrorX  *Sprite
	mirrorY  *Sprite
	mirrorXY *Sprite
}

// Sheet returns the owning sheet.
func (s *Sprite) Sheet() *Sheet { return s.sheet }

// Mirror returns the orientation variant of s for the given flips. Both
// flags false returns s itself. Mirrors of mirrors resolve through the base
// sprite, so the result is always one of the four canonical variants.
func (s *Sprite) Mirror(flipX, flipY bool) *Sprite {
	base := s
	if s.Source != nil {
		base = s.Source
	}
	switch {
	case flipX && flipY:
		return base.mirrorXY
	case flipX:
		return base.mirrorX
	case flipY:
		return base.mirrorY
	}
	return base
}

// Animation is an ordered sprite sequence with its extrapolation policy and
// the derived period/frames totals computed once at compile time.
type Animation struct {
	Name    string
	Sprites []*Sprite
	Mode    Mode
	// Durations holds the per-sprite frame weight, same length as Sprites,
	// every entry >= MinFrameDuration.
	Durations []float64
	// Period is the full cycle length for loop and oscillate.
	Period float64
	// Frames is the total frame count for clamp.
	Frames float64
}

// Sheet is a compiled, immutable sprite atlas.
type Sheet struct {
	name     string
	imageURL string
	cols     int
	rows     int
	spriteW  int
	spriteH  int
	pixels   *pixel.Buffer
	mirrored *pixel.Buffer
	grid     [][]*Sprite // indexed [col][row]
	sprites  map[string]*Sprite
	anims    map[string]*Animation
}

// Name returns the sheet's asset name.
func (s *Sheet) Name() string { return s.name }

// ImageURL returns the URL of the source image.
func (s *Sheet) ImageURL() string { return s.imageURL }

// Size returns the grid dimensions in cells.
func (s *Sheet) Size() (cols, rows int) { return s.cols, s.rows }

// SpriteSize returns the cell size in pixels.
func (s *Sheet) SpriteSize() (w, h int) { return s.spriteW, s.spriteH }

// Pixels returns the quantized pixel buffer and its mirrored twin.
func (s *Sheet) Pixels() (base, mirrored *pixel.Buffer) { return s.pixels, s.mirrored }

// At returns the base sprite at (col, row), or nil when out of range.
func (s *Sheet) At(col, row int) *Sprite {
	if col < 0 || row < 0 || col >= s.cols || row >= s.rows {
		return nil
	}
	return s.grid[col][row]
}

// Sprite looks up a named sprite.
func (s *Sheet) Sprite(name string) (*Sprite, bool) {
	sp, ok := s.sprites[name]
	return sp, ok
}

// Animation looks up a named animation sequence.
func (s *Sheet) Animation(name string) (*Animation, bool) {
	a, ok := s.anims[name]
	return a, ok
}

// SpriteCount returns the number of base sprites (mirrors not counted).
func (s *Sheet) SpriteCount() int { return s.cols * s.rows }

// IDAllocator hands out orientation-id blocks. Ids increment densely in
// blocks of 4 so the orientation variants of any sprite are id-adjacent.
// One allocator is scoped to a load session.
type IDAllocator struct {
	next int
}

// NewIDAllocator creates an allocator starting at id 0.
func NewIDAllocator() *IDAllocator { return &IDAllocator{} }

// Block reserves the next id block of 4 and returns its base id.
func (a *IDAllocator) Block() int {
	id := a.next
	a.next += 4
	return id
}
