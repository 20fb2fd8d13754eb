package sheet

import (
	"encoding/json"
	"fmt"

	"github.com/vk/spritegrid/internal/pixel"
)

// MinFrameDuration is the smallest legal per-frame weight. Smaller declared
// durations are raised to it.
const MinFrameDuration = 0.25

// DefaultFrameDuration is used when the metadata document declares no sheet
// default.
const DefaultFrameDuration = 1.0

// Meta is the decoded spritesheet metadata document.
type Meta struct {
	Image         string               `json:"image"`
	SpriteSize    [2]int               `json:"sprite_size"`
	Gutter        int                  `json:"gutter"`
	Region        *pixel.Region        `json:"region"`
	Transpose     bool                 `json:"transpose"`
	FrameDuration float64              `json:"frame_duration"`
	Names         map[string]NameEntry `json:"names"`
	Credits       string               `json:"credits"`
	License       string               `json:"license"`
}

// NameEntry is one row of the named-entry table: either a single-cell
// rename (X/Y set) or an axis-aligned animation run (From/To set).
type NameEntry struct {
	X        *int      `json:"x"`
	Y        *int      `json:"y"`
	From     []int     `json:"from"`
	To       []int     `json:"to"`
	Mode     string    `json:"mode"`
	Duration Durations `json:"duration"`
}

// Durations accepts either a uniform scalar or an explicit per-frame list.
type Durations struct {
	Scalar   *float64
	PerFrame []float64
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Durations) UnmarshalJSON(data []byte) error {
	var scalar float64
	if err := json.Unmarshal(data, &scalar); err == nil {
		d.Scalar = &scalar
		return nil
	}
	var list []float64
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("duration must be a number or a list of numbers")
	}
	d.PerFrame = list
	return nil
}

// Compile builds a frozen Sheet from a quantized buffer pair and its
// metadata document. The allocator must be the session's, so orientation
// ids stay globally unique.
func Compile(name string, meta *Meta, base, mirrored *pixel.Buffer, ids *IDAllocator) (*Sheet, error) {
	sw, sh := meta.SpriteSize[0], meta.SpriteSize[1]
	if sw <= 0 || sh <= 0 {
		return nil, fmt.Errorf("sheet %q: sprite_size must be positive, got %dx%d", name, sw, sh)
	}
	gutter := meta.Gutter

	cols := (base.W + gutter) / (sw + gutter)
	rows := (base.H + gutter) / (sh + gutter)
	if meta.Transpose {
		cols, rows = rows, cols
	}
	if cols == 0 || rows == 0 {
		return nil, fmt.Errorf("sheet %q: grid is empty (%dx%d cells from a %dx%d image)", name, cols, rows, base.W, base.H)
	}

	s := &Sheet{
		name:     name,
		imageURL: meta.Image,
		cols:     cols,
		rows:     rows,
		spriteW:  sw,
		spriteH:  sh,
		pixels:   base,
		mirrored: mirrored,
		grid:     make([][]*Sprite, cols),
		sprites:  map[string]*Sprite{},
		anims:    map[string]*Animation{},
	}

	for col := 0; col < cols; col++ {
		s.grid[col] = make([]*Sprite, rows)
		for row := 0; row < rows; row++ {
			px, py := col*(sw+gutter), row*(sh+gutter)
			if meta.Transpose {
				px, py = row*(sw+gutter), col*(sh+gutter)
			}
			sp := &Sprite{
				Col:    col,
				Row:    row,
				X:      px,
				Y:      py,
				W:      sw,
				H:      sh,
				PivotX: 0.5,
				PivotY: 0.5,
				ID:     ids.Block(),
				ScaleX: 1,
				ScaleY: 1,
				Alpha:  classifyAlpha(base, px, py, sw, sh),
				sheet:  s,
			}
			attachMirrors(sp)
			s.grid[col][row] = sp
		}
	}

	defaultDuration := meta.FrameDuration
	if defaultDuration == 0 {
		defaultDuration = DefaultFrameDuration
	}
	defaultDuration = clampDuration(defaultDuration)

	for entryName, entry := range meta.Names {
		if err := s.applyNameEntry(entryName, entry, defaultDuration); err != nil {
			return nil, fmt.Errorf("sheet %q: %w", name, err)
		}
	}

	return s, nil
}

// classifyAlpha scans one cell block and classifies its alpha content,
// short-circuiting on the first fractional-alpha pixel.
func classifyAlpha(buf *pixel.Buffer, px, py, w, h int) AlphaClass {
	sawTransparent := false
	for y := py; y < py+h; y++ {
		for x := px; x < px+w; x++ {
			switch a := pixel.Alpha(buf.At(x, y)); {
			case a == 0:
				sawTransparent = true
			case a < 15:
				return Blend
			}
		}
	}
	if sawTransparent {
		return Mask
	}
	return Opaque
}

// attachMirrors builds the three mirror variants of a base sprite. Each is
// a full Sprite value over the same pixel region with the flipped axis
// scale negated and a non-owning back-reference to the base.
func attachMirrors(base *Sprite) {
	mirror := func(flipX, flipY bool, idOffset int) *Sprite {
		m := *base
		m.Name = ""
		m.ID = base.ID + idOffset
		m.Source = base
		if flipX {
			m.ScaleX = -1
		}
		if flipY {
			m.ScaleY = -1
		}
		return &m
	}
	base.mirrorX = mirror(true, false, 1)
	base.mirrorY = mirror(false, true, 2)
	base.mirrorXY = mirror(true, true, 3)
}

func (s *Sheet) applyNameEntry(name string, entry NameEntry, defaultDuration float64) error {
	switch {
	case entry.X != nil || entry.Y != nil:
		if entry.X == nil || entry.Y == nil {
			return fmt.Errorf("entry %q: x and y must be given together", name)
		}
		sp := s.At(*entry.X, *entry.Y)
		if sp == nil {
			return fmt.Errorf("entry %q: cell (%d,%d) is outside the %dx%d grid", name, *entry.X, *entry.Y, s.cols, s.rows)
		}
		sp.Name = name
		s.sprites[name] = sp
		return nil

	case len(entry.From) == 2 && len(entry.To) == 2:
		return s.applyAnimationEntry(name, entry, defaultDuration)

	default:
		return fmt.Errorf("entry %q: need either x/y or from/to coordinate pairs", name)
	}
}

func (s *Sheet) applyAnimationEntry(name string, entry NameEntry, defaultDuration float64) error {
	fx, fy := entry.From[0], entry.From[1]
	tx, ty := entry.To[0], entry.To[1]
	if fx != tx && fy != ty {
		return fmt.Errorf("animation %q: run (%d,%d)-(%d,%d) varies along both axes", name, fx, fy, tx, ty)
	}
	if s.At(fx, fy) == nil || s.At(tx, ty) == nil {
		return fmt.Errorf("animation %q: run (%d,%d)-(%d,%d) is outside the %dx%d grid", name, fx, fy, tx, ty, s.cols, s.rows)
	}

	mode, err := ModeFromString(entry.Mode)
	if err != nil {
		return fmt.Errorf("animation %q: %w", name, err)
	}

	var sprites []*Sprite
	step := func(from, to int) int {
		if to < from {
			return -1
		}
		return 1
	}
	if fy == ty {
		d := step(fx, tx)
		for x := fx; ; x += d {
			sprites = append(sprites, s.At(x, fy))
			if x == tx {
				break
			}
		}
	} else {
		d := step(fy, ty)
		for y := fy; ; y += d {
			sprites = append(sprites, s.At(fx, y))
			if y == ty {
				break
			}
		}
	}

	durations := make([]float64, len(sprites))
	switch {
	case len(entry.Duration.PerFrame) > 0:
		if len(entry.Duration.PerFrame) != len(sprites) {
			return fmt.Errorf("animation %q: %d durations for %d frames", name, len(entry.Duration.PerFrame), len(sprites))
		}
		for i, d := range entry.Duration.PerFrame {
			durations[i] = clampDuration(d)
		}
	case entry.Duration.Scalar != nil:
		d := clampDuration(*entry.Duration.Scalar)
		for i := range durations {
			durations[i] = d
		}
	default:
		for i := range durations {
			durations[i] = defaultDuration
		}
	}

	anim := &Animation{
		Name:      name,
		Sprites:   sprites,
		Mode:      mode,
		Durations: durations,
	}
	total := 0.0
	for _, d := range durations {
		total += d
	}
	anim.Frames = total
	switch mode {
	case Oscillate:
		// Interior frames count twice (forward and reverse pass); the ends
		// count once each.
		if len(durations) == 1 {
			anim.Period = 2 * durations[0]
			break
		}
		period := durations[0] + durations[len(durations)-1]
		for _, d := range durations[1 : len(durations)-1] {
			period += 2 * d
		}
		anim.Period = period
	default:
		anim.Period = total
	}

	s.anims[name] = anim
	return nil
}

func clampDuration(d float64) float64 {
	if d < MinFrameDuration {
		return MinFrameDuration
	}
	return d
}
