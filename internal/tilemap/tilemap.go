// Package tilemap turns a constrained tile-layer interchange document into a
// dense grid of compiled sprite references. The document is the JSON subset
// of the Tiled map format: one tileset, one image, typed custom properties,
// and one or more tile layers encoded as flat index lists whose top two bits
// are flip flags.
package tilemap

import (
	"encoding/json"
	"fmt"

	"github.com/vk/spritegrid/internal/sheet"
)

// Cell encoding: bit 31 flips horizontally, bit 30 flips vertically, the
// low 28 bits are a 1-based tile index. Zero is an empty cell.
const (
	flipXBit  = uint32(1) << 31
	flipYBit  = uint32(1) << 30
	indexMask = uint32(1)<<28 - 1
)

// Document is the decoded tile-layer document.
type Document struct {
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	TileWidth  int        `json:"tilewidth"`
	TileHeight int        `json:"tileheight"`
	Tilesets   []Tileset  `json:"tilesets"`
	Layers     []RawLayer `json:"layers"`
	Properties []Property `json:"properties"`
}

// Tileset declares the source image the tile indices refer to.
type Tileset struct {
	Name        string `json:"name"`
	ImageWidth  int    `json:"imagewidth"`
	ImageHeight int    `json:"imageheight"`
	TileWidth   int    `json:"tilewidth"`
	TileHeight  int    `json:"tileheight"`
}

// RawLayer is one drawable plane before sprite resolution.
type RawLayer struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Width      int        `json:"width"`
	Height     int        `json:"height"`
	Data       []uint32   `json:"data"`
	Properties []Property `json:"properties"`
}

// Property is a typed custom property.
type Property struct {
	Name  string          `json:"name"`
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// Layer is one composed plane: a dense grid of optional sprite references
// plus the scalar metadata read from its custom properties.
type Layer struct {
	Name    string
	ZOffset float64
	ZScale  float64
	WrapX   bool
	WrapY   bool
	// Grid is indexed [row][col]; nil entries are empty cells.
	Grid [][]*sheet.Sprite
}

// Map is the composed tile map: ordered layers backed by a shared sheet.
type Map struct {
	Width, Height int
	Layers        []*Layer
	Sheet         *sheet.Sheet
}

// ParseDocument decodes and structurally validates a tile-layer document.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decoding tile document: %w", err)
	}
	if len(doc.Tilesets) == 0 {
		return nil, fmt.Errorf("tile document declares no tileset")
	}
	tileLayers := 0
	for _, l := range doc.Layers {
		if l.Type == "tilelayer" {
			tileLayers++
		}
	}
	if tileLayers == 0 {
		return nil, fmt.Errorf("tile document declares no tile layer")
	}
	return &doc, nil
}

// Build resolves the document's tile indices against a compiled sheet.
// flipY flips the whole map vertically. Declared tile size and source-image
// size must exactly match the sheet; a mismatch is fatal.
func Build(doc *Document, sh *sheet.Sheet, flipY bool) (*Map, error) {
	ts := doc.Tilesets[0]
	sw, shh := sh.SpriteSize()
	if doc.TileWidth != sw || doc.TileHeight != shh {
		return nil, fmt.Errorf("tile size %dx%d does not match sheet sprite size %dx%d",
			doc.TileWidth, doc.TileHeight, sw, shh)
	}
	base, _ := sh.Pixels()
	if ts.ImageWidth != base.W || ts.ImageHeight != base.H {
		return nil, fmt.Errorf("tileset image size %dx%d does not match sheet image size %dx%d",
			ts.ImageWidth, ts.ImageHeight, base.W, base.H)
	}

	cols, _ := sh.Size()
	m := &Map{Width: doc.Width, Height: doc.Height, Sheet: sh}

	for _, raw := range doc.Layers {
		if raw.Type != "tilelayer" {
			continue
		}
		w, h := raw.Width, raw.Height
		if w == 0 {
			w = doc.Width
		}
		if h == 0 {
			h = doc.Height
		}
		if len(raw.Data) != w*h {
			return nil, fmt.Errorf("layer %q: %d cells declared, %d encoded", raw.Name, w*h, len(raw.Data))
		}

		layer := &Layer{Name: raw.Name, ZScale: 1}
		// Map-level properties first, layer-level ones override.
		if err := layer.applyProperties(doc.Properties); err != nil {
			return nil, fmt.Errorf("layer %q: %w", raw.Name, err)
		}
		if err := layer.applyProperties(raw.Properties); err != nil {
			return nil, fmt.Errorf("layer %q: %w", raw.Name, err)
		}

		layer.Grid = make([][]*sheet.Sprite, h)
		for row := 0; row < h; row++ {
			srcRow := row
			if flipY {
				srcRow = h - 1 - row
			}
			line := make([]*sheet.Sprite, w)
			for col := 0; col < w; col++ {
				cell := raw.Data[srcRow*w+col]
				sp, err := resolveCell(sh, cols, cell, flipY)
				if err != nil {
					return nil, fmt.Errorf("layer %q cell (%d,%d): %w", raw.Name, col, row, err)
				}
				line[col] = sp
			}
			layer.Grid[row] = line
		}
		m.Layers = append(m.Layers, layer)
	}
	return m, nil
}

// resolveCell maps one encoded cell to the matching sprite, applying the
// per-cell flip flags on top of any whole-map flip.
func resolveCell(sh *sheet.Sheet, cols int, cell uint32, mapFlipY bool) (*sheet.Sprite, error) {
	index := cell & indexMask
	if index == 0 {
		return nil, nil
	}
	i := int(index - 1) // 1-based
	col, row := i%cols, i/cols
	sp := sh.At(col, row)
	if sp == nil {
		return nil, fmt.Errorf("tile index %d is outside the sheet grid", index)
	}
	flipX := cell&flipXBit != 0
	flipYFlag := cell&flipYBit != 0
	if mapFlipY {
		flipYFlag = !flipYFlag
	}
	return sp.Mirror(flipX, flipYFlag), nil
}

func (l *Layer) applyProperties(props []Property) error {
	for _, p := range props {
		var err error
		switch p.Name {
		case "z_offset":
			err = json.Unmarshal(p.Value, &l.ZOffset)
		case "z_scale":
			err = json.Unmarshal(p.Value, &l.ZScale)
		case "wrap_x":
			err = json.Unmarshal(p.Value, &l.WrapX)
		case "wrap_y":
			err = json.Unmarshal(p.Value, &l.WrapY)
		}
		if err != nil {
			return fmt.Errorf("property %q: %w", p.Name, err)
		}
	}
	return nil
}

// Meta is the map asset's own metadata document, naming the sheet metadata
// document and the tile-layer document it composes.
type Meta struct {
	Sheet   string `json:"sheet"`
	Tilemap string `json:"tilemap"`
	FlipY   bool   `json:"flip_y"`
	Credits string `json:"credits"`
	License string `json:"license"`
}
