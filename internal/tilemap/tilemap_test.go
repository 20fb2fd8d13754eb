package tilemap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/spritegrid/internal/pixel"
	"github.com/vk/spritegrid/internal/sheet"
)

// testSheet compiles a 4x2 grid of 16x16 cells from a 64x32 image.
func testSheet(t *testing.T) *sheet.Sheet {
	t.Helper()
	base := &pixel.Buffer{W: 64, H: 32, Pix: make([]uint16, 64*32)}
	for i := range base.Pix {
		base.Pix[i] = pixel.Pack(255, 255, 255, 255)
	}
	s, err := sheet.Compile("tiles", &sheet.Meta{
		Image:      "tiles.png",
		SpriteSize: [2]int{16, 16},
	}, base, base, sheet.NewIDAllocator())
	require.NoError(t, err)
	return s
}

func testDoc(layers ...RawLayer) *Document {
	return &Document{
		Width:      2,
		Height:     2,
		TileWidth:  16,
		TileHeight: 16,
		Tilesets:   []Tileset{{Name: "tiles", ImageWidth: 64, ImageHeight: 32}},
		Layers:     layers,
	}
}

func TestParseDocument(t *testing.T) {
	doc, err := ParseDocument([]byte(`{
		"width": 2, "height": 2, "tilewidth": 16, "tileheight": 16,
		"tilesets": [{"name": "tiles", "imagewidth": 64, "imageheight": 32}],
		"layers": [{"name": "ground", "type": "tilelayer", "data": [1, 2, 3, 4]}]
	}`))
	require.NoError(t, err)
	assert.Equal(t, 2, doc.Width)
	require.Len(t, doc.Layers, 1)
	assert.Equal(t, []uint32{1, 2, 3, 4}, doc.Layers[0].Data)
}

func TestParseDocumentValidation(t *testing.T) {
	_, err := ParseDocument([]byte(`not json`))
	assert.Error(t, err)

	_, err = ParseDocument([]byte(`{"layers": [{"type": "tilelayer", "data": [1]}]}`))
	assert.Error(t, err, "no tileset")

	_, err = ParseDocument([]byte(`{"tilesets": [{"name": "t"}], "layers": [{"type": "objectgroup"}]}`))
	assert.Error(t, err, "no tile layer")
}

func TestBuildResolvesCells(t *testing.T) {
	sh := testSheet(t)
	doc := testDoc(RawLayer{
		Name: "ground",
		Type: "tilelayer",
		// 1-based indices walk the sheet row-major; zero is empty.
		Data: []uint32{1, 2, 0, 5},
	})

	m, err := Build(doc, sh, false)
	require.NoError(t, err)
	require.Len(t, m.Layers, 1)
	assert.Same(t, sh, m.Sheet)

	grid := m.Layers[0].Grid
	require.Len(t, grid, 2)
	assert.Same(t, sh.At(0, 0), grid[0][0])
	assert.Same(t, sh.At(1, 0), grid[0][1])
	assert.Nil(t, grid[1][0])
	assert.Same(t, sh.At(0, 1), grid[1][1])
}

func TestBuildFlipFlags(t *testing.T) {
	sh := testSheet(t)
	doc := testDoc(RawLayer{
		Name: "ground",
		Type: "tilelayer",
		Data: []uint32{
			1 | flipXBit,
			1 | flipYBit,
			1 | flipXBit | flipYBit,
			1,
		},
	})

	m, err := Build(doc, sh, false)
	require.NoError(t, err)

	base := sh.At(0, 0)
	grid := m.Layers[0].Grid
	assert.Same(t, base.Mirror(true, false), grid[0][0])
	assert.Same(t, base.Mirror(false, true), grid[0][1])
	assert.Same(t, base.Mirror(true, true), grid[1][0])
	assert.Same(t, base, grid[1][1])
}

func TestBuildMapFlipY(t *testing.T) {
	sh := testSheet(t)
	doc := testDoc(RawLayer{
		Name: "ground",
		Type: "tilelayer",
		Data: []uint32{1, 2, 3, 4},
	})

	m, err := Build(doc, sh, true)
	require.NoError(t, err)

	// Rows swap and every cell gains a vertical flip.
	grid := m.Layers[0].Grid
	assert.Same(t, sh.At(2, 0).Mirror(false, true), grid[0][0])
	assert.Same(t, sh.At(3, 0).Mirror(false, true), grid[0][1])
	assert.Same(t, sh.At(0, 0).Mirror(false, true), grid[1][0])

	// A cell's own flip flag cancels the map-level flip.
	doc.Layers[0].Data = []uint32{1 | flipYBit, 0, 0, 0}
	m, err = Build(doc, sh, true)
	require.NoError(t, err)
	assert.Same(t, sh.At(0, 0), m.Layers[0].Grid[1][0])
}

func TestBuildProperties(t *testing.T) {
	sh := testSheet(t)
	doc := testDoc(
		RawLayer{
			Name: "far", Type: "tilelayer", Data: []uint32{0, 0, 0, 0},
			Properties: []Property{
				{Name: "z_scale", Type: "float", Value: []byte(`0.5`)},
				{Name: "wrap_x", Type: "bool", Value: []byte(`true`)},
			},
		},
		RawLayer{Name: "near", Type: "tilelayer", Data: []uint32{0, 0, 0, 0}},
	)
	doc.Properties = []Property{
		{Name: "z_offset", Type: "float", Value: []byte(`10`)},
		{Name: "z_scale", Type: "float", Value: []byte(`2`)},
	}

	m, err := Build(doc, sh, false)
	require.NoError(t, err)
	require.Len(t, m.Layers, 2)

	// Layer-level properties override map-level ones.
	far := m.Layers[0]
	assert.Equal(t, 10.0, far.ZOffset)
	assert.Equal(t, 0.5, far.ZScale)
	assert.True(t, far.WrapX)
	assert.False(t, far.WrapY)

	near := m.Layers[1]
	assert.Equal(t, 10.0, near.ZOffset)
	assert.Equal(t, 2.0, near.ZScale)
}

func TestBuildSkipsNonTileLayers(t *testing.T) {
	sh := testSheet(t)
	doc := testDoc(
		RawLayer{Name: "objects", Type: "objectgroup"},
		RawLayer{Name: "ground", Type: "tilelayer", Data: []uint32{0, 0, 0, 0}},
	)

	m, err := Build(doc, sh, false)
	require.NoError(t, err)
	require.Len(t, m.Layers, 1)
	assert.Equal(t, "ground", m.Layers[0].Name)
}

func TestBuildSizeMismatchFatal(t *testing.T) {
	sh := testSheet(t)

	doc := testDoc(RawLayer{Name: "g", Type: "tilelayer", Data: []uint32{0, 0, 0, 0}})
	doc.TileWidth = 8
	_, err := Build(doc, sh, false)
	assert.ErrorContains(t, err, "does not match sheet sprite size")

	doc = testDoc(RawLayer{Name: "g", Type: "tilelayer", Data: []uint32{0, 0, 0, 0}})
	doc.Tilesets[0].ImageWidth = 128
	_, err = Build(doc, sh, false)
	assert.ErrorContains(t, err, "does not match sheet image size")
}

func TestBuildDataLengthMismatch(t *testing.T) {
	sh := testSheet(t)
	doc := testDoc(RawLayer{Name: "g", Type: "tilelayer", Data: []uint32{1, 2, 3}})
	_, err := Build(doc, sh, false)
	assert.ErrorContains(t, err, "cells declared")
}

func TestBuildIndexOutOfRange(t *testing.T) {
	sh := testSheet(t)
	doc := testDoc(RawLayer{Name: "g", Type: "tilelayer", Data: []uint32{9, 0, 0, 0}})
	_, err := Build(doc, sh, false)
	assert.ErrorContains(t, err, "outside the sheet grid")
}
