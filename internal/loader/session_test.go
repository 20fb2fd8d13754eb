package loader

import (
	"context"
	"image/color"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"

	"github.com/vk/spritegrid/internal/asset"
	"github.com/vk/spritegrid/internal/testutil"
)

// demoFiles is a complete game tree: one sheet declared twice, a font, a
// sound, a map sharing the sheet, scripts, docs, and external constants.
func demoFiles() *testutil.MockFetcher {
	f := testutil.NewMockFetcher(map[string]string{
		"game.hcl": `
game {
  title       = "Demo"
  screen_size = "320x200"
  start_mode  = "play"
  modes       = ["menu", "play"]
  scripts     = ["main.lit"]
  docs        = ["README.txt"]

  assets = {
    hero  = "hero.sheet.json"
    hero2 = "hero.sheet.json"
    hud   = "hud.font.json"
    beep  = "beep.sound.json"
    world = "world.map.json"
  }

  constants = {
    gravity = { type = "number", value = 0.5 }
    g       = { type = "alias", value = "gravity" }
    spawn   = { type = "point2", value = [3, 7] }
    levels  = { type = "table", value = "levels.csv" }
    intro   = { type = "raw", value = "intro.lit" }
  }
}
`,
		"main.lit":   `{speed: 2}`,
		"README.txt": "read me",
		"hero.sheet.json": `{
			"image": "hero.png", "sprite_size": [16, 16],
			"names": {"walk": {"from": [0, 0], "to": [3, 0]}},
			"credits": "artist a", "license": "CC0-1.0"
		}`,
		"hud.font.json":   `{"image": "hud.png", "glyph_size": [8, 8], "charset": "AB"}`,
		"beep.sound.json": `{"sample": "beep.pcm", "gain": 0.5, "loop": true}`,
		"world.map.json":  `{"sheet": "hero.sheet.json", "tilemap": "world.tmj"}`,
		"world.tmj": `{
			"width": 2, "height": 2, "tilewidth": 16, "tileheight": 16,
			"tilesets": [{"name": "hero", "imagewidth": 64, "imageheight": 32}],
			"layers": [{"name": "ground", "type": "tilelayer", "data": [1, 2147483649, 0, 2]}]
		}`,
		"levels.csv": "1,2\n3,4\n",
		"intro.lit":  "{speed: 30°}\n",
	})
	f.SetBinary("hero.png", testutil.SolidPNG(64, 32, color.NRGBA{R: 255, A: 255}))
	f.SetBinary("hud.png", testutil.SolidPNG(16, 8, color.NRGBA{R: 255, G: 255, B: 255, A: 255}))
	f.SetBinary("beep.pcm", []byte{1, 2, 3, 4})
	return f
}

func TestLoadSession(t *testing.T) {
	f := demoFiles()
	// A slow pixel payload must still hold the drain open.
	f.SetDelay("hero.png", 20*time.Millisecond)

	l := New(f)
	src, err := l.Load(context.Background(), "game.hcl")
	require.NoError(t, err)

	assert.Equal(t, "Demo", src.Title)
	assert.Equal(t, "320x200", src.ScreenSize)
	assert.Equal(t, "play", src.StartMode)
	assert.Equal(t, []string{"menu", "play"}, src.Modes)

	assert.Empty(t, cmp.Diff([]asset.Script{{URL: "main.lit", Text: `{speed: 2}`}}, src.Scripts))
	assert.Empty(t, cmp.Diff([]asset.Doc{{URL: "README.txt", Text: "read me"}}, src.Docs))

	// Both declarations share one compiled asset.
	hero := src.Assets["hero"]
	require.NotNil(t, hero)
	assert.Same(t, hero, src.Assets["hero2"])
	assert.Equal(t, asset.KindSheet, hero.Kind)

	cols, rows := hero.Sheet.Size()
	assert.Equal(t, 4, cols)
	assert.Equal(t, 2, rows)
	walk, ok := hero.Sheet.Animation("walk")
	require.True(t, ok)
	assert.Len(t, walk.Sprites, 4)

	// The map composes against the same compiled sheet, not a second copy.
	world := src.Assets["world"]
	require.NotNil(t, world)
	require.NotNil(t, world.Map)
	assert.Same(t, hero.Sheet, world.Map.Sheet)
	grid := world.Map.Layers[0].Grid
	assert.Same(t, hero.Sheet.At(0, 0), grid[0][0])
	assert.Same(t, hero.Sheet.At(0, 0).Mirror(true, false), grid[0][1])
	assert.Nil(t, grid[1][0])
	assert.Same(t, hero.Sheet.At(1, 0), grid[1][1])

	beep := src.Assets["beep"]
	require.NotNil(t, beep)
	assert.Equal(t, []byte{1, 2, 3, 4}, beep.Sound.Data)
	assert.Equal(t, 0.5, beep.Sound.Gain)
	assert.True(t, beep.Sound.Loop)

	hud := src.Assets["hud"]
	require.NotNil(t, hud)
	b, ok := hud.Font.Glyph('B')
	require.True(t, ok)
	assert.Same(t, hud.Font.Sheet.At(1, 0), b)

	// The built-in font is present without being declared.
	builtin := src.Assets["_builtin/font"]
	require.NotNil(t, builtin)
	_, ok = builtin.Font.Glyph('A')
	assert.True(t, ok)

	// One cache entry per metadata URL, plus the built-in.
	assert.Equal(t, 5, l.Cache().Len())

	// hero and hero2 collapse to one render slot.
	order := src.RenderOrder()
	require.Len(t, order, 5)
	assert.Same(t, builtin, order[0])
}

func TestLoadSessionConstants(t *testing.T) {
	l := New(demoFiles())
	src, err := l.Load(context.Background(), "game.hcl")
	require.NoError(t, err)

	g, err := src.Constants.Get("g")
	require.NoError(t, err)
	gf, _ := g.AsBigFloat().Float64()
	assert.Equal(t, 0.5, gf)

	spawn, err := src.Constants.Get("spawn")
	require.NoError(t, err)
	x, _ := spawn.GetAttr("x").AsBigFloat().Float64()
	assert.Equal(t, 3.0, x)

	levels, err := src.Constants.Get("levels")
	require.NoError(t, err)
	require.Equal(t, 2, levels.LengthInt())
	cell, _ := levels.Index(cty.NumberIntVal(1)).Index(cty.NumberIntVal(0)).AsBigFloat().Float64()
	assert.Equal(t, 3.0, cell)

	intro, err := src.Constants.Get("intro")
	require.NoError(t, err)
	speed, _ := intro.GetAttr("speed").AsBigFloat().Float64()
	assert.InDelta(t, math.Pi/6, speed, 1e-12)
}

func TestLoadSessionReport(t *testing.T) {
	l := New(demoFiles())
	src, err := l.Load(context.Background(), "game.hcl")
	require.NoError(t, err)

	r := src.Report
	require.NotNil(t, r)
	assert.Equal(t, 1, r.AssetCounts[asset.KindSheet])
	assert.Equal(t, 2, r.AssetCounts[asset.KindFont])
	assert.Equal(t, 1, r.AssetCounts[asset.KindSound])
	assert.Equal(t, 1, r.AssetCounts[asset.KindMap])
	assert.Equal(t, 4, r.SoundBytes)
	assert.Equal(t, 4, r.MapCells)
	assert.Contains(t, r.Credits, "artist a")
	assert.Positive(t, r.PixelBytes)
}

func TestLoadSupersedeClearsCache(t *testing.T) {
	f := demoFiles()
	l := New(f)
	first, err := l.Load(context.Background(), "game.hcl")
	require.NoError(t, err)
	assert.Empty(t, f.Reloads())

	second, err := l.Load(context.Background(), "game.hcl")
	require.NoError(t, err)

	// The second session recompiles user assets but keeps the built-ins,
	// and refetches the manifest past any transport cache.
	assert.NotSame(t, first.Assets["hero"], second.Assets["hero"])
	assert.Same(t, first.Assets["_builtin/font"], second.Assets["_builtin/font"])
	assert.Equal(t, 5, l.Cache().Len())
	assert.Equal(t, []string{"game.hcl"}, f.Reloads())
}

func TestLoadFatalOnMissingAsset(t *testing.T) {
	f := testutil.NewMockFetcher(map[string]string{
		"game.hcl": `
game {
  screen_size = "320x200"
  start_mode  = "play"
  modes       = ["play"]

  assets = {
    hero = "missing.sheet.json"
  }
}
`,
	})
	_, err := New(f).Load(context.Background(), "game.hcl")
	assert.ErrorContains(t, err, "missing.sheet.json")
}

func TestLoadFatalOnAliasCycle(t *testing.T) {
	f := testutil.NewMockFetcher(map[string]string{
		"game.hcl": `
game {
  screen_size = "320x200"
  start_mode  = "play"
  modes       = ["play"]

  constants = {
    a = { type = "alias", value = "b" }
    b = { type = "alias", value = "a" }
  }
}
`,
	})
	_, err := New(f).Load(context.Background(), "game.hcl")
	assert.ErrorContains(t, err, "a -> b -> a")
}

func TestLoadFatalOnTileSizeMismatch(t *testing.T) {
	f := testutil.NewMockFetcher(map[string]string{
		"game.hcl": `
game {
  screen_size = "320x200"
  start_mode  = "play"
  modes       = ["play"]

  assets = {
    world = "world.map.json"
  }
}
`,
		"hero.sheet.json": `{"image": "hero.png", "sprite_size": [16, 16]}`,
		"world.map.json":  `{"sheet": "hero.sheet.json", "tilemap": "world.tmj"}`,
		"world.tmj": `{
			"width": 1, "height": 1, "tilewidth": 8, "tileheight": 8,
			"tilesets": [{"name": "hero", "imagewidth": 64, "imageheight": 32}],
			"layers": [{"name": "ground", "type": "tilelayer", "data": [1]}]
		}`,
	})
	f.SetBinary("hero.png", testutil.SolidPNG(64, 32, color.NRGBA{A: 255}))

	_, err := New(f).Load(context.Background(), "game.hcl")
	assert.ErrorContains(t, err, "does not match sheet sprite size")
}

func TestLoadTolerableDocFailure(t *testing.T) {
	f := testutil.NewMockFetcher(map[string]string{
		"game.hcl": `
game {
  screen_size = "320x200"
  start_mode  = "play"
  modes       = ["play"]
  docs        = ["missing.txt"]
}
`,
	})
	src, err := New(f).Load(context.Background(), "game.hcl")
	require.NoError(t, err)
	require.Len(t, src.Docs, 1)
	assert.Empty(t, src.Docs[0].Text)
}
