package app

import (
	"context"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/spritegrid/internal/testutil"
)

// writeGameTree lays out a minimal loadable game under dir.
func writeGameTree(t *testing.T, dir string) {
	t.Helper()
	files := map[string][]byte{
		"game.hcl": []byte(`
game {
  title       = "Tree Demo"
  screen_size = "320x240"
  start_mode  = "play"
  modes       = ["play"]

  assets = {
    hero = "hero.sheet.json"
  }
}
`),
		"hero.sheet.json": []byte(`{"image": "hero.png", "sprite_size": [16, 16], "credits": "artist a"}`),
		"hero.png":        testutil.SolidPNG(32, 16, color.NRGBA{R: 255, A: 255}),
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
	}
}

func TestAppRun(t *testing.T) {
	dir := t.TempDir()
	writeGameTree(t, dir)

	out := &testutil.SafeBuffer{}
	cfg, err := NewConfig(Config{
		ManifestPath: filepath.Join(dir, "game.hcl"),
		LogFormat:    "text",
		LogLevel:     "error",
	})
	require.NoError(t, err)

	a := NewApp(out, cfg)
	require.NoError(t, a.Run(context.Background()))

	report := out.String()
	assert.Contains(t, report, `loaded "Tree Demo" (320x240), start mode "play"`)
	assert.Contains(t, report, "sheet=1")
	assert.Contains(t, report, "credit: artist a")
}

func TestAppRunBadManifest(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "game.hcl"), []byte(`game {}`), 0o644))

	out := &testutil.SafeBuffer{}
	cfg, err := NewConfig(Config{ManifestPath: filepath.Join(dir, "game.hcl"), LogLevel: "error"})
	require.NoError(t, err)

	assert.Error(t, NewApp(out, cfg).Run(context.Background()))
}

func TestNewConfigRequiresManifest(t *testing.T) {
	_, err := NewConfig(Config{})
	assert.Error(t, err)
}
