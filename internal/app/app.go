// Package app wires the command-line configuration into one manifest load:
// it builds the logger, picks the fetch transport for the manifest location,
// runs the load session and reports the result.
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/vk/spritegrid/internal/asset"
	"github.com/vk/spritegrid/internal/ctxlog"
	"github.com/vk/spritegrid/internal/fetch"
	"github.com/vk/spritegrid/internal/loader"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW        io.Writer
	logger      *slog.Logger
	config      *Config
	loader      *loader.Loader
	manifestURL string
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and a fetch
// transport matching the manifest location: HTTP for URLs, a
// directory-rooted file fetcher for local paths.
func NewApp(outW io.Writer, cfg *Config) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)

	var fetcher fetch.Fetcher
	manifestURL := cfg.ManifestPath
	if strings.Contains(cfg.ManifestPath, "://") {
		fetcher = fetch.NewHTTPFetcher(cfg.FetchTimeout)
	} else {
		fetcher = fetch.NewFileFetcher(filepath.Dir(cfg.ManifestPath))
		manifestURL = filepath.ToSlash(filepath.Base(cfg.ManifestPath))
	}
	logger.Debug("Fetch transport selected.", "manifest", manifestURL)

	return &App{
		outW:        outW,
		logger:      logger,
		config:      cfg,
		loader:      loader.New(fetcher),
		manifestURL: manifestURL,
	}
}

// Loader returns the application's loader. This is primarily for testing.
func (a *App) Loader() *loader.Loader { return a.loader }

// Run performs one manifest load and prints the resource report.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)

	src, err := a.loader.Load(ctx, a.manifestURL)
	if err != nil {
		return err
	}

	a.printReport(src)
	return nil
}

func (a *App) printReport(src *asset.GameSource) {
	fmt.Fprintf(a.outW, "loaded %q (%s), start mode %q\n", src.Title, src.ScreenSize, src.StartMode)
	fmt.Fprintf(a.outW, "  scripts: %d, docs: %d, constants: %d\n",
		len(src.Scripts), len(src.Docs), len(src.Constants.Names()))

	kinds := make([]string, 0, len(src.Report.AssetCounts))
	for kind, n := range src.Report.AssetCounts {
		kinds = append(kinds, fmt.Sprintf("%s=%d", kind, n))
	}
	sort.Strings(kinds)
	fmt.Fprintf(a.outW, "  assets: %s\n", strings.Join(kinds, " "))
	fmt.Fprintf(a.outW, "  memory: %d pixel bytes, %d sound bytes, %d sprites, %d map cells\n",
		src.Report.PixelBytes, src.Report.SoundBytes, src.Report.SpriteCount, src.Report.MapCells)

	for _, credit := range src.Report.Credits {
		fmt.Fprintf(a.outW, "  credit: %s\n", credit)
	}
}
