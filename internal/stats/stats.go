// Package stats is the resource accountant: a read-only pass over the fully
// loaded asset set aggregating credits text and memory-footprint statistics.
// It runs only after the session's drain event, so every asset it sees is in
// its frozen terminal state.
package stats

import (
	"strings"

	"github.com/vk/spritegrid/internal/asset"
	"github.com/vk/spritegrid/internal/sheet"
)

// Collect computes the report for a drained game source.
func Collect(src *asset.GameSource) *asset.Report {
	report := &asset.Report{AssetCounts: map[asset.Kind]int{}}

	seenCredits := map[string]bool{}
	seenSheets := map[*sheet.Sheet]bool{}

	countSheet := func(sh *sheet.Sheet) {
		if sh == nil || seenSheets[sh] {
			return
		}
		seenSheets[sh] = true
		base, mirrored := sh.Pixels()
		report.PixelBytes += base.Bytes() + mirrored.Bytes()
		report.SpriteCount += sh.SpriteCount()
	}

	for _, a := range src.RenderOrder() {
		report.AssetCounts[a.Kind]++

		if credit := strings.TrimSpace(a.Credits); credit != "" && !seenCredits[credit] {
			seenCredits[credit] = true
			report.Credits = append(report.Credits, credit)
		}

		switch a.Kind {
		case asset.KindSheet:
			countSheet(a.Sheet)
		case asset.KindFont:
			if a.Font != nil {
				countSheet(a.Font.Sheet)
			}
		case asset.KindSound:
			if a.Sound != nil {
				report.SoundBytes += len(a.Sound.Data)
			}
		case asset.KindMap:
			if a.Map != nil {
				// Map sheets are shared, not owned; count them once.
				countSheet(a.Map.Sheet)
				for _, layer := range a.Map.Layers {
					for _, row := range layer.Grid {
						report.MapCells += len(row)
					}
				}
			}
		}
	}
	return report
}
