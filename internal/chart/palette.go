package chart

import "github.com/foundry/releasestats/internal/util/hashing"

// Palette is the ten-colour categorical scheme used for asset lines.
var Palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

// ColorFor returns the palette entry an asset name hashes to. It depends on
// the name alone, so an asset keeps its colour however the set of assets in
// the chart grows. Two assets may share a colour; the trailing labels tell
// them apart.
func ColorFor(name string) string {
	return Palette[hashing.Bucket(name, len(Palette))]
}
