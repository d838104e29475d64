// Package viz renders reconstruction results for the browser: a 3D
// scatter of the frame split into ground, cluster and residual series,
// plus a height histogram for tuning the vertical cuts.
package viz

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/kestrel-data/framereco/internal/reco"
)

// clusterPalette colors cluster series; IDs cycle through it.
var clusterPalette = []string{
	"#e0bb50", "#58b7c6", "#b764c4", "#6fbe6f",
	"#d97b5f", "#7a85d6", "#c75e8f", "#9cb750",
}

// Options control scatter rendering.
type Options struct {
	// MaxPoints caps the total rendered points; the frame is strided
	// down when it is larger. Zero means DefaultMaxPoints.
	MaxPoints int
	// ByCluster splits above-ground points into one series per
	// cluster instead of a single series.
	ByCluster bool
	// Title overrides the default point-count title.
	Title string
}

// DefaultMaxPoints keeps scatter pages responsive in the browser.
const DefaultMaxPoints = 60_000

// RenderScatter writes a standalone HTML page with the frame's 3D
// scatter. Ground points render green and translucent, above-ground
// points red (or per-cluster colors), mirroring the operator's mental
// model: green is road, anything red needs a look.
func RenderScatter(w io.Writer, res *reco.Result, o Options) error {
	f := res.Frame
	maxPoints := o.MaxPoints
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	stride := 1
	if f.N > maxPoints {
		stride = (f.N + maxPoints - 1) / maxPoints
	}

	var ground, above []opts.Chart3DData
	byCluster := map[int][]opts.Chart3DData{}
	groundCount, aboveCount := 0, 0

	for i := 0; i < f.N; i += stride {
		d := opts.Chart3DData{Value: []interface{}{f.X[i], f.Y[i], f.Z[i]}}
		switch {
		case f.Flags[i]&reco.FlagGround != 0:
			ground = append(ground, d)
			groundCount++
		case f.AboveGround(i):
			aboveCount++
			if o.ByCluster && f.ClusterID[i] > 0 {
				byCluster[f.ClusterID[i]] = append(byCluster[f.ClusterID[i]], d)
			} else {
				above = append(above, d)
			}
		}
	}

	title := o.Title
	if title == "" {
		title = fmt.Sprintf("%d points in the frame", f.N)
	}

	scatter := charts.NewScatter3D()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "Frame Reconstruction",
			Theme:     "dark",
			Width:     "1200px",
			Height:    "900px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title: title,
			Subtitle: fmt.Sprintf("ground=%d above=%d clusters=%d stride=%d clusterer=%s",
				groundCount, aboveCount, len(res.Clusters), stride, res.Clusterer),
		}),
	)

	scatter.AddSeries(fmt.Sprintf("%d points on ground", groundCount), ground,
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "green", Opacity: 0.3}))

	if o.ByCluster {
		ids := make([]int, 0, len(byCluster))
		for id := range byCluster {
			ids = append(ids, id)
		}
		sortInts(ids)
		for _, id := range ids {
			scatter.AddSeries(fmt.Sprintf("cluster %d", id), byCluster[id],
				charts.WithItemStyleOpts(opts.ItemStyle{
					Color:   clusterPalette[(id-1)%len(clusterPalette)],
					Opacity: 0.7,
				}))
		}
		if len(above) > 0 {
			scatter.AddSeries("unclustered", above,
				charts.WithItemStyleOpts(opts.ItemStyle{Color: "red", Opacity: 0.3}))
		}
	} else {
		scatter.AddSeries(fmt.Sprintf("%d points above ground", aboveCount), above,
			charts.WithItemStyleOpts(opts.ItemStyle{Color: "red", Opacity: 0.3}))
	}

	return scatter.Render(w)
}

// sortInts is a tiny insertion sort; cluster counts stay small.
func sortInts(a []int) {
	for i := 1; i < len(a); i++ {
		for j := i; j > 0 && a[j] < a[j-1]; j-- {
			a[j], a[j-1] = a[j-1], a[j]
		}
	}
}
