package viz

import (
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/kestrel-data/framereco/internal/reco"
)

// HistogramBins is the default bin count for height histograms.
const HistogramBins = 80

// RenderHeightHistogram writes a PNG histogram of height above ground
// for all non-noise returns. The shape makes the vertical cuts easy to
// read: the ground spike around zero, the obstacle mass above dz_local
// and the ceiling past h_max_cut.
func RenderHeightHistogram(w io.Writer, f *reco.Frame) error {
	vals := make(plotter.Values, 0, f.N)
	for i := 0; i < f.N; i++ {
		if f.Flags[i]&reco.FlagNoise != 0 {
			continue
		}
		vals = append(vals, f.Height[i])
	}
	if len(vals) == 0 {
		return fmt.Errorf("viz: no points to histogram")
	}

	p := plot.New()
	p.Title.Text = "Height above ground"
	p.X.Label.Text = "height (m)"
	p.Y.Label.Text = "points"

	h, err := plotter.NewHist(vals, HistogramBins)
	if err != nil {
		return fmt.Errorf("viz: build histogram: %w", err)
	}
	p.Add(h)

	wt, err := p.WriterTo(8*vg.Inch, 5*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("viz: render histogram: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("viz: write histogram: %w", err)
	}
	return nil
}
