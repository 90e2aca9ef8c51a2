package visualization

import (
	"fmt"
	"image/color"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"dosegamma/pkg/gamma"
)

// SaveHistogram plots the gamma histogram of a result with a marker at the
// pass threshold. The image format follows the file extension.
func SaveHistogram(res *gamma.Result, filename string) error {
	h := res.Histogram
	if len(h.Counts) == 0 || len(h.Edges) != len(h.Counts)+1 {
		return fmt.Errorf("histogram has %d edges for %d bins", len(h.Edges), len(h.Counts))
	}

	p := plot.New()
	p.Title.Text = "Gamma histogram"
	if !math.IsNaN(res.Summary.PassRate) {
		p.Title.Text = fmt.Sprintf("Gamma histogram (pass rate %.1f%%)", res.Summary.PassRate*100)
	}
	p.X.Label.Text = "Gamma"
	p.Y.Label.Text = "Points"

	bins := make([]plotter.HistogramBin, len(h.Counts))
	top := 0
	for i, c := range h.Counts {
		bins[i] = plotter.HistogramBin{Min: h.Edges[i], Max: h.Edges[i+1], Weight: float64(c)}
		top = max(top, c)
	}
	hist := &plotter.Histogram{
		Bins:      bins,
		Width:     h.Edges[1] - h.Edges[0],
		FillColor: color.RGBA{R: 70, G: 130, B: 180, A: 255},
		LineStyle: plotter.DefaultLineStyle,
	}
	p.Add(hist)

	threshold, err := plotter.NewLine(plotter.XYs{{X: 1, Y: 0}, {X: 1, Y: float64(max(top, 1))}})
	if err != nil {
		return err
	}
	threshold.LineStyle = draw.LineStyle{
		Color:  color.RGBA{R: 200, A: 255},
		Width:  vg.Points(1),
		Dashes: []vg.Length{vg.Points(4), vg.Points(2)},
	}
	p.Add(threshold)
	p.Legend.Add("gamma = 1", threshold)
	p.Legend.Top = true

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 5*vg.Inch, filename)
}
