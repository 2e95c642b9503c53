package frames

import (
	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// A Series is one line on a plot; X is the index into Y unless Xs is
// given.
type Series struct {
	Name string
	Xs   []float64
	Ys   []float64
}

// PlotSeries saves a line plot of the series, one hue per series.
func PlotSeries(title, xLabel, yLabel string, series []Series, filename string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = xLabel
	p.Y.Label.Text = yLabel

	for i, s := range series {
		if len(s.Ys) == 0 {
			continue
		}
		if len(s.Xs) != 0 && len(s.Xs) != len(s.Ys) {
			return errors.Errorf("series %q: %d xs, %d ys", s.Name, len(s.Xs), len(s.Ys))
		}

		pts := make(plotter.XYs, len(s.Ys))
		for j, y := range s.Ys {
			pts[j].X = float64(j)
			if len(s.Xs) != 0 {
				pts[j].X = s.Xs[j]
			}
			pts[j].Y = y
		}

		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrapf(err, "series %q", s.Name)
		}
		line.Color = colorful.Hsv(360*float64(i)/float64(len(series)), 0.8, 0.8)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}

	p.Legend.Top = true
	if err := p.Save(10*vg.Inch, 4*vg.Inch, filename); err != nil {
		return errors.Wrapf(err, "save plot '%s'", filename)
	}
	return nil
}
