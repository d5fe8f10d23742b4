// Package plots renders the feature statistics of the encoded frames to image files.
package plots

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Series is a named sequence of values, plotted against their index.
type Series struct {
	Name   string
	Values []float64
}

// minSpectrumValue replaces non-positive eigenvalues in the log-scale plot.
const minSpectrumValue = 1e-12

// SaveSpectrum plots the covariance eigenvalue spectra of each series (sorted in decreasing order), in log scale,
// and saves it to path. The image format is taken from the extension of path (".png", ".svg", ".pdf", ...).
func SaveSpectrum(path, title string, series ...Series) error {
	if len(series) == 0 {
		return errors.New("SaveSpectrum requires at least one series")
	}
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "component"
	p.Y.Label.Text = "eigenvalue"
	p.Y.Scale = plot.LogScale{}
	p.Y.Tick.Marker = plot.LogTicks{Prec: -1}
	p.Add(plotter.NewGrid())

	for ii, s := range series {
		if len(s.Values) == 0 {
			return errors.Errorf("series %q is empty", s.Name)
		}
		points := make(plotter.XYs, len(s.Values))
		for jj, v := range s.Values {
			if math.IsNaN(v) || v < minSpectrumValue {
				v = minSpectrumValue
			}
			points[jj].X = float64(jj + 1)
			points[jj].Y = v
		}
		line, err := plotter.NewLine(points)
		if err != nil {
			return errors.Wrapf(err, "failed to plot series %q", s.Name)
		}
		line.Color = plotutil.Color(ii)
		line.Dashes = plotutil.Dashes(ii)
		p.Add(line)
		p.Legend.Add(s.Name, line)
	}
	p.Legend.Top = true
	if err := p.Save(8*vg.Inch, 5*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "failed to save plot to %q", path)
	}
	return nil
}
