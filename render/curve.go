package render

import (
	"errors"
	"fmt"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"shapenet/run"
)

// LossCurve plots loss against epoch and saves the chart to path; the
// image format follows the file extension.
func LossCurve(path string, losses []run.EpochLoss) error {
	if len(losses) == 0 {
		return errors.New("no losses to plot")
	}
	points := make(plotter.XYs, len(losses))
	for i, l := range losses {
		points[i] = plotter.XY{X: float64(l.Epoch), Y: l.Loss}
	}

	p := plot.New()
	p.Title.Text = "Training loss"
	p.X.Label.Text = "Epoch"
	p.Y.Label.Text = "MSE"

	line, err := plotter.NewLine(points)
	if err != nil {
		return fmt.Errorf("building loss line: %w", err)
	}
	line.LineStyle.Width = vg.Points(1)
	p.Add(plotter.NewGrid(), line)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("saving loss curve: %w", err)
	}
	return nil
}
