package reporting

import (
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"decompbench/internal/evaluation"
)

// PlotSuccessRate renders a per-variant success-rate bar chart as a PNG.
func PlotSuccessRate(path string, summaries []evaluation.Summary) error {
	values := make(plotter.Values, len(summaries))
	names := make([]string, len(summaries))
	for i, s := range summaries {
		values[i] = s.SuccessRate
		names[i] = s.Variant
	}
	return barChart(path, "Success rate by variant", "success rate", values, names)
}

// PlotMeanTokens renders a per-variant mean token cost bar chart as a PNG.
func PlotMeanTokens(path string, summaries []evaluation.Summary) error {
	values := make(plotter.Values, len(summaries))
	names := make([]string, len(summaries))
	for i, s := range summaries {
		values[i] = s.MeanTokens
		names[i] = s.Variant
	}
	return barChart(path, "Mean estimated tokens by variant", "tokens", values, names)
}

func barChart(path, title, yLabel string, values plotter.Values, names []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("reporting: create plot dir: %w", err)
	}

	p := plot.New()
	p.Title.Text = title
	p.Y.Label.Text = yLabel

	bars, err := plotter.NewBarChart(values, vg.Points(40))
	if err != nil {
		return fmt.Errorf("reporting: build bar chart: %w", err)
	}
	p.Add(bars)
	p.NominalX(names...)

	if err := p.Save(6*vg.Inch, 4*vg.Inch, path); err != nil {
		return fmt.Errorf("reporting: save %s: %w", path, err)
	}
	return nil
}
