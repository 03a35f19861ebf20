// Package curves plots learning curves from the summaries saved during
// experiments
package curves

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/samuelfneumann/goforce/experiment/tracker"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Smooth returns the trailing moving average of data over window
// elements. The first elements average over as many elements as are
// available.
func Smooth(data []float64, window int) []float64 {
	if window <= 1 {
		return slices.Clone(data)
	}

	smoothed := make([]float64, len(data))
	for i := range data {
		start := i - window + 1
		if start < 0 {
			start = 0
		}
		smoothed[i] = stat.Mean(data[start:i+1], nil)
	}
	return smoothed
}

// Load loads the summary with the given name, e.g. "return", of each
// run directory. Series are labelled by the run directory and, for
// parallel runs, the parallel interaction.
func Load(runs []string, summary string) (map[string][]float64, error) {
	series := make(map[string][]float64)

	for _, run := range runs {
		pattern := filepath.Join(run, "summaries", summary+"*.bin")
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("load: %v", err)
		}
		if len(files) == 0 {
			return nil, fmt.Errorf("load: no %v summaries in %v", summary, run)
		}

		for _, file := range files {
			data, err := tracker.LoadData(file)
			if err != nil {
				return nil, fmt.Errorf("load: %v", err)
			}

			label := filepath.Base(run)
			suffix := strings.TrimSuffix(strings.TrimPrefix(
				filepath.Base(file), summary), ".bin")
			series[label+suffix] = data
		}
	}
	return series, nil
}

// Plot plots each series, smoothed over window episodes, and saves the
// plot to filename. The extension of filename determines the format.
func Plot(title, yLabel string, series map[string][]float64, window int,
	filename string) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Episode"
	p.Y.Label.Text = yLabel

	labels := maps.Keys(series)
	slices.Sort(labels)

	for i, label := range labels {
		smoothed := Smooth(series[label], window)
		points := make(plotter.XYs, len(smoothed))
		for j := range smoothed {
			points[j] = plotter.XY{X: float64(j + 1), Y: smoothed[j]}
		}

		line, err := plotter.NewLine(points)
		if err != nil {
			return fmt.Errorf("plot: %v: %v", label, err)
		}
		line.Color = plotutil.Color(i)
		p.Add(line)
		p.Legend.Add(label, line)
	}

	if err := p.Save(8*vg.Inch, 5*vg.Inch, filename); err != nil {
		return fmt.Errorf("plot: %v", err)
	}
	return nil
}
