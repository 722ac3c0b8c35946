package chart

import (
	"fmt"

	"btcdash/pkg/models"

	"github.com/guptarohit/asciigraph"
)

// DateLabelFormat renders axis labels as local dates without zero
// padding, e.g. 6/1/2026.
const DateLabelFormat = "1/2/2006"

// StyleFunc produces plot options for the area the chart will actually
// occupy. It runs at render time, once the final width and height are
// known.
type StyleFunc func(width, height int) []asciigraph.Option

// Series is a chart-ready price history.
type Series struct {
	Labels []string
	Values []float64
	Style  StyleFunc
}

// Empty reports whether there is anything to plot.
func (s Series) Empty() bool { return len(s.Values) == 0 }

// Render plots the series into the given area.
func (s Series) Render(width, height int) string {
	if s.Empty() {
		return ""
	}
	return asciigraph.Plot(s.Values, s.Style(width, height)...)
}

// Build converts price points into a plottable series. Point order is
// preserved; the market API delivers them oldest first. The line color
// follows the trend across the window. Size-dependent options live in
// the style callback so they pick up the final plot area.
func Build(points []models.PricePoint) Series {
	values := make([]float64, 0, len(points))
	labels := make([]string, 0, len(points))
	for _, p := range points {
		values = append(values, p.Price)
		labels = append(labels, p.Timestamp.Local().Format(DateLabelFormat))
	}

	var caption string
	if len(labels) > 0 {
		caption = fmt.Sprintf("BTC/USD  %s", labels[0])
		if last := labels[len(labels)-1]; last != labels[0] {
			caption = fmt.Sprintf("BTC/USD  %s - %s", labels[0], last)
		}
	}

	color := asciigraph.SeriesColors(asciigraph.Green)
	if len(values) > 1 && values[len(values)-1] < values[0] {
		color = asciigraph.SeriesColors(asciigraph.Red)
	}

	style := func(width, height int) []asciigraph.Option {
		if width < 10 {
			width = 10
		}
		if height < 1 {
			height = 1
		}
		return []asciigraph.Option{
			asciigraph.Height(height),
			asciigraph.Width(width),
			asciigraph.Precision(2),
			asciigraph.Caption(caption),
			color,
		}
	}

	return Series{Labels: labels, Values: values, Style: style}
}
