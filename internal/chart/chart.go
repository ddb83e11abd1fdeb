// Package chart renders the dashboard charts as PNG images.
package chart

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/agrof66/machine-dashboard/internal/dashboard"
	"github.com/agrof66/machine-dashboard/internal/sheet"
	"github.com/agrof66/machine-dashboard/pkg/format"
	chart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// ErrNoData is returned when there is nothing to plot.
var ErrNoData = errors.New("no data to chart")

const (
	width  = 900
	height = 420
)

var background = chart.Style{Padding: chart.Box{Top: 30, Left: 16, Right: 16, Bottom: 16}}

func euroAxis(v interface{}) string {
	if f, ok := v.(float64); ok {
		return format.KiloEuro(f, false)
	}
	return ""
}

func percentAxis(v interface{}) string {
	if f, ok := v.(float64); ok {
		return format.Percent(f)
	}
	return ""
}

// valueRange spans all values and zero with a little headroom.
func valueRange(values ...[]float64) *chart.ContinuousRange {
	lo, hi := 0.0, 0.0
	for _, vs := range values {
		for _, v := range vs {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}
	}
	if hi == lo {
		hi = lo + 1
	}
	pad := (hi - lo) * 0.05
	if lo < 0 {
		lo -= pad
	}
	return &chart.ContinuousRange{Min: lo, Max: hi + pad}
}

func signColor(v float64) drawing.Color {
	if v >= 0 {
		return chart.ColorGreen
	}
	return chart.ColorRed
}

func bandColor(pct float64) drawing.Color {
	switch dashboard.MarginBand(pct) {
	case "good":
		return chart.ColorGreen
	case "warn":
		return chart.ColorOrange
	default:
		return chart.ColorRed
	}
}

func bars(title string, labels []string, values []float64, color func(float64) drawing.Color, axis chart.ValueFormatter) ([]byte, error) {
	if len(values) == 0 {
		return nil, ErrNoData
	}
	bc := chart.BarChart{
		Title:        title,
		Background:   background,
		Width:        width,
		Height:       height,
		BarWidth:     barWidth(len(values)),
		BarSpacing:   barWidth(len(values)),
		UseBaseValue: true,
		BaseValue:    0,
		YAxis: chart.YAxis{
			Range:          valueRange(values),
			ValueFormatter: axis,
		},
	}
	for i, v := range values {
		c := color(v)
		bc.Bars = append(bc.Bars, chart.Value{
			Label: labels[i],
			Value: v,
			Style: chart.Style{FillColor: c, StrokeColor: c},
		})
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", title, err)
	}
	return buf.Bytes(), nil
}

func barWidth(n int) int {
	w := (width - 120) / n / 2
	switch {
	case w > 60:
		return 60
	case w < 8:
		return 8
	}
	return w
}

type line struct {
	name   string
	values []float64
	color  drawing.Color
}

func lines(title string, labels []string, series []line) ([]byte, error) {
	if len(labels) == 0 {
		return nil, ErrNoData
	}

	xs := make([]float64, len(labels))
	ticks := make([]chart.Tick, len(labels))
	for i, l := range labels {
		xs[i] = float64(i)
		ticks[i] = chart.Tick{Value: float64(i), Label: l}
	}

	var all [][]float64
	var rendered []chart.Series
	for _, s := range series {
		x, y := xs, s.values
		// A line needs two points; repeat a single month.
		if len(x) == 1 {
			x = []float64{0, 1}
			y = []float64{y[0], y[0]}
		}
		all = append(all, y)
		rendered = append(rendered, chart.ContinuousSeries{
			Name:    s.name,
			XValues: x,
			YValues: y,
			Style:   chart.Style{StrokeColor: s.color, StrokeWidth: 2},
		})
	}
	if len(xs) == 1 {
		ticks = append(ticks, chart.Tick{Value: 1, Label: ""})
	}

	ch := chart.Chart{
		Title:      title,
		Background: background,
		Width:      width,
		Height:     height,
		XAxis:      chart.XAxis{Ticks: ticks},
		YAxis:      chart.YAxis{Range: valueRange(all...), ValueFormatter: euroAxis},
		Series:     rendered,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("failed to render %s: %w", title, err)
	}
	return buf.Bytes(), nil
}

func monthLabels(rows []dashboard.MonthRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Month
	}
	return out
}

func monthValues(rows []dashboard.MonthRow, pick func(dashboard.MonthRow) float64) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = pick(r)
	}
	return out
}

// MonthlyRevenueCost plots monthly revenue against cost.
func MonthlyRevenueCost(rows []dashboard.MonthRow) ([]byte, error) {
	return lines("Umsätze und Kosten pro Monat", monthLabels(rows), []line{
		{"Umsätze", monthValues(rows, func(r dashboard.MonthRow) float64 { return r.Revenue }), chart.ColorBlue},
		{"Kosten", monthValues(rows, func(r dashboard.MonthRow) float64 { return r.Cost }), chart.ColorRed},
	})
}

// MonthlyDB plots the monthly contribution margin, green when positive.
func MonthlyDB(rows []dashboard.MonthRow) ([]byte, error) {
	return bars("DB pro Monat", monthLabels(rows),
		monthValues(rows, func(r dashboard.MonthRow) float64 { return r.DB }), signColor, euroAxis)
}

// MonthlyMargin plots the monthly margin coloured by margin band.
func MonthlyMargin(rows []dashboard.MonthRow) ([]byte, error) {
	return bars("Marge pro Monat", monthLabels(rows),
		monthValues(rows, func(r dashboard.MonthRow) float64 { return r.Margin }), bandColor, percentAxis)
}

// Cumulative plots running revenue and DB.
func Cumulative(rows []dashboard.MonthRow) ([]byte, error) {
	return lines("Kumulierte Entwicklung", monthLabels(rows), []line{
		{"Umsätze kumuliert", monthValues(rows, func(r dashboard.MonthRow) float64 { return r.CumulativeRevenue }), chart.ColorBlue},
		{"DB kumuliert", monthValues(rows, func(r dashboard.MonthRow) float64 { return r.CumulativeDB }), chart.ColorGreen},
	})
}

// Ranking plots machines by DB YTD.
func Ranking(title string, machines []sheet.Machine) ([]byte, error) {
	labels := make([]string, len(machines))
	values := make([]float64, len(machines))
	for i, m := range machines {
		labels[i] = m.VHNr
		values[i] = m.DBYTD
	}
	return bars(title, labels, values, signColor, euroAxis)
}
