// Package chart derives renderable chart descriptions from tabular query
// results. Everything here is pure: rows in, config out, no I/O.
package chart

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"commerce-insights/internal/common/logger"
	"commerce-insights/internal/models"
)

// Config is the renderable chart description handed to the frontend. The
// shape follows the Chart.js config object so clients can pass it through
// unmodified.
type Config struct {
	Type    models.ChartType `json:"type"`
	Data    Data             `json:"data"`
	Options Options          `json:"options"`
}

// Data holds the series for graph charts or the grid for table charts.
type Data struct {
	Labels   []string  `json:"labels,omitempty"`
	Datasets []Dataset `json:"datasets,omitempty"`
	Headers  []string  `json:"headers,omitempty"`
	Rows     [][]any   `json:"rows,omitempty"`
}

type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor,omitempty"`
	BorderColor     []string  `json:"borderColor,omitempty"`
	BorderWidth     int       `json:"borderWidth,omitempty"`
}

type Options struct {
	Title  *Title  `json:"title,omitempty"`
	Legend *Legend `json:"legend,omitempty"`
	Scales *Scales `json:"scales,omitempty"`
}

type Title struct {
	Display bool   `json:"display"`
	Text    string `json:"text"`
}

type Legend struct {
	Display  bool   `json:"display"`
	Position string `json:"position,omitempty"`
}

type Scales struct {
	X Axis `json:"x"`
	Y Axis `json:"y"`
}

type Axis struct {
	Title Title `json:"title"`
}

// Palette assigned per data point, cycling when rows outnumber entries.
// Backgrounds are semi-transparent, borders the opaque same hues.
var palette = []struct {
	background string
	border     string
}{
	{"rgba(54, 162, 235, 0.6)", "rgba(54, 162, 235, 1)"},
	{"rgba(255, 99, 132, 0.6)", "rgba(255, 99, 132, 1)"},
	{"rgba(255, 206, 86, 0.6)", "rgba(255, 206, 86, 1)"},
	{"rgba(75, 192, 192, 0.6)", "rgba(75, 192, 192, 1)"},
	{"rgba(153, 102, 255, 0.6)", "rgba(153, 102, 255, 1)"},
	{"rgba(255, 159, 64, 0.6)", "rgba(255, 159, 64, 1)"},
	{"rgba(99, 255, 132, 0.6)", "rgba(99, 255, 132, 1)"},
}

// ToChartConfig builds a renderable config from a validated spec and the
// executed rows. Returns nil when there is nothing sensible to render: nil
// spec, no rows, or the spec's keys are absent from the row shape. columns
// carries the result's column order, which Go maps cannot preserve.
func ToChartConfig(spec *models.ChartSpec, rows []map[string]any, columns []string, log logger.Logger) *Config {
	if spec == nil || len(rows) == 0 {
		return nil
	}

	if _, ok := rows[0][spec.DataKey]; !ok {
		logMissingKey(log, spec.DataKey, columns)
		return nil
	}
	if _, ok := rows[0][spec.LabelKey]; !ok {
		logMissingKey(log, spec.LabelKey, columns)
		return nil
	}

	switch spec.Type {
	case models.ChartTypeBar, models.ChartTypeLine:
		return scaledConfig(spec, rows)
	case models.ChartTypePie, models.ChartTypeDoughnut:
		return legendConfig(spec, rows)
	case models.ChartTypeTable:
		return tableConfig(spec, rows, columns)
	default:
		return nil
	}
}

// ConvertChartType re-renders an existing chart as targetType. Identity when
// the type already matches; nil with a warning when there is no source chart.
// The source chart's title always wins, and when both kinds carry axes the
// source axis titles beat meta so a user's re-labeling survives round trips.
func ConvertChartType(current *Config, rows []map[string]any, columns []string, targetType models.ChartType, meta *models.ChartSpec, log logger.Logger) *Config {
	if current == nil {
		log.Warn("cannot convert nil chart", map[string]interface{}{
			"target_type": string(targetType),
		})
		return nil
	}
	if current.Type == targetType {
		return current
	}

	spec := models.ChartSpec{Type: targetType}
	if meta != nil {
		spec = *meta
		spec.Type = targetType
	}
	if current.Options.Title != nil && current.Options.Title.Text != "" {
		spec.Title = current.Options.Title.Text
	}
	if usesScales(current.Type) && usesScales(targetType) && current.Options.Scales != nil {
		if t := current.Options.Scales.X.Title.Text; t != "" {
			spec.XLabel = t
		}
		if t := current.Options.Scales.Y.Title.Text; t != "" {
			spec.YLabel = t
		}
	}

	return ToChartConfig(&spec, rows, columns, log)
}

func usesScales(t models.ChartType) bool {
	return t == models.ChartTypeBar || t == models.ChartTypeLine
}

func scaledConfig(spec *models.ChartSpec, rows []map[string]any) *Config {
	labels, dataset := buildSeries(spec, rows)

	xTitle := spec.XLabel
	if xTitle == "" {
		xTitle = spec.LabelKey
	}
	yTitle := spec.YLabel
	if yTitle == "" {
		yTitle = spec.DataKey
	}

	return &Config{
		Type: spec.Type,
		Data: Data{Labels: labels, Datasets: []Dataset{dataset}},
		Options: Options{
			Title:  &Title{Display: true, Text: spec.Title},
			Legend: &Legend{Display: false},
			Scales: &Scales{
				X: Axis{Title: Title{Display: true, Text: xTitle}},
				Y: Axis{Title: Title{Display: true, Text: yTitle}},
			},
		},
	}
}

func legendConfig(spec *models.ChartSpec, rows []map[string]any) *Config {
	labels, dataset := buildSeries(spec, rows)

	return &Config{
		Type: spec.Type,
		Data: Data{Labels: labels, Datasets: []Dataset{dataset}},
		Options: Options{
			Title:  &Title{Display: true, Text: spec.Title},
			Legend: &Legend{Display: true, Position: "right"},
		},
	}
}

func tableConfig(spec *models.ChartSpec, rows []map[string]any, columns []string) *Config {
	grid := make([][]any, 0, len(rows))
	for _, row := range rows {
		line := make([]any, len(columns))
		for i, col := range columns {
			line[i] = row[col]
		}
		grid = append(grid, line)
	}

	return &Config{
		Type: models.ChartTypeTable,
		Data: Data{Headers: columns, Rows: grid},
		Options: Options{
			Title: &Title{Display: true, Text: spec.Title},
		},
	}
}

func buildSeries(spec *models.ChartSpec, rows []map[string]any) ([]string, Dataset) {
	labels := make([]string, 0, len(rows))
	values := make([]float64, 0, len(rows))
	backgrounds := make([]string, 0, len(rows))
	borders := make([]string, 0, len(rows))

	for i, row := range rows {
		labels = append(labels, toLabel(row[spec.LabelKey]))
		values = append(values, toNumber(row[spec.DataKey]))
		color := palette[i%len(palette)]
		backgrounds = append(backgrounds, color.background)
		borders = append(borders, color.border)
	}

	return labels, Dataset{
		Label:           spec.DataKey,
		Data:            values,
		BackgroundColor: backgrounds,
		BorderColor:     borders,
		BorderWidth:     1,
	}
}

// toNumber coerces a cell to a finite float64. Anything non-numeric,
// unparsable or non-finite becomes 0 so one bad cell cannot sink the chart.
func toNumber(v any) float64 {
	switch n := v.(type) {
	case nil:
		return 0
	case float64:
		return finite(n)
	case float32:
		return finite(float64(n))
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case bool:
		if n {
			return 1
		}
		return 0
	case []byte:
		return parseNumber(string(n))
	case string:
		return parseNumber(n)
	default:
		return 0
	}
}

func parseNumber(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return finite(f)
}

func finite(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// toLabel coerces a cell to a display string. Nil becomes empty, numbers
// render in plain decimal, everything else keeps its natural formatting.
func toLabel(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	case int:
		return strconv.Itoa(s)
	case int32:
		return strconv.FormatInt(int64(s), 10)
	case int64:
		return strconv.FormatInt(s, 10)
	case bool:
		return strconv.FormatBool(s)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func logMissingKey(log logger.Logger, key string, columns []string) {
	log.Warn("chart key missing from result rows", map[string]interface{}{
		"expected_key":      key,
		"available_columns": strings.Join(columns, ","),
	})
}
