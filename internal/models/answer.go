package models

// ChartType enumerates the renderable chart kinds.
type ChartType string

const (
	ChartTypeBar      ChartType = "bar"
	ChartTypeLine     ChartType = "line"
	ChartTypePie      ChartType = "pie"
	ChartTypeDoughnut ChartType = "doughnut"
	ChartTypeTable    ChartType = "table"
)

// IsValidChartType reports whether t is one of the recognized chart kinds.
func IsValidChartType(t string) bool {
	switch ChartType(t) {
	case ChartTypeBar, ChartTypeLine, ChartTypePie, ChartTypeDoughnut, ChartTypeTable:
		return true
	}
	return false
}

// GeneratedAnswer is the untrusted payload parsed from the model's reply.
// Nothing in it is safe to use before validation.
type GeneratedAnswer struct {
	SQL         string        `json:"sql"`
	Explanation string        `json:"explanation"`
	ChartSpec   *RawChartSpec `json:"chartSpec,omitempty"`
}

// RawChartSpec is the chart description exactly as the model emitted it.
type RawChartSpec struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	DataKey  string `json:"dataKey"`
	LabelKey string `json:"labelKey"`
	XLabel   string `json:"xLabel,omitempty"`
	YLabel   string `json:"yLabel,omitempty"`
}

// ChartSpec is a validated chart description. It is only ever constructed
// with a recognized type and non-empty title/dataKey/labelKey; a partially
// populated spec is represented as nil, never as a zero value.
type ChartSpec struct {
	Type     ChartType `json:"type"`
	Title    string    `json:"title"`
	DataKey  string    `json:"dataKey"`
	LabelKey string    `json:"labelKey"`
	XLabel   string    `json:"xLabel,omitempty"`
	YLabel   string    `json:"yLabel,omitempty"`
}

// AIQueryResult is the pipeline's final product. SQL always satisfies the
// full sqlguard rule set and Params[0] always equals the requesting store id.
type AIQueryResult struct {
	SQL         string     `json:"sql"`
	Params      []any      `json:"params"`
	Explanation string     `json:"explanation"`
	ChartSpec   *ChartSpec `json:"chartSpec"`
}
