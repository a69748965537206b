package models

import "fmt"

type VisualizationKind string

const (
	VizLine    VisualizationKind = "line"
	VizBar     VisualizationKind = "bar"
	VizPie     VisualizationKind = "pie"
	VizScatter VisualizationKind = "scatter"
	VizTable   VisualizationKind = "table"
	VizNone    VisualizationKind = "none"
)

var VisualizationKinds = []string{"line", "bar", "pie", "scatter", "table", "none"}

type TimeBucket string

const (
	BucketDay   TimeBucket = "day"
	BucketMonth TimeBucket = "month"
	BucketYear  TimeBucket = "year"
	BucketNone  TimeBucket = "none"
)

var TimeBuckets = []string{"day", "month", "year", "none"}

type CalculationKind string

const (
	CalcNone             CalculationKind = "none"
	CalcTotal            CalculationKind = "total"
	CalcMaxByGroup       CalculationKind = "max-by-group"
	CalcMinByTimeBucket  CalculationKind = "min-by-time-bucket"
	CalcSumOverPeriod    CalculationKind = "sum-over-period"
	CalcProjectRemaining CalculationKind = "project-remaining-year"
	CalcProjectByMonth   CalculationKind = "project-remaining-year-by-month"
	CalcSumWhereCategory CalculationKind = "sum-where-category"
	CalcShareOfTotal     CalculationKind = "share-of-total"
	CalcRecommendations  CalculationKind = "recommendations"
)

var CalculationKinds = []string{
	"none", "total", "max-by-group", "min-by-time-bucket", "sum-over-period",
	"project-remaining-year", "project-remaining-year-by-month",
	"sum-where-category", "share-of-total", "recommendations",
}

func (k CalculationKind) IsProjection() bool {
	return k == CalcProjectRemaining || k == CalcProjectByMonth
}

type FieldValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type CalculationArgs struct {
	Year          int    `json:"year"`
	Month         int    `json:"month"`
	TargetYear    int    `json:"target_year"`
	CategoryField string `json:"category_field"`
	CategoryValue string `json:"category_value"`
}

// Plan is the structured decision produced for one question. Every field
// is always present; absence is "", none, 0 or an empty list.
type Plan struct {
	WantsVisualization bool              `json:"wants_visualization"`
	VisualizationKind  VisualizationKind `json:"visualization_kind"`
	XField             string            `json:"x_field"`
	YField             string            `json:"y_field"`
	GroupField         string            `json:"group_field"`
	PrimaryFilter      FieldValue        `json:"primary_filter"`
	DateRange          DateRange         `json:"date_range"`
	ExtraFilters       []FieldValue      `json:"extra_filters"`
	TimeBucket         TimeBucket        `json:"time_bucket"`
	ResponseTemplate   string            `json:"response_template"`
	TableFields        []string          `json:"table_fields"`
	CalculationKind    CalculationKind   `json:"calculation_kind"`
	CalculationArgs    CalculationArgs   `json:"calculation_args"`
}

// Validate checks enum membership and the visualization invariant.
func (p Plan) Validate() error {
	if !oneOf(string(p.VisualizationKind), VisualizationKinds) {
		return fmt.Errorf("invalid visualization_kind %q", p.VisualizationKind)
	}
	if !oneOf(string(p.TimeBucket), TimeBuckets) {
		return fmt.Errorf("invalid time_bucket %q", p.TimeBucket)
	}
	if !oneOf(string(p.CalculationKind), CalculationKinds) {
		return fmt.Errorf("invalid calculation_kind %q", p.CalculationKind)
	}
	if p.WantsVisualization && p.VisualizationKind == VizNone {
		return fmt.Errorf("wants_visualization is true but visualization_kind is none")
	}
	if m := p.CalculationArgs.Month; m < 0 || m > 12 {
		return fmt.Errorf("invalid calculation_args.month %d", m)
	}
	return nil
}

func oneOf(v string, set []string) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}
