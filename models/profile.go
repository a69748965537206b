package models

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

type ColumnProfile struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`

	// date columns
	HasDates bool   `json:"has_dates,omitempty"`
	MinDate  string `json:"min_date,omitempty"`
	MaxDate  string `json:"max_date,omitempty"`

	// numeric columns
	Sum  float64 `json:"sum,omitempty"`
	Mean float64 `json:"mean,omitempty"`
	Min  float64 `json:"min,omitempty"`
	Max  float64 `json:"max,omitempty"`

	// text columns
	Cardinality int          `json:"cardinality,omitempty"`
	TopValues   []ValueCount `json:"top_values,omitempty"`
}

// SchemaProfile summarizes a dataset for the planner prompt.
type SchemaProfile struct {
	Rows    int             `json:"rows"`
	Columns []ColumnProfile `json:"columns"`
	Text    string          `json:"text"`
}
