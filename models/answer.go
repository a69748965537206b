package models

type AnswerKind string

const (
	AnswerChart  AnswerKind = "chart"
	AnswerTable  AnswerKind = "table"
	AnswerProse  AnswerKind = "prose"
	AnswerNotice AnswerKind = "notice"
	AnswerError  AnswerKind = "error"
)

// Answer is what the presentation layer receives for one question.
type Answer struct {
	Kind       AnswerKind     `json:"kind"`
	Text       string         `json:"text,omitempty"`
	Chart      *Chart         `json:"chart,omitempty"`
	Table      *Table         `json:"table,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Disclaimer string         `json:"disclaimer,omitempty"`
	Plan       *Plan          `json:"plan,omitempty"`
	Error      *AnswerFailure `json:"error,omitempty"`
}

type AnswerFailure struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

type Chart struct {
	Kind       VisualizationKind `json:"kind"`
	Title      string            `json:"title"`
	XField     string            `json:"x_field"`
	YField     string            `json:"y_field"`
	SplitField string            `json:"split_field,omitempty"`
	Series     []Series          `json:"series"`
}

type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

type Point struct {
	X string  `json:"x"`
	Y float64 `json:"y"`
}

type Table struct {
	Columns   []string   `json:"columns"`
	Rows      [][]string `json:"rows"`
	TotalRows int        `json:"total_rows"`
	Truncated bool       `json:"truncated"`
}
