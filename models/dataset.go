package models

import (
	"strconv"
	"strings"
	"time"
)

type Kind string

const (
	KindDate    Kind = "date"
	KindNumeric Kind = "numeric"
	KindText    Kind = "categorical-text"
)

type Column struct {
	Name string `json:"name"`
	Kind Kind   `json:"kind"`
}

// Value is one cell. Raw keeps the source text; Num and Time are set
// only when the column kind allows and the text could be coerced.
type Value struct {
	Raw    string
	Num    float64
	Time   time.Time
	IsNum  bool
	IsTime bool
}

func Text(s string) Value                { return Value{Raw: s} }
func Number(raw string, f float64) Value { return Value{Raw: raw, Num: f, IsNum: true} }
func Date(raw string, t time.Time) Value { return Value{Raw: raw, Time: t, IsTime: true} }

// String is the canonical text used for display and substring matching.
func (v Value) String() string {
	switch {
	case v.IsTime:
		return v.Time.Format("2006-01-02")
	case v.IsNum:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return v.Raw
	}
}

// Dataset is an immutable table of typed rows. Filtering produces new
// datasets that share the column set.
type Dataset struct {
	Columns []Column
	Rows    [][]Value

	DateColumn   string
	AmountColumn string
	EntityColumn string
	StatusColumn string

	index map[string]int
}

func NewDataset(cols []Column, rows [][]Value) *Dataset {
	ds := &Dataset{Columns: cols, Rows: rows}
	ds.reindex()
	return ds
}

func (d *Dataset) reindex() {
	d.index = make(map[string]int, len(d.Columns))
	for i, c := range d.Columns {
		d.index[c.Name] = i
	}
}

func (d *Dataset) Len() int { return len(d.Rows) }

// Index returns the position of a column by exact name, or -1.
func (d *Dataset) Index(name string) int {
	if d.index == nil {
		d.reindex()
	}
	if i, ok := d.index[name]; ok {
		return i
	}
	return -1
}

// Resolve finds a column by exact name, falling back to a trimmed
// case-insensitive match.
func (d *Dataset) Resolve(name string) (Column, int, bool) {
	if i := d.Index(name); i >= 0 {
		return d.Columns[i], i, true
	}
	n := strings.TrimSpace(name)
	if n == "" {
		return Column{}, -1, false
	}
	for i, c := range d.Columns {
		if strings.EqualFold(c.Name, n) {
			return c, i, true
		}
	}
	return Column{}, -1, false
}

// WithRows returns a dataset with the same columns and designations.
func (d *Dataset) WithRows(rows [][]Value) *Dataset {
	out := *d
	out.Rows = rows
	return &out
}

// Clone deep-copies the row storage so callers can never mutate the cached dataset.
func (d *Dataset) Clone() *Dataset {
	cols := make([]Column, len(d.Columns))
	copy(cols, d.Columns)
	rows := make([][]Value, len(d.Rows))
	for i, r := range d.Rows {
		rr := make([]Value, len(r))
		copy(rr, r)
		rows[i] = rr
	}
	out := *d
	out.Columns = cols
	out.Rows = rows
	out.reindex()
	return &out
}

// Head returns up to n rows rendered as strings.
func (d *Dataset) Head(n int) [][]string {
	if n > len(d.Rows) {
		n = len(d.Rows)
	}
	out := make([][]string, 0, n)
	for _, r := range d.Rows[:n] {
		line := make([]string, len(r))
		for j, v := range r {
			line[j] = v.String()
		}
		out = append(out, line)
	}
	return out
}

func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}
