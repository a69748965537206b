package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fenix-advisor/backend/models"
	"fenix-advisor/backend/utils"
)

// Renderer turns a filtered view into a chart or table answer.
type Renderer struct {
	RowLimit int
}

func (r Renderer) Render(view *models.Dataset, plan models.Plan) (models.Answer, error) {
	if plan.VisualizationKind == models.VizTable {
		return r.table(view, plan), nil
	}

	xCol, xi, ok := view.Resolve(plan.XField)
	if !ok {
		return models.Answer{}, &FieldNotFoundError{Field: plan.XField, Role: "x"}
	}
	yCol, yi, ok := view.Resolve(plan.YField)
	if !ok {
		return models.Answer{}, &FieldNotFoundError{Field: plan.YField, Role: "y"}
	}

	var warnings []string
	gi := -1
	var gName string
	if g := strings.TrimSpace(plan.GroupField); g != "" && plan.VisualizationKind != models.VizPie {
		if gCol, i, ok := view.Resolve(g); ok {
			if i != xi {
				gi, gName = i, gCol.Name
			}
		} else {
			warnings = append(warnings, fmt.Sprintf("Se ignoró la agrupación: la columna '%s' no existe.", g))
		}
	}

	if yCol.Kind != models.KindNumeric {
		ans := r.limit(rawTable(view))
		ans.Warnings = append(warnings, fmt.Sprintf("La columna '%s' no es numérica; se muestran los datos filtrados.", yCol.Name))
		return ans, nil
	}

	chart := &models.Chart{
		Kind:       plan.VisualizationKind,
		XField:     xCol.Name,
		YField:     yCol.Name,
		SplitField: gName,
	}
	bucket := effectiveBucket(xCol, plan.TimeBucket)
	chart.Title = chartTitle(yCol.Name, xCol.Name, gName, bucket)

	if plan.VisualizationKind == models.VizScatter {
		chart.Series = scatterSeries(view, xi, yi, gi, yCol.Name)
	} else {
		agg := aggregate(view, xi, yi, gi, xCol.Kind, bucket)
		chart.Series = agg.series(yCol.Name)
	}
	return models.Answer{Kind: models.AnswerChart, Chart: chart, Warnings: warnings}, nil
}

func (r Renderer) table(view *models.Dataset, plan models.Plan) models.Answer {
	var warnings []string
	if len(plan.TableFields) > 0 {
		idxs := make([]int, 0, len(plan.TableFields))
		var missing []string
		for _, f := range plan.TableFields {
			if _, i, ok := view.Resolve(f); ok {
				idxs = append(idxs, i)
			} else {
				missing = append(missing, f)
			}
		}
		if len(missing) == 0 {
			return r.limit(projectTable(view, idxs))
		}
		warnings = append(warnings, fmt.Sprintf("Columnas no encontradas: %s; se muestra la tabla completa.", strings.Join(missing, ", ")))
	} else if xCol, xi, ok := view.Resolve(plan.XField); ok {
		if yCol, yi, ok := view.Resolve(plan.YField); ok && yCol.Kind == models.KindNumeric {
			gi, gName := -1, ""
			if gCol, i, ok := view.Resolve(plan.GroupField); ok && i != xi {
				gi, gName = i, gCol.Name
			}
			agg := aggregate(view, xi, yi, gi, xCol.Kind, effectiveBucket(xCol, plan.TimeBucket))
			return r.limit(agg.table(xCol.Name, gName, yCol.Name))
		}
	}
	ans := r.limit(rawTable(view))
	ans.Warnings = append(warnings, ans.Warnings...)
	return ans
}

func (r Renderer) limit(ans models.Answer) models.Answer {
	t := ans.Table
	t.TotalRows = len(t.Rows)
	if r.RowLimit > 0 && len(t.Rows) > r.RowLimit {
		t.Rows = t.Rows[:r.RowLimit]
		t.Truncated = true
	}
	return ans
}

func rawTable(view *models.Dataset) models.Answer {
	idxs := make([]int, len(view.Columns))
	for i := range idxs {
		idxs[i] = i
	}
	return projectTable(view, idxs)
}

func projectTable(view *models.Dataset, idxs []int) models.Answer {
	t := &models.Table{Columns: make([]string, len(idxs)), Rows: make([][]string, 0, view.Len())}
	for i, j := range idxs {
		t.Columns[i] = view.Columns[j].Name
	}
	for _, r := range view.Rows {
		line := make([]string, len(idxs))
		for i, j := range idxs {
			line[i] = displayValue(r[j])
		}
		t.Rows = append(t.Rows, line)
	}
	return models.Answer{Kind: models.AnswerTable, Table: t}
}

func displayValue(v models.Value) string {
	if v.IsNum {
		return utils.FormatNumber(v.Num)
	}
	return v.String()
}

// effectiveBucket buckets date axes by day unless the plan says otherwise.
func effectiveBucket(x models.Column, b models.TimeBucket) models.TimeBucket {
	if x.Kind != models.KindDate {
		return models.BucketNone
	}
	if b == models.BucketNone || b == "" {
		return models.BucketDay
	}
	return b
}

var bucketNames = map[models.TimeBucket]string{
	models.BucketDay:   "día",
	models.BucketMonth: "mes",
	models.BucketYear:  "año",
}

func chartTitle(y, x, group string, bucket models.TimeBucket) string {
	title := y + " por " + x
	if name, ok := bucketNames[bucket]; ok && bucket != models.BucketDay {
		title += " (" + name + ")"
	}
	if group != "" {
		title += " y " + group
	}
	return title
}

// xKey is one position on the x axis with the value it sorts by.
type xKey struct {
	label string
	t     time.Time
	n     float64
}

func bucketStart(t time.Time, b models.TimeBucket) time.Time {
	switch b {
	case models.BucketYear:
		return time.Date(t.Year(), 1, 1, 0, 0, 0, 0, time.UTC)
	case models.BucketMonth:
		return utils.MonthStart(t)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func bucketLabel(t time.Time, b models.TimeBucket) string {
	switch b {
	case models.BucketYear:
		return t.Format("2006")
	case models.BucketMonth:
		return t.Format("2006-01")
	}
	return t.Format("2006-01-02")
}

func keyFor(v models.Value, kind models.Kind, b models.TimeBucket) (xKey, bool) {
	switch kind {
	case models.KindDate:
		if !v.IsTime {
			return xKey{}, false
		}
		s := bucketStart(v.Time, b)
		return xKey{label: bucketLabel(s, b), t: s}, true
	case models.KindNumeric:
		if !v.IsNum {
			return xKey{label: v.String()}, true
		}
		return xKey{label: v.String(), n: v.Num}, true
	}
	return xKey{label: v.String()}, true
}

type aggregation struct {
	kind   models.Kind
	xs     []xKey
	groups []string
	sums   map[string]map[string]float64 // group -> x label -> sum
}

// aggregate sums y per (x bucket, group) with x positions sorted ascending.
func aggregate(view *models.Dataset, xi, yi, gi int, xKind models.Kind, bucket models.TimeBucket) *aggregation {
	a := &aggregation{kind: xKind, sums: map[string]map[string]float64{}}
	seenX := map[string]bool{}
	for _, r := range view.Rows {
		y := r[yi]
		if !y.IsNum {
			continue
		}
		k, ok := keyFor(r[xi], xKind, bucket)
		if !ok {
			continue
		}
		g := ""
		if gi >= 0 {
			g = r[gi].String()
		}
		if a.sums[g] == nil {
			a.sums[g] = map[string]float64{}
			a.groups = append(a.groups, g)
		}
		a.sums[g][k.label] += y.Num
		if !seenX[k.label] {
			seenX[k.label] = true
			a.xs = append(a.xs, k)
		}
	}
	sort.SliceStable(a.xs, func(i, j int) bool {
		switch xKind {
		case models.KindDate:
			return a.xs[i].t.Before(a.xs[j].t)
		case models.KindNumeric:
			return a.xs[i].n < a.xs[j].n
		}
		return a.xs[i].label < a.xs[j].label
	})
	sort.Strings(a.groups)
	return a
}

func (a *aggregation) series(yName string) []models.Series {
	out := make([]models.Series, 0, len(a.groups))
	for _, g := range a.groups {
		name := g
		if name == "" && len(a.groups) == 1 {
			name = yName
		}
		s := models.Series{Name: name}
		for _, x := range a.xs {
			if v, ok := a.sums[g][x.label]; ok {
				s.Points = append(s.Points, models.Point{X: x.label, Y: utils.Round2(v)})
			}
		}
		out = append(out, s)
	}
	return out
}

func (a *aggregation) table(xName, gName, yName string) models.Answer {
	t := &models.Table{Columns: []string{xName}}
	if gName != "" {
		t.Columns = append(t.Columns, gName)
	}
	t.Columns = append(t.Columns, yName)
	for _, x := range a.xs {
		for _, g := range a.groups {
			v, ok := a.sums[g][x.label]
			if !ok {
				continue
			}
			line := []string{x.label}
			if gName != "" {
				line = append(line, g)
			}
			t.Rows = append(t.Rows, append(line, utils.FormatNumber(v)))
		}
	}
	return models.Answer{Kind: models.AnswerTable, Table: t}
}

func scatterSeries(view *models.Dataset, xi, yi, gi int, yName string) []models.Series {
	byGroup := map[string]*models.Series{}
	var order []string
	for _, r := range view.Rows {
		if !r[yi].IsNum {
			continue
		}
		g := ""
		if gi >= 0 {
			g = r[gi].String()
		}
		s, ok := byGroup[g]
		if !ok {
			name := g
			if gi < 0 {
				name = yName
			}
			s = &models.Series{Name: name}
			byGroup[g] = s
			order = append(order, g)
		}
		s.Points = append(s.Points, models.Point{X: r[xi].String(), Y: r[yi].Num})
	}
	sort.Strings(order)
	out := make([]models.Series, 0, len(order))
	for _, g := range order {
		out = append(out, *byGroup[g])
	}
	return out
}
