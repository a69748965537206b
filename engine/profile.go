package engine

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"fenix-advisor/backend/models"
	"fenix-advisor/backend/utils"
)

// maxTopValues bounds how many distinct text values are listed per column.
const maxTopValues = 10

// Profile summarizes every column of ds and renders the summary as the
// text block embedded in planner prompts.
func Profile(ds *models.Dataset) models.SchemaProfile {
	p := models.SchemaProfile{Rows: ds.Len(), Columns: make([]models.ColumnProfile, len(ds.Columns))}
	for j, col := range ds.Columns {
		cp := models.ColumnProfile{Name: col.Name, Kind: col.Kind}
		switch col.Kind {
		case models.KindDate:
			profileDates(ds, j, &cp)
		case models.KindNumeric:
			profileNumbers(ds, j, &cp)
		default:
			profileText(ds, j, &cp)
		}
		p.Columns[j] = cp
	}
	p.Text = renderProfile(p)
	return p
}

func profileDates(ds *models.Dataset, j int, cp *models.ColumnProfile) {
	var lo, hi time.Time
	for _, r := range ds.Rows {
		v := r[j]
		if !v.IsTime {
			continue
		}
		if !cp.HasDates || v.Time.Before(lo) {
			lo = v.Time
		}
		if !cp.HasDates || v.Time.After(hi) {
			hi = v.Time
		}
		cp.HasDates = true
	}
	if cp.HasDates {
		cp.MinDate = lo.Format("2006-01-02")
		cp.MaxDate = hi.Format("2006-01-02")
	}
}

func profileNumbers(ds *models.Dataset, j int, cp *models.ColumnProfile) {
	n := 0
	for _, r := range ds.Rows {
		v := r[j]
		if !v.IsNum {
			continue
		}
		if n == 0 || v.Num < cp.Min {
			cp.Min = v.Num
		}
		if n == 0 || v.Num > cp.Max {
			cp.Max = v.Num
		}
		cp.Sum += v.Num
		n++
	}
	if n > 0 {
		cp.Mean = utils.Round2(cp.Sum / float64(n))
	}
	cp.Sum = utils.Round2(cp.Sum)
	cp.Min = utils.Round2(cp.Min)
	cp.Max = utils.Round2(cp.Max)
}

func profileText(ds *models.Dataset, j int, cp *models.ColumnProfile) {
	counts := map[string]int{}
	for _, r := range ds.Rows {
		if s := r[j].String(); s != "" {
			counts[s]++
		}
	}
	cp.Cardinality = len(counts)
	if cp.Cardinality >= maxTopValues {
		return
	}
	for v, c := range counts {
		cp.TopValues = append(cp.TopValues, models.ValueCount{Value: v, Count: c})
	}
	sort.Slice(cp.TopValues, func(a, b int) bool {
		if cp.TopValues[a].Count != cp.TopValues[b].Count {
			return cp.TopValues[a].Count > cp.TopValues[b].Count
		}
		return cp.TopValues[a].Value < cp.TopValues[b].Value
	})
}

func renderProfile(p models.SchemaProfile) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Filas: %d\n", p.Rows)
	for _, c := range p.Columns {
		switch c.Kind {
		case models.KindDate:
			if c.HasDates {
				fmt.Fprintf(&b, "- %s (fecha): desde %s hasta %s\n", c.Name, c.MinDate, c.MaxDate)
			} else {
				fmt.Fprintf(&b, "- %s (fecha): sin fechas válidas\n", c.Name)
			}
		case models.KindNumeric:
			fmt.Fprintf(&b, "- %s (numérica): suma %.2f, media %.2f, mínimo %.2f, máximo %.2f\n",
				c.Name, c.Sum, c.Mean, c.Min, c.Max)
		default:
			if len(c.TopValues) == 0 {
				fmt.Fprintf(&b, "- %s (texto): %d valores distintos\n", c.Name, c.Cardinality)
				continue
			}
			parts := make([]string, len(c.TopValues))
			for i, tv := range c.TopValues {
				parts[i] = fmt.Sprintf("%s (%d)", tv.Value, tv.Count)
			}
			fmt.Fprintf(&b, "- %s (texto): valores: %s\n", c.Name, strings.Join(parts, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
