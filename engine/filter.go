package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"fenix-advisor/backend/models"
	"fenix-advisor/backend/utils"
)

var (
	yearPattern      = regexp.MustCompile(`^\d{4}$`)
	yearMonthPattern = regexp.MustCompile(`^(\d{4})-(\d{1,2})$`)
)

// FilterOptions tweaks ApplyFilters for callers that need the full history.
type FilterOptions struct {
	// SkipDateFilters ignores date-valued constraints (projections use every month).
	SkipDateFilters bool
	// SkipPrimaryText ignores a non-date primary filter; share-of-total
	// uses it as the category and needs the grand total around it.
	SkipPrimaryText bool
}

// ApplyFilters narrows ds by the plan's primary filter, then its date
// range, then every extra filter. Filters that cannot be applied are
// skipped with a warning. Applying the same plan twice changes nothing.
func ApplyFilters(ds *models.Dataset, plan models.Plan, opts FilterOptions) (*models.Dataset, []string) {
	var warnings []string
	rows := ds.Rows

	if pf := plan.PrimaryFilter; strings.TrimSpace(pf.Field) != "" && strings.TrimSpace(pf.Value) != "" {
		col, idx, ok := ds.Resolve(pf.Field)
		switch {
		case !ok:
			warnings = append(warnings, fmt.Sprintf("Se omitió el filtro: la columna '%s' no existe.", pf.Field))
		case col.Kind == models.KindDate:
			if opts.SkipDateFilters {
				break
			}
			match, ok := dateMatcher(pf.Value)
			if !ok {
				warnings = append(warnings, fmt.Sprintf("Se omitió el filtro de fecha '%s': no es un año ni un mes reconocible.", pf.Value))
				break
			}
			rows = keep(rows, func(r []models.Value) bool { return r[idx].IsTime && match(r[idx].Time) })
		case opts.SkipPrimaryText:
		default:
			want := utils.Fold(strings.TrimSpace(pf.Value))
			rows = keep(rows, func(r []models.Value) bool { return equalValue(r[idx], want) })
		}
	}

	if !opts.SkipDateFilters {
		var w []string
		rows, w = applyDateRange(ds, rows, plan.DateRange)
		warnings = append(warnings, w...)
	}

	for _, f := range plan.ExtraFilters {
		if strings.TrimSpace(f.Field) == "" || strings.TrimSpace(f.Value) == "" {
			continue
		}
		col, idx, ok := ds.Resolve(f.Field)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("Se omitió el filtro: la columna '%s' no existe.", f.Field))
			continue
		}
		if opts.SkipDateFilters && col.Kind == models.KindDate {
			continue
		}
		needle := utils.Fold(strings.TrimSpace(f.Value))
		rows = keep(rows, func(r []models.Value) bool {
			return strings.Contains(utils.Fold(r[idx].String()), needle)
		})
	}
	return ds.WithRows(rows), warnings
}

func applyDateRange(ds *models.Dataset, rows [][]models.Value, dr models.DateRange) ([][]models.Value, []string) {
	var warnings []string
	if strings.TrimSpace(dr.Start) == "" && strings.TrimSpace(dr.End) == "" {
		return rows, nil
	}
	idx := ds.Index(ds.DateColumn)
	if idx < 0 {
		return rows, []string{"Se omitió el rango de fechas: no hay columna de fecha."}
	}
	var start, end time.Time
	hasStart, hasEnd := false, false
	if s := strings.TrimSpace(dr.Start); s != "" {
		if start, hasStart = utils.ParseDate(s); !hasStart {
			warnings = append(warnings, fmt.Sprintf("Se omitió el inicio del rango: '%s' no es una fecha.", s))
		}
	}
	if e := strings.TrimSpace(dr.End); e != "" {
		if end, hasEnd = utils.ParseDate(e); !hasEnd {
			warnings = append(warnings, fmt.Sprintf("Se omitió el fin del rango: '%s' no es una fecha.", e))
		}
	}
	if !hasStart && !hasEnd {
		return rows, warnings
	}
	return keep(rows, func(r []models.Value) bool {
		v := r[idx]
		if !v.IsTime {
			return false
		}
		if hasStart && v.Time.Before(start) {
			return false
		}
		if hasEnd && v.Time.After(end) {
			return false
		}
		return true
	}), warnings
}

// dateMatcher understands "2024", "marzo", "marzo 2024" and "2024-03".
func dateMatcher(value string) (func(time.Time) bool, bool) {
	v := strings.TrimSpace(value)
	if yearPattern.MatchString(v) {
		y, _ := strconv.Atoi(v)
		return func(t time.Time) bool { return t.Year() == y }, true
	}
	if m := yearMonthPattern.FindStringSubmatch(v); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		if mo >= 1 && mo <= 12 {
			return func(t time.Time) bool { return t.Year() == y && int(t.Month()) == mo }, true
		}
	}
	if mo, ok := utils.MonthNumber(v); ok {
		return func(t time.Time) bool { return t.Month() == mo }, true
	}
	if parts := strings.Fields(strings.ReplaceAll(v, " de ", " ")); len(parts) == 2 && yearPattern.MatchString(parts[1]) {
		if mo, ok := utils.MonthNumber(parts[0]); ok {
			y, _ := strconv.Atoi(parts[1])
			return func(t time.Time) bool { return t.Year() == y && t.Month() == mo }, true
		}
	}
	return nil, false
}

// equalValue compares case- and accent-insensitively, numerically for numbers.
func equalValue(v models.Value, folded string) bool {
	if utils.Fold(strings.TrimSpace(v.Raw)) == folded || utils.Fold(v.String()) == folded {
		return true
	}
	if v.IsNum {
		if f, ok := utils.ParseAmountFloat(folded, utils.DecimalAuto); ok {
			return f == v.Num
		}
	}
	return false
}

func keep(rows [][]models.Value, pred func([]models.Value) bool) [][]models.Value {
	out := make([][]models.Value, 0, len(rows))
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}
