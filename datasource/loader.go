package datasource

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"fenix-advisor/backend/models"
	"fenix-advisor/backend/utils"
)

var errNoSource = errors.New("no ledger loaded")

// Layout names the designated ledger columns and how amounts are written.
type Layout struct {
	DateColumn   string
	AmountColumn string
	EntityColumn string
	StatusColumn string
	Decimal      utils.DecimalConvention
}

// LoadReport counts what the cleaning pass did.
type LoadReport struct {
	RowsRead      int `json:"rows_read"`
	DroppedBlank  int `json:"dropped_blank"`
	DroppedDate   int `json:"dropped_invalid_date"`
	DroppedAmount int `json:"dropped_invalid_amount"`
	RowsKept      int `json:"rows_kept"`
}

func Load(ctx context.Context, src Source, layout Layout) (*models.Dataset, LoadReport, error) {
	if src == nil {
		return nil, LoadReport{}, &SourceUnavailableError{Err: errNoSource}
	}
	grid, err := src.ReadGrid(ctx)
	if err != nil {
		var su *SourceUnavailableError
		if errors.As(err, &su) {
			return nil, LoadReport{}, err
		}
		return nil, LoadReport{}, &SourceUnavailableError{Source: src.Key(), Err: err}
	}
	return BuildDataset(grid, layout)
}

// BuildDataset validates the header, drops rows without a valid date or
// amount, and infers the kind of every other column.
func BuildDataset(grid [][]string, layout Layout) (*models.Dataset, LoadReport, error) {
	var report LoadReport
	if len(grid) == 0 {
		return nil, report, &SchemaMismatchError{Missing: []string{layout.DateColumn, layout.AmountColumn}}
	}
	headers := normalizeHeaders(grid[0])
	dateIdx := findColumn(headers, layout.DateColumn)
	amountIdx := findColumn(headers, layout.AmountColumn)
	var missing []string
	if dateIdx < 0 {
		missing = append(missing, layout.DateColumn)
	}
	if amountIdx < 0 {
		missing = append(missing, layout.AmountColumn)
	}
	if len(missing) > 0 {
		return nil, report, &SchemaMismatchError{Missing: missing, Found: headers}
	}

	records := buildRecords(grid[1:], len(headers))
	report.RowsRead = len(records)
	records = dropBlankRows(records)
	report.DroppedBlank = report.RowsRead - len(records)

	kept := make([][]string, 0, len(records))
	dates := make([]models.Value, 0, len(records))
	amounts := make([]models.Value, 0, len(records))
	for _, r := range records {
		d, ok := utils.ParseDateCell(r[dateIdx])
		if !ok {
			report.DroppedDate++
			continue
		}
		a, ok := utils.ParseAmountFloat(r[amountIdx], layout.Decimal)
		if !ok {
			report.DroppedAmount++
			continue
		}
		kept = append(kept, r)
		dates = append(dates, models.Date(r[dateIdx], d))
		amounts = append(amounts, models.Number(r[amountIdx], a))
	}
	report.RowsKept = len(kept)

	cols := make([]models.Column, len(headers))
	for j, h := range headers {
		switch j {
		case dateIdx:
			cols[j] = models.Column{Name: h, Kind: models.KindDate}
		case amountIdx:
			cols[j] = models.Column{Name: h, Kind: models.KindNumeric}
		default:
			cols[j] = models.Column{Name: h, Kind: inferKind(kept, j, layout.Decimal)}
		}
	}

	rows := make([][]models.Value, len(kept))
	for i, r := range kept {
		row := make([]models.Value, len(headers))
		for j := range headers {
			switch {
			case j == dateIdx:
				row[j] = dates[i]
			case j == amountIdx:
				row[j] = amounts[i]
			default:
				row[j] = coerce(r[j], cols[j].Kind, layout.Decimal)
			}
		}
		rows[i] = row
	}

	ds := models.NewDataset(cols, rows)
	ds.DateColumn = headers[dateIdx]
	ds.AmountColumn = headers[amountIdx]
	if i := findColumn(headers, layout.EntityColumn); i >= 0 {
		ds.EntityColumn = headers[i]
	}
	if i := findColumn(headers, layout.StatusColumn); i >= 0 {
		ds.StatusColumn = headers[i]
	}
	return ds, report, nil
}

// inferKind picks date, then numeric, then text. A column qualifies only
// if every non-empty cell parses.
func inferKind(rows [][]string, j int, conv utils.DecimalConvention) models.Kind {
	seen, dates, nums := 0, 0, 0
	for _, r := range rows {
		v := r[j]
		if v == "" {
			continue
		}
		seen++
		if _, ok := utils.ParseDate(v); ok {
			dates++
		}
		if _, ok := utils.ParseAmountFloat(v, conv); ok {
			nums++
		}
	}
	switch {
	case seen == 0:
		return models.KindText
	case dates == seen:
		return models.KindDate
	case nums == seen:
		return models.KindNumeric
	}
	return models.KindText
}

func coerce(raw string, kind models.Kind, conv utils.DecimalConvention) models.Value {
	switch kind {
	case models.KindDate:
		if d, ok := utils.ParseDate(raw); ok {
			return models.Date(raw, d)
		}
	case models.KindNumeric:
		if f, ok := utils.ParseAmountFloat(raw, conv); ok {
			return models.Number(raw, f)
		}
	}
	return models.Text(raw)
}

func normalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := map[string]int{}
	for i, v := range raw {
		t := strings.TrimSpace(strings.TrimPrefix(v, "\ufeff"))
		if t == "" {
			t = "Col" + strconv.Itoa(i)
		}
		if n := seen[t]; n > 0 {
			seen[t] = n + 1
			t = t + "_" + strconv.Itoa(n+1)
		} else {
			seen[t] = 1
		}
		headers[i] = t
	}
	return headers
}

func findColumn(headers []string, target string) int {
	t := strings.TrimSpace(target)
	if t == "" {
		return -1
	}
	for i, h := range headers {
		if h == t {
			return i
		}
	}
	for i, h := range headers {
		if utils.Fold(h) == utils.Fold(t) {
			return i
		}
	}
	return -1
}

func buildRecords(rows [][]string, width int) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		rec := make([]string, width)
		for j := 0; j < width && j < len(r); j++ {
			rec[j] = strings.TrimSpace(r[j])
		}
		out = append(out, rec)
	}
	return out
}

func dropBlankRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		for _, v := range r {
			if v != "" {
				out = append(out, r)
				break
			}
		}
	}
	return out
}
