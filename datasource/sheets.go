package datasource

import (
	"context"
	"fmt"
	"strconv"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// GoogleSheet reads a range of a Google Sheets spreadsheet.
type GoogleSheet struct {
	svc           *sheets.Service
	spreadsheetID string
	readRange     string
}

func NewGoogleSheet(ctx context.Context, spreadsheetID, readRange string, opts ...option.ClientOption) (*GoogleSheet, error) {
	opts = append([]option.ClientOption{option.WithScopes(sheets.SpreadsheetsReadonlyScope)}, opts...)
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GoogleSheet{svc: svc, spreadsheetID: spreadsheetID, readRange: readRange}, nil
}

func (g *GoogleSheet) Key() string {
	return "sheets:" + g.spreadsheetID + ":" + g.readRange
}

func (g *GoogleSheet) ReadGrid(ctx context.Context) ([][]string, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.spreadsheetID, g.readRange).
		ValueRenderOption("UNFORMATTED_VALUE").
		DateTimeRenderOption("SERIAL_NUMBER").
		Context(ctx).
		Do()
	if err != nil {
		return nil, &SourceUnavailableError{Source: g.Key(), Err: err}
	}
	rows := make([][]string, 0, len(resp.Values))
	for _, r := range resp.Values {
		line := make([]string, len(r))
		for i, cell := range r {
			line[i] = cellText(cell)
		}
		rows = append(rows, line)
	}
	return rows, nil
}

func cellText(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}
