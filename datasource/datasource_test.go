package datasource

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"fenix-advisor/backend/models"
	"fenix-advisor/backend/utils"
)

var testLayout = Layout{
	DateColumn:   "Fecha",
	AmountColumn: "Monto",
	EntityColumn: "Cliente",
	StatusColumn: "Estado",
	Decimal:      utils.DecimalAuto,
}

type gridSource struct {
	key   string
	grid  [][]string
	err   error
	reads int32
}

func (g *gridSource) Key() string { return g.key }

func (g *gridSource) ReadGrid(ctx context.Context) ([][]string, error) {
	atomic.AddInt32(&g.reads, 1)
	return g.grid, g.err
}

func TestBuildDatasetCleansRows(t *testing.T) {
	grid := [][]string{
		{" Fecha ", "Monto", "Cliente", "Estado", "Nota"},
		{"05/03/2024", "$1.234,50", "Acme", "Pagado", "x"},
		{"2024-04-01", "800", "Beta", "Pendiente"},
		{"", "", "", "", ""},
		{"sin fecha", "100", "Acme", "Pagado", "y"},
		{"2024-04-02", "n/a", "Acme", "Pagado", "z"},
	}
	ds, report, err := BuildDataset(grid, testLayout)
	require.NoError(t, err)

	assert.Equal(t, LoadReport{RowsRead: 5, DroppedBlank: 1, DroppedDate: 1, DroppedAmount: 1, RowsKept: 2}, report)
	assert.Equal(t, []string{"Fecha", "Monto", "Cliente", "Estado", "Nota"}, ds.ColumnNames())
	assert.Equal(t, "Fecha", ds.DateColumn)
	assert.Equal(t, "Cliente", ds.EntityColumn)
	assert.Equal(t, models.KindText, ds.Columns[2].Kind)
	assert.Equal(t, 1234.5, ds.Rows[0][1].Num)
	assert.Equal(t, time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC), ds.Rows[0][0].Time)
	assert.Equal(t, "", ds.Rows[1][4].Raw, "short rows are padded")
}

func TestBuildDatasetSchemaMismatch(t *testing.T) {
	_, _, err := BuildDataset([][]string{{"Date", "Cliente"}}, testLayout)
	var sm *SchemaMismatchError
	require.ErrorAs(t, err, &sm)
	assert.Equal(t, []string{"Fecha", "Monto"}, sm.Missing)

	_, _, err = BuildDataset(nil, testLayout)
	assert.ErrorAs(t, err, &sm)
}

func TestInferKinds(t *testing.T) {
	grid := [][]string{
		{"Fecha", "Monto", "Vence", "Cantidad", "Factura"},
		{"2024-01-10", "10", "2024-02-10", "3", "F-001"},
		{"2024-01-11", "20", "", "4", "F-002"},
	}
	ds, _, err := BuildDataset(grid, testLayout)
	require.NoError(t, err)
	assert.Equal(t, models.KindDate, ds.Columns[2].Kind)
	assert.Equal(t, models.KindNumeric, ds.Columns[3].Kind)
	assert.Equal(t, models.KindText, ds.Columns[4].Kind)
}

func TestFileCSVAndWorkbook(t *testing.T) {
	f, err := NewFile("ledger.csv", []byte("Fecha;Monto;Cliente\n05/03/2024;1.234,50;Acme\n"), "")
	require.NoError(t, err)
	grid, err := f.ReadGrid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Fecha", "Monto", "Cliente"}, {"05/03/2024", "1.234,50", "Acme"}}, grid)

	_, err = NewFile("ledger.pdf", nil, "")
	assert.ErrorIs(t, err, ErrUnsupportedFile)

	wb := excelize.NewFile()
	_, err = wb.NewSheet("2024")
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow("2024", "A1", &[]interface{}{"Fecha", "Monto"}))
	require.NoError(t, wb.SetSheetRow("2024", "A2", &[]interface{}{"2024-03-05", 99.5}))
	var buf bytes.Buffer
	require.NoError(t, wb.Write(&buf))

	x, err := NewFile("libro.xlsx", buf.Bytes(), "2024")
	require.NoError(t, err)
	sheets, err := x.Sheets()
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "2024"}, sheets)

	grid, err = x.ReadGrid(context.Background())
	require.NoError(t, err)
	require.Len(t, grid, 2)
	assert.Equal(t, "99.5", grid[1][1])

	missing, err := NewFile("libro.xlsx", buf.Bytes(), "2023")
	require.NoError(t, err)
	_, err = missing.ReadGrid(context.Background())
	var su *SourceUnavailableError
	assert.ErrorAs(t, err, &su)
}

func TestGoogleSheetReadsUnformattedValues(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.Contains(r.URL.Path, "/v4/spreadsheets/sheet-1/values/"))
		assert.Equal(t, "UNFORMATTED_VALUE", r.URL.Query().Get("valueRenderOption"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"range":"A1:C3","majorDimension":"ROWS","values":[["Fecha","Monto","Cliente"],[45356,1500000,"Acme"]]}`))
	}))
	defer srv.Close()

	src, err := NewGoogleSheet(context.Background(), "sheet-1", "A:C",
		option.WithEndpoint(srv.URL+"/"), option.WithoutAuthentication(), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	grid, err := src.ReadGrid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Fecha", "Monto", "Cliente"}, {"45356", "1500000", "Acme"}}, grid)

	ds, _, err := BuildDataset(grid, testLayout)
	require.NoError(t, err)
	assert.Equal(t, time.March, ds.Rows[0][0].Time.Month())
}

func TestCacheLoadsOnceAndInvalidates(t *testing.T) {
	src := &gridSource{key: "mem", grid: [][]string{{"Fecha", "Monto"}, {"2024-01-01", "10"}}}
	profiled := 0
	c := NewCache(4, time.Minute, testLayout, func(ds *models.Dataset) models.SchemaProfile {
		profiled++
		return models.SchemaProfile{Rows: ds.Len()}
	}, zap.NewNop())

	s1, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	s2, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.EqualValues(t, 1, src.reads)
	assert.Equal(t, 1, s1.Profile.Rows)

	c.Invalidate(src)
	_, err = c.Get(context.Background(), src)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.reads)
	assert.Equal(t, 2, profiled)
}

func TestCacheExpires(t *testing.T) {
	src := &gridSource{key: "mem", grid: [][]string{{"Fecha", "Monto"}, {"2024-01-01", "10"}}}
	c := NewCache(4, 20*time.Millisecond, testLayout, nil, zap.NewNop())
	_, err := c.Get(context.Background(), src)
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)
	_, err = c.Get(context.Background(), src)
	require.NoError(t, err)
	assert.EqualValues(t, 2, src.reads)
}

func TestCacheSourceErrors(t *testing.T) {
	c := NewCache(4, time.Minute, testLayout, nil, zap.NewNop())
	_, err := c.Get(context.Background(), nil)
	var su *SourceUnavailableError
	require.ErrorAs(t, err, &su)

	_, err = c.Get(context.Background(), &gridSource{key: "down", err: errors.New("timeout")})
	require.ErrorAs(t, err, &su)
	assert.Equal(t, "down", su.Source)
}
