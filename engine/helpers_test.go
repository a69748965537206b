package engine

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"fenix-advisor/backend/datasource"
	"fenix-advisor/backend/models"
	"fenix-advisor/backend/oracle"
	"fenix-advisor/backend/utils"
)

var testLayout = datasource.Layout{
	DateColumn:   "Fecha",
	AmountColumn: "Monto",
	EntityColumn: "Cliente",
	StatusColumn: "Estado",
	Decimal:      utils.DecimalAuto,
}

// fakeOracle returns canned plan JSON and free text, recording prompts.
type fakeOracle struct {
	mu          sync.Mutex
	plan        string
	planErr     error
	text        string
	textErr     error
	planPrompts []string
	textPrompts []string
	schema      *oracle.Schema
}

func (f *fakeOracle) Complete(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textPrompts = append(f.textPrompts, prompt)
	return f.text, f.textErr
}

func (f *fakeOracle) CompleteJSON(_ context.Context, prompt string, schema *oracle.Schema) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.planPrompts = append(f.planPrompts, prompt)
	f.schema = schema
	return f.plan, f.planErr
}

type gridSource struct {
	key  string
	grid [][]string
}

func (g gridSource) Key() string { return g.key }

func (g gridSource) ReadGrid(context.Context) ([][]string, error) { return g.grid, nil }

// ledgerGrid totals 4300: Acme 2800, Beta 1300, Gamma 200.
var ledgerGrid = [][]string{
	{"Fecha", "Monto", "Cliente", "Estado"},
	{"2024-01-15", "1000", "Acme", "Pagado"},
	{"2024-01-20", "500", "Beta", "Pendiente"},
	{"2024-02-10", "1500", "Acme", "Pagado"},
	{"2024-03-05", "200", "Gamma", "Pagado"},
	{"2024-03-18", "800", "Beta", "Pagado"},
	{"2023-12-01", "300", "Acme", "Pendiente"},
}

func buildLedger(t *testing.T, grid [][]string) *models.Dataset {
	t.Helper()
	ds, _, err := datasource.BuildDataset(grid, testLayout)
	require.NoError(t, err)
	return ds
}

func basePlan() models.Plan {
	return models.Plan{
		VisualizationKind: models.VizNone,
		ExtraFilters:      []models.FieldValue{},
		TimeBucket:        models.BucketNone,
		TableFields:       []string{},
		CalculationKind:   models.CalcNone,
	}
}

func planJSON(t *testing.T, p models.Plan) string {
	t.Helper()
	b, err := json.Marshal(p)
	require.NoError(t, err)
	return string(b)
}
