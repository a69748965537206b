package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenix-advisor/backend/models"
)

func amounts(ds *models.Dataset) []float64 {
	i := ds.Index(ds.AmountColumn)
	out := make([]float64, 0, ds.Len())
	for _, r := range ds.Rows {
		out = append(out, r[i].Num)
	}
	return out
}

func TestPrimaryFilterOnDates(t *testing.T) {
	ds := buildLedger(t, ledgerGrid)

	p := basePlan()
	p.PrimaryFilter = models.FieldValue{Field: "Fecha", Value: "2024"}
	view, w := ApplyFilters(ds, p, FilterOptions{})
	assert.Empty(t, w)
	assert.Equal(t, 5, view.Len())

	p.PrimaryFilter.Value = "Marzo"
	view, _ = ApplyFilters(ds, p, FilterOptions{})
	assert.Equal(t, []float64{200, 800}, amounts(view))

	p.PrimaryFilter.Value = "enero 2024"
	view, _ = ApplyFilters(ds, p, FilterOptions{})
	assert.Equal(t, []float64{1000, 500}, amounts(view))

	p.PrimaryFilter.Value = "Q1"
	view, w = ApplyFilters(ds, p, FilterOptions{})
	assert.Equal(t, 6, view.Len())
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "Q1")
}

func TestPrimaryFilterOnText(t *testing.T) {
	ds := buildLedger(t, ledgerGrid)
	p := basePlan()
	p.PrimaryFilter = models.FieldValue{Field: "cliente", Value: "ACME"}
	view, _ := ApplyFilters(ds, p, FilterOptions{})
	assert.Equal(t, []float64{1000, 1500, 300}, amounts(view))

	p.PrimaryFilter = models.FieldValue{Field: "Region", Value: "Norte"}
	view, w := ApplyFilters(ds, p, FilterOptions{})
	assert.Equal(t, 6, view.Len())
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "Region")
}

func TestDateRangeIsInclusive(t *testing.T) {
	ds := buildLedger(t, ledgerGrid)
	p := basePlan()
	p.DateRange = models.DateRange{Start: "2024-01-20", End: "2024-03-05"}
	view, w := ApplyFilters(ds, p, FilterOptions{})
	assert.Empty(t, w)
	assert.Equal(t, []float64{500, 1500, 200}, amounts(view))

	p.DateRange = models.DateRange{Start: "ayer", End: "2024-01-31"}
	view, w = ApplyFilters(ds, p, FilterOptions{})
	require.Len(t, w, 1)
	assert.Equal(t, []float64{1000, 500, 300}, amounts(view))
}

func TestFiltersAreConjunctiveAndIdempotent(t *testing.T) {
	ds := buildLedger(t, ledgerGrid)
	p := basePlan()
	p.PrimaryFilter = models.FieldValue{Field: "Cliente", Value: "Acme"}
	p.ExtraFilters = []models.FieldValue{{Field: "Estado", Value: "pend"}}

	once, _ := ApplyFilters(ds, p, FilterOptions{})
	assert.Equal(t, []float64{300}, amounts(once))

	twice, _ := ApplyFilters(once, p, FilterOptions{})
	assert.Equal(t, once.Rows, twice.Rows)

	p.ExtraFilters = append(p.ExtraFilters, models.FieldValue{Field: "Sucursal", Value: "x"})
	_, w := ApplyFilters(ds, p, FilterOptions{})
	require.Len(t, w, 1)
	assert.Contains(t, w[0], "Sucursal")
}

func TestSkipDateFiltersKeepsHistory(t *testing.T) {
	ds := buildLedger(t, ledgerGrid)
	p := basePlan()
	p.PrimaryFilter = models.FieldValue{Field: "Fecha", Value: "2024"}
	p.DateRange = models.DateRange{Start: "2024-03-01"}
	p.ExtraFilters = []models.FieldValue{{Field: "Cliente", Value: "acme"}}
	view, _ := ApplyFilters(ds, p, FilterOptions{SkipDateFilters: true})
	assert.Equal(t, []float64{1000, 1500, 300}, amounts(view))
}

func TestFilteringDoesNotMutateDataset(t *testing.T) {
	ds := buildLedger(t, ledgerGrid)
	p := basePlan()
	p.PrimaryFilter = models.FieldValue{Field: "Cliente", Value: "Beta"}
	_, _ = ApplyFilters(ds, p, FilterOptions{})
	assert.Equal(t, 6, ds.Len())
}

func refs(ds *models.Dataset) []string {
	i := ds.Index("Ref")
	out := make([]string, 0, ds.Len())
	for _, r := range ds.Rows {
		out = append(out, r[i].String())
	}
	return out
}

func TestPrimaryRangeAndExtraIntersect(t *testing.T) {
	ds := buildLedger(t, [][]string{
		{"Fecha", "Monto", "Cliente", "Estado", "Ref"},
		{"2024-01-10", "100", "Acme", "Pagado", "R01"},
		{"2024-02-05", "200", "Acme", "Pagado", "R02"},
		{"2024-03-12", "300", "Acme", "Pendiente", "R03"},
		{"2024-04-20", "400", "Beta", "Pagado", "R04"},
		{"2024-05-02", "500", "Acme", "Pagado parcial", "R05"},
		{"2024-06-30", "600", "Acme", "Pagado", "R06"},
		{"2024-07-01", "700", "Acme", "Pagado", "R07"},
		{"2024-03-03", "800", "Beta", "Pendiente", "R08"},
	})
	primary := models.FieldValue{Field: "Cliente", Value: "Acme"}
	dates := models.DateRange{Start: "2024-02-01", End: "2024-06-30"}
	extra := []models.FieldValue{{Field: "Estado", Value: "pag"}}

	only := func(mut func(*models.Plan)) map[string]bool {
		p := basePlan()
		mut(&p)
		view, w := ApplyFilters(ds, p, FilterOptions{})
		require.Empty(t, w)
		set := map[string]bool{}
		for _, ref := range refs(view) {
			set[ref] = true
		}
		return set
	}
	byPrimary := only(func(p *models.Plan) { p.PrimaryFilter = primary })
	byRange := only(func(p *models.Plan) { p.DateRange = dates })
	byExtra := only(func(p *models.Plan) { p.ExtraFilters = extra })

	var want []string
	for _, ref := range refs(ds) {
		if byPrimary[ref] && byRange[ref] && byExtra[ref] {
			want = append(want, ref)
		}
	}
	require.Equal(t, []string{"R02", "R05", "R06"}, want)

	p := basePlan()
	p.PrimaryFilter = primary
	p.DateRange = dates
	p.ExtraFilters = extra
	view, w := ApplyFilters(ds, p, FilterOptions{})
	assert.Empty(t, w)
	assert.Equal(t, want, refs(view))
	assert.Equal(t, []float64{200, 500, 600}, amounts(view))
}
