package engine

import (
	"math"
	"time"

	"fenix-advisor/backend/models"
	"fenix-advisor/backend/utils"
)

const (
	seasonPeriod = 12
	// minSeasonalMonths is two full seasons; shorter histories use the simple average.
	minSeasonalMonths = 2 * seasonPeriod

	MethodSeasonal = "seasonal"
	MethodAverage  = "average"

	ProjectionDisclaimer = "Proyección estimada a partir del historial; no garantiza resultados futuros."
)

type AnchorMode string

const (
	AnchorNow          AnchorMode = "now"
	AnchorLastObserved AnchorMode = "last-observed"
)

func ParseAnchor(s string) AnchorMode {
	if AnchorMode(s) == AnchorLastObserved {
		return AnchorLastObserved
	}
	return AnchorNow
}

type MonthProjection struct {
	Month  time.Time
	Amount float64
}

type Projection struct {
	Method          string
	TargetYear      int
	MonthsRemaining int
	Months          []MonthProjection
	Total           float64
	// Diagnostic explains a fallback from the seasonal method.
	Diagnostic string
}

// Projector forecasts the remaining months of a year from monthly history.
type Projector struct {
	Now    func() time.Time
	Anchor AnchorMode
}

// Project resamples amounts by month over the dataset's full history and
// projects every month of targetYear after the anchor month.
func (p Projector) Project(ds *models.Dataset, targetYear int) (Projection, error) {
	months, values := monthlySeries(ds)
	if len(months) == 0 {
		return Projection{}, ErrNoSeasonalHistory
	}
	proj := Projection{TargetYear: targetYear}
	remaining := p.remainingMonths(targetYear, months, values)
	proj.MonthsRemaining = len(remaining)

	var perMonth func(m time.Month) float64
	if len(values) >= minSeasonalMonths {
		fit, err := decompose(months, values)
		if err == nil {
			proj.Method = MethodSeasonal
			perMonth = func(m time.Month) float64 { return math.Max(0, fit.level+fit.seasonal[m]) }
		} else {
			proj.Diagnostic = "No se pudo descomponer la serie mensual; se usó el promedio mensual simple."
		}
	}
	if perMonth == nil {
		proj.Method = MethodAverage
		avg := mean(values)
		perMonth = func(time.Month) float64 { return avg }
	}

	for _, m := range remaining {
		amt := utils.Round2(perMonth(m.Month()))
		proj.Months = append(proj.Months, MonthProjection{Month: m, Amount: amt})
		proj.Total += amt
	}
	proj.Total = utils.Round2(proj.Total)
	return proj, nil
}

// remainingMonths lists the month starts of targetYear strictly after the anchor.
func (p Projector) remainingMonths(targetYear int, months []time.Time, values []float64) []time.Time {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	anchor := 0 // last consumed month number within targetYear
	switch p.Anchor {
	case AnchorLastObserved:
		for i, m := range months {
			if m.Year() == targetYear && values[i] != 0 {
				anchor = int(m.Month())
			}
		}
	default:
		t := now()
		switch {
		case targetYear < t.Year():
			anchor = 12
		case targetYear == t.Year():
			anchor = int(t.Month())
		}
	}
	var out []time.Time
	for m := anchor + 1; m <= 12; m++ {
		out = append(out, time.Date(targetYear, time.Month(m), 1, 0, 0, 0, 0, time.UTC))
	}
	return out
}

// monthlySeries sums the amount column per calendar month, filling gaps with zero.
func monthlySeries(ds *models.Dataset) ([]time.Time, []float64) {
	di, ai := ds.Index(ds.DateColumn), ds.Index(ds.AmountColumn)
	if di < 0 || ai < 0 {
		return nil, nil
	}
	sums := map[time.Time]float64{}
	var first, last time.Time
	for _, r := range ds.Rows {
		if !r[di].IsTime || !r[ai].IsNum {
			continue
		}
		m := utils.MonthStart(r[di].Time)
		if len(sums) == 0 || m.Before(first) {
			first = m
		}
		if len(sums) == 0 || m.After(last) {
			last = m
		}
		sums[m] += r[ai].Num
	}
	if len(sums) == 0 {
		return nil, nil
	}
	var months []time.Time
	var values []float64
	for m := first; !m.After(last); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
		values = append(values, sums[m])
	}
	return months, values
}

type seasonalFit struct {
	level    float64
	seasonal map[time.Month]float64
}

// decompose runs a classical additive decomposition with period 12: a 2x12
// centered moving average for trend, and centered mean detrended values per
// calendar month for the seasonal component.
func decompose(months []time.Time, values []float64) (seasonalFit, error) {
	n := len(values)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return seasonalFit{}, ErrDegenerateSeries
		}
	}
	if variance(values) == 0 {
		return seasonalFit{}, ErrDegenerateSeries
	}

	half := seasonPeriod / 2
	trend := make([]float64, n)
	defined := make([]bool, n)
	for i := half; i < n-half; i++ {
		s := 0.5*values[i-half] + 0.5*values[i+half]
		for k := i - half + 1; k < i+half; k++ {
			s += values[k]
		}
		trend[i] = s / seasonPeriod
		defined[i] = true
	}

	var sum [seasonPeriod]float64
	var cnt [seasonPeriod]int
	lastTrend, haveTrend := 0.0, false
	for i := 0; i < n; i++ {
		if !defined[i] {
			continue
		}
		pos := int(months[i].Month()) - 1
		sum[pos] += values[i] - trend[i]
		cnt[pos]++
		lastTrend, haveTrend = trend[i], true
	}
	if !haveTrend {
		return seasonalFit{}, ErrDegenerateSeries
	}

	var idx [seasonPeriod]float64
	total := 0.0
	for pos := 0; pos < seasonPeriod; pos++ {
		if cnt[pos] > 0 {
			idx[pos] = sum[pos] / float64(cnt[pos])
		}
		total += idx[pos]
	}
	center := total / seasonPeriod
	fit := seasonalFit{level: lastTrend, seasonal: make(map[time.Month]float64, seasonPeriod)}
	for pos := 0; pos < seasonPeriod; pos++ {
		v := idx[pos] - center
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return seasonalFit{}, ErrDegenerateSeries
		}
		fit.seasonal[time.Month(pos+1)] = v
	}
	return fit, nil
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := 0.0
	for _, v := range values {
		s += v
	}
	return s / float64(len(values))
}

func variance(values []float64) float64 {
	m := mean(values)
	s := 0.0
	for _, v := range values {
		s += (v - m) * (v - m)
	}
	return s / float64(len(values))
}
