package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"fenix-advisor/backend/models"
	"fenix-advisor/backend/oracle"
	"fenix-advisor/backend/utils"
)

// calcGuide documents each calculation and its placeholders for the planner prompt.
var calcGuide = map[models.CalculationKind]string{
	models.CalcNone:             "sin cálculo; response_template se muestra tal cual",
	models.CalcTotal:            "suma del monto de las filas filtradas; {total}, {count}",
	models.CalcMaxByGroup:       "grupo con la mayor suma (group_field, si no x_field); {max_group}, {max_value}",
	models.CalcMinByTimeBucket:  "periodo con la menor suma según time_bucket (month por defecto); {min_month}, {min_value}",
	models.CalcSumOverPeriod:    "suma del año calculation_args.year y, si month > 0, de ese mes; {total}, {year}, {month}, {period}",
	models.CalcProjectRemaining: "proyección de los meses restantes de calculation_args.target_year; {projection}, {months_remaining}, {target_year}",
	models.CalcProjectByMonth:   "igual que project-remaining-year con detalle mensual; {projection}, {months_remaining}, {target_year}, {detail}",
	models.CalcSumWhereCategory: "suma donde category_field = category_value; {total}, {category}, {count}",
	models.CalcShareOfTotal:     "porcentaje de category_value sobre el total; {share}, {category_total}, {grand_total}, {category}",
	models.CalcRecommendations:  "recomendaciones redactadas a partir de un resumen de los datos; sin marcadores",
}

// defaultTemplates apply when the plan leaves response_template empty.
var defaultTemplates = map[models.CalculationKind]string{
	models.CalcTotal:            "El total es {total} en {count} registros.",
	models.CalcMaxByGroup:       "{max_group} tiene el mayor monto: {max_value}.",
	models.CalcMinByTimeBucket:  "El periodo con menor monto es {min_month}, con {min_value}.",
	models.CalcSumOverPeriod:    "El total de {period} es {total}.",
	models.CalcProjectRemaining: "Para los {months_remaining} meses restantes de {target_year} se proyectan {projection}.",
	models.CalcProjectByMonth:   "Para los {months_remaining} meses restantes de {target_year} se proyectan {projection}: {detail}.",
	models.CalcSumWhereCategory: "El total para {category} es {total} en {count} registros.",
	models.CalcShareOfTotal:     "{category} representa el {share} del total ({category_total} de {grand_total}).",
}

// calcInput carries the filtered View and the unfiltered Data it was cut from.
type calcInput struct {
	Question string
	Plan     models.Plan
	View     *models.Dataset
	Data     *models.Dataset
	Profile  models.SchemaProfile
}

type calcResult struct {
	bindings   Bindings
	final      *models.Answer
	chart      *models.Chart
	disclaimer string
	warnings   []string
}

type calcFunc func(ctx context.Context, in calcInput) (calcResult, error)

// Calculator dispatches a plan's calculation_kind and fills its template.
type Calculator struct {
	oracle    oracle.Oracle
	timeout   time.Duration
	projector Projector
	now       func() time.Time
	logger    *zap.Logger
	handlers  map[models.CalculationKind]calcFunc
}

func NewCalculator(o oracle.Oracle, timeout time.Duration, projector Projector, now func() time.Time, logger *zap.Logger) *Calculator {
	if now == nil {
		now = time.Now
	}
	c := &Calculator{oracle: o, timeout: timeout, projector: projector, now: now, logger: logger.Named("calculator")}
	c.handlers = map[models.CalculationKind]calcFunc{
		models.CalcNone:             c.none,
		models.CalcTotal:            c.total,
		models.CalcMaxByGroup:       c.maxByGroup,
		models.CalcMinByTimeBucket:  c.minByTimeBucket,
		models.CalcSumOverPeriod:    c.sumOverPeriod,
		models.CalcProjectRemaining: c.projectRemaining,
		models.CalcProjectByMonth:   c.projectRemaining,
		models.CalcSumWhereCategory: c.sumWhereCategory,
		models.CalcShareOfTotal:     c.shareOfTotal,
		models.CalcRecommendations:  c.recommendations,
	}
	return c
}

func (c *Calculator) Calculate(ctx context.Context, in calcInput) (models.Answer, error) {
	kind := in.Plan.CalculationKind
	h, ok := c.handlers[kind]
	if !ok {
		return models.Answer{}, &CalculationUnderdeterminedError{Kind: string(kind), Reason: "unknown calculation"}
	}
	res, err := h(ctx, in)
	var under *CalculationUnderdeterminedError
	if errors.As(err, &under) {
		c.logger.Info("calculation underdetermined, using free-form answer", zap.String("kind", string(kind)), zap.String("reason", under.Reason))
		text, ferr := c.fallback(ctx, in, nil)
		if ferr != nil {
			return models.Answer{}, ferr
		}
		return models.Answer{Kind: models.AnswerProse, Text: text}, nil
	}
	if err != nil {
		return models.Answer{}, err
	}
	if res.final != nil {
		return *res.final, nil
	}

	if res.bindings == nil {
		res.bindings = Bindings{}
	}
	if _, ok := res.bindings["count"]; !ok {
		res.bindings.Int("count", in.View.Len())
	}
	tmpl := strings.TrimSpace(in.Plan.ResponseTemplate)
	if tmpl == "" {
		tmpl = defaultTemplates[kind]
	}
	text, unresolved := Fill(tmpl, res.bindings)
	if len(unresolved) > 0 || strings.TrimSpace(text) == "" {
		c.logger.Info("template not resolvable, using free-form answer",
			zap.String("kind", string(kind)), zap.Strings("unresolved", unresolved))
		text, err = c.fallback(ctx, in, res.bindings)
		if err != nil {
			return models.Answer{}, err
		}
	}

	ans := models.Answer{Kind: models.AnswerProse, Text: text, Disclaimer: res.disclaimer, Warnings: res.warnings}
	if res.chart != nil {
		ans.Kind = models.AnswerChart
		ans.Chart = res.chart
	}
	return ans, nil
}

func (c *Calculator) none(_ context.Context, in calcInput) (calcResult, error) {
	return calcResult{bindings: Bindings{}}, nil
}

func (c *Calculator) total(_ context.Context, in calcInput) (calcResult, error) {
	ai := amountIndex(in.View, in.Plan)
	sum, n := sumWhere(in.View, ai, nil)
	return calcResult{bindings: Bindings{}.Money("total", sum).Int("count", n)}, nil
}

func (c *Calculator) maxByGroup(_ context.Context, in calcInput) (calcResult, error) {
	gi := groupIndex(in.View, in.Plan.GroupField, in.Plan.XField, in.View.EntityColumn)
	if gi < 0 {
		return calcResult{}, &CalculationUnderdeterminedError{Kind: string(in.Plan.CalculationKind), Reason: "no usable group column"}
	}
	ai := amountIndex(in.View, in.Plan)
	sums := map[string]float64{}
	for _, r := range in.View.Rows {
		label := strings.TrimSpace(r[gi].String())
		if label == "" || !r[ai].IsNum {
			continue
		}
		sums[label] += r[ai].Num
	}
	group := in.View.Columns[gi].Name
	if len(sums) == 0 {
		return noData(fmt.Sprintf("Sin datos para agrupar por %s.", group)), nil
	}
	best, bestV := "", 0.0
	for label, v := range sums {
		if best == "" || v > bestV || (v == bestV && label < best) {
			best, bestV = label, v
		}
	}
	return calcResult{bindings: Bindings{}.Text("max_group", best).Money("max_value", bestV).Text("group_field", group)}, nil
}

func (c *Calculator) minByTimeBucket(_ context.Context, in calcInput) (calcResult, error) {
	di := in.View.Index(in.View.DateColumn)
	if di < 0 {
		return calcResult{}, &CalculationUnderdeterminedError{Kind: string(in.Plan.CalculationKind), Reason: "no date column"}
	}
	bucket := in.Plan.TimeBucket
	if bucket == models.BucketNone || bucket == "" {
		bucket = models.BucketMonth
	}
	agg := aggregate(in.View, di, amountIndex(in.View, in.Plan), -1, models.KindDate, bucket)
	if len(agg.xs) == 0 {
		return noData("Sin datos para comparar periodos."), nil
	}
	var minKey xKey
	minV := 0.0
	for i, x := range agg.xs {
		v := agg.sums[""][x.label]
		if i == 0 || v < minV {
			minKey, minV = x, v
		}
	}
	b := Bindings{}.Money("min_value", minV)
	switch bucket {
	case models.BucketMonth:
		b.Month("min_month", minKey.t)
	default:
		b.Text("min_month", minKey.label)
	}
	b.Text("min_period", b["min_month"])
	return calcResult{bindings: b}, nil
}

func (c *Calculator) sumOverPeriod(_ context.Context, in calcInput) (calcResult, error) {
	args := in.Plan.CalculationArgs
	if args.Year <= 0 {
		return calcResult{}, &CalculationUnderdeterminedError{Kind: string(in.Plan.CalculationKind), Reason: "missing year"}
	}
	di := in.View.Index(in.View.DateColumn)
	if di < 0 {
		return calcResult{}, &CalculationUnderdeterminedError{Kind: string(in.Plan.CalculationKind), Reason: "no date column"}
	}
	ai := amountIndex(in.View, in.Plan)
	sum, n := sumWhere(in.View, ai, func(r []models.Value) bool {
		t := r[di].Time
		if !r[di].IsTime || t.Year() != args.Year {
			return false
		}
		return args.Month == 0 || int(t.Month()) == args.Month
	})
	b := Bindings{}.Money("total", sum).Int("year", args.Year).Int("count", n)
	if args.Month > 0 {
		b.Text("month", utils.MonthName(time.Month(args.Month)))
		b.Month("period", time.Date(args.Year, time.Month(args.Month), 1, 0, 0, 0, 0, time.UTC))
	} else {
		b.Text("month", "")
		b.Text("period", strconv.Itoa(args.Year))
	}
	return calcResult{bindings: b}, nil
}

func (c *Calculator) sumWhereCategory(_ context.Context, in calcInput) (calcResult, error) {
	ci, value, err := categoryOf(in)
	if err != nil {
		return calcResult{}, err
	}
	ai := amountIndex(in.View, in.Plan)
	want := utils.Fold(value)
	sum, n := sumWhere(in.View, ai, func(r []models.Value) bool { return equalValue(r[ci], want) })
	return calcResult{bindings: Bindings{}.Money("total", sum).Text("category", value).Int("count", n)}, nil
}

func (c *Calculator) shareOfTotal(_ context.Context, in calcInput) (calcResult, error) {
	ci, value, err := categoryOf(in)
	if err != nil {
		return calcResult{}, err
	}
	ai := amountIndex(in.View, in.Plan)
	grand, _ := sumWhere(in.View, ai, nil)
	if grand == 0 {
		ans := models.Answer{
			Kind:  models.AnswerNotice,
			Text:  fmt.Sprintf("No es posible calcular la participación de %s: el total general es cero.", value),
			Error: &models.AnswerFailure{Code: "zero_grand_total", Message: ErrZeroGrandTotal.Error()},
		}
		return calcResult{final: &ans}, nil
	}
	want := utils.Fold(value)
	part, _ := sumWhere(in.View, ai, func(r []models.Value) bool { return equalValue(r[ci], want) })
	b := Bindings{}.
		Percent("share", part/grand*100).
		Money("category_total", part).
		Money("grand_total", grand).
		Text("category", value)
	return calcResult{bindings: b}, nil
}

func (c *Calculator) projectRemaining(_ context.Context, in calcInput) (calcResult, error) {
	target := in.Plan.CalculationArgs.TargetYear
	if target <= 0 {
		target = c.now().Year()
	}
	proj, err := c.projector.Project(in.View, target)
	if errors.Is(err, ErrNoSeasonalHistory) {
		return calcResult{}, &CalculationUnderdeterminedError{Kind: string(in.Plan.CalculationKind), Reason: "no monthly history"}
	}
	if err != nil {
		return calcResult{}, err
	}
	res := calcResult{disclaimer: ProjectionDisclaimer}
	if proj.Diagnostic != "" {
		res.warnings = append(res.warnings, proj.Diagnostic)
		c.logger.Info("seasonal decomposition fell back to average", zap.Int("target_year", target))
	}
	if proj.MonthsRemaining == 0 {
		res.warnings = append(res.warnings, fmt.Sprintf("El año %d no tiene meses por proyectar.", target))
	}
	res.bindings = Bindings{}.
		Money("projection", proj.Total).
		Int("months_remaining", proj.MonthsRemaining).
		Int("target_year", target).
		Text("method", proj.Method)

	details := make([]string, len(proj.Months))
	points := make([]models.Point, len(proj.Months))
	for i, m := range proj.Months {
		details[i] = utils.FormatMonth(m.Month) + " " + utils.FormatMoney(m.Amount)
		points[i] = models.Point{X: m.Month.Format("2006-01"), Y: m.Amount}
	}
	res.bindings.Text("detail", strings.Join(details, "; "))
	if in.Plan.CalculationKind == models.CalcProjectByMonth && len(points) > 0 {
		res.chart = &models.Chart{
			Kind:   models.VizBar,
			Title:  fmt.Sprintf("Proyección mensual %d", target),
			XField: "Mes",
			YField: in.View.AmountColumn,
			Series: []models.Series{{Name: "Proyección", Points: points}},
		}
	}
	return res, nil
}

func (c *Calculator) recommendations(ctx context.Context, in calcInput) (calcResult, error) {
	data := in.Data
	if data == nil {
		data = in.View
	}
	prompt := BuildRecommendationPrompt(in.Question, in.Profile.Text, SummarizeView(data))
	text, err := oracle.Call(ctx, "recommendations", c.timeout, func(ctx context.Context) (string, error) {
		return c.oracle.Complete(ctx, prompt)
	})
	if err != nil {
		return calcResult{}, err
	}
	ans := models.Answer{Kind: models.AnswerProse, Text: text}
	return calcResult{final: &ans}, nil
}

func (c *Calculator) fallback(ctx context.Context, in calcInput, b Bindings) (string, error) {
	prompt := BuildFallbackPrompt(in.Question, in.Profile.Text, SummarizeView(in.View), b)
	return oracle.Call(ctx, "fallback", c.timeout, func(ctx context.Context) (string, error) {
		return c.oracle.Complete(ctx, prompt)
	})
}

func noData(msg string) calcResult {
	ans := models.Answer{Kind: models.AnswerNotice, Text: msg}
	return calcResult{final: &ans}
}

// amountIndex prefers a numeric y_field over the designated amount column.
func amountIndex(ds *models.Dataset, plan models.Plan) int {
	if col, i, ok := ds.Resolve(plan.YField); ok && col.Kind == models.KindNumeric {
		return i
	}
	return ds.Index(ds.AmountColumn)
}

// groupIndex returns the first candidate that names a non-numeric, non-date column.
func groupIndex(ds *models.Dataset, candidates ...string) int {
	for _, name := range candidates {
		if col, i, ok := ds.Resolve(name); ok && col.Kind == models.KindText {
			return i
		}
	}
	return -1
}

func categoryOf(in calcInput) (int, string, error) {
	field := in.Plan.CalculationArgs.CategoryField
	value := strings.TrimSpace(in.Plan.CalculationArgs.CategoryValue)
	if strings.TrimSpace(field) == "" || value == "" {
		if pf := in.Plan.PrimaryFilter; strings.TrimSpace(pf.Field) != "" && strings.TrimSpace(pf.Value) != "" {
			field, value = pf.Field, strings.TrimSpace(pf.Value)
		}
	}
	if strings.TrimSpace(field) == "" || value == "" {
		return -1, "", &CalculationUnderdeterminedError{Kind: string(in.Plan.CalculationKind), Reason: "missing category"}
	}
	col, i, ok := in.View.Resolve(field)
	if !ok || col.Kind == models.KindDate {
		return -1, "", &CalculationUnderdeterminedError{Kind: string(in.Plan.CalculationKind), Reason: fmt.Sprintf("category field %q not usable", field)}
	}
	return i, value, nil
}

func sumWhere(ds *models.Dataset, ai int, pred func([]models.Value) bool) (float64, int) {
	if ai < 0 {
		return 0, 0
	}
	sum, n := 0.0, 0
	for _, r := range ds.Rows {
		if !r[ai].IsNum || (pred != nil && !pred(r)) {
			continue
		}
		sum += r[ai].Num
		n++
	}
	return utils.Round2(sum), n
}

// SummarizeView condenses a view into the figures the free-form prompts need.
func SummarizeView(ds *models.Dataset) string {
	var b strings.Builder
	ai := ds.Index(ds.AmountColumn)
	total, n := sumWhere(ds, ai, nil)
	fmt.Fprintf(&b, "Registros: %d\nMonto total: %s\n", n, utils.FormatMoney(total))

	if gi := groupIndex(ds, ds.EntityColumn); gi >= 0 && ai >= 0 {
		sums := map[string]float64{}
		for _, r := range ds.Rows {
			if r[ai].IsNum {
				sums[r[gi].String()] += r[ai].Num
			}
		}
		type kv struct {
			k string
			v float64
		}
		ranked := make([]kv, 0, len(sums))
		for k, v := range sums {
			ranked = append(ranked, kv{k, v})
		}
		sort.Slice(ranked, func(i, j int) bool {
			if ranked[i].v != ranked[j].v {
				return ranked[i].v > ranked[j].v
			}
			return ranked[i].k < ranked[j].k
		})
		if len(ranked) > 5 {
			ranked = ranked[:5]
		}
		fmt.Fprintf(&b, "Principales por %s:\n", ds.EntityColumn)
		for _, e := range ranked {
			fmt.Fprintf(&b, "- %s: %s\n", e.k, utils.FormatMoney(e.v))
		}
	}

	months, values := monthlySeries(ds)
	if len(months) > 12 {
		months, values = months[len(months)-12:], values[len(values)-12:]
	}
	if len(months) > 0 {
		b.WriteString("Totales mensuales recientes:\n")
		for i, m := range months {
			fmt.Fprintf(&b, "- %s: %s\n", utils.FormatMonth(m), utils.FormatMoney(values[i]))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func BuildRecommendationPrompt(question, profile, summary string) string {
	var b strings.Builder
	b.WriteString("Eres un asesor financiero. Con base en el esquema y el resumen de datos, propone entre 3 y 5 acciones concretas.\n")
	b.WriteString("Cada acción debe apoyarse en cifras del resumen; no inventes datos. Responde en español, como lista numerada.\n\n")
	b.WriteString("[ESQUEMA]\n" + profile + "\n\n")
	b.WriteString("[RESUMEN]\n" + summary + "\n\n")
	b.WriteString("[PREGUNTA]\n" + strings.TrimSpace(question) + "\n")
	return b.String()
}

func BuildFallbackPrompt(question, profile, summary string, computed Bindings) string {
	var b strings.Builder
	b.WriteString("Eres un asesor financiero. Responde en español, en uno o dos párrafos, usando solo los datos provistos.\n\n")
	b.WriteString("[ESQUEMA]\n" + profile + "\n\n")
	b.WriteString("[RESUMEN]\n" + summary + "\n\n")
	if len(computed) > 0 {
		keys := make([]string, 0, len(computed))
		for k := range computed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("[CALCULADO]\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "- %s: %s\n", k, computed[k])
		}
		b.WriteString("\n")
	}
	b.WriteString("[PREGUNTA]\n" + strings.TrimSpace(question) + "\n")
	return b.String()
}
