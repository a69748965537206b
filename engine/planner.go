package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fenix-advisor/backend/models"
	"fenix-advisor/backend/oracle"
)

// Planner turns a question into a models.Plan through one schema-constrained oracle call.
type Planner struct {
	oracle     oracle.Oracle
	timeout    time.Duration
	sampleRows int
	now        func() time.Time
	logger     *zap.Logger
}

func NewPlanner(o oracle.Oracle, timeout time.Duration, sampleRows int, now func() time.Time, logger *zap.Logger) *Planner {
	if now == nil {
		now = time.Now
	}
	return &Planner{oracle: o, timeout: timeout, sampleRows: sampleRows, now: now, logger: logger.Named("planner")}
}

func (p *Planner) Plan(ctx context.Context, question string, ds *models.Dataset, profile models.SchemaProfile) (models.Plan, error) {
	prompt := BuildPlanPrompt(PromptInput{
		Question: question,
		Profile:  profile.Text,
		Columns:  ds.ColumnNames(),
		Sample:   ds.Head(p.sampleRows),
		Date:     ds.DateColumn,
		Amount:   ds.AmountColumn,
		Entity:   ds.EntityColumn,
		Status:   ds.StatusColumn,
		Today:    p.now(),
	})
	raw, err := oracle.Call(ctx, "plan", p.timeout, func(ctx context.Context) (string, error) {
		return p.oracle.CompleteJSON(ctx, prompt, PlanSchema)
	})
	if err != nil {
		return models.Plan{}, err
	}
	plan, err := ParsePlan(raw)
	if err != nil {
		p.logger.Warn("plan rejected", zap.Error(err), zap.String("raw", raw))
		return models.Plan{}, err
	}
	p.logger.Debug("plan accepted",
		zap.String("calculation", string(plan.CalculationKind)),
		zap.String("visualization", string(plan.VisualizationKind)))
	return plan, nil
}

type PromptInput struct {
	Question string
	Profile  string
	Columns  []string
	Sample   [][]string
	Date     string
	Amount   string
	Entity   string
	Status   string
	Today    time.Time
}

// BuildPlanPrompt assembles the planning prompt section by section.
func BuildPlanPrompt(in PromptInput) string {
	var b strings.Builder
	b.WriteString("Eres un analista financiero. Conviertes preguntas sobre un libro contable en un plan de consulta JSON.\n")
	fmt.Fprintf(&b, "Fecha actual: %s\n\n", in.Today.Format("2006-01-02"))

	b.WriteString("[ESQUEMA]\n")
	b.WriteString(in.Profile)
	b.WriteString("\n\n")
	writeDesignated(&b, in)

	fmt.Fprintf(&b, "[MUESTRA] primeras %d filas\n", len(in.Sample))
	writeMarkdownTable(&b, in.Columns, in.Sample)
	b.WriteString("\n")

	b.WriteString(`[PRIORIDADES]
1. Si la pregunta pide un valor, un ranking o una estimación, elige calculation_kind y deja wants_visualization en false.
2. Si pide una lista, una tabla o un detalle, usa visualization_kind "table" y completa table_fields.
3. Si pide un gráfico, una evolución, una distribución o una comparación, usa "line", "bar", "pie" o "scatter" con x_field e y_field.

`)
	b.WriteString("[CALCULOS] marcadores disponibles para response_template\n")
	for _, k := range models.CalculationKinds {
		fmt.Fprintf(&b, "- %s: %s\n", k, calcGuide[models.CalculationKind(k)])
	}
	b.WriteString(`
[REGLAS]
- Usa solo nombres de columna exactos del esquema.
- Todos los campos son obligatorios; usa "", "none", 0 o [] cuando no apliquen.
- wants_visualization true exige visualization_kind distinto de "none".
- primary_filter sobre la columna de fecha acepta un año de 4 dígitos o el nombre de un mes.
- date_range usa fechas AAAA-MM-DD.
- time_bucket agrupa el eje X cuando es una fecha: day, month, year o none.
- response_template es una frase en español que usa solo los marcadores del cálculo elegido.

`)
	b.WriteString("[PREGUNTA]\n")
	b.WriteString(strings.TrimSpace(in.Question))
	b.WriteString("\n")
	return b.String()
}

func writeDesignated(b *strings.Builder, in PromptInput) {
	parts := []string{"fecha = " + in.Date, "monto = " + in.Amount}
	if in.Entity != "" {
		parts = append(parts, "cliente = "+in.Entity)
	}
	if in.Status != "" {
		parts = append(parts, "estado = "+in.Status)
	}
	fmt.Fprintf(b, "Columnas designadas: %s\n\n", strings.Join(parts, ", "))
}

func writeMarkdownTable(b *strings.Builder, cols []string, rows [][]string) {
	b.WriteString("| " + strings.Join(cols, " | ") + " |\n")
	sep := make([]string, len(cols))
	for i := range sep {
		sep[i] = "---"
	}
	b.WriteString("| " + strings.Join(sep, " | ") + " |\n")
	for _, r := range rows {
		cells := make([]string, len(r))
		for i, v := range r {
			cells[i] = strings.ReplaceAll(v, "|", "/")
		}
		b.WriteString("| " + strings.Join(cells, " | ") + " |\n")
	}
}

func str(desc string) *oracle.Schema {
	return &oracle.Schema{Type: oracle.TypeString, Description: desc}
}

func enum(values []string) *oracle.Schema {
	return &oracle.Schema{Type: oracle.TypeString, Enum: values}
}

func fieldValueSchema() *oracle.Schema {
	return &oracle.Schema{
		Type:       oracle.TypeObject,
		Properties: map[string]*oracle.Schema{"field": str(""), "value": str("")},
		Required:   []string{"field", "value"},
	}
}

var planKeys = []string{
	"wants_visualization", "visualization_kind", "x_field", "y_field", "group_field",
	"primary_filter", "date_range", "extra_filters", "time_bucket", "response_template",
	"table_fields", "calculation_kind", "calculation_args",
}

var argKeys = []string{"year", "month", "target_year", "category_field", "category_value"}

// PlanSchema is the structured-output contract every plan must satisfy.
var PlanSchema = &oracle.Schema{
	Type: oracle.TypeObject,
	Properties: map[string]*oracle.Schema{
		"wants_visualization": {Type: oracle.TypeBoolean},
		"visualization_kind":  enum(models.VisualizationKinds),
		"x_field":             str("columna del eje X o \"\""),
		"y_field":             str("columna numérica del eje Y o \"\""),
		"group_field":         str("columna para separar series o \"\""),
		"primary_filter":      fieldValueSchema(),
		"date_range": {
			Type:       oracle.TypeObject,
			Properties: map[string]*oracle.Schema{"start": str("AAAA-MM-DD o \"\""), "end": str("AAAA-MM-DD o \"\"")},
			Required:   []string{"start", "end"},
		},
		"extra_filters":     {Type: oracle.TypeArray, Items: fieldValueSchema()},
		"time_bucket":       enum(models.TimeBuckets),
		"response_template": str("frase en español con marcadores {nombre}"),
		"table_fields":      {Type: oracle.TypeArray, Items: str("")},
		"calculation_kind":  enum(models.CalculationKinds),
		"calculation_args": {
			Type: oracle.TypeObject,
			Properties: map[string]*oracle.Schema{
				"year":           {Type: oracle.TypeInteger},
				"month":          {Type: oracle.TypeInteger},
				"target_year":    {Type: oracle.TypeInteger},
				"category_field": str(""),
				"category_value": str(""),
			},
			Required: argKeys,
		},
	},
	Required: planKeys,
}

// ParsePlan decodes oracle output into a Plan. Every key must be present
// and non-null; anything else is a PlanParseError carrying raw.
func ParsePlan(raw string) (models.Plan, error) {
	fail := func(err error) (models.Plan, error) {
		return models.Plan{}, &PlanParseError{Raw: raw, Err: err}
	}
	text := oracle.StripFences(raw)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &top); err != nil {
		return fail(fmt.Errorf("invalid json: %w", err))
	}
	if err := requireKeys(top, "", planKeys); err != nil {
		return fail(err)
	}
	for key, sub := range map[string][]string{
		"primary_filter":   {"field", "value"},
		"date_range":       {"start", "end"},
		"calculation_args": argKeys,
	} {
		var m map[string]json.RawMessage
		if err := json.Unmarshal(top[key], &m); err != nil {
			return fail(fmt.Errorf("%s must be an object", key))
		}
		if err := requireKeys(m, key+".", sub); err != nil {
			return fail(err)
		}
	}
	var extras []map[string]json.RawMessage
	if err := json.Unmarshal(top["extra_filters"], &extras); err != nil {
		return fail(fmt.Errorf("extra_filters must be a list"))
	}
	for i, e := range extras {
		if err := requireKeys(e, fmt.Sprintf("extra_filters[%d].", i), []string{"field", "value"}); err != nil {
			return fail(err)
		}
	}

	var p models.Plan
	if err := json.Unmarshal([]byte(text), &p); err != nil {
		return fail(err)
	}
	normalizePlan(&p)
	if err := p.Validate(); err != nil {
		return fail(err)
	}
	return p, nil
}

func requireKeys(m map[string]json.RawMessage, prefix string, keys []string) error {
	for _, k := range keys {
		v, ok := m[k]
		if !ok || string(v) == "null" {
			return fmt.Errorf("missing key %s%s", prefix, k)
		}
	}
	return nil
}

func normalizePlan(p *models.Plan) {
	p.VisualizationKind = models.VisualizationKind(strings.ToLower(strings.TrimSpace(string(p.VisualizationKind))))
	p.TimeBucket = models.TimeBucket(strings.ToLower(strings.TrimSpace(string(p.TimeBucket))))
	p.CalculationKind = models.CalculationKind(strings.ToLower(strings.TrimSpace(string(p.CalculationKind))))
	p.XField = strings.TrimSpace(p.XField)
	p.YField = strings.TrimSpace(p.YField)
	p.GroupField = strings.TrimSpace(p.GroupField)
	if p.ExtraFilters == nil {
		p.ExtraFilters = []models.FieldValue{}
	}
	if p.TableFields == nil {
		p.TableFields = []string{}
	}
}
