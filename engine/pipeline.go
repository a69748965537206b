// Package engine routes a natural-language question about the ledger to a
// chart, a table or a computed answer.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"fenix-advisor/backend/datasource"
	"fenix-advisor/backend/models"
	"fenix-advisor/backend/oracle"
	"fenix-advisor/backend/session"
)

const noMatchText = "No hay datos que coincidan con la consulta."

type Options struct {
	PlanTimeout   time.Duration
	AnswerTimeout time.Duration
	SampleRows    int
	TableRowLimit int
	Anchor        AnchorMode
	Now           func() time.Time
}

type Engine struct {
	cache    *datasource.Cache
	planner  *Planner
	renderer Renderer
	calc     *Calculator
	now      func() time.Time
	logger   *zap.Logger
}

func New(o oracle.Oracle, cache *datasource.Cache, opts Options, logger *zap.Logger) *Engine {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		cache:    cache,
		planner:  NewPlanner(o, opts.PlanTimeout, opts.SampleRows, now, logger),
		renderer: Renderer{RowLimit: opts.TableRowLimit},
		calc:     NewCalculator(o, opts.AnswerTimeout, Projector{Now: now, Anchor: opts.Anchor}, now, logger),
		now:      now,
		logger:   logger.Named("engine"),
	}
}

// Ask answers one question. Questions in the same session run one at a time.
func (e *Engine) Ask(ctx context.Context, s *session.Session, question string) models.Answer {
	release := s.Begin()
	defer release()
	s.Remember(question, e.now())

	start := time.Now()
	ans := e.answer(ctx, s.Source(), question)
	fields := []zap.Field{
		zap.String("session", s.ID),
		zap.String("kind", string(ans.Kind)),
		zap.Duration("took", time.Since(start)),
	}
	if ans.Error != nil {
		e.logger.Warn("question failed", append(fields, zap.String("code", ans.Error.Code), zap.String("detail", ans.Error.Detail))...)
	} else {
		e.logger.Info("question answered", fields...)
	}
	return ans
}

func (e *Engine) answer(ctx context.Context, src datasource.Source, question string) models.Answer {
	snap, err := e.cache.Get(ctx, src)
	if err != nil {
		return ErrorAnswer(err)
	}
	ds := snap.Dataset.Clone()
	plan, err := e.planner.Plan(ctx, question, ds, snap.Profile)
	if err != nil {
		return ErrorAnswer(err)
	}
	ans, err := e.Execute(ctx, question, plan, ds, snap.Profile)
	if err != nil {
		ans = ErrorAnswer(err)
	}
	ans.Plan = &plan
	return ans
}

// Execute runs an already parsed plan against ds.
func (e *Engine) Execute(ctx context.Context, question string, plan models.Plan, ds *models.Dataset, profile models.SchemaProfile) (models.Answer, error) {
	render := rendersChart(plan)
	view, warnings := ApplyFilters(ds, plan, FilterOptions{
		SkipDateFilters: !render && plan.CalculationKind.IsProjection(),
		SkipPrimaryText: !render && plan.CalculationKind == models.CalcShareOfTotal && categoryFromPrimary(plan),
	})
	if view.Len() == 0 {
		return models.Answer{Kind: models.AnswerNotice, Text: noMatchText, Warnings: warnings}, nil
	}

	var (
		ans models.Answer
		err error
	)
	if render {
		ans, err = e.renderer.Render(view, plan)
		if err == nil {
			ans.Text = caption(plan.ResponseTemplate, view)
		}
	} else {
		ans, err = e.calc.Calculate(ctx, calcInput{Question: question, Plan: plan, View: view, Data: ds, Profile: profile})
	}
	if err != nil {
		return models.Answer{}, err
	}
	ans.Warnings = append(warnings, ans.Warnings...)
	return ans, nil
}

// rendersChart reports whether the plan goes to the Renderer. The month by
// month projection draws its own chart from the calculator.
func rendersChart(plan models.Plan) bool {
	return plan.WantsVisualization && plan.CalculationKind != models.CalcProjectByMonth
}

// categoryFromPrimary reports whether share-of-total takes its category
// from the primary filter rather than calculation_args.
func categoryFromPrimary(plan models.Plan) bool {
	args := plan.CalculationArgs
	if strings.TrimSpace(args.CategoryField) == "" || strings.TrimSpace(args.CategoryValue) == "" {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(args.CategoryField), strings.TrimSpace(plan.PrimaryFilter.Field))
}

// caption fills a chart or table template with view-wide figures and
// drops it if anything else is referenced.
func caption(tmpl string, view *models.Dataset) string {
	if strings.TrimSpace(tmpl) == "" {
		return ""
	}
	total, n := sumWhere(view, view.Index(view.AmountColumn), nil)
	text, unresolved := Fill(tmpl, Bindings{}.Money("total", total).Int("count", n))
	if len(unresolved) > 0 {
		return ""
	}
	return text
}

// ErrorAnswer converts a pipeline failure into a user-facing answer.
func ErrorAnswer(err error) models.Answer {
	var (
		su    *datasource.SourceUnavailableError
		sm    *datasource.SchemaMismatchError
		pp    *PlanParseError
		fnf   *FieldNotFoundError
		te    *oracle.TransportError
		under *CalculationUnderdeterminedError
	)
	e := &models.AnswerFailure{Detail: err.Error()}
	switch {
	case errors.As(err, &su):
		e.Code, e.Message = "source_unavailable", "No se pudo leer el libro contable. Cargue un archivo o revise la fuente de datos."
	case errors.As(err, &sm):
		e.Code = "schema_mismatch"
		e.Message = fmt.Sprintf("Faltan columnas requeridas: %s.", strings.Join(sm.Missing, ", "))
		if len(sm.Found) > 0 {
			e.Detail = "Columnas encontradas: " + strings.Join(sm.Found, ", ")
		}
	case errors.As(err, &pp):
		e.Code, e.Message, e.Detail = "plan_parse_error", "No se pudo interpretar la respuesta del asistente.", pp.Raw
	case errors.As(err, &fnf):
		e.Code = "field_not_found"
		if fnf.Field == "" {
			e.Message = fmt.Sprintf("La consulta no indica la columna del eje %s.", strings.ToUpper(fnf.Role))
		} else {
			e.Message = fmt.Sprintf("La columna '%s' no existe en los datos.", fnf.Field)
		}
	case errors.As(err, &te):
		if te.Timeout() {
			e.Code, e.Message = "oracle_timeout", "El asistente tardó demasiado en responder. Intente de nuevo."
		} else {
			e.Code, e.Message = "oracle_transport_error", "No se pudo contactar al asistente. Intente de nuevo."
		}
	case errors.As(err, &under):
		e.Code, e.Message = "calculation_underdetermined", "La pregunta no tiene datos suficientes para calcular una respuesta."
	default:
		e.Code, e.Message = "internal", "Ocurrió un error inesperado."
	}
	return models.Answer{Kind: models.AnswerError, Text: e.Message, Error: e}
}
