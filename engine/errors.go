package engine

import (
	"errors"
	"fmt"
)

var (
	ErrDegenerateSeries  = errors.New("series cannot be decomposed")
	ErrZeroGrandTotal    = errors.New("grand total is zero")
	ErrNoSeasonalHistory = errors.New("no monthly history")
)

// PlanParseError keeps the oracle's raw output for display.
type PlanParseError struct {
	Raw string
	Err error
}

func (e *PlanParseError) Error() string { return "unusable plan: " + e.Err.Error() }
func (e *PlanParseError) Unwrap() error { return e.Err }

// FieldNotFoundError names a plan field that the dataset does not have.
type FieldNotFoundError struct {
	Field string
	Role  string // x, y, group, filter, table
}

func (e *FieldNotFoundError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("plan has no %s field", e.Role)
	}
	return fmt.Sprintf("%s field %q not found", e.Role, e.Field)
}

// CalculationUnderdeterminedError means the plan lacks arguments the
// calculation needs; the pipeline falls back to a free-form answer.
type CalculationUnderdeterminedError struct {
	Kind   string
	Reason string
}

func (e *CalculationUnderdeterminedError) Error() string {
	return fmt.Sprintf("cannot compute %s: %s", e.Kind, e.Reason)
}
