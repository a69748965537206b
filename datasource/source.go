// Package datasource reads the ledger grid from a spreadsheet, Google
// Sheets or Postgres, coerces it into a typed dataset and caches it.
package datasource

import (
	"context"
	"fmt"
	"strings"
)

// Source yields the raw ledger as a grid of strings whose first row is the header.
type Source interface {
	// Key identifies the source for caching.
	Key() string
	ReadGrid(ctx context.Context) ([][]string, error)
}

// SourceUnavailableError means the ledger could not be read at all.
type SourceUnavailableError struct {
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("source unavailable: %v", e.Err)
	}
	return fmt.Sprintf("source %s unavailable: %v", e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error { return e.Err }

// SchemaMismatchError lists designated columns missing from the header.
type SchemaMismatchError struct {
	Missing []string
	Found   []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("missing required columns: %s", strings.Join(e.Missing, ", "))
}
