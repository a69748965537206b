package database

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReadLedger returns the whole table as a header row followed by text cells.
func ReadLedger(ctx context.Context, pool *pgxpool.Pool, table string) ([][]string, error) {
	schema, name := splitTable(table)
	q := "SELECT * FROM " + pgx.Identifier{schema, name}.Sanitize()
	rows, err := pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = f.Name
	}
	grid := [][]string{header}
	for rows.Next() {
		raw := rows.RawValues()
		line := make([]string, len(raw))
		for i, b := range raw {
			if b != nil {
				line[i] = string(b)
			}
		}
		grid = append(grid, line)
	}
	return grid, rows.Err()
}
