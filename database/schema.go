package database

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MissingLedgerColumns reports which of the required columns the ledger
// table lacks. An absent table reports every column as missing.
func MissingLedgerColumns(ctx context.Context, pool *pgxpool.Pool, table string, required []string) ([]string, error) {
	if pool == nil {
		return nil, ErrNotConnected
	}
	schema, name := splitTable(table)
	rows, err := pool.Query(ctx, `SELECT column_name FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2`, schema, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	have := map[string]bool{}
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		have[strings.ToLower(strings.TrimSpace(col))] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var missing []string
	for _, c := range required {
		if !have[strings.ToLower(strings.TrimSpace(c))] {
			missing = append(missing, c)
		}
	}
	return missing, nil
}

func splitTable(table string) (string, string) {
	if i := strings.IndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "public", table
}
