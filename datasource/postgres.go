package datasource

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"fenix-advisor/backend/database"
)

// PostgresTable reads the ledger from a table through the shared pool.
type PostgresTable struct {
	pool  *pgxpool.Pool
	table string
}

func NewPostgresTable(pool *pgxpool.Pool, table string) *PostgresTable {
	return &PostgresTable{pool: pool, table: table}
}

func (p *PostgresTable) Key() string { return "postgres:" + p.table }

func (p *PostgresTable) ReadGrid(ctx context.Context) ([][]string, error) {
	if p.pool == nil {
		return nil, &SourceUnavailableError{Source: p.Key(), Err: database.ErrNotConnected}
	}
	grid, err := database.ReadLedger(ctx, p.pool, p.table)
	if err != nil {
		return nil, &SourceUnavailableError{Source: p.Key(), Err: err}
	}
	return grid, nil
}
