package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultBatchSize is the number of records written per batch.
const DefaultBatchSize = 100

const tableName = "guarantor_records"

var copyColumns = []string{
	"client_id", "name", "spouse", "product", "co_name", "cell_no", "area",
	"maturity_date", "branch", "last_amount_paid", "address", "loan_amount",
	"loan_cycle", "guarantor_name", "guarantor_cell",
}

const selectColumns = "id, client_id, name, spouse, product, co_name, cell_no, area, " +
	"maturity_date, branch, last_amount_paid, address, loan_amount, loan_cycle, " +
	"guarantor_name, guarantor_cell"

const schemaSQL = `
CREATE TABLE IF NOT EXISTS guarantor_records (
	id               BIGSERIAL PRIMARY KEY,
	client_id        TEXT NOT NULL DEFAULT '',
	name             TEXT NOT NULL DEFAULT '',
	spouse           TEXT NOT NULL DEFAULT '',
	product          TEXT NOT NULL DEFAULT '',
	co_name          TEXT NOT NULL DEFAULT '',
	cell_no          TEXT NOT NULL DEFAULT '',
	area             TEXT NOT NULL DEFAULT '',
	maturity_date    TEXT NOT NULL DEFAULT '',
	branch           TEXT NOT NULL DEFAULT '',
	last_amount_paid TEXT NOT NULL DEFAULT '',
	address          TEXT NOT NULL DEFAULT '',
	loan_amount      TEXT NOT NULL DEFAULT '',
	loan_cycle       TEXT NOT NULL DEFAULT '',
	guarantor_name   TEXT NOT NULL DEFAULT '',
	guarantor_cell   TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS guarantor_records_client_id_idx ON guarantor_records (lower(client_id));
CREATE INDEX IF NOT EXISTS guarantor_records_co_name_idx ON guarantor_records (lower(co_name));
`

// Postgres stores records in a single table through a pgx pool.
type Postgres struct {
	pool      *pgxpool.Pool
	batchSize int
}

// NewPostgres wraps an open pool. The caller owns the pool's lifetime
// unless Close is called.
func NewPostgres(pool *pgxpool.Pool, batchSize int) *Postgres {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Postgres{pool: pool, batchSize: batchSize}
}

// EnsureSchema creates the records table and its indexes if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// ReplaceAll truncates the table and bulk-loads records with COPY, one
// batch at a time, inside a single transaction.
func (p *Postgres) ReplaceAll(ctx context.Context, records []Record, onProgress ProgressFunc) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "TRUNCATE "+tableName+" RESTART IDENTITY"); err != nil {
		return fmt.Errorf("truncate: %w", err)
	}

	for start := 0; start < len(records); start += p.batchSize {
		batch := records[start:min(start+p.batchSize, len(records))]

		n, err := tx.CopyFrom(ctx, pgx.Identifier{tableName}, copyColumns,
			pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
				return batch[i].values(), nil
			}))
		if err != nil {
			return fmt.Errorf("copy records %d-%d: %w", start+1, start+len(batch), err)
		}
		if int(n) != len(batch) {
			return fmt.Errorf("copy records %d-%d: wrote %d of %d", start+1, start+len(batch), n, len(batch))
		}

		if onProgress != nil {
			onProgress(start+len(batch), len(records))
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// All returns every record ordered by id.
func (p *Postgres) All(ctx context.Context) ([]Record, error) {
	return p.query(ctx, "SELECT "+selectColumns+" FROM "+tableName+" ORDER BY id")
}

// Search matches query case-insensitively against Client ID, Name, CO Name
// and Branch. An empty query returns no rows.
func (p *Postgres) Search(ctx context.Context, query string) ([]Record, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	pattern := "%" + escapeLike(query) + "%"
	return p.query(ctx,
		"SELECT "+selectColumns+" FROM "+tableName+
			" WHERE client_id ILIKE $1 OR name ILIKE $1 OR co_name ILIKE $1 OR branch ILIKE $1"+
			" ORDER BY id",
		pattern)
}

// Count returns the number of stored records.
func (p *Postgres) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := p.pool.QueryRow(ctx, "SELECT count(*) FROM "+tableName).Scan(&n); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return n, nil
}

// DeleteAll removes every record.
func (p *Postgres) DeleteAll(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, "TRUNCATE "+tableName+" RESTART IDENTITY"); err != nil {
		return fmt.Errorf("delete records: %w", err)
	}
	return nil
}

// Ping checks the database connection.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Close closes the pool.
func (p *Postgres) Close() {
	p.pool.Close()
}

func (p *Postgres) query(ctx context.Context, sql string, args ...any) ([]Record, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[Record])
	if err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
