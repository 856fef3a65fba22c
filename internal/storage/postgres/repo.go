package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"tabletojson/internal/storage"
)

// batchSize keeps placeholder numbers far below the protocol limit of 65535.
const batchSize = 1000

// Repo implements storage.Repository for Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New creates a pool for cfg.DSN and verifies connectivity.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

// Close closes the connection pool.
func (r *Repo) Close() {
	r.pool.Close()
}

// EnsureTable creates the schema (for qualified names) and the record table.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	if !spec.AutoCreate {
		return nil
	}
	if err := spec.Validate(); err != nil {
		return err
	}

	schemaSQL, tableSQL := buildCreateSQL(spec.Name)
	if schemaSQL != "" {
		if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
			return fmt.Errorf("create schema for %s: %w", spec.Name, err)
		}
	}
	if _, err := r.pool.Exec(ctx, tableSQL); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows inserts rows in one transaction using
//
//	ON CONFLICT (row_hash) DO NOTHING
//
// and returns the number of rows actually inserted.
func (r *Repo) InsertRows(ctx context.Context, table string, rows []storage.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var total int64
	for _, batch := range storage.Batches(rows, batchSize) {
		q, args := buildInsertSQL(table, batch)
		cmd, err := tx.Exec(ctx, q, args...)
		if err != nil {
			return 0, fmt.Errorf("insert into %s: %w", table, err)
		}
		total += cmd.RowsAffected()
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return total, nil
}

// splitQualifiedName splits "schema.table". Anything other than a single dot
// is treated as an unqualified name.
func splitQualifiedName(name string) (schema string, table string) {
	name = strings.TrimSpace(name)
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return "", name
	}
	return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
}

func tableIdent(name string) string {
	schema, table := splitQualifiedName(name)
	if schema == "" {
		return pgx.Identifier{table}.Sanitize()
	}
	return pgx.Identifier{schema, table}.Sanitize()
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func buildCreateSQL(name string) (schemaSQL, tableSQL string) {
	if schema, _ := splitQualifiedName(name); schema != "" {
		schemaSQL = "CREATE SCHEMA IF NOT EXISTS " + ident(schema) + ";"
	}

	cols := []string{
		fmt.Sprintf("%s BIGSERIAL PRIMARY KEY", ident(storage.ColumnID)),
		fmt.Sprintf("%s TEXT NOT NULL", ident(storage.ColumnSource)),
		fmt.Sprintf("%s INTEGER NOT NULL", ident(storage.ColumnTableIndex)),
		fmt.Sprintf("%s INTEGER NOT NULL", ident(storage.ColumnRowIndex)),
		fmt.Sprintf("%s CHAR(64) NOT NULL UNIQUE", ident(storage.ColumnRowHash)),
		fmt.Sprintf("%s JSONB NOT NULL", ident(storage.ColumnRecord)),
		fmt.Sprintf("%s TIMESTAMPTZ NOT NULL DEFAULT now()", ident(storage.ColumnLoadedAt)),
	}
	tableSQL = fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", tableIdent(name), strings.Join(cols, ",\n  "))
	return schemaSQL, tableSQL
}

// buildInsertSQL is pure so placeholder numbering can be tested without a
// database.
func buildInsertSQL(table string, rows []storage.Row) (string, []any) {
	columns := storage.InsertColumns

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(ident(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j, v := range row.Values() {
			if j > 0 {
				b.WriteString(", ")
			}
			if columns[j] == storage.ColumnRecord {
				fmt.Fprintf(&b, "$%d::jsonb", p)
			} else {
				fmt.Fprintf(&b, "$%d", p)
			}
			args = append(args, v)
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(" ON CONFLICT (")
	b.WriteString(ident(storage.ColumnRowHash))
	b.WriteString(") DO NOTHING")
	return b.String(), args
}
