package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"tabletojson/internal/storage"
)

// batchSize keeps a multi-row insert well under SQLite's bind-variable limit.
const batchSize = 500

// Repo implements storage.Repository for SQLite.
//
// SQLite has no native timestamp type, so loaded_at is stored as an
// RFC3339Nano string.
type Repo struct {
	db  *sql.DB
	now func() time.Time
}

func init() {
	storage.Register("sqlite", New)
}

// New opens the database named by cfg.DSN, e.g. "file:records.db" or
// ":memory:".
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	// An in-memory database exists per connection.
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db, now: time.Now}, nil
}

func (r *Repo) Close() { _ = r.db.Close() }

// EnsureTable creates the record table and its unique row_hash index.
func (r *Repo) EnsureTable(ctx context.Context, spec storage.TableSpec) error {
	if !spec.AutoCreate {
		return nil
	}
	if err := spec.Validate(); err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, buildCreateTableSQL(spec.Name)); err != nil {
		return fmt.Errorf("create table %s: %w", spec.Name, err)
	}
	return nil
}

// InsertRows inserts rows with INSERT OR IGNORE, so rows whose row_hash is
// already stored are skipped.
func (r *Repo) InsertRows(ctx context.Context, table string, rows []storage.Row) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	loadedAt := formatSQLiteTime(r.now())
	var total int64
	for _, batch := range storage.Batches(rows, batchSize) {
		q, args := buildInsertSQL(table, batch, loadedAt)
		res, err := tx.ExecContext(ctx, q, args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		total += n
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return total, nil
}

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

func tableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i := range parts {
		parts[i] = sqlIdent(strings.TrimSpace(parts[i]))
	}
	return strings.Join(parts, ".")
}

func buildCreateTableSQL(table string) string {
	cols := []string{
		fmt.Sprintf("%s INTEGER PRIMARY KEY AUTOINCREMENT", sqlIdent(storage.ColumnID)),
		fmt.Sprintf("%s TEXT NOT NULL", sqlIdent(storage.ColumnSource)),
		fmt.Sprintf("%s INTEGER NOT NULL", sqlIdent(storage.ColumnTableIndex)),
		fmt.Sprintf("%s INTEGER NOT NULL", sqlIdent(storage.ColumnRowIndex)),
		fmt.Sprintf("%s TEXT NOT NULL", sqlIdent(storage.ColumnRowHash)),
		fmt.Sprintf("%s TEXT NOT NULL", sqlIdent(storage.ColumnRecord)),
		fmt.Sprintf("%s TEXT NOT NULL", sqlIdent(storage.ColumnLoadedAt)),
		fmt.Sprintf("UNIQUE (%s)", sqlIdent(storage.ColumnRowHash)),
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", tableIdent(table), strings.Join(cols, ",\n  "))
}

func buildInsertSQL(table string, rows []storage.Row, loadedAt string) (string, []any) {
	columns := append(append([]string(nil), storage.InsertColumns...), storage.ColumnLoadedAt)

	colList := make([]string, 0, len(columns))
	for _, c := range columns {
		colList = append(colList, sqlIdent(c))
	}
	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"

	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(tableIdent(table))
	b.WriteString(" (")
	b.WriteString(strings.Join(colList, ", "))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row.Values()...)
		args = append(args, loadedAt)
	}
	return b.String(), args
}

func formatSQLiteTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseSQLiteTime parses loaded_at values. Besides RFC3339 it accepts the
// space separated layouts SQLite's own date functions produce, reading a
// value without zone as UTC.
func parseSQLiteTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time string")
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05Z07:00",
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	if ts, err := time.ParseInLocation("2006-01-02 15:04:05", s, time.UTC); err == nil {
		return ts, nil
	}
	return time.Time{}, fmt.Errorf("unsupported time format: %q", s)
}

// LoadedRow is a stored row as read back by Rows.
type LoadedRow struct {
	storage.Row
	LoadedAt time.Time
}

// Rows returns every stored row of table ordered by id.
func (r *Repo) Rows(ctx context.Context, table string) ([]LoadedRow, error) {
	q := fmt.Sprintf("SELECT %s, %s, %s, %s, %s, %s FROM %s ORDER BY %s",
		sqlIdent(storage.ColumnSource), sqlIdent(storage.ColumnTableIndex), sqlIdent(storage.ColumnRowIndex),
		sqlIdent(storage.ColumnRowHash), sqlIdent(storage.ColumnRecord), sqlIdent(storage.ColumnLoadedAt),
		tableIdent(table), sqlIdent(storage.ColumnID))

	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []LoadedRow
	for rows.Next() {
		var lr LoadedRow
		var loadedAt string
		if err := rows.Scan(&lr.Source, &lr.TableIndex, &lr.RowIndex, &lr.RowHash, &lr.Record, &loadedAt); err != nil {
			return nil, err
		}
		ts, err := parseSQLiteTime(loadedAt)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", table, storage.ColumnLoadedAt, err)
		}
		lr.LoadedAt = ts
		out = append(out, lr)
	}
	return out, rows.Err()
}
