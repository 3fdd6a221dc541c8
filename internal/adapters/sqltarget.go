package adapters

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
	mssql "github.com/microsoft/go-mssqldb"

	"github.com/FingerLiu/django-supertube/internal/tube"
)

// SQLTarget writes transformed records into a SQL database. It implements
// tube.TargetStore and tube.DescriptorProvider.
type SQLTarget struct {
	DB      *sql.DB
	Dialect Dialect
}

// Describe builds a descriptor from the table's columns and database types.
func (t *SQLTarget) Describe(ctx context.Context, entity string) (tube.Descriptor, error) {
	rows, err := t.DB.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", entity))
	if err != nil {
		return tube.Descriptor{}, fmt.Errorf("describe %s: %w", entity, err)
	}
	defer rows.Close()

	types, err := rows.ColumnTypes()
	if err != nil {
		return tube.Descriptor{}, err
	}
	desc := tube.Descriptor{Entity: entity}
	for _, ct := range types {
		desc.Fields = append(desc.Fields, tube.FieldDef{Name: ct.Name(), Type: ct.DatabaseTypeName()})
	}
	return desc, nil
}

// Open dedicates one connection to the run; the writer releases it on Close.
func (t *SQLTarget) Open(ctx context.Context, target tube.Descriptor) (tube.TargetWriter, error) {
	conn, err := t.DB.Conn(ctx)
	if err != nil {
		return nil, &tube.StoreFault{Err: err}
	}
	return &sqlWriter{conn: conn, dialect: t.Dialect, table: target.Entity}, nil
}

// ResetSequence realigns a Postgres serial sequence with the table's current
// maximum, so inserts after a migration do not collide with migrated IDs.
func (t *SQLTarget) ResetSequence(ctx context.Context, table, column string) error {
	if t.Dialect.Name() != "postgres" {
		return fmt.Errorf("sequence reset is only supported on postgres, not %s", t.Dialect.Name())
	}
	_, err := t.DB.ExecContext(ctx, resetSequenceSQL(table, column))
	if err != nil {
		return fmt.Errorf("reset sequence for %s.%s: %w", table, column, err)
	}
	return nil
}

func resetSequenceSQL(table, column string) string {
	return fmt.Sprintf(
		"SELECT setval(pg_get_serial_sequence('%s', '%s'), COALESCE(MAX(%s), 1)) FROM %s",
		table, column, column, table)
}

type sqlWriter struct {
	conn    *sql.Conn
	dialect Dialect
	table   string
}

func (w *sqlWriter) Insert(ctx context.Context, values map[string]any) error {
	cols, args := orderedColumns(values)
	query := insertSQL(w.dialect, w.table, cols)
	if _, err := w.conn.ExecContext(ctx, query, args...); err != nil {
		return classifySQLError(err)
	}
	return nil
}

func (w *sqlWriter) Upsert(ctx context.Context, keyField string, values map[string]any) (bool, error) {
	keyVal, ok := values[keyField]
	if !ok {
		return false, &tube.StoreFault{
			Recoverable: true,
			Err:         fmt.Errorf("identity field %q missing from transformed values", keyField),
		}
	}

	var one int
	check := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s", w.table, keyField, w.dialect.Placeholder(1))
	err := w.conn.QueryRowContext(ctx, check, keyVal).Scan(&one)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return true, w.Insert(ctx, values)
	case err != nil:
		return false, classifySQLError(err)
	}

	cols, args := orderedColumns(values)
	// Drop the key from the SET list; it selects the row.
	setCols := make([]string, 0, len(cols))
	setArgs := make([]any, 0, len(args))
	for i, c := range cols {
		if c == keyField {
			continue
		}
		setCols = append(setCols, c)
		setArgs = append(setArgs, args[i])
	}
	setArgs = append(setArgs, keyVal)
	if _, err := w.conn.ExecContext(ctx, updateSQL(w.dialect, w.table, keyField, setCols), setArgs...); err != nil {
		return false, classifySQLError(err)
	}
	return false, nil
}

func (w *sqlWriter) Close() error { return w.conn.Close() }

func orderedColumns(values map[string]any) ([]string, []any) {
	cols := make([]string, 0, len(values))
	for c := range values {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	args := make([]any, len(cols))
	for i, c := range cols {
		args[i] = values[c]
	}
	return cols, args
}

func insertSQL(d Dialect, table string, cols []string) string {
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = d.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "))
}

func updateSQL(d Dialect, table, keyField string, setCols []string) string {
	sets := make([]string, len(setCols))
	for i, c := range setCols {
		sets[i] = fmt.Sprintf("%s = %s", c, d.Placeholder(i+1))
	}
	return fmt.Sprintf("UPDATE %s SET %s WHERE %s = %s",
		table, strings.Join(sets, ", "), keyField, d.Placeholder(len(setCols)+1))
}

// classifySQLError maps driver errors onto the engine's fault model:
// constraint violations are recoverable per-record failures, anything else
// (bad connection, syntax, context cancellation) aborts the run.
func classifySQLError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Class() == "23" {
		return &tube.StoreFault{Recoverable: true, Err: err}
	}
	var msErr mssql.Error
	if errors.As(err, &msErr) {
		switch msErr.Number {
		case 547, 2601, 2627: // FK/check violation, duplicate index, unique constraint
			return &tube.StoreFault{Recoverable: true, Err: err}
		}
	}
	return &tube.StoreFault{Err: err}
}
