package adapters

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/FingerLiu/django-supertube/internal/tube"
	"github.com/FingerLiu/django-supertube/pkg/typeconv"
)

// SQLSource reads one source table in key order through database/sql. It
// implements tube.SourceQueryable, tube.FieldLister and tube.Counter.
type SQLSource struct {
	DB      *sql.DB
	Dialect Dialect
	Table   string
	// Key is the ordering column; its value also identifies records in
	// reports.
	Key string
	// Filter restricts the source rows with equality predicates, matching
	// the optional row filter of the legacy system.
	Filter map[string]any
}

// Fetch returns up to limit rows starting at offset, ordered by Key.
func (s *SQLSource) Fetch(ctx context.Context, offset, limit int) ([]tube.Record, error) {
	where, args := s.whereClause()
	query := fmt.Sprintf("SELECT * FROM %s%s %s",
		s.Table, where, s.Dialect.PageClause(s.Key, offset, limit))

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", s.Table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var records []tube.Record
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		m := make(map[string]any, len(cols))
		for i, col := range cols {
			m[col] = typeconv.Normalize(values[i])
		}
		records = append(records, tube.MapRecord{
			ID:     fmt.Sprintf("%v", m[s.Key]),
			Values: m,
		})
	}
	return records, rows.Err()
}

// ListFields introspects the table's column names.
func (s *SQLSource) ListFields(ctx context.Context) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s WHERE 1 = 0", s.Table))
	if err != nil {
		return nil, fmt.Errorf("introspect %s: %w", s.Table, err)
	}
	defer rows.Close()
	return rows.Columns()
}

// Count returns the number of rows the source will stream.
func (s *SQLSource) Count(ctx context.Context) (int, error) {
	where, args := s.whereClause()
	var n int
	err := s.DB.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s%s", s.Table, where), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.Table, err)
	}
	return n, nil
}

func (s *SQLSource) whereClause() (string, []any) {
	if len(s.Filter) == 0 {
		return "", nil
	}
	keys := make([]string, 0, len(s.Filter))
	for k := range s.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]string, 0, len(keys))
	args := make([]any, 0, len(keys))
	for i, k := range keys {
		preds = append(preds, fmt.Sprintf("%s = %s", k, s.Dialect.Placeholder(i+1)))
		args = append(args, s.Filter[k])
	}
	return " WHERE " + strings.Join(preds, " AND "), args
}
