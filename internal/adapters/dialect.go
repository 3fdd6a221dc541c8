package adapters

import "fmt"

// Dialect abstracts the syntax differences between the supported SQL
// drivers: parameter placeholders and keyset-free pagination.
type Dialect interface {
	Name() string
	// Placeholder returns the parameter marker for the n-th argument,
	// 1-based.
	Placeholder(n int) string
	// PageClause returns the ordering and paging suffix of a SELECT.
	PageClause(orderBy string, offset, limit int) string
}

type sqlServerDialect struct{}

func (sqlServerDialect) Name() string { return "sqlserver" }

func (sqlServerDialect) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

func (sqlServerDialect) PageClause(orderBy string, offset, limit int) string {
	return fmt.Sprintf("ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", orderBy, offset, limit)
}

type postgresDialect struct{}

func (postgresDialect) Name() string { return "postgres" }

func (postgresDialect) Placeholder(n int) string { return fmt.Sprintf("$%d", n) }

func (postgresDialect) PageClause(orderBy string, offset, limit int) string {
	return fmt.Sprintf("ORDER BY %s LIMIT %d OFFSET %d", orderBy, limit, offset)
}

// DialectFor returns the dialect matching a database/sql driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "sqlserver", "mssql":
		return sqlServerDialect{}, nil
	case "postgres", "pq":
		return postgresDialect{}, nil
	default:
		return nil, fmt.Errorf("unsupported SQL driver %q", driver)
	}
}
