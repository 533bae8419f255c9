// Package dialect describes the SQL flavour of a database engine: identifier
// quoting, type names, literal formatting and the few statements that differ
// between engines. Adding an engine means adding one Dialect implementation.
package dialect

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/imtaco/sqlcrossover/schema"
)

// Dialect is the per-engine descriptor used by the statement renderer, the
// page query builder and the targets.
type Dialect interface {
	// Name returns the canonical dialect name ("postgres", "mysql", ...)
	Name() string

	// QuoteIdent quotes a table or column name
	QuoteIdent(name string) string

	// Placeholder returns the bind parameter style for squirrel builders
	Placeholder() squirrel.PlaceholderFormat

	// MaxParams is the largest number of bind parameters one statement may carry
	MaxParams() int

	// TypeName returns the DDL type for a reflected column type
	TypeName(t schema.ColumnType) string

	// AutoIncrement returns the column definition clause that makes col
	// auto-incrementing. inlinePK is true when the clause already declares
	// the primary key, so CREATE TABLE must not add a table constraint.
	AutoIncrement(col schema.Column, soleKey bool) (clause string, inlinePK bool)

	// Literal renders v as a standalone SQL literal for a column of the given kind
	Literal(v any, kind schema.TypeKind) (string, error)

	// Limit bounds a SELECT to n rows. The query is always ordered.
	Limit(sb squirrel.SelectBuilder, n uint64) squirrel.SelectBuilder

	// EmptyInsert returns an INSERT that relies on defaults for every column
	EmptyInsert(table string) string

	// IdentityInsert returns the statement toggling explicit writes into
	// auto-increment columns, or "" when the engine always allows them.
	IdentityInsert(table string, on bool) string

	// DeferConstraints returns the session statement postponing or disabling
	// foreign key enforcement, or "" when the engine has none.
	DeferConstraints() string

	// SnapshotOptions returns transaction options giving a read-consistent
	// view of the database, nil for the driver default.
	SnapshotOptions() *sql.TxOptions

	// ForwardReferences reports whether CREATE TABLE may reference a table
	// that does not exist yet.
	ForwardReferences() bool
}

var registry = map[string]Dialect{}

func register(d Dialect, aliases ...string) {
	registry[d.Name()] = d
	for _, alias := range aliases {
		registry[alias] = d
	}
}

func init() {
	register(Postgres{}, "postgresql", "pg", "pgx")
	register(MySQL{}, "mariadb")
	register(SQLite{}, "sqlite3")
	register(MSSQL{}, "sqlserver")
}

// Lookup returns the dialect registered under name or one of its aliases.
func Lookup(name string) (Dialect, error) {
	d, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return d, nil
}

// Names lists the canonical dialect names
func Names() []string {
	seen := make(map[string]bool)
	var names []string
	for _, d := range registry {
		if !seen[d.Name()] {
			seen[d.Name()] = true
			names = append(names, d.Name())
		}
	}
	sort.Strings(names)
	return names
}

func quoteWith(open, close string, name string) string {
	return open + strings.ReplaceAll(name, close, close+close) + close
}

func sized(base string, n int) string {
	if n > 0 {
		return fmt.Sprintf("%s(%d)", base, n)
	}
	return base
}

func decimal(base string, t schema.ColumnType) string {
	switch {
	case t.Precision > 0 && t.Scale > 0:
		return fmt.Sprintf("%s(%d,%d)", base, t.Precision, t.Scale)
	case t.Precision > 0:
		return fmt.Sprintf("%s(%d)", base, t.Precision)
	}
	return base
}

func hasTimeZone(t schema.ColumnType) bool {
	name := strings.ToLower(t.Name)
	return strings.Contains(name, "zone") && !strings.Contains(name, "without") ||
		strings.Contains(name, "timestamptz") || strings.Contains(name, "offset")
}
