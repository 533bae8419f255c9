package source

import (
	"context"
	"database/sql"

	"github.com/imtaco/sqlcrossover/dialect"
	"github.com/imtaco/sqlcrossover/schema"
)

// SourceDB defines the interface for source database operations
type SourceDB interface {
	// Connect establishes a connection to the source database
	Connect(ctx context.Context, connStr string) error

	// Close closes the database connection
	Close() error

	// Ping verifies the connection to the database
	Ping(ctx context.Context) error

	// Dialect returns the SQL dialect of the source engine
	Dialect() dialect.Dialect

	// GetTables reflects every user table with its columns, primary key and
	// foreign keys
	GetTables(ctx context.Context) ([]*schema.Table, error)

	// Querier returns the plain connection for reads outside a snapshot
	Querier() Querier

	// BeginSnapshot opens a read-consistent transaction
	BeginSnapshot(ctx context.Context) (*sql.Tx, error)

	// ConvertValue turns a scanned driver value into a portable Go value
	ConvertValue(value any, col schema.Column) any
}

// Querier is satisfied by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
