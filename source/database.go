package source

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/imtaco/sqlcrossover/dialect"
	"github.com/imtaco/sqlcrossover/schema"
)

// Database is the database/sql plumbing shared by every source engine.
// Engine packages embed it and add their catalog queries.
type Database struct {
	DriverName string
	Dial       dialect.Dialect
	db         *sql.DB
}

// NewDatabase returns an unconnected Database for the given driver
func NewDatabase(driverName string, d dialect.Dialect) Database {
	return Database{DriverName: driverName, Dial: d}
}

// Connect opens the connection pool and checks it is reachable.
func (d *Database) Connect(ctx context.Context, connStr string) error {
	db, err := sql.Open(d.DriverName, connStr)
	if err != nil {
		return &schema.ConnectionError{Endpoint: d.Dial.Name() + " source", Err: err}
	}
	// reads run one at a time; keep the pool small
	db.SetMaxOpenConns(2)
	d.db = db
	return d.Ping(ctx)
}

// Attach wraps an already open pool, used when the caller owns the connection.
func (d *Database) Attach(db *sql.DB) {
	d.db = db
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.db != nil {
		return d.db.Close()
	}
	return nil
}

// Ping verifies the connection to the database
func (d *Database) Ping(ctx context.Context) error {
	if d.db == nil {
		return &schema.ConnectionError{Endpoint: d.Dial.Name() + " source", Err: fmt.Errorf("database not connected")}
	}
	if err := d.db.PingContext(ctx); err != nil {
		return &schema.ConnectionError{Endpoint: d.Dial.Name() + " source", Err: err}
	}
	return nil
}

// Dialect returns the SQL dialect of the source engine
func (d *Database) Dialect() dialect.Dialect {
	return d.Dial
}

// DB returns the underlying pool
func (d *Database) DB() *sql.DB {
	return d.db
}

// Querier returns the plain connection for reads outside a snapshot
func (d *Database) Querier() Querier {
	return d.db
}

// BeginSnapshot opens a read-consistent transaction
func (d *Database) BeginSnapshot(ctx context.Context) (*sql.Tx, error) {
	tx, err := d.db.BeginTx(ctx, d.Dial.SnapshotOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to begin source snapshot: %w", err)
	}
	return tx, nil
}

// ConvertValue hands back character data scanned as []byte as a string;
// everything else passes through.
func (d *Database) ConvertValue(value any, col schema.Column) any {
	if b, ok := value.([]byte); ok && col.Type.Kind != schema.KindBinary {
		return string(b)
	}
	return value
}

// ForeignKeyCollector groups catalog rows of composite foreign keys, which
// arrive one row per column, into ForeignKey values.
type ForeignKeyCollector struct {
	order []string
	keys  map[string]*schema.ForeignKey
}

// Add appends one column pair to the named constraint
func (c *ForeignKeyCollector) Add(name, column, refTable, refColumn string) {
	if c.keys == nil {
		c.keys = make(map[string]*schema.ForeignKey)
	}
	fk, ok := c.keys[name]
	if !ok {
		fk = &schema.ForeignKey{Name: name, RefTable: refTable}
		c.keys[name] = fk
		c.order = append(c.order, name)
	}
	fk.Columns = append(fk.Columns, column)
	fk.RefColumns = append(fk.RefColumns, refColumn)
}

// Keys returns the collected keys in first-seen order
func (c *ForeignKeyCollector) Keys() []schema.ForeignKey {
	keys := make([]schema.ForeignKey, 0, len(c.order))
	for _, name := range c.order {
		keys = append(keys, *c.keys[name])
	}
	return keys
}
