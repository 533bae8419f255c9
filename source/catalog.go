package source

import (
	"context"
	"fmt"

	"github.com/imtaco/sqlcrossover/schema"
)

// Catalog is the set of catalog queries an engine package provides.
// Reflect drives them and assembles the table snapshot.
type Catalog interface {
	// TableNames lists the user tables, sorted by name
	TableNames(ctx context.Context, q Querier) ([]string, error)

	// Table reads the columns and primary key of one table
	Table(ctx context.Context, q Querier, name string) (*schema.Table, error)

	// ForeignKeys returns the foreign keys of the given tables keyed by table name
	ForeignKeys(ctx context.Context, q Querier, names []string) (map[string][]schema.ForeignKey, error)
}

// Reflect reads every table through c. Any catalog failure is reported as a
// ReflectionError naming the table being read.
func Reflect(ctx context.Context, q Querier, c Catalog) ([]*schema.Table, error) {
	names, err := c.TableNames(ctx, q)
	if err != nil {
		return nil, &schema.ReflectionError{Err: fmt.Errorf("failed to list tables: %w", err)}
	}

	tables := make([]*schema.Table, 0, len(names))
	byName := make(map[string]*schema.Table, len(names))
	for _, name := range names {
		t, err := c.Table(ctx, q, name)
		if err != nil {
			return nil, &schema.ReflectionError{Table: name, Err: err}
		}
		if len(t.Columns) == 0 {
			return nil, &schema.ReflectionError{Table: name, Err: fmt.Errorf("no columns reported")}
		}
		tables = append(tables, t)
		byName[name] = t
	}

	fks, err := c.ForeignKeys(ctx, q, names)
	if err != nil {
		return nil, &schema.ReflectionError{Err: fmt.Errorf("failed to read foreign keys: %w", err)}
	}
	for name, keys := range fks {
		t, ok := byName[name]
		if !ok {
			continue
		}
		for _, fk := range keys {
			// a reference without explicit columns targets the primary key
			if len(fk.RefColumns) == 0 || fk.RefColumns[0] == "" {
				ref, ok := byName[fk.RefTable]
				if !ok || len(ref.PrimaryKey) != len(fk.Columns) {
					return nil, &schema.ReflectionError{Table: name,
						Err: fmt.Errorf("cannot resolve columns of foreign key to %s", fk.RefTable)}
				}
				fk.RefColumns = append([]string(nil), ref.PrimaryKey...)
			}
			t.ForeignKeys = append(t.ForeignKeys, fk)
		}
	}
	return tables, nil
}
