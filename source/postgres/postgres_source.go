package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/imtaco/sqlcrossover/dialect"
	"github.com/imtaco/sqlcrossover/schema"
	"github.com/imtaco/sqlcrossover/source"
)

// PostgresSource implements the SourceDB interface for PostgreSQL
type PostgresSource struct {
	source.Database
	schemaName string
}

// New creates a PostgreSQL source reading tables of the given schema
// ("public" when empty)
func New(schemaName string) *PostgresSource {
	if schemaName == "" {
		schemaName = "public"
	}
	return &PostgresSource{
		Database:   source.NewDatabase("pgx", dialect.Postgres{}),
		schemaName: schemaName,
	}
}

// GetTables reflects every base table of the configured schema
func (p *PostgresSource) GetTables(ctx context.Context) ([]*schema.Table, error) {
	return source.Reflect(ctx, p.Querier(), catalog{schema: p.schemaName})
}

type catalog struct {
	schema string
}

func (c catalog) TableNames(ctx context.Context, q source.Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, c.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (c catalog) Table(ctx context.Context, q source.Querier, name string) (*schema.Table, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT column_name, data_type, udt_name, is_nullable, column_default, is_identity,
			character_maximum_length, numeric_precision, numeric_scale
		FROM information_schema.columns
		WHERE table_schema = $1
		AND table_name = $2
		ORDER BY ordinal_position
	`, c.schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	table := &schema.Table{Name: name}
	for rows.Next() {
		var (
			col                      schema.Column
			dataType, udtName        string
			isNullable, isIdentity   string
			dflt                     sql.NullString
			length, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&col.Name, &dataType, &udtName, &isNullable, &dflt, &isIdentity,
			&length, &precision, &scale); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		if dataType == "USER-DEFINED" || dataType == "ARRAY" {
			dataType = udtName
		}
		col.Type = schema.NewColumnType(dataType)
		switch col.Type.Kind {
		case schema.KindString:
			col.Type.Length = int(length.Int64)
		case schema.KindDecimal:
			col.Type.Precision, col.Type.Scale = int(precision.Int64), int(scale.Int64)
		}

		col.Nullable = isNullable == "YES"
		if dflt.Valid {
			col.Default = &dflt.String
		}
		col.AutoIncrement = isIdentity == "YES" ||
			(dflt.Valid && strings.HasPrefix(dflt.String, "nextval("))
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pk, err := c.primaryKey(ctx, q, name)
	if err != nil {
		return nil, err
	}
	table.PrimaryKey = pk
	return table, nil
}

func (c catalog) primaryKey(ctx context.Context, q source.Querier, name string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		AND tc.table_schema = $1
		AND tc.table_name = $2
		ORDER BY kcu.ordinal_position
	`, c.schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get primary key: %w", err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, fmt.Errorf("failed to scan primary key column: %w", err)
		}
		cols = append(cols, col)
	}
	return cols, rows.Err()
}

func (c catalog) ForeignKeys(ctx context.Context, q source.Querier, _ []string) (map[string][]schema.ForeignKey, error) {
	// pg_constraint keeps conkey/confkey aligned, information_schema does not
	// pair composite key columns reliably
	rows, err := q.QueryContext(ctx, `
		SELECT con.conname, cl.relname, att.attname, rcl.relname, ratt.attname
		FROM pg_constraint con
		JOIN pg_class cl ON cl.oid = con.conrelid
		JOIN pg_namespace ns ON ns.oid = cl.relnamespace
		JOIN pg_class rcl ON rcl.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(attnum, refattnum, ord)
		JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.attnum
		JOIN pg_attribute ratt ON ratt.attrelid = con.confrelid AND ratt.attnum = k.refattnum
		WHERE con.contype = 'f'
		AND ns.nspname = $1
		ORDER BY cl.relname, con.conname, k.ord
	`, c.schema)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collectors := make(map[string]*source.ForeignKeyCollector)
	for rows.Next() {
		var name, table, column, refTable, refColumn string
		if err := rows.Scan(&name, &table, &column, &refTable, &refColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if collectors[table] == nil {
			collectors[table] = &source.ForeignKeyCollector{}
		}
		collectors[table].Add(name, column, refTable, refColumn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := make(map[string][]schema.ForeignKey, len(collectors))
	for table, collector := range collectors {
		result[table] = collector.Keys()
	}
	return result, nil
}
