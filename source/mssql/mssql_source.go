package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/imtaco/sqlcrossover/dialect"
	"github.com/imtaco/sqlcrossover/schema"
	"github.com/imtaco/sqlcrossover/source"
)

// MSSQLSource implements the SourceDB interface for Microsoft SQL Server
type MSSQLSource struct {
	source.Database
	schemaName string
}

// New creates a new MSSQL source database instance reading the given schema
// ("dbo" when empty)
func New(schemaName string) *MSSQLSource {
	if schemaName == "" {
		schemaName = "dbo"
	}
	return &MSSQLSource{
		Database:   source.NewDatabase("sqlserver", dialect.MSSQL{}),
		schemaName: schemaName,
	}
}

// GetTables reflects every user table of the configured schema
func (m *MSSQLSource) GetTables(ctx context.Context) ([]*schema.Table, error) {
	return source.Reflect(ctx, m.Querier(), catalog{schema: m.schemaName})
}

// ConvertValue converts MSSQL wire values into portable ones
func (m *MSSQLSource) ConvertValue(value any, col schema.Column) any {
	if v, ok := value.([]byte); ok && col.Type.Kind == schema.KindUUID && len(v) == 16 {
		// Scan fixes the mixed-endian byte order of UNIQUEIDENTIFIER
		var uid mssql.UniqueIdentifier
		if err := uid.Scan(v); err == nil {
			return uid
		}
	}
	// DECIMAL, NUMERIC and MONEY arrive as ASCII digits
	return m.Database.ConvertValue(value, col)
}

type catalog struct {
	schema string
}

// TableNames lists user tables, excluding system and generated tables
func (c catalog) TableNames(ctx context.Context, q source.Querier) ([]string, error) {
	query := `
		WITH x AS (
			SELECT
				s.name AS schema_name,
				t.name AS table_name,
				t.object_id,
				t.is_ms_shipped
			FROM sys.tables t
			JOIN sys.schemas s ON s.schema_id = t.schema_id
		)
		SELECT
			x.table_name
		FROM x
		WHERE
			x.schema_name NOT IN (N'sys', N'INFORMATION_SCHEMA', N'cdc')
			AND x.is_ms_shipped = 0
			AND NOT (x.table_name IN (N'sysdiagrams', N'dtproperties'))
			AND NOT EXISTS (
				SELECT 1
				FROM sys.extended_properties ep
				WHERE ep.class = 1
				  AND ep.major_id = x.object_id
				  AND ep.minor_id = 0
				  AND ep.name = N'microsoft_database_tools_support'
			)
			AND x.schema_name = @p1
		ORDER BY x.table_name
	`
	rows, err := q.QueryContext(ctx, query, c.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to get tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var tableName string
		if err := rows.Scan(&tableName); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		names = append(names, tableName)
	}
	return names, rows.Err()
}

// Table retrieves column and primary key information from MSSQL
func (c catalog) Table(ctx context.Context, q source.Querier, name string) (*schema.Table, error) {
	query := `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, COLUMN_DEFAULT,
			COLUMNPROPERTY(OBJECT_ID(QUOTENAME(TABLE_SCHEMA) + '.' + QUOTENAME(TABLE_NAME)), COLUMN_NAME, 'IsIdentity'),
			CHARACTER_MAXIMUM_LENGTH, NUMERIC_PRECISION, NUMERIC_SCALE
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION
	`
	rows, err := q.QueryContext(ctx, query, c.schema, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	table := &schema.Table{Name: name}
	for rows.Next() {
		var (
			col                      schema.Column
			dataType, isNullable     string
			dflt                     sql.NullString
			identity                 sql.NullInt64
			length, precision, scale sql.NullInt64
		)
		if err := rows.Scan(&col.Name, &dataType, &isNullable, &dflt, &identity,
			&length, &precision, &scale); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		col.Type = schema.NewColumnType(dataType)
		switch col.Type.Kind {
		case schema.KindString:
			// -1 means (MAX)
			if length.Int64 > 0 {
				col.Type.Length = int(length.Int64)
			}
		case schema.KindDecimal:
			col.Type.Precision, col.Type.Scale = int(precision.Int64), int(scale.Int64)
		}
		// UNIQUEIDENTIFIER ROWGUIDCOL defaults are engine functions too
		if dflt.Valid && !strings.Contains(strings.ToLower(dflt.String), "newid()") {
			col.Default = &dflt.String
		}
		col.Nullable = isNullable == "YES"
		col.AutoIncrement = identity.Int64 == 1
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
	query := `
		SELECT kcu.COLUMN_NAME
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
			AND tc.TABLE_SCHEMA = @p1
			AND tc.TABLE_NAME = @p2
		ORDER BY kcu.ORDINAL_POSITION
	`
	rows, err := q.QueryContext(ctx, query, c.schema, name)
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

// ForeignKeys returns foreign key relationships, one entry per constraint
// with its column pairs in declaration order
func (c catalog) ForeignKeys(ctx context.Context, q source.Querier, _ []string) (map[string][]schema.ForeignKey, error) {
	fkQuery := `
		SELECT
			fk.name, tp.name, cp.name, tr.name, cr.name
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables tp ON tp.object_id = fkc.parent_object_id
		JOIN sys.columns cp ON cp.object_id = fkc.parent_object_id AND cp.column_id = fkc.parent_column_id
		JOIN sys.tables tr ON tr.object_id = fkc.referenced_object_id
		JOIN sys.columns cr ON cr.object_id = fkc.referenced_object_id AND cr.column_id = fkc.referenced_column_id
		JOIN sys.schemas s ON s.schema_id = tp.schema_id
		WHERE s.name = @p1
		ORDER BY tp.name, fk.name, fkc.constraint_column_id
	`
	fkRows, err := q.QueryContext(ctx, fkQuery, c.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to get foreign keys: %w", err)
	}
	defer fkRows.Close()

	collectors := make(map[string]*source.ForeignKeyCollector)
	for fkRows.Next() {
		var name, dependent, column, referenced, refColumn string
		if err := fkRows.Scan(&name, &dependent, &column, &referenced, &refColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		if collectors[dependent] == nil {
			collectors[dependent] = &source.ForeignKeyCollector{}
		}
		collectors[dependent].Add(name, column, referenced, refColumn)
	}
	if err := fkRows.Err(); err != nil {
		return nil, err
	}

	result := make(map[string][]schema.ForeignKey, len(collectors))
	for table, collector := range collectors {
		result[table] = collector.Keys()
	}
	return result, nil
}
