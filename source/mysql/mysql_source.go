package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/imtaco/sqlcrossover/dialect"
	"github.com/imtaco/sqlcrossover/schema"
	"github.com/imtaco/sqlcrossover/source"
)

// MySQLSource implements the SourceDB interface for MySQL and MariaDB
type MySQLSource struct {
	source.Database
}

// New creates a new MySQL source database instance
func New() *MySQLSource {
	return &MySQLSource{Database: source.NewDatabase("mysql", dialect.MySQL{})}
}

// Connect forces parseTime so DATE/DATETIME values arrive as time.Time
// instead of raw bytes.
func (m *MySQLSource) Connect(ctx context.Context, connStr string) error {
	cfg, err := mysql.ParseDSN(connStr)
	if err != nil {
		return &schema.ConnectionError{Endpoint: "mysql source", Err: fmt.Errorf("invalid DSN: %w", err)}
	}
	cfg.ParseTime = true
	return m.Database.Connect(ctx, cfg.FormatDSN())
}

// GetTables reflects every base table of the connected database
func (m *MySQLSource) GetTables(ctx context.Context) ([]*schema.Table, error) {
	return source.Reflect(ctx, m.Querier(), catalog{})
}

type catalog struct{}

func (catalog) TableNames(ctx context.Context, q source.Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`)
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

func (catalog) Table(ctx context.Context, q source.Querier, name string) (*schema.Table, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT column_name, column_type, is_nullable, column_default, extra, column_key
		FROM information_schema.columns
		WHERE table_schema = DATABASE()
		AND table_name = ?
		ORDER BY ordinal_position
	`, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	table := &schema.Table{Name: name}
	for rows.Next() {
		var (
			col                                   schema.Column
			columnType, isNullable, extra, colKey string
			dflt                                  sql.NullString
		)
		if err := rows.Scan(&col.Name, &columnType, &isNullable, &dflt, &extra, &colKey); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}

		col.Type = schema.ParseColumnType(columnType)
		if strings.HasPrefix(strings.ToLower(columnType), "tinyint(1)") {
			col.Type.Kind = schema.KindBoolean
		}
		col.Nullable = isNullable == "YES"
		col.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		if dflt.Valid {
			expr := quoteDefault(dflt.String, col.Type.Kind, extra)
			col.Default = &expr
		}
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	pk, err := primaryKey(ctx, q, name)
	if err != nil {
		return nil, err
	}
	table.PrimaryKey = pk
	return table, nil
}

// quoteDefault turns the bare values MySQL reports in COLUMN_DEFAULT into
// SQL expressions. MariaDB and expression defaults arrive already quoted.
func quoteDefault(value string, kind schema.TypeKind, extra string) string {
	upper := strings.ToUpper(value)
	switch {
	case strings.HasPrefix(value, "'"),
		strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED"),
		strings.HasPrefix(upper, "CURRENT_TIMESTAMP"),
		upper == "NULL":
		return value
	case kind == schema.KindBoolean, kind == schema.KindSmallInt, kind == schema.KindInteger,
		kind == schema.KindBigInt, kind == schema.KindFloat, kind == schema.KindDecimal:
		return value
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func primaryKey(ctx context.Context, q source.Querier, name string) ([]string, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE()
		AND table_name = ?
		AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`, name)
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

func (catalog) ForeignKeys(ctx context.Context, q source.Querier, _ []string) (map[string][]schema.ForeignKey, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT constraint_name, table_name, column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = DATABASE()
		AND referenced_table_name IS NOT NULL
		ORDER BY table_name, constraint_name, ordinal_position
	`)
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
