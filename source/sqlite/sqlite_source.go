package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/imtaco/sqlcrossover/dialect"
	"github.com/imtaco/sqlcrossover/schema"
	"github.com/imtaco/sqlcrossover/source"
)

// SQLiteSource implements the SourceDB interface for SQLite database files
type SQLiteSource struct {
	source.Database
}

// New creates a new SQLite source database instance
func New() *SQLiteSource {
	return &SQLiteSource{Database: source.NewDatabase("sqlite", dialect.SQLite{})}
}

// GetTables reflects every user table
func (s *SQLiteSource) GetTables(ctx context.Context) ([]*schema.Table, error) {
	return source.Reflect(ctx, s.Querier(), catalog{})
}

type catalog struct{}

var quote = dialect.SQLite{}.QuoteIdent

func (catalog) TableNames(ctx context.Context, q source.Querier) ([]string, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name")
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
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quote(name)))
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	defer rows.Close()

	table := &schema.Table{Name: name}
	keyPos := make(map[string]int)
	for rows.Next() {
		var (
			cid      int
			col      schema.Column
			declared string
			notNull  int
			dflt     sql.NullString
			pk       int
		)
		if err := rows.Scan(&cid, &col.Name, &declared, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		col.Type = schema.ParseColumnType(declared)
		col.Nullable = notNull == 0 && pk == 0
		if dflt.Valid {
			col.Default = &dflt.String
		}
		if pk > 0 {
			keyPos[col.Name] = pk
		}
		table.Columns = append(table.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for colName := range keyPos {
		table.PrimaryKey = append(table.PrimaryKey, colName)
	}
	sort.Slice(table.PrimaryKey, func(i, j int) bool {
		return keyPos[table.PrimaryKey[i]] < keyPos[table.PrimaryKey[j]]
	})

	// a lone INTEGER PRIMARY KEY aliases the rowid and is assigned automatically
	if len(table.PrimaryKey) == 1 {
		col := table.Column(table.PrimaryKey[0])
		if strings.EqualFold(col.Type.Name, "INTEGER") {
			col.AutoIncrement = true
		}
	}
	return table, nil
}

func (catalog) ForeignKeys(ctx context.Context, q source.Querier, names []string) (map[string][]schema.ForeignKey, error) {
	result := make(map[string][]schema.ForeignKey)
	for _, name := range names {
		keys, err := foreignKeys(ctx, q, name)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", name, err)
		}
		if len(keys) > 0 {
			result[name] = keys
		}
	}
	return result, nil
}

func foreignKeys(ctx context.Context, q source.Querier, table string) ([]schema.ForeignKey, error) {
	rows, err := q.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quote(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var collector source.ForeignKeyCollector
	for rows.Next() {
		var (
			id, seq                   int
			refTable, from            string
			to                        sql.NullString
			onUpdate, onDelete, match string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		collector.Add(strconv.Itoa(id), from, refTable, to.String)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// SQLite constraints are unnamed, the collector keys are only the PRAGMA ids
	keys := collector.Keys()
	for i := range keys {
		keys[i].Name = ""
	}
	return keys, nil
}
