package dialect

import (
	"database/sql"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/imtaco/sqlcrossover/schema"
)

// SQLite is the SQLite dialect.
type SQLite struct{}

func (SQLite) Name() string { return "sqlite" }

func (SQLite) QuoteIdent(name string) string { return quoteWith(`"`, `"`, name) }

func (SQLite) Placeholder() squirrel.PlaceholderFormat { return squirrel.Question }

func (SQLite) MaxParams() int { return 32766 }

func (SQLite) TypeName(t schema.ColumnType) string {
	switch t.Kind {
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindSmallInt, schema.KindInteger, schema.KindBigInt:
		return "INTEGER"
	case schema.KindFloat:
		return "REAL"
	case schema.KindDecimal:
		return "NUMERIC"
	case schema.KindString:
		return sized("VARCHAR", t.Length)
	case schema.KindText, schema.KindUUID, schema.KindJSON, schema.KindTime:
		return "TEXT"
	case schema.KindBinary:
		return "BLOB"
	case schema.KindDate:
		return "DATE"
	case schema.KindTimestamp:
		return "DATETIME"
	}
	if t.Name == "" {
		return "TEXT"
	}
	return strings.ToUpper(t.Name)
}

// AutoIncrement is only expressible on a single INTEGER PRIMARY KEY column.
func (SQLite) AutoIncrement(col schema.Column, soleKey bool) (string, bool) {
	if !soleKey {
		return "", false
	}
	return "PRIMARY KEY AUTOINCREMENT", true
}

var sqliteLiterals = literalStyle{
	dialect: "sqlite",
	quote: func(s string) (string, error) {
		if strings.ContainsRune(s, 0) {
			return "", errNulByte
		}
		return doubledQuote(s), nil
	},
	boolean: bitBool,
	bytes: func(b []byte) string {
		return "X'" + hexString(b) + "'"
	},
	layouts: map[schema.TypeKind]string{
		schema.KindDate:      "2006-01-02",
		schema.KindTime:      "15:04:05.999999999",
		schema.KindTimestamp: "2006-01-02 15:04:05.999999999-07:00",
	},
}

func (SQLite) Literal(v any, kind schema.TypeKind) (string, error) {
	return sqliteLiterals.render(v, kind)
}

func (SQLite) Limit(sb squirrel.SelectBuilder, n uint64) squirrel.SelectBuilder {
	return sb.Limit(n)
}

func (s SQLite) EmptyInsert(table string) string {
	return "INSERT INTO " + s.QuoteIdent(table) + " DEFAULT VALUES"
}

func (SQLite) IdentityInsert(string, bool) string { return "" }

func (SQLite) DeferConstraints() string { return "PRAGMA defer_foreign_keys = ON" }

// SnapshotOptions is nil: a plain deferred transaction already reads a
// consistent snapshot once its first statement runs.
func (SQLite) SnapshotOptions() *sql.TxOptions { return nil }

func (SQLite) ForwardReferences() bool { return true }
