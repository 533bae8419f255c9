package dialect

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/imtaco/sqlcrossover/schema"
)

// MSSQL is the Microsoft SQL Server dialect.
type MSSQL struct{}

func (MSSQL) Name() string { return "mssql" }

func (MSSQL) QuoteIdent(name string) string { return quoteWith("[", "]", name) }

func (MSSQL) Placeholder() squirrel.PlaceholderFormat { return squirrel.AtP }

// MaxParams stays below the 2100 parameter limit of an RPC call
func (MSSQL) MaxParams() int { return 2000 }

func (MSSQL) TypeName(t schema.ColumnType) string {
	switch t.Kind {
	case schema.KindBoolean:
		return "BIT"
	case schema.KindSmallInt:
		return "SMALLINT"
	case schema.KindInteger:
		return "INT"
	case schema.KindBigInt:
		return "BIGINT"
	case schema.KindFloat:
		return "FLOAT"
	case schema.KindDecimal:
		if t.Precision == 0 {
			return "DECIMAL(38,10)"
		}
		return decimal("DECIMAL", t)
	case schema.KindString:
		if t.Length <= 0 || t.Length > 4000 {
			return "NVARCHAR(MAX)"
		}
		return sized("NVARCHAR", t.Length)
	case schema.KindText, schema.KindJSON:
		return "NVARCHAR(MAX)"
	case schema.KindBinary:
		return "VARBINARY(MAX)"
	case schema.KindDate:
		return "DATE"
	case schema.KindTime:
		return "TIME"
	case schema.KindTimestamp:
		if hasTimeZone(t) {
			return "DATETIMEOFFSET"
		}
		return "DATETIME2"
	case schema.KindUUID:
		return "UNIQUEIDENTIFIER"
	}
	return strings.ToUpper(t.Name)
}

func (MSSQL) AutoIncrement(col schema.Column, soleKey bool) (string, bool) {
	return "IDENTITY(1,1)", false
}

var mssqlLiterals = literalStyle{
	dialect: "mssql",
	quote: func(s string) (string, error) {
		return "N" + doubledQuote(s), nil
	},
	boolean: bitBool,
	bytes: func(b []byte) string {
		return "0x" + hexString(b)
	},
	layouts: map[schema.TypeKind]string{
		schema.KindDate:      "2006-01-02",
		schema.KindTime:      "15:04:05.9999999",
		schema.KindTimestamp: "2006-01-02T15:04:05.9999999",
	},
}

func (MSSQL) Literal(v any, kind schema.TypeKind) (string, error) {
	return mssqlLiterals.render(v, kind)
}

// Limit uses OFFSET/FETCH, which requires the ORDER BY every page query has.
func (MSSQL) Limit(sb squirrel.SelectBuilder, n uint64) squirrel.SelectBuilder {
	return sb.Suffix(fmt.Sprintf("OFFSET 0 ROWS FETCH NEXT %d ROWS ONLY", n))
}

func (m MSSQL) EmptyInsert(table string) string {
	return "INSERT INTO " + m.QuoteIdent(table) + " DEFAULT VALUES"
}

func (m MSSQL) IdentityInsert(table string, on bool) string {
	state := "OFF"
	if on {
		state = "ON"
	}
	return fmt.Sprintf("SET IDENTITY_INSERT %s %s", m.QuoteIdent(table), state)
}

// DeferConstraints is empty: SQL Server can only disable constraints per table.
func (MSSQL) DeferConstraints() string { return "" }

// SnapshotOptions requires ALLOW_SNAPSHOT_ISOLATION on the source database.
// The driver rejects read-only transactions, so ReadOnly stays false.
func (MSSQL) SnapshotOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelSnapshot}
}

func (MSSQL) ForwardReferences() bool { return false }
