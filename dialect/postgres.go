package dialect

import (
	"database/sql"
	"math"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/imtaco/sqlcrossover/schema"
)

// Postgres is the PostgreSQL dialect.
type Postgres struct{}

func (Postgres) Name() string { return "postgres" }

func (Postgres) QuoteIdent(name string) string { return pq.QuoteIdentifier(name) }

func (Postgres) Placeholder() squirrel.PlaceholderFormat { return squirrel.Dollar }

func (Postgres) MaxParams() int { return 65535 }

func (Postgres) TypeName(t schema.ColumnType) string {
	switch t.Kind {
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindSmallInt:
		return "SMALLINT"
	case schema.KindInteger:
		return "INTEGER"
	case schema.KindBigInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE PRECISION"
	case schema.KindDecimal:
		return decimal("NUMERIC", t)
	case schema.KindString:
		return sized("VARCHAR", t.Length)
	case schema.KindText:
		return "TEXT"
	case schema.KindBinary:
		return "BYTEA"
	case schema.KindDate:
		return "DATE"
	case schema.KindTime:
		return "TIME"
	case schema.KindTimestamp:
		if hasTimeZone(t) {
			return "TIMESTAMPTZ"
		}
		return "TIMESTAMP"
	case schema.KindUUID:
		return "UUID"
	case schema.KindJSON:
		if strings.EqualFold(t.Name, "jsonb") {
			return "JSONB"
		}
		return "JSON"
	}
	return strings.ToUpper(t.Name)
}

func (Postgres) AutoIncrement(col schema.Column, soleKey bool) (string, bool) {
	return "GENERATED BY DEFAULT AS IDENTITY", false
}

var postgresLiterals = literalStyle{
	dialect: "postgres",
	quote: func(s string) (string, error) {
		if strings.ContainsRune(s, 0) {
			return "", errNulByte
		}
		return strings.TrimSpace(pq.QuoteLiteral(s)), nil
	},
	boolean: upperBool,
	bytes: func(b []byte) string {
		return `'\x` + hexString(b) + `'::bytea`
	},
	layouts: map[schema.TypeKind]string{
		schema.KindDate:      "2006-01-02",
		schema.KindTime:      "15:04:05.999999",
		schema.KindTimestamp: "2006-01-02 15:04:05.999999Z07:00",
	},
	nonFinite: func(f float64) (string, bool) {
		switch {
		case math.IsNaN(f):
			return "'NaN'", true
		case math.IsInf(f, 1):
			return "'Infinity'", true
		case math.IsInf(f, -1):
			return "'-Infinity'", true
		}
		return "", false
	},
}

func (Postgres) Literal(v any, kind schema.TypeKind) (string, error) {
	return postgresLiterals.render(v, kind)
}

func (Postgres) Limit(sb squirrel.SelectBuilder, n uint64) squirrel.SelectBuilder {
	return sb.Limit(n)
}

func (p Postgres) EmptyInsert(table string) string {
	return "INSERT INTO " + p.QuoteIdent(table) + " DEFAULT VALUES"
}

func (Postgres) IdentityInsert(string, bool) string { return "" }

// DeferConstraints only affects constraints declared DEFERRABLE.
func (Postgres) DeferConstraints() string { return "SET CONSTRAINTS ALL DEFERRED" }

// DeferrableClause keeps immediate checking unless a run defers it.
func (Postgres) DeferrableClause() string { return "DEFERRABLE INITIALLY IMMEDIATE" }

func (Postgres) SnapshotOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

func (Postgres) ForwardReferences() bool { return false }
