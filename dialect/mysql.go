package dialect

import (
	"database/sql"
	"strings"

	"github.com/Masterminds/squirrel"

	"github.com/imtaco/sqlcrossover/schema"
)

// MySQL is the MySQL / MariaDB dialect.
type MySQL struct{}

func (MySQL) Name() string { return "mysql" }

func (MySQL) QuoteIdent(name string) string { return quoteWith("`", "`", name) }

func (MySQL) Placeholder() squirrel.PlaceholderFormat { return squirrel.Question }

func (MySQL) MaxParams() int { return 65535 }

func (MySQL) TypeName(t schema.ColumnType) string {
	switch t.Kind {
	case schema.KindBoolean:
		return "BOOLEAN"
	case schema.KindSmallInt:
		return "SMALLINT"
	case schema.KindInteger:
		return "INT"
	case schema.KindBigInt:
		return "BIGINT"
	case schema.KindFloat:
		return "DOUBLE"
	case schema.KindDecimal:
		if t.Precision == 0 {
			return "DECIMAL(65,30)"
		}
		return decimal("DECIMAL", t)
	case schema.KindString:
		if t.Length <= 0 {
			return "VARCHAR(255)"
		}
		return sized("VARCHAR", t.Length)
	case schema.KindText:
		return "LONGTEXT"
	case schema.KindBinary:
		return "LONGBLOB"
	case schema.KindDate:
		return "DATE"
	case schema.KindTime:
		return "TIME(6)"
	case schema.KindTimestamp:
		return "DATETIME(6)"
	case schema.KindUUID:
		return "CHAR(36)"
	case schema.KindJSON:
		return "JSON"
	}
	return strings.ToUpper(t.Name)
}

func (MySQL) AutoIncrement(col schema.Column, soleKey bool) (string, bool) {
	return "AUTO_INCREMENT", false
}

var mysqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `''`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

var mysqlLiterals = literalStyle{
	dialect: "mysql",
	quote: func(s string) (string, error) {
		return "'" + mysqlEscaper.Replace(s) + "'", nil
	},
	boolean: upperBool,
	bytes: func(b []byte) string {
		return "X'" + hexString(b) + "'"
	},
	layouts: map[schema.TypeKind]string{
		schema.KindDate:      "2006-01-02",
		schema.KindTime:      "15:04:05.999999",
		schema.KindTimestamp: "2006-01-02 15:04:05.999999",
	},
}

func (MySQL) Literal(v any, kind schema.TypeKind) (string, error) {
	return mysqlLiterals.render(v, kind)
}

func (MySQL) Limit(sb squirrel.SelectBuilder, n uint64) squirrel.SelectBuilder {
	return sb.Limit(n)
}

func (m MySQL) EmptyInsert(table string) string {
	return "INSERT INTO " + m.QuoteIdent(table) + " () VALUES ()"
}

func (MySQL) IdentityInsert(string, bool) string { return "" }

func (MySQL) DeferConstraints() string { return "SET FOREIGN_KEY_CHECKS = 0" }

func (MySQL) SnapshotOptions() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
}

func (MySQL) ForwardReferences() bool { return false }
