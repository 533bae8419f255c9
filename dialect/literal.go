package dialect

import (
	"database/sql/driver"
	"encoding/hex"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"

	mssql "github.com/denisenkom/go-mssqldb"

	"github.com/imtaco/sqlcrossover/schema"
)

var (
	errNulByte   = errors.New("string contains a NUL byte")
	errNonFinite = errors.New("non-finite float")
	errNotNumber = errors.New("not a numeric value")
)

// literalStyle holds the formatting rules that differ between dialects.
// render does the type switch once for all of them.
type literalStyle struct {
	dialect   string
	quote     func(string) (string, error)
	boolean   func(bool) string
	bytes     func([]byte) string
	layouts   map[schema.TypeKind]string
	nonFinite func(float64) (string, bool)
}

func (ls literalStyle) render(v any, kind schema.TypeKind) (string, error) {
	switch x := v.(type) {
	case nil:
		return "NULL", nil
	case bool:
		return ls.boolean(x), nil
	case int:
		return strconv.FormatInt(int64(x), 10), nil
	case int8:
		return strconv.FormatInt(int64(x), 10), nil
	case int16:
		return strconv.FormatInt(int64(x), 10), nil
	case int32:
		return strconv.FormatInt(int64(x), 10), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	case uint:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint8:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint16:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint32:
		return strconv.FormatUint(uint64(x), 10), nil
	case uint64:
		return strconv.FormatUint(x, 10), nil
	case float32:
		return ls.float(float64(x), 32, v)
	case float64:
		return ls.float(x, 64, v)
	case string:
		if kind == schema.KindBinary {
			return ls.bytes([]byte(x)), nil
		}
		return ls.quoted(x, v)
	case []byte:
		return ls.raw(x, kind, v)
	case time.Time:
		layout, ok := ls.layouts[kind]
		if !ok {
			layout = ls.layouts[schema.KindTimestamp]
		}
		return ls.quoted(x.Format(layout), v)
	case mssql.UniqueIdentifier:
		return ls.quoted(strings.ToLower(x.String()), v)
	case driver.Valuer:
		inner, err := x.Value()
		if err != nil {
			return "", ls.fail(v, err)
		}
		if _, again := inner.(driver.Valuer); again {
			return "", ls.fail(v, nil)
		}
		return ls.render(inner, kind)
	}
	return "", ls.fail(v, nil)
}

func (ls literalStyle) float(f float64, bits int, orig any) (string, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		if ls.nonFinite != nil {
			if s, ok := ls.nonFinite(f); ok {
				return s, nil
			}
		}
		return "", ls.fail(orig, errNonFinite)
	}
	return strconv.FormatFloat(f, 'g', -1, bits), nil
}

func (ls literalStyle) quoted(s string, orig any) (string, error) {
	out, err := ls.quote(s)
	if err != nil {
		return "", ls.fail(orig, err)
	}
	return out, nil
}

// raw renders driver byte slices. Several drivers (mysql without parseTime,
// mssql decimals) hand back text as []byte, so the column kind decides.
func (ls literalStyle) raw(b []byte, kind schema.TypeKind, orig any) (string, error) {
	switch kind {
	case schema.KindBinary:
		return ls.bytes(b), nil
	case schema.KindSmallInt, schema.KindInteger, schema.KindBigInt, schema.KindFloat, schema.KindDecimal:
		s := string(b)
		if _, err := strconv.ParseFloat(s, 64); err != nil {
			return "", ls.fail(orig, errNotNumber)
		}
		return s, nil
	case schema.KindBoolean:
		if parsed, err := strconv.ParseBool(string(b)); err == nil {
			return ls.boolean(parsed), nil
		}
	}
	return ls.quoted(string(b), orig)
}

func (ls literalStyle) fail(v any, err error) error {
	return &schema.FormatError{Dialect: ls.dialect, Value: v, Err: err}
}

func upperBool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

func bitBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func hexString(b []byte) string {
	return hex.EncodeToString(b)
}

func doubledQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
