package schema

import (
	"strconv"
	"strings"
)

// TypeKind is the engine independent family of a column type. Dialects map
// kinds back to concrete DDL types.
type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindBoolean
	KindSmallInt
	KindInteger
	KindBigInt
	KindFloat
	KindDecimal
	KindString
	KindText
	KindBinary
	KindDate
	KindTime
	KindTimestamp
	KindUUID
	KindJSON
)

var kindNames = map[TypeKind]string{
	KindUnknown:   "unknown",
	KindBoolean:   "boolean",
	KindSmallInt:  "smallint",
	KindInteger:   "integer",
	KindBigInt:    "bigint",
	KindFloat:     "float",
	KindDecimal:   "decimal",
	KindString:    "string",
	KindText:      "text",
	KindBinary:    "binary",
	KindDate:      "date",
	KindTime:      "time",
	KindTimestamp: "timestamp",
	KindUUID:      "uuid",
	KindJSON:      "json",
}

func (k TypeKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Textual reports whether values of this kind travel as character data.
func (k TypeKind) Textual() bool {
	switch k {
	case KindString, KindText, KindUUID, KindJSON, KindDecimal, KindUnknown:
		return true
	}
	return false
}

// ColumnType describes a reflected column type.
type ColumnType struct {
	// Name is the type name as the source engine reports it.
	Name      string
	Kind      TypeKind
	Length    int
	Precision int
	Scale     int
}

// typeKinds maps lower-cased engine type names to kinds. Covers the names
// reported by PostgreSQL, MySQL, SQLite and SQL Server catalogs.
var typeKinds = map[string]TypeKind{
	"bool": KindBoolean, "boolean": KindBoolean, "bit": KindBoolean,

	"smallint": KindSmallInt, "int2": KindSmallInt, "tinyint": KindSmallInt,
	"integer": KindInteger, "int": KindInteger, "int4": KindInteger, "mediumint": KindInteger,
	"serial": KindInteger,
	"bigint": KindBigInt, "int8": KindBigInt, "bigserial": KindBigInt,

	"real": KindFloat, "float": KindFloat, "float4": KindFloat, "float8": KindFloat,
	"double": KindFloat, "double precision": KindFloat,
	"numeric": KindDecimal, "decimal": KindDecimal, "money": KindDecimal, "smallmoney": KindDecimal,

	"varchar": KindString, "character varying": KindString, "char": KindString,
	"character": KindString, "nvarchar": KindString, "nchar": KindString, "bpchar": KindString,
	"text": KindText, "ntext": KindText, "mediumtext": KindText, "longtext": KindText,
	"tinytext": KindText, "clob": KindText, "xml": KindText, "citext": KindText,

	"bytea": KindBinary, "blob": KindBinary, "binary": KindBinary, "varbinary": KindBinary,
	"image": KindBinary, "longblob": KindBinary, "mediumblob": KindBinary, "tinyblob": KindBinary,

	"date": KindDate,
	"time": KindTime, "time without time zone": KindTime, "time with time zone": KindTime,
	"timestamp": KindTimestamp, "timestamp without time zone": KindTimestamp,
	"timestamp with time zone": KindTimestamp, "timestamptz": KindTimestamp,
	"datetime": KindTimestamp, "datetime2": KindTimestamp, "smalldatetime": KindTimestamp,
	"datetimeoffset": KindTimestamp,

	"uuid": KindUUID, "uniqueidentifier": KindUUID,
	"json": KindJSON, "jsonb": KindJSON,

	// geometric and network types have no portable equivalent
	"point": KindText, "line": KindText, "polygon": KindText, "box": KindText,
	"enum": KindString, "set": KindString, "year": KindSmallInt,
	"inet": KindString, "cidr": KindString, "macaddr": KindString, "interval": KindString,
}

// ClassifyType maps an engine type name such as "VARCHAR(255)" or
// "timestamp with time zone" to its kind.
func ClassifyType(raw string) TypeKind {
	name := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.IndexByte(name, '('); i >= 0 {
		name = strings.TrimSpace(name[:i])
	}
	name = strings.TrimSuffix(name, " unsigned")
	if kind, ok := typeKinds[name]; ok {
		return kind
	}

	// SQLite type affinity rules for declared types we don't know by name
	switch {
	case strings.Contains(name, "int"):
		return KindInteger
	case strings.Contains(name, "char"), strings.Contains(name, "clob"), strings.Contains(name, "text"):
		return KindText
	case strings.Contains(name, "blob"):
		return KindBinary
	case strings.Contains(name, "real"), strings.Contains(name, "floa"), strings.Contains(name, "doub"):
		return KindFloat
	}
	return KindUnknown
}

// NewColumnType builds a ColumnType from a raw type name, classifying it.
func NewColumnType(raw string) ColumnType {
	return ColumnType{Name: raw, Kind: ClassifyType(raw)}
}

// ParseColumnType splits a declared type such as "VARCHAR(80)" or
// "decimal(10, 2) unsigned" into name, length or precision and scale.
func ParseColumnType(raw string) ColumnType {
	ct := ColumnType{Name: strings.TrimSpace(raw), Kind: ClassifyType(raw)}
	open := strings.IndexByte(raw, '(')
	end := strings.IndexByte(raw, ')')
	if open < 0 || end < open {
		return ct
	}
	ct.Name = strings.TrimSpace(raw[:open])
	args := strings.Split(raw[open+1:end], ",")
	first, err := strconv.Atoi(strings.TrimSpace(args[0]))
	if err != nil {
		return ct
	}
	if ct.Kind == KindDecimal {
		ct.Precision = first
		if len(args) > 1 {
			ct.Scale, _ = strconv.Atoi(strings.TrimSpace(args[1]))
		}
	} else {
		ct.Length = first
	}
	return ct
}
