package schema

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestClassifyType(t *testing.T) {
	tests := map[string]TypeKind{
		"integer":                  KindInteger,
		"INT UNSIGNED":             KindInteger,
		"bigint":                   KindBigInt,
		"VARCHAR(255)":             KindString,
		"character varying":        KindString,
		"nvarchar":                 KindString,
		"timestamp with time zone": KindTimestamp,
		"datetime2":                KindTimestamp,
		"decimal(10,2)":            KindDecimal,
		"bytea":                    KindBinary,
		"uniqueidentifier":         KindUUID,
		"jsonb":                    KindJSON,
		"bit":                      KindBoolean,
		"enum":                     KindString,
		// sqlite affinity fallbacks
		"UNSIGNED BIG INT":   KindInteger,
		"VARYING CHARACTER":  KindText,
		"DOUBLE PRECISION X": KindFloat,
		"geography":          KindUnknown,
	}
	for raw, want := range tests {
		if got := ClassifyType(raw); got != want {
			t.Errorf("ClassifyType(%q) = %s, want %s", raw, got, want)
		}
	}
}

func TestParseColumnType(t *testing.T) {
	tests := []struct {
		raw  string
		want ColumnType
	}{
		{"VARCHAR(80)", ColumnType{Name: "VARCHAR", Kind: KindString, Length: 80}},
		{"decimal(10, 2)", ColumnType{Name: "decimal", Kind: KindDecimal, Precision: 10, Scale: 2}},
		{"TEXT", ColumnType{Name: "TEXT", Kind: KindText}},
		{"varchar(max)", ColumnType{Name: "varchar", Kind: KindString}},
	}
	for _, tt := range tests {
		if got := ParseColumnType(tt.raw); got != tt.want {
			t.Errorf("ParseColumnType(%q) = %+v, want %+v", tt.raw, got, tt.want)
		}
	}
}

func TestReferences(t *testing.T) {
	table := &Table{
		Name: "Orders",
		ForeignKeys: []ForeignKey{
			{Columns: []string{"user_id"}, RefTable: "users"},
			{Columns: []string{"parent_id"}, RefTable: "orders"},
			{Columns: []string{"buyer_id"}, RefTable: "users"},
			{Columns: []string{"sku"}, RefTable: "products"},
		},
	}
	if got, want := table.References(), []string{"products", "users"}; !reflect.DeepEqual(got, want) {
		t.Errorf("References() = %v, want %v", got, want)
	}
}

func TestComplete(t *testing.T) {
	table := &Table{Name: "t"}
	if table.Complete() {
		t.Error("table without columns reported complete")
	}
	table.Columns = []Column{{Name: "a", Type: NewColumnType("int")}}
	if !table.Complete() {
		t.Error("typed table reported incomplete")
	}
	table.Columns = append(table.Columns, Column{Name: "b"})
	if table.Complete() {
		t.Error("untyped column not detected")
	}
}

func TestRowGet(t *testing.T) {
	row := Row{Columns: []string{"id", "name"}, Values: []any{int64(1), nil}}
	if v, ok := row.Get("id"); !ok || v != int64(1) {
		t.Errorf("Get(id) = %v, %v", v, ok)
	}
	if v, ok := row.Get("name"); !ok || v != nil {
		t.Errorf("Get(name) = %v, %v", v, ok)
	}
	if _, ok := row.Get("missing"); ok {
		t.Error("Get(missing) reported present")
	}
}

func TestErrorsUnwrap(t *testing.T) {
	cause := errors.New("duplicate key")
	var err error = &InsertError{Table: "users", Rows: 2, Constraint: ConstraintUnique, Err: cause}
	if !errors.Is(err, cause) {
		t.Error("InsertError does not unwrap")
	}
	if msg := err.Error(); !strings.Contains(msg, "unique violation") || !strings.Contains(msg, "users") {
		t.Errorf("unexpected message %q", msg)
	}

	err = &CycleError{Members: []string{"a", "b"}, Cycles: [][]string{{"a", "b"}}}
	if !strings.Contains(err.Error(), "[a, b]") {
		t.Errorf("cycle members missing from %q", err.Error())
	}

	err = &ReflectionError{Table: "t", Err: ErrNoRows}
	if !errors.Is(err, ErrNoRows) {
		t.Error("ReflectionError does not unwrap")
	}
}
