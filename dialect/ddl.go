package dialect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/imtaco/sqlcrossover/schema"
)

// CreateTable renders t as a CREATE TABLE statement without the trailing
// terminator. Defaults captured on auto-increment columns are sequence
// bindings of the source engine and are never rendered.
func CreateTable(d Dialect, t *schema.Table) string {
	soleKey := ""
	if len(t.PrimaryKey) == 1 {
		soleKey = t.PrimaryKey[0]
	}

	inlinePK := false
	defs := make([]string, 0, len(t.Columns)+len(t.ForeignKeys)+1)
	for _, col := range t.Columns {
		def := d.QuoteIdent(col.Name) + " " + d.TypeName(col.Type)
		if col.AutoIncrement {
			clause, inline := d.AutoIncrement(col, col.Name == soleKey)
			if inline {
				// the inline key clause has to follow the bare type
				def = d.QuoteIdent(col.Name) + " INTEGER " + clause
				inlinePK = true
				defs = append(defs, def)
				continue
			}
			if !col.Nullable {
				def += " NOT NULL"
			}
			if clause != "" {
				def += " " + clause
			}
			defs = append(defs, def)
			continue
		}
		if !col.Nullable {
			def += " NOT NULL"
		}
		if expr := PortableDefault(col.Default); expr != "" {
			def += " DEFAULT " + expr
		}
		defs = append(defs, def)
	}

	if len(t.PrimaryKey) > 0 && !inlinePK {
		defs = append(defs, "PRIMARY KEY ("+quoteList(d, t.PrimaryKey)+")")
	}
	for _, fk := range t.ForeignKeys {
		defs = append(defs, foreignKeyClause(d, fk))
	}

	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", d.QuoteIdent(t.Name), strings.Join(defs, ",\n\t"))
}

// CreateStatements renders CREATE TABLE for tables in the given order. When
// the dialect cannot reference a table before it exists, foreign keys
// pointing forward (only possible inside a deferred cycle) are split out
// into ALTER TABLE statements emitted after every table is created.
func CreateStatements(d Dialect, tables []*schema.Table) []string {
	created := make(map[string]bool, len(tables))
	var stmts, alters []string
	for _, t := range tables {
		created[t.Name] = true
		if d.ForwardReferences() {
			stmts = append(stmts, CreateTable(d, t))
			continue
		}

		inline := *t
		inline.ForeignKeys = nil
		for _, fk := range t.ForeignKeys {
			if created[fk.RefTable] {
				inline.ForeignKeys = append(inline.ForeignKeys, fk)
				continue
			}
			alters = append(alters, AddForeignKey(d, t.Name, fk))
		}
		stmts = append(stmts, CreateTable(d, &inline))
	}
	return append(stmts, alters...)
}

// AddForeignKey renders an ALTER TABLE adding fk to table
func AddForeignKey(d Dialect, table string, fk schema.ForeignKey) string {
	return fmt.Sprintf("ALTER TABLE %s ADD %s", d.QuoteIdent(table), foreignKeyClause(d, fk))
}

// deferrable is implemented by dialects whose session-level deferral only
// reaches foreign keys declared with an extra clause.
type deferrable interface {
	DeferrableClause() string
}

func foreignKeyClause(d Dialect, fk schema.ForeignKey) string {
	def := ""
	if fk.Name != "" {
		def = "CONSTRAINT " + d.QuoteIdent(fk.Name) + " "
	}
	def += fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		quoteList(d, fk.Columns), d.QuoteIdent(fk.RefTable), quoteList(d, fk.RefColumns))
	if dd, ok := d.(deferrable); ok {
		def += " " + dd.DeferrableClause()
	}
	return def
}

// PortableDefault cleans a captured default expression so it replays on
// another engine. Sequence bindings are dropped entirely, type casts
// ("'x'::character varying") and the parentheses SQL Server wraps defaults
// in are removed, and the common "current time" spellings are unified.
func PortableDefault(expr *string) string {
	if expr == nil {
		return ""
	}
	def := strings.TrimSpace(*expr)
	for len(def) >= 2 && def[0] == '(' && def[len(def)-1] == ')' && balanced(def[1:len(def)-1]) {
		def = strings.TrimSpace(def[1 : len(def)-1])
	}

	lower := strings.ToLower(def)
	switch {
	case def == "", lower == "null":
		return ""
	case strings.HasPrefix(lower, "nextval("):
		return ""
	case lower == "now()", lower == "current_timestamp", lower == "current_timestamp()",
		lower == "getdate()", lower == "sysdatetime()", lower == "localtimestamp":
		return "CURRENT_TIMESTAMP"
	}
	if i := strings.Index(def, "::"); i > 0 && !inQuotes(def, i) {
		def = def[:i]
	}
	return def
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func inQuotes(s string, pos int) bool {
	return strings.Count(s[:pos], "'")%2 == 1
}

// Insert renders row as a standalone INSERT with every value inlined as a
// literal. NULL values are left out of both the column and the value list,
// so the target fills them with NULL (or the column default).
func Insert(d Dialect, t *schema.Table, row schema.Row) (string, error) {
	cols := make([]string, 0, len(row.Columns))
	vals := make([]string, 0, len(row.Columns))
	for i, name := range row.Columns {
		v := row.Values[i]
		if v == nil {
			continue
		}
		kind := schema.KindUnknown
		if col := t.Column(name); col != nil {
			kind = col.Type.Kind
		}
		lit, err := d.Literal(v, kind)
		if err != nil {
			var fe *schema.FormatError
			if errors.As(err, &fe) {
				fe.Table, fe.Column = t.Name, name
			}
			return "", err
		}
		cols = append(cols, d.QuoteIdent(name))
		vals = append(vals, lit)
	}

	if len(cols) == 0 {
		return d.EmptyInsert(t.Name), nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		d.QuoteIdent(t.Name), strings.Join(cols, ", "), strings.Join(vals, ", ")), nil
}

func quoteList(d Dialect, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return strings.Join(quoted, ", ")
}

// QuoteAll quotes each name with d
func QuoteAll(d Dialect, names []string) []string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.QuoteIdent(n)
	}
	return quoted
}
