package schema

import (
	"sort"
	"strings"
)

// Table is a snapshot of one source table's structure.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  []string
	ForeignKeys []ForeignKey
}

// Column holds the reflected metadata of a single column
type Column struct {
	Name          string
	Type          ColumnType
	Nullable      bool
	AutoIncrement bool
	// Default is the server-side default expression, nil when the column has none.
	Default *string
}

// ForeignKey references another table (or the same table) by column list
type ForeignKey struct {
	Name       string
	Columns    []string
	RefTable   string
	RefColumns []string
}

// IsSelfReference reports whether fk points back at its owning table.
func (fk ForeignKey) IsSelfReference(owner string) bool {
	return strings.EqualFold(fk.RefTable, owner)
}

// Column returns the named column, or nil.
func (t *Table) Column(name string) *Column {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i]
		}
	}
	return nil
}

// ColumnNames returns the column names in declaration order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		names[i] = col.Name
	}
	return names
}

// References returns the names of the other tables t depends on, sorted and
// without duplicates. Self references are left out.
func (t *Table) References() []string {
	seen := make(map[string]bool)
	var refs []string
	for _, fk := range t.ForeignKeys {
		if fk.IsSelfReference(t.Name) || seen[fk.RefTable] {
			continue
		}
		seen[fk.RefTable] = true
		refs = append(refs, fk.RefTable)
	}
	sort.Strings(refs)
	return refs
}

// HasPrimaryKey reports whether the table declares a primary key
func (t *Table) HasPrimaryKey() bool {
	return len(t.PrimaryKey) > 0
}

// Complete reports whether the reflected metadata is enough to rebuild the
// table elsewhere: at least one column, and every column has a known type name.
func (t *Table) Complete() bool {
	if len(t.Columns) == 0 {
		return false
	}
	for _, col := range t.Columns {
		if col.Type.Name == "" {
			return false
		}
	}
	return true
}

// Row is one fetched record, values aligned with Columns.
type Row struct {
	Columns []string
	Values  []any
}

// Get returns the value of the named column and whether it exists.
func (r Row) Get(name string) (any, bool) {
	for i, col := range r.Columns {
		if col == name {
			return r.Values[i], true
		}
	}
	return nil, false
}

// Batch is one page of rows.
type Batch []Row
