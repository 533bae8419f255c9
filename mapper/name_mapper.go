package mapper

import (
	"fmt"
	"strings"

	"github.com/iancoleman/strcase"

	"github.com/imtaco/sqlcrossover/schema"
)

// NameMapper defines the interface for mapping table and column names
type NameMapper interface {
	// MapTableName maps source table name to target table name
	MapTableName(sourceTableName string) string

	// MapColumnName maps source column name to target column name for a specific table
	MapColumnName(tableName string, sourceColumnName string) string
}

// DefaultNameMapper provides a default implementation that doesn't change names
type DefaultNameMapper struct{}

// NewDefaultNameMapper creates a new default name mapper
func NewDefaultNameMapper() *DefaultNameMapper {
	return &DefaultNameMapper{}
}

// MapTableName returns the table name unchanged
func (m *DefaultNameMapper) MapTableName(sourceTableName string) string {
	return sourceTableName
}

// MapColumnName returns the column name unchanged
func (m *DefaultNameMapper) MapColumnName(tableName string, sourceColumnName string) string {
	return sourceColumnName
}

// CustomNameMapper allows users to define custom mappings for tables and columns
type CustomNameMapper struct {
	// TableMappings maps source table names to target table names
	TableMappings map[string]string

	// ColumnMappings maps table names to their column mappings
	// Format: map[tableName]map[sourceColumnName]targetColumnName
	ColumnMappings map[string]map[string]string

	// TableNameTransformer is an optional function to transform table names
	// Applied after checking TableMappings
	TableNameTransformer func(string) string

	// ColumnNameTransformer is an optional function to transform column names
	// Applied after checking ColumnMappings
	ColumnNameTransformer func(tableName, columnName string) string
}

// NewCustomNameMapper creates a new custom name mapper
func NewCustomNameMapper() *CustomNameMapper {
	return &CustomNameMapper{
		TableMappings:  make(map[string]string),
		ColumnMappings: make(map[string]map[string]string),
	}
}

// MapTableName maps source table name to target table name
func (m *CustomNameMapper) MapTableName(sourceTableName string) string {
	// Check explicit mapping first
	if mapped, ok := m.TableMappings[sourceTableName]; ok {
		return mapped
	}
	// config loaders may lower-case map keys
	if mapped, ok := m.TableMappings[strings.ToLower(sourceTableName)]; ok {
		return mapped
	}

	// Apply transformer if available
	if m.TableNameTransformer != nil {
		return m.TableNameTransformer(sourceTableName)
	}

	// Return original name
	return sourceTableName
}

// MapColumnName maps source column name to target column name for a specific table
func (m *CustomNameMapper) MapColumnName(tableName string, sourceColumnName string) string {
	// Check table-specific column mapping first
	tableMappings, ok := m.ColumnMappings[tableName]
	if !ok {
		tableMappings = m.ColumnMappings[strings.ToLower(tableName)]
	}
	if mapped, ok := tableMappings[sourceColumnName]; ok {
		return mapped
	}
	if mapped, ok := tableMappings[strings.ToLower(sourceColumnName)]; ok {
		return mapped
	}

	// Apply transformer if available
	if m.ColumnNameTransformer != nil {
		return m.ColumnNameTransformer(tableName, sourceColumnName)
	}

	// Return original name
	return sourceColumnName
}

// AddTableMapping adds a table name mapping
func (m *CustomNameMapper) AddTableMapping(source, target string) {
	m.TableMappings[source] = target
}

// AddColumnMapping adds a column name mapping for a specific table
func (m *CustomNameMapper) AddColumnMapping(tableName, sourceColumn, targetColumn string) {
	if m.ColumnMappings[tableName] == nil {
		m.ColumnMappings[tableName] = make(map[string]string)
	}
	m.ColumnMappings[tableName][sourceColumn] = targetColumn
}

// SetTableNameTransformer sets a function to transform all table names
func (m *CustomNameMapper) SetTableNameTransformer(transformer func(string) string) {
	m.TableNameTransformer = transformer
}

// SetColumnNameTransformer sets a function to transform all column names
func (m *CustomNameMapper) SetColumnNameTransformer(transformer func(tableName, columnName string) string) {
	m.ColumnNameTransformer = transformer
}

// Transformer returns the named case transformer. An empty name means no
// transformation and returns nil.
func Transformer(name string) (func(string) string, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return nil, nil
	case "lower":
		return ToLowerCaseTransformer, nil
	case "upper":
		return ToUpperCaseTransformer, nil
	case "snake":
		return ToSnakeCaseTransformer, nil
	case "camel":
		return ToCamelCaseTransformer, nil
	case "pascal":
		return ToPascalCaseTransformer, nil
	case "kebab":
		return ToKebabCaseTransformer, nil
	}
	return nil, fmt.Errorf("unknown name case %q", name)
}

// New builds the mapper for a run: explicit table renames first, then the
// named case transform for tables and columns. With neither it returns the
// default mapper.
func New(nameCase string, tableMap map[string]string, columnMap map[string]map[string]string) (NameMapper, error) {
	transform, err := Transformer(nameCase)
	if err != nil {
		return nil, err
	}
	if transform == nil && len(tableMap) == 0 && len(columnMap) == 0 {
		return NewDefaultNameMapper(), nil
	}

	m := NewCustomNameMapper()
	for src, dst := range tableMap {
		m.AddTableMapping(src, dst)
	}
	for table, cols := range columnMap {
		for src, dst := range cols {
			m.AddColumnMapping(table, src, dst)
		}
	}
	if transform != nil {
		m.SetTableNameTransformer(transform)
		m.SetColumnNameTransformer(func(_, column string) string { return transform(column) })
	}
	return m, nil
}

// MapTable returns a copy of t with every table and column name passed
// through m, including primary key and foreign key references.
func MapTable(m NameMapper, t *schema.Table) *schema.Table {
	out := &schema.Table{
		Name:       m.MapTableName(t.Name),
		Columns:    make([]schema.Column, len(t.Columns)),
		PrimaryKey: mapColumns(m, t.Name, t.PrimaryKey),
	}
	for i, col := range t.Columns {
		col.Name = m.MapColumnName(t.Name, col.Name)
		out.Columns[i] = col
	}
	for _, fk := range t.ForeignKeys {
		out.ForeignKeys = append(out.ForeignKeys, schema.ForeignKey{
			Name:       fk.Name,
			Columns:    mapColumns(m, t.Name, fk.Columns),
			RefTable:   m.MapTableName(fk.RefTable),
			RefColumns: mapColumns(m, fk.RefTable, fk.RefColumns),
		})
	}
	return out
}

// MapRow renames the columns of row, which belongs to the source table named table.
func MapRow(m NameMapper, table string, row schema.Row) schema.Row {
	return schema.Row{Columns: mapColumns(m, table, row.Columns), Values: row.Values}
}

func mapColumns(m NameMapper, table string, cols []string) []string {
	if cols == nil {
		return nil
	}
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = m.MapColumnName(table, c)
	}
	return out
}

// Common transformers that can be used

// ToLowerCaseTransformer converts names to lowercase
func ToLowerCaseTransformer(name string) string {
	return strings.ToLower(name)
}

// ToUpperCaseTransformer converts names to uppercase
func ToUpperCaseTransformer(name string) string {
	return strings.ToUpper(name)
}

// ToSnakeCaseTransformer converts PascalCase/camelCase to snake_case
// Uses the strcase library for proper conversion
func ToSnakeCaseTransformer(name string) string {
	return strcase.ToSnake(name)
}

// ToCamelCaseTransformer converts names to camelCase
func ToCamelCaseTransformer(name string) string {
	return strcase.ToLowerCamel(name)
}

// ToPascalCaseTransformer converts names to PascalCase
func ToPascalCaseTransformer(name string) string {
	return strcase.ToCamel(name)
}

// ToKebabCaseTransformer converts names to kebab-case
func ToKebabCaseTransformer(name string) string {
	return strcase.ToKebab(name)
}
