package dialect

import (
	"fmt"

	"github.com/Masterminds/squirrel"

	"github.com/imtaco/sqlcrossover/schema"
)

// SelectPage builds the keyset pagination query for t: up to limit rows
// ordered by primary key, strictly after the key values in after. A nil
// after starts from the beginning.
func SelectPage(d Dialect, t *schema.Table, after []any, limit uint64) (string, []any, error) {
	if !t.HasPrimaryKey() {
		return "", nil, fmt.Errorf("table %s has no primary key to paginate on", t.Name)
	}
	if after != nil && len(after) != len(t.PrimaryKey) {
		return "", nil, fmt.Errorf("cursor for %s has %d key values, want %d", t.Name, len(after), len(t.PrimaryKey))
	}

	sb := squirrel.Select(QuoteAll(d, t.ColumnNames())...).
		From(d.QuoteIdent(t.Name)).
		PlaceholderFormat(d.Placeholder())
	if after != nil {
		sb = sb.Where(keysetAfter(d, t.PrimaryKey, after))
	}
	sb = sb.OrderBy(QuoteAll(d, t.PrimaryKey)...)
	return d.Limit(sb, limit).ToSql()
}

// keysetAfter expands (k1, k2, ..) > (v1, v2, ..) into
// k1 > v1 OR (k1 = v1 AND k2 > v2) OR ... which every engine understands.
func keysetAfter(d Dialect, keys []string, after []any) squirrel.Sqlizer {
	or := squirrel.Or{}
	for i := range keys {
		and := squirrel.And{}
		for j := 0; j < i; j++ {
			and = append(and, squirrel.Expr(d.QuoteIdent(keys[j])+" = ?", after[j]))
		}
		and = append(and, squirrel.Expr(d.QuoteIdent(keys[i])+" > ?", after[i]))
		or = append(or, and)
	}
	if len(or) == 1 {
		return or[0]
	}
	return or
}

// SelectAll builds the single ordered scan used for tables without a
// primary key. Columns whose kind has no reliable ordering are left out of
// the ORDER BY.
func SelectAll(d Dialect, t *schema.Table) (string, []any, error) {
	sb := squirrel.Select(QuoteAll(d, t.ColumnNames())...).
		From(d.QuoteIdent(t.Name)).
		PlaceholderFormat(d.Placeholder())

	var order []string
	for _, col := range t.Columns {
		switch col.Type.Kind {
		case schema.KindBinary, schema.KindText, schema.KindJSON, schema.KindUnknown:
			continue
		}
		order = append(order, d.QuoteIdent(col.Name))
	}
	if len(order) > 0 {
		sb = sb.OrderBy(order...)
	}
	return sb.ToSql()
}
