package migration

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/imtaco/sqlcrossover/dialect"
	"github.com/imtaco/sqlcrossover/schema"
	"github.com/imtaco/sqlcrossover/source"
)

// cursor hands out a table's rows one page at a time. An empty page means
// the table is exhausted.
type cursor interface {
	Next(ctx context.Context) (schema.Batch, error)
	Close() error
}

func newCursor(src source.SourceDB, q source.Querier, table *schema.Table, pageSize int) cursor {
	if table.HasPrimaryKey() {
		return newKeysetCursor(src, q, table, pageSize)
	}
	return &streamCursor{src: src, q: q, table: table, pageSize: pageSize}
}

// keysetCursor pages by primary key. Each page is a fresh query for rows
// strictly after the last key seen, so rows deleted or inserted behind the
// cursor never shift the pages still to come.
type keysetCursor struct {
	src      source.SourceDB
	q        source.Querier
	table    *schema.Table
	pageSize int
	keyIdx   []int
	last     []any
	done     bool
}

func newKeysetCursor(src source.SourceDB, q source.Querier, table *schema.Table, pageSize int) *keysetCursor {
	c := &keysetCursor{src: src, q: q, table: table, pageSize: pageSize}
	for _, key := range table.PrimaryKey {
		idx := -1
		for i, col := range table.Columns {
			if col.Name == key {
				idx = i
				break
			}
		}
		c.keyIdx = append(c.keyIdx, idx)
	}
	return c
}

func (c *keysetCursor) Next(ctx context.Context) (schema.Batch, error) {
	if c.done {
		return nil, nil
	}
	for i, idx := range c.keyIdx {
		if idx < 0 {
			return nil, fmt.Errorf("primary key column %s not found in table %s", c.table.PrimaryKey[i], c.table.Name)
		}
	}

	query, args, err := dialect.SelectPage(c.src.Dialect(), c.table, c.last, uint64(c.pageSize))
	if err != nil {
		return nil, err
	}
	rows, err := c.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query page of %s: %w", c.table.Name, err)
	}
	defer rows.Close()

	batch, err := scanRows(rows, c.src, c.table, c.pageSize)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		c.done = true
		return nil, nil
	}

	lastRow := batch[len(batch)-1]
	c.last = make([]any, len(c.keyIdx))
	for i, idx := range c.keyIdx {
		c.last[i] = lastRow.Values[idx]
	}
	return batch, nil
}

func (c *keysetCursor) Close() error { return nil }

// streamCursor reads a table without a primary key through one ordered
// scan held open between pages.
type streamCursor struct {
	src      source.SourceDB
	q        source.Querier
	table    *schema.Table
	pageSize int
	rows     *sql.Rows
	done     bool
}

func (c *streamCursor) Next(ctx context.Context) (schema.Batch, error) {
	if c.done {
		return nil, nil
	}
	if c.rows == nil {
		query, args, err := dialect.SelectAll(c.src.Dialect(), c.table)
		if err != nil {
			return nil, err
		}
		rows, err := c.q.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, fmt.Errorf("failed to query %s: %w", c.table.Name, err)
		}
		c.rows = rows
	}

	batch, err := scanRows(c.rows, c.src, c.table, c.pageSize)
	if err != nil {
		return nil, err
	}
	if len(batch) < c.pageSize {
		c.done = true
		if err := c.Close(); err != nil {
			return nil, err
		}
	}
	return batch, nil
}

func (c *streamCursor) Close() error {
	if c.rows == nil {
		return nil
	}
	err := c.rows.Close()
	c.rows = nil
	return err
}

// scanRows reads up to limit rows, running each value through the source's
// conversion for its column.
func scanRows(rows *sql.Rows, src source.SourceDB, table *schema.Table, limit int) (schema.Batch, error) {
	names := table.ColumnNames()
	var batch schema.Batch
	for len(batch) < limit && rows.Next() {
		values := make([]any, len(table.Columns))
		ptrs := make([]any, len(values))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row of %s: %w", table.Name, err)
		}
		for i, col := range table.Columns {
			values[i] = src.ConvertValue(values[i], col)
		}
		batch = append(batch, schema.Row{Columns: names, Values: values})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows of %s: %w", table.Name, err)
	}
	return batch, nil
}
