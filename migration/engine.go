package migration

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/imtaco/sqlcrossover/schema"
	"github.com/imtaco/sqlcrossover/source"
	"github.com/imtaco/sqlcrossover/target"
)

// TableState tracks one table through the copy.
type TableState int

const (
	StateNotStarted TableState = iota
	StateFetching
	StateInserting
	StateDone
	StateFailed
	StateSkipped
)

func (s TableState) String() string {
	switch s {
	case StateNotStarted:
		return "not started"
	case StateFetching:
		return "fetching"
	case StateInserting:
		return "inserting"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	}
	return fmt.Sprintf("TableState(%d)", int(s))
}

// TableResult is what happened to one table.
type TableResult struct {
	Table   string
	State   TableState
	Rows    int
	Pages   int
	Elapsed time.Duration
	Err     error
}

// copier moves the rows of one table at a time from source to target.
type copier struct {
	src      source.SourceDB
	tgt      target.Target
	pageSize int
	// fetches counts every page read, the terminating empty one included
	fetches int
}

// copyTable runs fetch/insert rounds until the source returns an empty
// page. Any failure stops the table; rows already written stay written
// unless the surrounding scope rolls them back.
func (c *copier) copyTable(ctx context.Context, q source.Querier, table *schema.Table) TableResult {
	res := TableResult{Table: table.Name, State: StateNotStarted}
	start := time.Now()

	fail := func(err error) TableResult {
		res.State = StateFailed
		res.Err = err
		res.Elapsed = time.Since(start)
		return res
	}

	cur := newCursor(c.src, q, table, c.pageSize)
	defer cur.Close()

	for {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		res.State = StateFetching
		batch, err := cur.Next(ctx)
		c.fetches++
		if err != nil {
			return fail(fmt.Errorf("failed to fetch page %d of %s: %w", res.Pages+1, table.Name, err))
		}
		if len(batch) == 0 {
			break
		}

		res.State = StateInserting
		n, err := c.tgt.Insert(ctx, table.Name, table, batch)
		if err != nil {
			return fail(err)
		}
		if n == 0 {
			return fail(&schema.InsertError{Table: table.Name, Rows: len(batch), Err: schema.ErrNoRows})
		}
		if n != len(batch) {
			log.Printf("[Table %s] WARNING: page %d wrote %d of %d rows", table.Name, res.Pages+1, n, len(batch))
		}
		res.Pages++
		res.Rows += n
	}

	res.State = StateDone
	res.Elapsed = time.Since(start)
	return res
}
