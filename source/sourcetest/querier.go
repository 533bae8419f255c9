// Package sourcetest provides a Querier that answers engine catalog queries
// with canned result sets, so catalog code scans real *sql.Rows without a
// live server.
package sourcetest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"

	_ "modernc.org/sqlite"
)

type route struct {
	fragment string
	args     []any
	query    string
}

// Querier routes each query to the first registered result set whose
// fragment the query text contains and whose args are all among the call
// arguments. Result sets are SELECT or VALUES statements run against an
// empty in-memory SQLite database.
type Querier struct {
	db     *sql.DB
	routes []route

	// Queries records every query text received, in order
	Queries []string
}

// NewQuerier opens the backing database and closes it when t ends
func NewQuerier(t testing.TB) *Querier {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return &Querier{db: db}
}

// On registers query as the result for catalog queries containing fragment
// and called with every one of args.
func (q *Querier) On(fragment, query string, args ...any) {
	q.routes = append(q.routes, route{fragment: fragment, args: args, query: query})
}

func (q *Querier) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	q.Queries = append(q.Queries, query)
	for _, r := range q.routes {
		if strings.Contains(query, r.fragment) && containsAll(args, r.args) {
			return q.db.QueryContext(ctx, r.query)
		}
	}
	return nil, fmt.Errorf("no result registered for query with args %v:\n%s", args, query)
}

func (q *Querier) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("catalog queries never execute statements")
}

func containsAll(have, want []any) bool {
	for _, w := range want {
		found := false
		for _, h := range have {
			if h == w {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}
