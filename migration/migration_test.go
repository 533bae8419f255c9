package migration

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/imtaco/sqlcrossover/dialect"
	"github.com/imtaco/sqlcrossover/schema"
	"github.com/imtaco/sqlcrossover/source"
	sqlitesrc "github.com/imtaco/sqlcrossover/source/sqlite"
	"github.com/imtaco/sqlcrossover/target"
)

// sqliteDB creates a database file and runs the given statements in it
func sqliteDB(t *testing.T, name string, stmts ...string) (string, *sql.DB) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("%s: %v", stmt, err)
		}
	}
	return path, db
}

func openSource(t *testing.T, path string) source.SourceDB {
	t.Helper()
	src := sqlitesrc.New()
	if err := src.Connect(context.Background(), path); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { src.Close() })
	return src
}

func openTarget(t *testing.T, path string) *target.LiveTarget {
	t.Helper()
	tgt, err := target.Open(context.Background(), dialect.SQLite{}, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { tgt.Close() })
	return tgt
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	if err := db.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %q", table)).Scan(&n); err != nil {
		t.Fatal(err)
	}
	return n
}

// shopSource holds users(3) and orders(5); orders 3 and 4 share a code
func shopSource(t *testing.T) source.SourceDB {
	path, _ := sqliteDB(t, "source.db",
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL REFERENCES users(id), code TEXT)`,
		`INSERT INTO users (id, name) VALUES (1, 'ann'), (2, 'bob'), (3, 'cat')`,
		`INSERT INTO orders (id, user_id, code) VALUES (1, 1, 'a'), (2, 1, 'b'), (3, 2, 'c'), (4, 2, 'c'), (5, 3, 'e')`,
	)
	return openSource(t, path)
}

func TestRunMigrationCopiesInDependencyOrder(t *testing.T) {
	src := shopSource(t)
	targetPath, check := sqliteDB(t, "target.db")

	report, err := RunMigration(context.Background(), &Config{
		SourceDB:      src,
		Target:        openTarget(t, targetPath),
		AllTables:     true,
		BatchSize:     2,
		Transactional: true,
		CreateSchema:  true,
	})
	if err != nil {
		t.Fatal(err)
	}

	if want := []string{"users", "orders"}; !reflect.DeepEqual(report.Order, want) {
		t.Errorf("order = %v, want %v", report.Order, want)
	}
	if len(report.Tables) != 2 || report.Tables[0].Pages != 2 || report.Tables[1].Pages != 3 {
		t.Errorf("unexpected pages: %+v", report.Tables)
	}
	if report.Rows != 8 {
		t.Errorf("rows = %d, want 8", report.Rows)
	}
	// each table ends with one empty fetch
	if report.Fetches != 7 {
		t.Errorf("fetches = %d, want 7", report.Fetches)
	}
	if !report.Committed {
		t.Error("report not marked committed")
	}
	for _, res := range report.Tables {
		if res.State != StateDone {
			t.Errorf("%s state = %s", res.Table, res.State)
		}
	}
	if got := count(t, check, "users"); got != 3 {
		t.Errorf("users = %d, want 3", got)
	}
	if got := count(t, check, "orders"); got != 5 {
		t.Errorf("orders = %d, want 5", got)
	}

	var code string
	if err := check.QueryRow(`SELECT code FROM orders WHERE id = 5`).Scan(&code); err != nil {
		t.Fatal(err)
	}
	if code != "e" {
		t.Errorf("orders[5].code = %q", code)
	}
}

// shopTarget pre-creates the tables with a unique code the source lacks
func shopTarget(t *testing.T) (*target.LiveTarget, *sql.DB) {
	path, check := sqliteDB(t, "target.db",
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL)`,
		`CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL, code TEXT UNIQUE)`,
	)
	return openTarget(t, path), check
}

func TestRunMigrationTransactionalRollsBackEverything(t *testing.T) {
	tgt, check := shopTarget(t)

	report, err := RunMigration(context.Background(), &Config{
		SourceDB:      shopSource(t),
		Target:        tgt,
		AllTables:     true,
		BatchSize:     2,
		Transactional: true,
	})
	var ie *schema.InsertError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InsertError, got %v", err)
	}
	if ie.Table != "orders" || ie.Constraint != schema.ConstraintUnique {
		t.Errorf("InsertError = %+v", ie)
	}
	if report.Committed {
		t.Error("failed run marked committed")
	}
	if failed := report.Failed(); failed == nil || failed.Table != "orders" || failed.Pages != 1 {
		t.Errorf("failed table = %+v", failed)
	}

	if got := count(t, check, "users"); got != 0 {
		t.Errorf("users = %d after rollback, want 0", got)
	}
	if got := count(t, check, "orders"); got != 0 {
		t.Errorf("orders = %d after rollback, want 0", got)
	}
}

func TestRunMigrationNonTransactionalKeepsCommittedBatches(t *testing.T) {
	tgt, check := shopTarget(t)

	_, err := RunMigration(context.Background(), &Config{
		SourceDB:  shopSource(t),
		Target:    tgt,
		AllTables: true,
		BatchSize: 2,
	})
	var ie *schema.InsertError
	if !errors.As(err, &ie) {
		t.Fatalf("expected InsertError, got %v", err)
	}

	if got := count(t, check, "users"); got != 3 {
		t.Errorf("users = %d, want 3", got)
	}
	if got := count(t, check, "orders"); got != 2 {
		t.Errorf("orders = %d, want 2", got)
	}
}

func TestRunMigrationToDump(t *testing.T) {
	var buf bytes.Buffer
	dump := target.NewDumpTarget(&buf, dialect.SQLite{}, nil)

	_, err := RunMigration(context.Background(), &Config{
		SourceDB:      shopSource(t),
		Target:        dump,
		AllTables:     true,
		BatchSize:     2,
		Transactional: true,
		CreateSchema:  true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := dump.Close(); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.HasPrefix(out, `CREATE TABLE "users"`) {
		t.Errorf("dump does not start with users:\n%s", out)
	}
	if strings.Index(out, `CREATE TABLE "orders"`) > strings.Index(out, "INSERT INTO") {
		t.Errorf("DDL not ahead of data:\n%s", out)
	}
	if got := strings.Count(out, "INSERT INTO "); got != 8 {
		t.Errorf("dump has %d inserts, want 8", got)
	}

	// the dump replays into an empty database
	_, replay := sqliteDB(t, "replay.db")
	if _, err := replay.Exec(out); err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if got := count(t, replay, "orders"); got != 5 {
		t.Errorf("replayed orders = %d, want 5", got)
	}
}

func TestRunMigrationCycles(t *testing.T) {
	cyclic := func(t *testing.T) source.SourceDB {
		path, _ := sqliteDB(t, "cycle.db",
			`CREATE TABLE a (id INTEGER PRIMARY KEY, b_id INTEGER REFERENCES b(id))`,
			`CREATE TABLE b (id INTEGER PRIMARY KEY, a_id INTEGER REFERENCES a(id))`,
			`INSERT INTO a (id, b_id) VALUES (1, 1)`,
			`INSERT INTO b (id, a_id) VALUES (1, 1)`,
		)
		return openSource(t, path)
	}

	t.Run("fail", func(t *testing.T) {
		var buf bytes.Buffer
		dump := target.NewDumpTarget(&buf, dialect.Postgres{}, nil)
		_, err := RunMigration(context.Background(), &Config{
			SourceDB:     cyclic(t),
			Target:       dump,
			AllTables:    true,
			CreateSchema: true,
		})
		var ce *schema.CycleError
		if !errors.As(err, &ce) {
			t.Fatalf("expected CycleError, got %v", err)
		}
		if want := []string{"a", "b"}; !reflect.DeepEqual(ce.Members, want) {
			t.Errorf("members = %v", ce.Members)
		}
		dump.Close()
		if buf.Len() != 0 {
			t.Errorf("target written before the cycle was reported:\n%s", buf.String())
		}
	})

	t.Run("defer", func(t *testing.T) {
		var buf bytes.Buffer
		dump := target.NewDumpTarget(&buf, dialect.Postgres{}, nil)
		report, err := RunMigration(context.Background(), &Config{
			SourceDB:      cyclic(t),
			Target:        dump,
			AllTables:     true,
			CreateSchema:  true,
			Transactional: true,
			CyclePolicy:   CycleDefer,
		})
		if err != nil {
			t.Fatal(err)
		}
		dump.Close()
		if want := [][]string{{"a", "b"}}; !reflect.DeepEqual(report.Cycles, want) {
			t.Errorf("cycles = %v", report.Cycles)
		}
		out := buf.String()
		if !strings.HasPrefix(out, `CREATE TABLE "a"`) {
			t.Errorf("schema block not first:\n%s", out)
		}
		create := strings.LastIndex(out, "ALTER TABLE")
		deferral := strings.Index(out, "SET CONSTRAINTS ALL DEFERRED;")
		insert := strings.Index(out, "INSERT INTO")
		if deferral < create || insert < deferral {
			t.Errorf("deferral must follow the schema and precede the rows:\n%s", out)
		}
		if !strings.Contains(out, "DEFERRABLE INITIALLY IMMEDIATE") {
			t.Errorf("foreign keys not declared deferrable:\n%s", out)
		}
		if !strings.Contains(out, "ALTER TABLE") {
			t.Errorf("forward reference not moved to ALTER TABLE:\n%s", out)
		}
		if report.Rows != 2 {
			t.Errorf("rows = %d, want 2", report.Rows)
		}
	})

	t.Run("defer unsupported", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := RunMigration(context.Background(), &Config{
			SourceDB:    cyclic(t),
			Target:      target.NewDumpTarget(&buf, dialect.MSSQL{}, nil),
			AllTables:   true,
			CyclePolicy: CycleDefer,
		})
		var ue *schema.UnsupportedError
		if !errors.As(err, &ue) {
			t.Fatalf("expected UnsupportedError, got %v", err)
		}
	})
}

func TestKeysetSurvivesDeletesAhead(t *testing.T) {
	srcPath, srcDB := sqliteDB(t, "source.db",
		`CREATE TABLE items (id INTEGER PRIMARY KEY, label TEXT)`,
		`INSERT INTO items (id, label) VALUES (1, 'a'), (2, 'b'), (3, 'c'), (4, 'd'), (5, 'e'), (6, 'f')`,
	)
	rec := &recordingTarget{}
	rec.afterInsert = func(call int) {
		if call == 1 {
			if _, err := srcDB.Exec(`DELETE FROM items WHERE id = 4`); err != nil {
				t.Fatal(err)
			}
		}
	}

	report, err := RunMigration(context.Background(), &Config{
		SourceDB:  openSource(t, srcPath),
		Target:    rec,
		AllTables: true,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	want := []any{int64(1), int64(2), int64(3), int64(5), int64(6)}
	if got := rec.ids("items"); !reflect.DeepEqual(got, want) {
		t.Errorf("copied ids %v, want %v", got, want)
	}
	if report.Rows != 5 {
		t.Errorf("rows = %d, want 5", report.Rows)
	}
}

func TestTableWithoutPrimaryKeyStreams(t *testing.T) {
	path, _ := sqliteDB(t, "source.db",
		`CREATE TABLE events (kind TEXT, n INTEGER)`,
		`INSERT INTO events (kind, n) VALUES ('x', 3), ('x', 1), ('y', 2), ('a', 9), ('b', 5)`,
	)
	rec := &recordingTarget{}
	report, err := RunMigration(context.Background(), &Config{
		SourceDB:  openSource(t, path),
		Target:    rec,
		AllTables: true,
		BatchSize: 2,
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Tables[0].Pages != 3 || report.Rows != 5 {
		t.Errorf("unexpected result %+v", report.Tables[0])
	}
	if got := len(rec.batches["events"]); got != 3 {
		t.Errorf("target saw %d batches, want 3", got)
	}
}

func TestRoundsPerTable(t *testing.T) {
	for rows := 0; rows <= 7; rows++ {
		for batch := 1; batch <= 3; batch++ {
			t.Run(fmt.Sprintf("%d rows by %d", rows, batch), func(t *testing.T) {
				stmts := []string{`CREATE TABLE t (id INTEGER PRIMARY KEY)`}
				for i := 1; i <= rows; i++ {
					stmts = append(stmts, fmt.Sprintf(`INSERT INTO t (id) VALUES (%d)`, i))
				}
				path, _ := sqliteDB(t, "source.db", stmts...)

				report, err := RunMigration(context.Background(), &Config{
					SourceDB:  openSource(t, path),
					Target:    &recordingTarget{},
					AllTables: true,
					BatchSize: batch,
				})
				if err != nil {
					t.Fatal(err)
				}
				rounds := (rows + batch - 1) / batch
				if report.Tables[0].Pages != rounds {
					t.Errorf("pages = %d, want %d", report.Tables[0].Pages, rounds)
				}
				if report.Fetches != rounds+1 {
					t.Errorf("fetches = %d, want %d", report.Fetches, rounds+1)
				}
				if report.Rows != rows {
					t.Errorf("rows = %d, want %d", report.Rows, rows)
				}
			})
		}
	}
}

func TestZeroRowsWrittenIsAnError(t *testing.T) {
	src := shopSource(t)
	_, err := RunMigration(context.Background(), &Config{
		SourceDB:  src,
		Target:    &recordingTarget{swallow: true},
		AllTables: true,
	})
	var ie *schema.InsertError
	if !errors.As(err, &ie) || !errors.Is(err, schema.ErrNoRows) {
		t.Fatalf("expected InsertError wrapping ErrNoRows, got %v", err)
	}
	if ie.Table != "users" || ie.Rows != 3 {
		t.Errorf("InsertError = %+v", ie)
	}
}

func TestAdoptionSkipsTable(t *testing.T) {
	rec := &recordingTarget{refuse: map[string]bool{"orders": true}}
	report, err := RunMigration(context.Background(), &Config{
		SourceDB:  shopSource(t),
		Target:    rec,
		AllTables: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Skipped) != 1 || report.Skipped[0].Table != "orders" {
		t.Errorf("skipped = %v", report.Skipped)
	}
	if report.Tables[1].State != StateSkipped {
		t.Errorf("orders state = %s", report.Tables[1].State)
	}
	if len(rec.batches["orders"]) != 0 || len(rec.batches["users"]) != 1 {
		t.Errorf("unexpected batches %v", rec.batches)
	}
}

func TestPreflightRejectsMissingCapabilities(t *testing.T) {
	tests := map[string]Config{
		"transactional": {AllTables: true, Transactional: true},
		"create schema": {AllTables: true, CreateSchema: true},
	}
	for name, cfg := range tests {
		t.Run(name, func(t *testing.T) {
			rec := &recordingTarget{}
			cfg.SourceDB = shopSource(t)
			cfg.Target = rec
			_, err := RunMigration(context.Background(), &cfg)
			var ue *schema.UnsupportedError
			if !errors.As(err, &ue) {
				t.Fatalf("expected UnsupportedError, got %v", err)
			}
			if len(rec.batches) != 0 {
				t.Error("rows written despite failed pre-flight")
			}
		})
	}
}

func TestRunMigrationSelectedTables(t *testing.T) {
	rec := &recordingTarget{}
	report, err := RunMigration(context.Background(), &Config{
		SourceDB:     shopSource(t),
		Target:       rec,
		TargetTables: []string{"orders"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"orders"}; !reflect.DeepEqual(report.Order, want) {
		t.Errorf("order = %v", report.Order)
	}

	_, err = RunMigration(context.Background(), &Config{
		SourceDB:     shopSource(t),
		Target:       rec,
		TargetTables: []string{"nope"},
	})
	var ce *schema.ConfigError
	if !errors.As(err, &ce) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

// recordingTarget keeps every batch in memory. It supports neither
// transactions nor schema creation.
type recordingTarget struct {
	batches     map[string][]schema.Batch
	calls       int
	afterInsert func(call int)
	refuse      map[string]bool
	swallow     bool
}

func (r *recordingTarget) Name() string { return "recording" }

func (r *recordingTarget) Dialect() dialect.Dialect { return dialect.SQLite{} }

func (r *recordingTarget) CouldAdopt(_ context.Context, name string, _ *schema.Table) bool {
	return !r.refuse[name]
}

func (r *recordingTarget) Insert(_ context.Context, name string, _ *schema.Table, rows schema.Batch) (int, error) {
	if r.swallow {
		return 0, nil
	}
	if r.batches == nil {
		r.batches = make(map[string][]schema.Batch)
	}
	r.batches[name] = append(r.batches[name], rows)
	r.calls++
	if r.afterInsert != nil {
		r.afterInsert(r.calls)
	}
	return len(rows), nil
}

func (r *recordingTarget) Close() error { return nil }

func (r *recordingTarget) ids(table string) []any {
	var ids []any
	for _, batch := range r.batches[table] {
		for _, row := range batch {
			v, _ := row.Get("id")
			ids = append(ids, v)
		}
	}
	return ids
}
