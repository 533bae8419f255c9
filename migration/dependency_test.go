package migration

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/imtaco/sqlcrossover/schema"
)

// tbl builds a table referencing refs through one foreign key each
func tbl(name string, refs ...string) *schema.Table {
	t := &schema.Table{
		Name:       name,
		Columns:    []schema.Column{{Name: "id", Type: schema.NewColumnType("integer")}},
		PrimaryKey: []string{"id"},
	}
	for _, ref := range refs {
		col := ref + "_id"
		t.Columns = append(t.Columns, schema.Column{Name: col, Type: schema.NewColumnType("integer"), Nullable: true})
		t.ForeignKeys = append(t.ForeignKeys, schema.ForeignKey{Columns: []string{col}, RefTable: ref, RefColumns: []string{"id"}})
	}
	return t
}

func names(tables []*schema.Table) []string {
	out := make([]string, len(tables))
	for i, t := range tables {
		out[i] = t.Name
	}
	return out
}

func TestResolveOrder(t *testing.T) {
	tests := []struct {
		name   string
		tables []*schema.Table
		want   []string
	}{
		{
			name:   "parent before child",
			tables: []*schema.Table{tbl("orders", "users"), tbl("users")},
			want:   []string{"users", "orders"},
		},
		{
			name:   "ties broken by name",
			tables: []*schema.Table{tbl("zeta"), tbl("alpha"), tbl("mid")},
			want:   []string{"alpha", "mid", "zeta"},
		},
		{
			name: "chain",
			tables: []*schema.Table{
				tbl("items", "orders", "products"),
				tbl("orders", "users"),
				tbl("products"),
				tbl("users"),
			},
			want: []string{"products", "users", "orders", "items"},
		},
		{
			name:   "self reference is not a dependency",
			tables: []*schema.Table{tbl("employees", "employees"), tbl("audit", "employees")},
			want:   []string{"employees", "audit"},
		},
		{
			name:   "reference outside the selection is ignored",
			tables: []*schema.Table{tbl("orders", "users")},
			want:   []string{"orders"},
		},
		{
			name:   "names compared case-insensitively",
			tables: []*schema.Table{tbl("Orders", "USERS"), tbl("Users")},
			want:   []string{"Users", "Orders"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, cycles, err := ResolveOrder(tt.tables, CycleFail)
			if err != nil {
				t.Fatal(err)
			}
			if len(cycles) != 0 {
				t.Errorf("unexpected cycles %v", cycles)
			}
			if !reflect.DeepEqual(names(got), tt.want) {
				t.Errorf("got %v, want %v", names(got), tt.want)
			}
		})
	}
}

func TestResolveOrderIsDeterministic(t *testing.T) {
	tables := []*schema.Table{tbl("c", "a"), tbl("b", "a"), tbl("a"), tbl("d")}
	first, _, err := ResolveOrder(tables, CycleFail)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 20; i++ {
		shuffled := append([]*schema.Table(nil), tables...)
		rand.New(rand.NewSource(int64(i))).Shuffle(len(shuffled), func(a, b int) {
			shuffled[a], shuffled[b] = shuffled[b], shuffled[a]
		})
		got, _, err := ResolveOrder(shuffled, CycleFail)
		if err != nil {
			t.Fatal(err)
		}
		if !reflect.DeepEqual(names(got), names(first)) {
			t.Fatalf("order depends on input order: %v vs %v", names(got), names(first))
		}
	}
}

func TestResolveOrderRespectsEveryEdge(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		n := 2 + rng.Intn(12)
		var tables []*schema.Table
		for i := 0; i < n; i++ {
			var refs []string
			// only reference lower indexes so the graph stays acyclic
			for j := 0; j < i; j++ {
				if rng.Intn(3) == 0 {
					refs = append(refs, fmt.Sprintf("t%02d", j))
				}
			}
			tables = append(tables, tbl(fmt.Sprintf("t%02d", i), refs...))
		}
		rng.Shuffle(len(tables), func(a, b int) { tables[a], tables[b] = tables[b], tables[a] })

		ordered, _, err := ResolveOrder(tables, CycleFail)
		if err != nil {
			t.Fatal(err)
		}
		if len(ordered) != n {
			t.Fatalf("got %d tables, want %d", len(ordered), n)
		}
		pos := make(map[string]int, n)
		for i, table := range ordered {
			pos[table.Name] = i
		}
		for _, table := range ordered {
			for _, ref := range table.References() {
				if pos[ref] >= pos[table.Name] {
					t.Fatalf("round %d: %s placed before its parent %s: %v", round, table.Name, ref, names(ordered))
				}
			}
		}
	}
}

func TestResolveOrderCycleFails(t *testing.T) {
	tables := []*schema.Table{
		tbl("a", "b"),
		tbl("b", "a"),
		tbl("c", "a"),
		tbl("x", "z"),
		tbl("y", "x"),
		tbl("z", "y"),
	}
	_, _, err := ResolveOrder(tables, CycleFail)
	var ce *schema.CycleError
	if !errors.As(err, &ce) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if want := []string{"a", "b", "x", "y", "z"}; !reflect.DeepEqual(ce.Members, want) {
		t.Errorf("members = %v, want %v", ce.Members, want)
	}
	if want := [][]string{{"a", "b"}, {"x", "y", "z"}}; !reflect.DeepEqual(ce.Cycles, want) {
		t.Errorf("cycles = %v, want %v", ce.Cycles, want)
	}
}

func TestResolveOrderCycleDeferred(t *testing.T) {
	tables := []*schema.Table{tbl("c", "a"), tbl("b", "a", "root"), tbl("a", "b"), tbl("root")}
	got, cycles, err := ResolveOrder(tables, CycleDefer)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"root", "a", "b", "c"}; !reflect.DeepEqual(names(got), want) {
		t.Errorf("got %v, want %v", names(got), want)
	}
	if want := [][]string{{"a", "b"}}; !reflect.DeepEqual(cycles, want) {
		t.Errorf("cycles = %v, want %v", cycles, want)
	}
}

func TestParseCyclePolicy(t *testing.T) {
	for in, want := range map[string]CyclePolicy{"": CycleFail, "FAIL": CycleFail, " defer ": CycleDefer} {
		got, err := ParseCyclePolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseCyclePolicy(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseCyclePolicy("ignore"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

func TestSelectTables(t *testing.T) {
	all := []*schema.Table{tbl("orders", "users"), tbl("users"), tbl("audit")}

	got, err := selectTables(all, false, []string{"USERS", "orders"})
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{"orders", "users"}; !reflect.DeepEqual(names(got), want) {
		t.Errorf("got %v, want %v", names(got), want)
	}

	var ce *schema.ConfigError
	if _, err := selectTables(all, false, []string{"missing"}); !errors.As(err, &ce) {
		t.Errorf("expected ConfigError for unknown table, got %v", err)
	}
	if _, err := selectTables(all, false, nil); !errors.As(err, &ce) {
		t.Errorf("expected ConfigError for empty selection, got %v", err)
	}
}

func TestDependencyLevels(t *testing.T) {
	ordered, _, err := ResolveOrder([]*schema.Table{
		tbl("items", "orders", "products"),
		tbl("orders", "users"),
		tbl("products"),
		tbl("users"),
	}, CycleFail)
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"products", "users"}, {"orders"}, {"items"}}
	if got := Levels(ordered); !reflect.DeepEqual(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}
