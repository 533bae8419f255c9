package migration

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/imtaco/sqlcrossover/schema"
)

// CyclePolicy decides what happens when foreign keys form a cycle between
// two or more tables.
type CyclePolicy string

const (
	// CycleFail rejects the run with a CycleError
	CycleFail CyclePolicy = "fail"
	// CycleDefer copies the tables of a cycle together, in name order, with
	// the target's foreign key enforcement deferred
	CycleDefer CyclePolicy = "defer"
)

// ParseCyclePolicy validates a policy name; empty means CycleFail.
func ParseCyclePolicy(s string) (CyclePolicy, error) {
	switch CyclePolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", CycleFail:
		return CycleFail, nil
	case CycleDefer:
		return CycleDefer, nil
	}
	return "", fmt.Errorf("unknown cycle policy %q (want %q or %q)", s, CycleFail, CycleDefer)
}

// selectTables filters tables based on user selection, keeping their order
func selectTables(tables []*schema.Table, allTables bool, targetTables []string) ([]*schema.Table, error) {
	if allTables {
		return tables, nil
	}
	if len(targetTables) == 0 {
		return nil, &schema.ConfigError{Msg: "no tables specified"}
	}

	tableMap := make(map[string]bool, len(tables))
	for _, t := range tables {
		tableMap[strings.ToLower(t.Name)] = true
	}

	targetMap := make(map[string]bool, len(targetTables))
	for _, t := range targetTables {
		lowerT := strings.ToLower(t)
		if !tableMap[lowerT] {
			return nil, &schema.ConfigError{Msg: fmt.Sprintf("table %s does not exist", t)}
		}
		targetMap[lowerT] = true
	}

	var filtered []*schema.Table
	for _, t := range tables {
		if targetMap[strings.ToLower(t.Name)] {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// dependencyGraph maps lower-cased table names to the lower-cased names of
// the tables they reference. Self references and references to tables
// outside the set are dropped.
type dependencyGraph struct {
	names  []string // sorted
	tables map[string]*schema.Table
	deps   map[string][]string
}

func newDependencyGraph(tables []*schema.Table) *dependencyGraph {
	g := &dependencyGraph{
		tables: make(map[string]*schema.Table, len(tables)),
		deps:   make(map[string][]string, len(tables)),
	}
	for _, t := range tables {
		key := strings.ToLower(t.Name)
		g.tables[key] = t
		g.names = append(g.names, key)
	}
	sort.Strings(g.names)

	for _, key := range g.names {
		for _, ref := range g.tables[key].References() {
			refKey := strings.ToLower(ref)
			if refKey == key {
				continue
			}
			if _, ok := g.tables[refKey]; ok {
				g.deps[key] = append(g.deps[key], refKey)
			}
		}
	}
	return g
}

// components returns the strongly connected components of the graph
// (Tarjan), each sorted by name.
func (g *dependencyGraph) components() [][]string {
	index := make(map[string]int, len(g.names))
	low := make(map[string]int, len(g.names))
	onStack := make(map[string]bool, len(g.names))
	var stack []string
	var comps [][]string
	next := 0

	var connect func(v string)
	connect = func(v string) {
		index[v], low[v] = next, next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.deps[v] {
			if _, seen := index[w]; !seen {
				connect(w)
				low[v] = min(low[v], low[w])
			} else if onStack[w] {
				low[v] = min(low[v], index[w])
			}
		}

		if low[v] == index[v] {
			var comp []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp = append(comp, w)
				if w == v {
					break
				}
			}
			sort.Strings(comp)
			comps = append(comps, comp)
		}
	}

	for _, v := range g.names {
		if _, seen := index[v]; !seen {
			connect(v)
		}
	}
	return comps
}

// ResolveOrder orders tables so that every referenced table precedes the
// tables referencing it. Ties are broken by table name, so the order is
// reproducible. A cycle of two or more tables is a CycleError under
// CycleFail; under CycleDefer its members are placed together and returned
// in cycles.
func ResolveOrder(tables []*schema.Table, policy CyclePolicy) (ordered []*schema.Table, cycles [][]string, err error) {
	g := newDependencyGraph(tables)
	comps := g.components()

	compOf := make(map[string]int, len(g.names))
	for i, comp := range comps {
		for _, name := range comp {
			compOf[name] = i
		}
		if len(comp) > 1 {
			cycles = append(cycles, g.originalNames(comp))
		}
	}

	if len(cycles) > 0 {
		sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
		if policy != CycleDefer {
			var members []string
			for _, c := range cycles {
				members = append(members, c...)
			}
			sort.Strings(members)
			return nil, nil, &schema.CycleError{Members: members, Cycles: cycles}
		}
		log.Printf("[Resolver] WARNING: %d foreign key cycle(s), copying with deferred constraints: %v", len(cycles), cycles)
	}

	// Kahn's algorithm over the components; a component is keyed by its
	// smallest member, which also orders the ready set
	inDegree := make([]int, len(comps))
	adjList := make([][]int, len(comps))
	for _, dependent := range g.names {
		for _, referenced := range g.deps[dependent] {
			from, to := compOf[referenced], compOf[dependent]
			if from == to {
				continue
			}
			// referenced must come before dependent
			adjList[from] = append(adjList[from], to)
			inDegree[to]++
		}
	}

	var ready []int
	push := func(c int) {
		i := sort.Search(len(ready), func(i int) bool { return comps[ready[i]][0] >= comps[c][0] })
		ready = append(ready, 0)
		copy(ready[i+1:], ready[i:])
		ready[i] = c
	}
	for c := range comps {
		if inDegree[c] == 0 {
			push(c)
		}
	}

	ordered = make([]*schema.Table, 0, len(tables))
	for len(ready) > 0 {
		current := ready[0]
		ready = ready[1:]
		for _, name := range comps[current] {
			ordered = append(ordered, g.tables[name])
		}
		for _, dependent := range adjList[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				push(dependent)
			}
		}
	}

	if len(ordered) != len(tables) {
		// only reachable with duplicate table names
		return nil, nil, fmt.Errorf("dependency resolution placed %d tables, expected %d", len(ordered), len(tables))
	}
	return ordered, cycles, nil
}

func (g *dependencyGraph) originalNames(keys []string) []string {
	names := make([]string, len(keys))
	for i, k := range keys {
		names[i] = g.tables[k].Name
	}
	sort.Strings(names)
	return names
}

// Levels groups ordered tables by depth: level 0 references
// nothing, level 1 references only level 0, and so on. References to tables
// later in the order (inside a deferred cycle) do not raise the level.
func Levels(ordered []*schema.Table) [][]string {
	levels := make(map[string]int, len(ordered))
	maxLevel := 0
	var result [][]string
	for _, t := range ordered {
		key := strings.ToLower(t.Name)
		level := 0
		for _, ref := range t.References() {
			if depLevel, ok := levels[strings.ToLower(ref)]; ok && depLevel+1 > level {
				level = depLevel + 1
			}
		}
		levels[key] = level
		if level > maxLevel {
			maxLevel = level
		}
		for len(result) <= level {
			result = append(result, []string{})
		}
		result[level] = append(result[level], t.Name)
	}
	return result[:min(len(result), maxLevel+1)]
}
