package kea

import (
	"strings"

	"github.com/cyrke/kea/internal/graph"
)

// placement is one step declaration from one plugin, in activation order.
type placement struct {
	step   string
	after  string
	before string
	plugin string
}

// computeOrder derives the total step order from every placement seen so far.
//
// The algorithm:
//  1. Steps declared without a placement form the base sequence, chained in
//     declaration order (the core plugin's steps come first).
//  2. "after X" adds the edge X -> step, "before Y" adds step -> Y.
//  3. Any cycle is fatal (CYCLIC_STEP_ORDER).
//  4. Each step gets a sort key relative to its anchor: base step i is [i];
//     a step after X is key(X)+[+1, n]; before Y is key(Y)+[-1, n], where n is
//     the placement's activation index.
//  5. Kahn's algorithm emits, among all ready steps, the one with the
//     smallest key.
//
// Step 4 keeps an "after X" step directly behind X and a "before Y" step
// directly in front of Y, and two plugins anchored on the same step keep
// their activation order.
func computeOrder(placements []placement) ([]string, error) {
	g := graph.New()
	anchors := make(map[string]placement)
	var base []string

	for _, p := range placements {
		known := g.Has(p.step)
		g.AddNode(p.step)
		if p.after == "" && p.before == "" {
			if !known {
				base = append(base, p.step)
			}
			continue
		}
		if _, anchored := anchors[p.step]; !anchored && !known {
			anchors[p.step] = p
		}
	}

	for i := 1; i < len(base); i++ {
		g.AddEdge(base[i-1], base[i])
	}
	for _, p := range placements {
		for _, ref := range []string{p.after, p.before} {
			if ref != "" && !g.Has(ref) {
				return nil, &Error{
					Code:    ErrCodeUnknownStep,
					Message: "step " + quote(p.step) + " is placed relative to unknown step " + quote(ref),
					Step:    p.step,
					Plugin:  p.plugin,
				}
			}
		}
		if p.after != "" {
			g.AddEdge(p.after, p.step)
		}
		if p.before != "" {
			g.AddEdge(p.step, p.before)
		}
	}

	if cycles := g.Cycles(); len(cycles) > 0 {
		return nil, &Error{
			Code:    ErrCodeCyclicStepOrder,
			Message: "build step constraints form a cycle: " + strings.Join(cycles[0], " -> "),
			Step:    cycles[0][0],
		}
	}

	keys := stepKeys(g, base, anchors, placements)
	return kahn(g, keys), nil
}

// stepKeys assigns every step its sort key. Anchor chains are acyclic here
// because every anchor relation is also an edge and cycles were rejected.
func stepKeys(g *graph.Graph, base []string, anchors map[string]placement, placements []placement) map[string][]int {
	keys := make(map[string][]int, len(g.Nodes()))
	for i, step := range base {
		keys[step] = []int{i}
	}

	activation := make(map[string]int, len(placements))
	for i, p := range placements {
		if _, seen := activation[p.step]; !seen {
			activation[p.step] = i
		}
	}

	var keyOf func(step string) []int
	keyOf = func(step string) []int {
		if k, ok := keys[step]; ok {
			return k
		}
		p := anchors[step]
		var k []int
		if p.after != "" {
			k = append(append([]int{}, keyOf(p.after)...), 1, activation[step])
		} else {
			k = append(append([]int{}, keyOf(p.before)...), -1, activation[step])
		}
		keys[step] = k
		return k
	}
	for _, step := range g.Nodes() {
		keyOf(step)
	}
	return keys
}

// kahn performs a topological sort, always emitting the ready node with the
// smallest key.
func kahn(g *graph.Graph, keys map[string][]int) []string {
	nodes := g.Nodes()
	indegree := make(map[string]int, len(nodes))
	for _, n := range nodes {
		for _, succ := range g.Successors(n) {
			indegree[succ]++
		}
	}

	var ready []string
	for _, n := range nodes {
		if indegree[n] == 0 {
			ready = append(ready, n)
		}
	}

	order := make([]string, 0, len(nodes))
	for len(ready) > 0 {
		best := 0
		for i := 1; i < len(ready); i++ {
			if compareKeys(keys[ready[i]], keys[ready[best]]) < 0 {
				best = i
			}
		}
		n := ready[best]
		ready = append(ready[:best], ready[best+1:]...)
		order = append(order, n)

		for _, succ := range g.Successors(n) {
			indegree[succ]--
			if indegree[succ] == 0 {
				ready = append(ready, succ)
			}
		}
	}
	return order
}

// compareKeys compares keys lexicographically, reading missing positions
// as 0 so that [3] sorts after [3,-1,...] and before [3,1,...].
func compareKeys(a, b []int) int {
	for i := 0; i < max(len(a), len(b)); i++ {
		var x, y int
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			if x < y {
				return -1
			}
			return 1
		}
	}
	return 0
}

func quote(s string) string {
	return `"` + s + `"`
}
