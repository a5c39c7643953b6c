// Package graph provides deterministic cycle analysis over small directed
// graphs of named nodes: build step placement constraints and logic
// connection declarations.
package graph

// Graph is a directed graph with nodes kept in insertion order.
// Edges point from a node to the nodes that must come after it.
type Graph struct {
	nodes []string
	index map[string]int
	edges map[string][]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		index: make(map[string]int),
		edges: make(map[string][]string),
	}
}

// AddNode adds a node. Adding an existing node does nothing.
func (g *Graph) AddNode(id string) {
	if _, ok := g.index[id]; ok {
		return
	}
	g.index[id] = len(g.nodes)
	g.nodes = append(g.nodes, id)
}

// AddEdge adds an edge from -> to, creating either node if needed.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
}

// Has reports whether id is a node of the graph.
func (g *Graph) Has(id string) bool {
	_, ok := g.index[id]
	return ok
}

// Nodes returns the nodes in insertion order.
func (g *Graph) Nodes() []string {
	out := make([]string, len(g.nodes))
	copy(out, g.nodes)
	return out
}

// Successors returns the direct successors of id in edge insertion order.
func (g *Graph) Successors(id string) []string {
	return g.edges[id]
}

// Position returns the insertion index of id, or -1.
func (g *Graph) Position(id string) int {
	if i, ok := g.index[id]; ok {
		return i
	}
	return -1
}

// Cycles returns every cycle in the graph as a closed path
// (["a", "b", "a"]). Self-loops are reported as [id, id].
// An acyclic graph returns nil. Output order is deterministic.
func (g *Graph) Cycles() [][]string {
	var cycles [][]string
	for _, scc := range g.stronglyConnected() {
		switch {
		case len(scc) > 1:
			cycles = append(cycles, g.cyclePath(scc))
		case g.hasSelfLoop(scc[0]):
			cycles = append(cycles, []string{scc[0], scc[0]})
		}
	}
	return cycles
}

func (g *Graph) hasSelfLoop(id string) bool {
	for _, next := range g.edges[id] {
		if next == id {
			return true
		}
	}
	return false
}

// stronglyConnected finds strongly connected components with Tarjan's
// algorithm, visiting roots in insertion order.
func (g *Graph) stronglyConnected() [][]string {
	var (
		index   = 0
		stack   []string
		indices = make(map[string]int)
		lowlink = make(map[string]int)
		onStack = make(map[string]bool)
		sccs    [][]string
	)

	var strongConnect func(string)
	strongConnect = func(v string) {
		indices[v] = index
		lowlink[v] = index
		index++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range g.edges[v] {
			if _, visited := indices[w]; !visited {
				strongConnect(w)
				lowlink[v] = min(lowlink[v], lowlink[w])
			} else if onStack[w] {
				lowlink[v] = min(lowlink[v], indices[w])
			}
		}

		if lowlink[v] == indices[v] {
			var scc []string
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				scc = append(scc, w)
				if w == v {
					break
				}
			}
			sccs = append(sccs, scc)
		}
	}

	for _, node := range g.nodes {
		if _, visited := indices[node]; !visited {
			strongConnect(node)
		}
	}
	return sccs
}

// cyclePath returns a closed path through an SCC, starting at its earliest
// inserted member and following edges in insertion order.
func (g *Graph) cyclePath(scc []string) []string {
	members := make(map[string]bool, len(scc))
	start := scc[0]
	for _, id := range scc {
		members[id] = true
		if g.index[id] < g.index[start] {
			start = id
		}
	}

	visited := map[string]bool{start: true}
	var walk func(current string, path []string) []string
	walk = func(current string, path []string) []string {
		for _, w := range g.edges[current] {
			if !members[w] {
				continue
			}
			if w == start {
				return append(path, start)
			}
			if visited[w] {
				continue
			}
			visited[w] = true
			if found := walk(w, append(path, w)); found != nil {
				return found
			}
		}
		return nil
	}
	// Every member of a multi-node SCC reaches start, so the walk closes.
	return walk(start, []string{start})
}
