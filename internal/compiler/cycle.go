package compiler

import (
	"fmt"
	"strings"

	"github.com/cyrke/kea/internal/graph"
	"github.com/cyrke/kea/internal/ir"
)

// ConnectionCycle represents logics that connect to each other in a loop.
//
// Unlike step placement cycles, these are always errors: a dependency is
// built before its dependent, so a cycle can never finish building.
type ConnectionCycle struct {
	Path    []string `json:"path"`    // Cycle path: ["a", "b", "a"]
	Message string   `json:"message"` // Human-readable description
}

// AnalyzeConnections performs static cycle analysis on connect declarations.
//
// The algorithm:
//  1. Build a dependency -> dependent graph from every connect entry
//  2. Use Tarjan's algorithm to find strongly connected components
//  3. Report each SCC with size > 1 or a self-loop as a cycle
//
// Connections to unknown logics are ignored here; ValidateAll reports them.
// A DAG (no cycles) returns an empty list.
func AnalyzeConnections(specs []*ir.LogicSpec) []ConnectionCycle {
	g := DependencyGraph(specs)

	cycles := []ConnectionCycle{}
	for _, path := range g.Cycles() {
		msg := fmt.Sprintf("connection cycle detected: %s", strings.Join(path, " → "))
		if len(path) == 2 && path[0] == path[1] {
			msg = fmt.Sprintf("logic %s connects to itself", path[0])
		}
		cycles = append(cycles, ConnectionCycle{Path: path, Message: msg})
	}
	return cycles
}

// DependencyGraph builds the logic graph with an edge from each dependency
// to every logic that connects to it. Nodes are added in spec order.
func DependencyGraph(specs []*ir.LogicSpec) *graph.Graph {
	g := graph.New()
	known := make(map[string]bool, len(specs))
	for _, spec := range specs {
		g.AddNode(spec.Name)
		known[spec.Name] = true
	}
	for _, spec := range specs {
		for _, c := range spec.Connect {
			if known[c.Logic] {
				g.AddEdge(c.Logic, spec.Name)
			}
		}
	}
	return g
}
