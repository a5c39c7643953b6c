package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGraphNodesAndEdges(t *testing.T) {
	g := New()
	g.AddNode("b")
	g.AddEdge("a", "c")
	g.AddEdge("a", "c")
	g.AddEdge("a", "b")
	g.AddNode("b")

	assert.Equal(t, []string{"b", "a", "c"}, g.Nodes())
	assert.Equal(t, []string{"c", "b"}, g.Successors("a"))
	assert.True(t, g.Has("c"))
	assert.False(t, g.Has("d"))
	assert.Equal(t, 1, g.Position("a"))
	assert.Equal(t, -1, g.Position("d"))

	nodes := g.Nodes()
	nodes[0] = "mutated"
	assert.Equal(t, "b", g.Nodes()[0])
}

func TestGraphCycles(t *testing.T) {
	tests := []struct {
		name  string
		edges [][2]string
		want  [][]string
	}{
		{
			name:  "acyclic",
			edges: [][2]string{{"connect", "constants"}, {"constants", "actions"}},
			want:  nil,
		},
		{
			name:  "self loop",
			edges: [][2]string{{"a", "a"}},
			want:  [][]string{{"a", "a"}},
		},
		{
			name:  "two nodes",
			edges: [][2]string{{"view", "counter"}, {"counter", "view"}},
			want:  [][]string{{"view", "counter", "view"}},
		},
		{
			name:  "dead end inside component",
			edges: [][2]string{{"a", "b"}, {"b", "c"}, {"c", "b"}, {"b", "a"}},
			want:  [][]string{{"a", "b", "a"}},
		},
		{
			name:  "back edge only through later member",
			edges: [][2]string{{"a", "b"}, {"b", "c"}, {"c", "a"}},
			want:  [][]string{{"a", "b", "c", "a"}},
		},
		{
			name: "two separate cycles",
			edges: [][2]string{
				{"x", "y"}, {"y", "x"},
				{"p", "p"},
				{"x", "q"},
			},
			want: [][]string{{"p", "p"}, {"x", "y", "x"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := New()
			for _, e := range tt.edges {
				g.AddEdge(e[0], e[1])
			}
			assert.ElementsMatch(t, tt.want, g.Cycles())
		})
	}
}

func TestGraphCyclesDeterministic(t *testing.T) {
	build := func() *Graph {
		g := New()
		g.AddEdge("a", "b")
		g.AddEdge("b", "a")
		g.AddEdge("c", "d")
		g.AddEdge("d", "c")
		return g
	}
	first := build().Cycles()
	for range 10 {
		assert.Equal(t, first, build().Cycles())
	}
}
