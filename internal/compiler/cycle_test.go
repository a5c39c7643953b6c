package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cyrke/kea/internal/ir"
)

func connecting(name string, deps ...string) *ir.LogicSpec {
	s := &ir.LogicSpec{Name: name}
	for _, d := range deps {
		s.Connect = append(s.Connect, ir.ConnectSpec{Logic: d})
	}
	return s
}

func TestAnalyzeConnectionsDAG(t *testing.T) {
	specs := []*ir.LogicSpec{
		connecting("a"),
		connecting("b", "a"),
		connecting("c", "a", "b"),
	}
	assert.Empty(t, AnalyzeConnections(specs))
}

func TestAnalyzeConnectionsCycle(t *testing.T) {
	specs := []*ir.LogicSpec{
		connecting("a", "c"),
		connecting("b", "a"),
		connecting("c", "b"),
	}
	cycles := AnalyzeConnections(specs)
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"a", "b", "c", "a"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "a → b → c → a")
}

func TestAnalyzeConnectionsSelfLoop(t *testing.T) {
	cycles := AnalyzeConnections([]*ir.LogicSpec{connecting("self", "self")})
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"self", "self"}, cycles[0].Path)
	assert.Contains(t, cycles[0].Message, "connects to itself")
}

func TestAnalyzeConnectionsIgnoresUnknown(t *testing.T) {
	assert.Empty(t, AnalyzeConnections([]*ir.LogicSpec{connecting("a", "ghost")}))
}

func TestAnalyzeConnectionsDeterministic(t *testing.T) {
	specs := []*ir.LogicSpec{
		connecting("x", "y"), connecting("y", "x"),
		connecting("p", "q"), connecting("q", "p"),
	}
	first := AnalyzeConnections(specs)
	for range 5 {
		assert.Equal(t, first, AnalyzeConnections(specs))
	}
	require.Len(t, first, 2)
}
