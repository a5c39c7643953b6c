package kea

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func coreOrder() []string {
	return []string{
		StepConnect, StepConstants, StepActionCreators, StepActions, StepDefaults,
		StepReducers, StepReducer, StepReducerSelectors, StepSelectors, StepValues, StepEvents,
	}
}

func TestStepOrder_CoreOnly(t *testing.T) {
	rt, err := NewRuntime()
	require.NoError(t, err)
	assert.Equal(t, coreOrder(), rt.StepOrder())
}

func TestStepOrder_PluginPlacements(t *testing.T) {
	rt, err := NewRuntime()
	require.NoError(t, err)

	require.NoError(t, rt.ActivatePlugin(&Plugin{
		Name: "test",
		Steps: []Step{
			{Name: "afterConnect", After: StepConnect},
			{Name: "beforeEvents", Before: StepEvents},
			{Name: "afterEvents", After: StepEvents},
		},
	}))

	assert.Equal(t, []string{
		"connect", "afterConnect", "constants", "actionCreators", "actions", "defaults",
		"reducers", "reducer", "reducerSelectors", "selectors", "values",
		"beforeEvents", "events", "afterEvents",
	}, rt.StepOrder())
}

func TestStepOrder_SameAnchorKeepsActivationOrder(t *testing.T) {
	rt, err := NewRuntime()
	require.NoError(t, err)

	require.NoError(t, rt.ActivatePlugin(&Plugin{Name: "b", Steps: []Step{{Name: "zeta", After: StepReducer}}}))
	require.NoError(t, rt.ActivatePlugin(&Plugin{Name: "a", Steps: []Step{{Name: "alpha", After: StepReducer}}}))

	order := rt.StepOrder()
	i := slices.Index(order, StepReducer)
	require.GreaterOrEqual(t, i, 0)
	assert.Equal(t, []string{"reducer", "zeta", "alpha", "reducerSelectors"}, order[i:i+4])
}

func TestStepOrder_ChainedAnchors(t *testing.T) {
	rt, err := NewRuntime()
	require.NoError(t, err)

	require.NoError(t, rt.ActivatePlugin(&Plugin{Name: "p1", Steps: []Step{{Name: "one", After: StepConnect}}}))
	require.NoError(t, rt.ActivatePlugin(&Plugin{Name: "p2", Steps: []Step{{Name: "two", After: "one"}}}))
	require.NoError(t, rt.ActivatePlugin(&Plugin{Name: "p3", Steps: []Step{{Name: "zero", Before: "one"}}}))

	assert.Equal(t, []string{"connect", "zero", "one", "two", "constants"}, rt.StepOrder()[:5])
}

func TestStepOrder_UnplacedStepAppendsToBase(t *testing.T) {
	rt, err := NewRuntime()
	require.NoError(t, err)
	require.NoError(t, rt.ActivatePlugin(&Plugin{Name: "tail", Steps: []Step{{Name: "last"}}}))

	order := rt.StepOrder()
	assert.Equal(t, "last", order[len(order)-1])
}

func TestStepOrder_RespectsEveryConstraint(t *testing.T) {
	plugins := []*Plugin{
		{Name: "a", Steps: []Step{{Name: "s1", After: StepActions}, {Name: "s2", Before: StepSelectors}}},
		{Name: "b", Steps: []Step{{Name: "s3", After: "s1"}, {Name: "s4", Before: "s1"}}},
		{Name: "c", Steps: []Step{{Name: "s5", After: StepEvents}, {Name: "s1", Before: StepReducers}}},
	}

	var orders [][]string
	for range 3 {
		rt, err := NewRuntime()
		require.NoError(t, err)
		for _, p := range plugins {
			require.NoError(t, rt.ActivatePlugin(p))
		}
		order := rt.StepOrder()
		pos := func(s string) int { return slices.Index(order, s) }

		base := coreOrder()
		for i := 1; i < len(base); i++ {
			assert.Less(t, pos(base[i-1]), pos(base[i]))
		}
		for _, p := range plugins {
			for _, s := range p.Steps {
				if s.After != "" {
					assert.Less(t, pos(s.After), pos(s.Name), "%s after %s", s.Name, s.After)
				}
				if s.Before != "" {
					assert.Less(t, pos(s.Name), pos(s.Before), "%s before %s", s.Name, s.Before)
				}
			}
		}
		orders = append(orders, order)
	}
	assert.Equal(t, orders[0], orders[1])
	assert.Equal(t, orders[1], orders[2])
}

func TestActivatePlugin_CycleRejectedAndRegistryUnchanged(t *testing.T) {
	rt, err := NewRuntime()
	require.NoError(t, err)
	before := rt.StepOrder()

	err = rt.ActivatePlugin(&Plugin{
		Name: "loop",
		Steps: []Step{
			{Name: "x", After: StepEvents, Before: StepConnect},
		},
	})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeCyclicStepOrder))
	assert.Equal(t, before, rt.StepOrder())
	assert.False(t, rt.Registry().Has("loop"))
}

func TestActivatePlugin_UnknownAnchor(t *testing.T) {
	rt, err := NewRuntime()
	require.NoError(t, err)

	err = rt.ActivatePlugin(&Plugin{Name: "p", Steps: []Step{{Name: "x", After: "nowhere"}}})
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeUnknownStep))

	var ke *Error
	require.ErrorAs(t, err, &ke)
	assert.Equal(t, "p", ke.Plugin)
	assert.Equal(t, "x", ke.Step)
}

func TestCompareKeys(t *testing.T) {
	assert.Equal(t, 0, compareKeys([]int{3}, []int{3, 0}))
	assert.Equal(t, -1, compareKeys([]int{3, -1, 7}, []int{3}))
	assert.Equal(t, 1, compareKeys([]int{3, 1, 0}, []int{3}))
	assert.Equal(t, -1, compareKeys([]int{2, 1, 9}, []int{3, -1, 0}))
}
