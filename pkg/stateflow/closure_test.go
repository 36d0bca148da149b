package stateflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Velaciela/taichi/pkg/astate"
)

func TestTransitiveClosureChain(t *testing.T) {
	// S6: a flow chain A→B→C→D.
	env := newTestEnv(t)
	s1 := sigma(t, 1)
	s2 := sigma(t, 2)
	s3 := sigma(t, 3)

	insert(t, env, false,
		serialReader("A", nil, []astate.State{s1}),
		serialReader("B", []astate.State{s1}, []astate.State{s2}),
		serialReader("C", []astate.State{s2}, []astate.State{s3}),
		serialReader("D", []astate.State{s3}, nil),
	)
	require.NoError(t, env.graph.RebuildGraph(context.Background(), true))

	hasPathFrom, hasPathTo := env.graph.ComputeTransitiveClosure(0, 4)

	for _, j := range []int{1, 2, 3} {
		require.True(t, hasPathTo[0].Test(j), "A reaches node %d", j)
	}
	for _, j := range []int{0, 1, 2} {
		require.True(t, hasPathFrom[3].Test(j), "node %d reaches D", j)
	}
	require.True(t, hasPathTo[0].Test(0), "closure includes the task itself")
	require.False(t, hasPathFrom[0].Test(1), "nothing precedes the chain head")
}

func TestTransitiveClosureDiamondAndIsland(t *testing.T) {
	env := newTestEnv(t)
	s1 := sigma(t, 1)
	s2 := sigma(t, 2)
	s3 := sigma(t, 3)
	iso := sigma(t, 4)

	// A feeds B and C; D joins both; E is unrelated.
	insert(t, env, false,
		serialReader("A", nil, []astate.State{s1}),
		serialReader("B", []astate.State{s1}, []astate.State{s2}),
		serialReader("C", []astate.State{s1}, []astate.State{s3}),
		serialReader("D", []astate.State{s2, s3}, nil),
		serialReader("E", nil, []astate.State{iso}),
	)
	require.NoError(t, env.graph.RebuildGraph(context.Background(), true))

	pending := env.graph.GetPendingTasks()
	idx := make(map[string]int, len(pending))
	for i, n := range pending {
		idx[n.Meta.Name] = i
	}

	hasPathFrom, hasPathTo := env.graph.ComputeTransitiveClosure(0, 5)
	require.True(t, hasPathTo[idx["A"]].Test(idx["D"]))
	require.True(t, hasPathFrom[idx["D"]].Test(idx["B"]))
	require.True(t, hasPathFrom[idx["D"]].Test(idx["C"]))
	require.False(t, hasPathTo[idx["A"]].Test(idx["E"]), "E is disconnected from the diamond")
	require.Equal(t, 1, hasPathFrom[idx["E"]].Count(), "E has no ancestors in the range")
}
