package stateflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/ir"
)

// TestFullOptimizationPipeline runs every pass over a frame-shaped task
// stream and checks the surviving schedule still honors all data flow.
func TestFullOptimizationPipeline(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	scratch := sigma(t, 1)
	result := env.leafB.ValueState()

	structWriter := func(name string) *ir.Body {
		return activatingWriter(name, env.leafA)
	}
	reduce := serialReader(
		"reduce",
		[]astate.State{env.leafA.ValueState()},
		[]astate.State{result},
	)

	insert(t, env, false,
		listgenBody("listgen_x", env.leafA),
		structWriter("p1"),
		listgenBody("listgen_x", env.leafA),
		structWriter("p2"),
		rangeWriter("tmp", scratch),
		reduce,
	)

	listgenChanged, err := env.graph.OptimizeListgen(ctx)
	require.NoError(t, err)
	require.False(t, listgenChanged, "the activator between the listgens keeps both live")

	demoted, err := env.graph.DemoteActivation(ctx)
	require.NoError(t, err)
	require.True(t, demoted, "p2 rides on p1's activation")

	deadRemoved, err := env.graph.OptimizeDeadStore(ctx)
	require.NoError(t, err)
	require.True(t, deadRemoved, "the scratch writer has no readers")

	require.NoError(t, env.graph.Verify(true))

	names := emittedNames(t, env.graph)
	require.NotContains(t, names, "tmp")
	// Two launches share the listgen kernel name; first occurrence wins.
	pos := make(map[string]int, len(names))
	for i, n := range names {
		if _, ok := pos[n]; !ok {
			pos[n] = i
		}
	}
	require.Less(t, pos["listgen_x"], pos["p1"], "a struct-for needs its list first")
	require.Less(t, pos["p1"], pos["reduce"], "the reduction reads the written values")
	require.Less(t, pos["p2"], pos["reduce"])
}
