package stateflow

import (
	"context"
	"testing"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/require"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/stateflow/smallset"
)

func TestRoundTripPreservesSubmissionOrder(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.leafA.ValueState()
	s2 := env.leafB.ValueState()

	insert(t, env, false,
		rangeWriter("w1", s1),
		serialReader("r1", []astate.State{s1}, []astate.State{s2}),
		rangeWriter("w2", s1),
		serialReader("r2", []astate.State{s2}, nil),
	)

	require.Equal(t, []string{"w1", "r1", "w2", "r2"}, emittedNames(t, env.graph))
	require.Equal(t, 0, env.graph.NumPendingTasks())
	require.NoError(t, env.graph.Verify(true))
}

func TestWriteAfterReadDependencies(t *testing.T) {
	// S5: two readers of σ1 between its writer and the next writer. Both
	// readers get flow edges from A and dependency edges into W.
	env := newTestEnv(t)
	s1 := env.leafA.ValueState()

	insert(t, env, false,
		rangeWriter("A", s1),
		serialReader("R1", []astate.State{s1}, nil),
		serialReader("R2", []astate.State{s1}, nil),
		rangeWriter("W", s1),
	)

	a := pendingByName(t, env.graph, "A")
	r1 := pendingByName(t, env.graph, "R1")
	r2 := pendingByName(t, env.graph, "R2")
	w := pendingByName(t, env.graph, "W")

	require.True(t, a.OutputEdges.Get(s1).Contains(r1))
	require.True(t, a.OutputEdges.Get(s1).Contains(r2))
	require.True(t, a.HasStateFlow(s1, r1), "A->R1 must be a flow edge")
	require.True(t, a.HasStateFlow(s1, r2), "A->R2 must be a flow edge")

	require.True(t, r1.OutputEdges.Get(s1).Contains(w), "R1->W write-after-read")
	require.True(t, r2.OutputEdges.Get(s1).Contains(w), "R2->W write-after-read")
	require.False(t, r1.HasStateFlow(s1, w), "R1->W is a plain dependency edge")

	names := emittedNames(t, env.graph)
	require.Len(t, names, 4)
	require.Equal(t, "A", names[0])
	require.Equal(t, "W", names[3])
}

func TestInitialNodeOwnsUnwrittenStates(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.leafA.ValueState()

	insert(t, env, false, serialReader("r", []astate.State{s1}, nil))

	r := pendingByName(t, env.graph, "r")
	initial := env.graph.InitialNode()
	require.True(t, initial.OutputEdges.Get(s1).Contains(r))
	require.True(t, initial.Meta.Writes(s1), "initial metadata grows to own sourced states")
	require.True(t, initial.Executed())
}

func TestLaunchIDsIncrementPerKernel(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.leafA.ValueState()
	body := rangeWriter("w", s1)

	insert(t, env, false, body, body, body)

	ids := make([]int, 0, 3)
	for _, n := range env.graph.GetPendingTasks() {
		ids = append(ids, n.Rec.LaunchID)
	}
	require.ElementsMatch(t, []int{0, 1, 2}, ids)
}

func TestRebuildGraphKeepsSemantics(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.leafA.ValueState()
	s2 := env.leafB.ValueState()

	insert(t, env, false,
		rangeWriter("w1", s1),
		serialReader("r1", []astate.State{s1}, []astate.State{s2}),
		rangeWriter("w2", s2),
	)

	require.NoError(t, env.graph.RebuildGraph(context.Background(), true))
	require.NoError(t, env.graph.Verify(true))
	require.Equal(t, []string{"w1", "r1", "w2"}, emittedNames(t, env.graph))
}

func TestExtractedTasksStopBeingCandidates(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.leafA.ValueState()

	insert(t, env, false, rangeWriter("w", s1))
	recs := env.graph.ExtractToExecute(context.Background())
	require.Len(t, recs, 1)
	require.Equal(t, 0, env.graph.NumPendingTasks())

	// A second batch starts a fresh pending window after the executed one.
	insert(t, env, false, rangeWriter("w", s1))
	require.Equal(t, 1, env.graph.NumPendingTasks())
	require.NoError(t, env.graph.Verify(true))
}

func TestClearKeepsOnlyInitialNode(t *testing.T) {
	env := newTestEnv(t)
	insert(t, env, false, rangeWriter("w", env.leafA.ValueState()))

	env.graph.Clear()
	require.Equal(t, 1, env.graph.Size())
	require.Equal(t, 0, env.graph.NumPendingTasks())
	require.NoError(t, env.graph.Verify(false))
}

func TestDeleteNodesKeepsInvariants(t *testing.T) {
	env := newTestEnv(t)
	s1 := env.leafA.ValueState()
	s2 := env.leafB.ValueState()

	insert(t, env, false,
		rangeWriter("a", s1),
		serialReader("b", []astate.State{s1}, []astate.State{s2}),
		serialReader("c", []astate.State{s2}, nil),
	)

	b := pendingByName(t, env.graph, "b")
	env.graph.DeleteNodes(context.Background(), mapset.NewSet(b.NodeID()))

	require.Equal(t, 2, env.graph.NumPendingTasks())
	for i, n := range env.graph.GetPendingTasks() {
		require.Equal(t, i, n.PendingID())
	}
	// No surviving edge may reference the deleted node.
	for _, n := range env.graph.GetPendingTasks() {
		n.OutputEdges.ForEach(func(_ astate.State, nodes *smallset.Set[*Node]) bool {
			nodes.ForEach(func(x *Node) bool {
				require.NotEqual(t, "b", x.Meta.Name)
				return true
			})
			return true
		})
	}
	require.NoError(t, env.graph.Verify(true))
}
