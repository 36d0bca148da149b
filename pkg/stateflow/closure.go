package stateflow

import (
	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/stateflow/bitset"
	"github.com/Velaciela/taichi/pkg/stateflow/smallset"
)

// ComputeTransitiveClosure computes reachability over the pending tasks in
// [begin, end), which must already be in topological order (RebuildGraph
// with sort restores it after any mutation). Bit i of either result
// corresponds to pending task begin+i; each set includes the task itself.
//
//	hasPathFrom[i]: tasks j ≤ i with a directed path j→*→i in the induced
//	subgraph.
//	hasPathTo[i]: tasks j ≥ i with a directed path i→*→j.
//
// The propagation ORs whole predecessor (successor) sets word-parallel, so
// the cost is O(N·E/W).
func (g *Graph) ComputeTransitiveClosure(begin, end int) (hasPathFrom, hasPathTo []bitset.Bits) {
	n := end - begin
	hasPathFrom = make([]bitset.Bits, n)
	hasPathTo = make([]bitset.Bits, n)
	pending := g.GetPendingRange(begin, end)

	inRange := func(node *Node) (int, bool) {
		if !node.Pending() {
			return 0, false
		}
		idx := node.pendingID - begin
		if idx < 0 || idx >= n {
			return 0, false
		}
		return idx, true
	}

	for i := 0; i < n; i++ {
		hasPathFrom[i] = bitset.New(n)
		hasPathFrom[i].Set(i)
		pending[i].InputEdges.ForEach(func(_ astate.State, nodes *smallset.Set[*Node]) bool {
			nodes.ForEach(func(from *Node) bool {
				if j, ok := inRange(from); ok && j < i {
					hasPathFrom[i].OrWith(hasPathFrom[j])
				}
				return true
			})
			return true
		})
	}

	for i := n - 1; i >= 0; i-- {
		hasPathTo[i] = bitset.New(n)
		hasPathTo[i].Set(i)
		pending[i].OutputEdges.ForEach(func(_ astate.State, nodes *smallset.Set[*Node]) bool {
			nodes.ForEach(func(to *Node) bool {
				if j, ok := inRange(to); ok && j > i {
					hasPathTo[i].OrWith(hasPathTo[j])
				}
				return true
			})
			return true
		})
	}
	return hasPathFrom, hasPathTo
}
