package stateflow

import (
	"container/heap"
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/ir"
	"github.com/Velaciela/taichi/pkg/stateflow/smallset"
)

// intHeap is a min-heap of pending ids used for the deterministic
// tie-break of the topological sort.
type intHeap []int

func (h intHeap) Len() int            { return len(h) }
func (h intHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h intHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *intHeap) Push(x interface{}) { *h = append(*h, x.(int)) }
func (h *intHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// TopoSortNodes reorders the pending window into a topological order of
// the pending subgraph using Kahn's algorithm, breaking ties by ascending
// original pending id so the result is deterministic and consistent with
// submission order. Node ids are refreshed afterwards.
func (g *Graph) TopoSortNodes() {
	pending := g.GetPendingTasks()
	n := len(pending)
	if n == 0 {
		return
	}

	// In-degree counts distinct pending predecessors; executed nodes and
	// the initial node already precede everything pending.
	indeg := make([]int, n)
	succs := make([][]int, n)
	for i, node := range pending {
		preds := make(map[int]struct{})
		node.InputEdges.ForEach(func(_ astate.State, nodes *smallset.Set[*Node]) bool {
			nodes.ForEach(func(from *Node) bool {
				if from.Pending() {
					preds[from.pendingID] = struct{}{}
				}
				return true
			})
			return true
		})
		indeg[i] = len(preds)
		for p := range preds {
			succs[p] = append(succs[p], i)
		}
	}

	ready := &intHeap{}
	for i := 0; i < n; i++ {
		if indeg[i] == 0 {
			ready.Push(i)
		}
	}
	heap.Init(ready)

	order := make([]*Node, 0, n)
	for ready.Len() > 0 {
		i := heap.Pop(ready).(int)
		order = append(order, pending[i])
		for _, s := range succs[i] {
			indeg[s]--
			if indeg[s] == 0 {
				heap.Push(ready, s)
			}
		}
	}
	if len(order) != n {
		// The graph is maintained acyclic by construction; a cycle here is
		// a programming error.
		panic(fmt.Sprintf("stateflow: cycle among pending tasks: sorted %d of %d", len(order), n))
	}

	copy(g.nodes[g.firstPending:], order)
	g.reidNodes()
	g.reidPendingNodes()
}

// RebuildGraph re-inserts every pending task, in topological order when
// sort is set and in current order otherwise, deriving all edges and
// bookkeeping afresh from task metadata. Executed nodes are pruned; the
// initial node survives.
func (g *Graph) RebuildGraph(ctx context.Context, sort bool) error {
	if sort {
		g.TopoSortNodes()
	}
	pending := g.GetPendingTasks()
	recs := make([]ir.TaskLaunchRecord, len(pending))
	for i, n := range pending {
		recs[i] = n.Rec
	}
	g.reset()
	if err := g.InsertTasks(ctx, recs, false); err != nil {
		return fmt.Errorf("stateflow: rebuild: %w", err)
	}
	ctxzap.Extract(ctx).Debug("rebuilt graph",
		zap.Bool("sorted", sort),
		zap.Int("pending", g.NumPendingTasks()),
	)
	return nil
}
