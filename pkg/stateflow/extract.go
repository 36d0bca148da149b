package stateflow

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/ir"
)

// ExtractToExecute hands the pending window to the execution engine: the
// pending tasks are topologically sorted, their launch records collected
// in that order, and the nodes marked executed so later passes leave them
// alone. The engine consumes the returned records first-in-first-out.
func (g *Graph) ExtractToExecute(ctx context.Context) []ir.TaskLaunchRecord {
	g.TopoSortNodes()
	pending := g.GetPendingTasks()
	recs := make([]ir.TaskLaunchRecord, len(pending))
	for i, n := range pending {
		recs[i] = n.Rec
	}
	g.MarkPendingTasksAsExecuted()
	ctxzap.Extract(ctx).Debug("extracted tasks to execute", zap.Int("count", len(recs)))
	return recs
}

// ExtractPendingTasks moves the pending nodes out of the graph, leaving
// only the initial node behind. The caller takes ownership; the graph's
// bookkeeping is reset.
func (g *Graph) ExtractPendingTasks() []*Node {
	pending := g.GetPendingTasks()
	out := make([]*Node, len(pending))
	copy(out, pending)
	g.reset()
	return out
}
