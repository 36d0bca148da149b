package stateflow

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/ir"
)

// OptimizeListgen removes redundant list-regeneration tasks: a listgen for
// a sparse node whose list an earlier pending listgen already produced,
// with no intervening task invalidating that list, recomputes an identical
// list. The later task is deleted and its outbound edges redirect to the
// earlier producer. Reports whether any deletion happened.
func (g *Graph) OptimizeListgen(ctx context.Context) (bool, error) {
	if err := g.RebuildGraph(ctx, true); err != nil {
		return false, err
	}
	l := ctxzap.Extract(ctx)

	// Walk the pending window in emission order, tracking the live listgen
	// per sparse node. Any value or mask write into a node kills the
	// liveness of its whole subtree.
	live := make(map[*astate.SNode]*Node)
	toDelete := mapset.NewSet[int]()
	for _, n := range g.GetPendingTasks() {
		meta := n.Meta
		if meta.Type == ir.TaskListgen {
			if prev, ok := live[meta.Snode]; ok {
				l.Debug("removing redundant listgen",
					zap.String("kernel", meta.Name),
					zap.String("snode", meta.Snode.Name),
				)
				g.ReplaceReference(n, prev, true)
				toDelete.Add(n.nodeID)
			} else {
				live[meta.Snode] = n
			}
			continue
		}
		for s := range meta.OutputStates.Iter() {
			if s.Kind != astate.KindValue && s.Kind != astate.KindMask {
				continue
			}
			if sn, ok := s.Target.(*astate.SNode); ok {
				sn.Walk(func(d *astate.SNode) bool {
					delete(live, d)
					return true
				})
			}
		}
	}

	if toDelete.Cardinality() == 0 {
		return false, nil
	}
	g.DeleteNodes(ctx, toDelete)
	if err := g.RebuildGraph(ctx, true); err != nil {
		return true, err
	}
	return true, nil
}
