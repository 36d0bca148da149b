package stateflow

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/stateflow/bitset"
)

// DemoteActivation rewrites activate-then-write tasks into plain writes
// when activation is provably redundant: some predecessor on a path to the
// task already guarantees activation of every cell the task touches, and
// no task that may run between the two deactivates the region. The task
// gets a demoted body with a fresh fingerprint and re-interned metadata.
// Reports whether any task was demoted.
func (g *Graph) DemoteActivation(ctx context.Context) (bool, error) {
	if err := g.RebuildGraph(ctx, true); err != nil {
		return false, err
	}
	l := ctxzap.Extract(ctx)

	n := g.NumPendingTasks()
	if n < 2 {
		return false, nil
	}
	hasPathFrom, hasPathTo := g.ComputeTransitiveClosure(0, n)
	pending := g.GetPendingTasks()

	changed := false
	for i, node := range pending {
		meta := node.Meta
		if !meta.ActivationDemotable || meta.ActivationSNode == nil {
			continue
		}
		region := meta.ActivationSNode

		for j := 0; j < i; j++ {
			if !hasPathFrom[i].Test(j) {
				continue
			}
			pred := pending[j].Meta
			if !pred.GuaranteesActivation || pred.ActivationSNode != region {
				continue
			}
			// Identical launch shape means the predecessor touched, and
			// therefore activated, every cell this task will write.
			if !pred.SameLaunchShape(meta) {
				continue
			}
			if !g.regionStaysActive(pending, hasPathFrom, hasPathTo, j, i, region) {
				continue
			}

			demoted, err := g.bank.RewriteForDemotion(ctx, node.Rec.Body, region)
			if err != nil {
				return changed, fmt.Errorf("stateflow: demote %s: %w", node.Name(), err)
			}
			demotedMeta, err := g.bank.GetOrInternMeta(ctx, demoted)
			if err != nil {
				return changed, fmt.Errorf("stateflow: demote %s: %w", node.Name(), err)
			}
			l.Debug("demoted activation",
				zap.String("kernel", node.Name()),
				zap.String("region", region.Name),
				zap.String("guaranteed_by", pending[j].Name()),
			)
			node.Rec.Body = demoted
			node.Rec.Fingerprint = demoted.Fingerprint()
			node.Meta = demotedMeta
			changed = true
			break
		}
	}

	if changed {
		// Demotion shrinks output-state sets; rebuild so the edges match
		// the new metadata.
		if err := g.RebuildGraph(ctx, true); err != nil {
			return true, err
		}
	}
	return changed, nil
}

// regionStaysActive reports whether no pending task that may execute
// between guard and target deactivates cells of region. A deactivator is
// harmless only when it is ordered strictly before the guard or strictly
// after the target; anything unordered could land between them in the
// emitted sequence.
func (g *Graph) regionStaysActive(pending []*Node, hasPathFrom, hasPathTo []bitset.Bits, guard, target int, region *astate.SNode) bool {
	for c, node := range pending {
		if c == guard || c == target {
			continue
		}
		meta := node.Meta
		if !meta.Deactivates {
			continue
		}
		touches := false
		for sn := range meta.TouchedSNodes.Iter() {
			if sn.IsAncestorOf(region) || region.IsAncestorOf(sn) {
				touches = true
				break
			}
		}
		if !touches {
			continue
		}
		beforeGuard := hasPathFrom[guard].Test(c)
		afterTarget := hasPathTo[target].Test(c)
		if !beforeGuard && !afterTarget {
			return false
		}
	}
	return true
}
