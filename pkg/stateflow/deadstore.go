package stateflow

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/astate"
)

// OptimizeDeadStore drops writes whose value no one will ever read: no
// pending reader consumes the state before its next writer, and either a
// later pending write overwrites it or the state is unobservable after the
// pipeline finishes. Stores are removed from the task body through the
// bank's edit surface; a task left with no outputs and no side effects is
// deleted outright. Reports whether anything changed.
//
// The walk goes backward over the pending window so that deleting a dead
// final store immediately exposes the store it was masking.
func (g *Graph) OptimizeDeadStore(ctx context.Context) (bool, error) {
	if err := g.RebuildGraph(ctx, true); err != nil {
		return false, err
	}
	l := ctxzap.Extract(ctx)

	pending := g.GetPendingTasks()
	toDelete := mapset.NewSet[int]()
	changed := false
	for i := len(pending) - 1; i >= 0; i-- {
		node := pending[i]
		if node.Meta.HasSideEffects {
			continue
		}

		dead := mapset.NewSet[astate.State]()
		for s := range node.Meta.OutputStates.Iter() {
			hasReader := false
			hasLaterWriter := false
			if set := node.OutputEdges.Get(s); set != nil {
				set.ForEach(func(succ *Node) bool {
					if succ.Meta.Reads(s) {
						hasReader = true
						return false
					}
					if succ.Meta.Writes(s) {
						hasLaterWriter = true
					}
					return true
				})
			}
			if !hasReader && (hasLaterWriter || !s.Observable()) {
				dead.Add(s)
			}
		}
		if dead.Cardinality() == 0 {
			continue
		}

		edited, err := g.bank.RemoveStores(ctx, node.Rec.Body, dead)
		if err != nil {
			return changed, fmt.Errorf("stateflow: dead store in %s: %w", node.Name(), err)
		}
		editedMeta, err := g.bank.GetOrInternMeta(ctx, edited)
		if err != nil {
			return changed, fmt.Errorf("stateflow: dead store in %s: %w", node.Name(), err)
		}
		l.Debug("dropped dead stores",
			zap.String("kernel", node.Name()),
			zap.Int("states", dead.Cardinality()),
		)
		node.Rec.Body = edited
		node.Rec.Fingerprint = edited.Fingerprint()
		node.Meta = editedMeta
		changed = true

		// Prune the outbound edges of the dropped states so earlier
		// iterations of this walk see the updated reader sets.
		for s := range dead.Iter() {
			if set := node.OutputEdges.Get(s); set != nil {
				set.ForEach(func(succ *Node) bool {
					if in := succ.InputEdges.Get(s); in != nil {
						in.Remove(node)
					}
					return true
				})
				node.OutputEdges.RemoveState(s)
			}
		}

		if node.Meta.OutputStates.Cardinality() == 0 && !node.Meta.HasSideEffects {
			g.DisconnectAll(node)
			toDelete.Add(node.nodeID)
		}
	}

	if !changed {
		return false, nil
	}
	g.DeleteNodes(ctx, toDelete)
	if err := g.RebuildGraph(ctx, true); err != nil {
		return true, err
	}
	return true, nil
}
