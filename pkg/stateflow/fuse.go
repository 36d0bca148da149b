package stateflow

import (
	"context"
	"errors"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/irbank"
)

// FuseRange scans pending tasks [begin, end) in topological order and
// greedily merges compatible pairs, batching fuses that do not conflict: a
// node takes part in at most one fuse per pass. Tasks A and B merge only
// when their launch shapes match and no third in-range task lies on a path
// between them, checked against the transitive-closure bitsets. Returns
// the node ids of the tasks that merged away.
func (g *Graph) FuseRange(ctx context.Context, begin, end int) (mapset.Set[int], error) {
	l := ctxzap.Extract(ctx)
	toDelete := mapset.NewSet[int]()
	n := end - begin
	if n < 2 {
		return toDelete, nil
	}

	hasPathFrom, hasPathTo := g.ComputeTransitiveClosure(begin, end)
	pending := g.GetPendingRange(begin, end)
	consumed := make([]bool, n)

	for i := 0; i < n; i++ {
		if consumed[i] {
			continue
		}
		a := pending[i]
		for j := i + 1; j < n; j++ {
			if consumed[j] {
				continue
			}
			b := pending[j]
			if !g.bank.AreFusible(a.Meta, b.Meta) {
				continue
			}

			// Reachability isolation: nothing else may sit on a path
			// between a and b, or the merge would squeeze that task's
			// happens-before relations.
			between := hasPathTo[i].And(hasPathFrom[j])
			between.Clear(i)
			between.Clear(j)
			if !between.Empty() {
				continue
			}

			merged, err := g.bank.FuseBodies(ctx, a.Rec.Body, b.Rec.Body)
			if errors.Is(err, irbank.ErrNotFusible) {
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("stateflow: fuse %s into %s: %w", a.Name(), b.Name(), err)
			}

			meta, err := g.bank.GetOrInternMeta(ctx, merged)
			if err != nil {
				return nil, fmt.Errorf("stateflow: fuse %s into %s: %w", a.Name(), b.Name(), err)
			}

			l.Debug("fusing tasks",
				zap.String("from", a.Name()),
				zap.String("into", b.Name()),
			)

			// B absorbs A: merged body and metadata, A's edges, and A's
			// reachability.
			b.Rec.Body = merged
			b.Rec.Fingerprint = merged.Fingerprint()
			b.Meta = meta
			g.DisconnectWith(a, b)
			g.ReplaceReference(a, b, false)

			hasPathFrom[j].OrWith(hasPathFrom[i])
			hasPathTo[j].OrWith(hasPathTo[i])
			for k := 0; k < n; k++ {
				if k == i || k == j {
					continue
				}
				if hasPathTo[k].Test(i) || hasPathTo[k].Test(j) {
					hasPathTo[k].OrWith(hasPathTo[j])
				}
				if hasPathFrom[k].Test(i) || hasPathFrom[k].Test(j) {
					hasPathFrom[k].OrWith(hasPathFrom[j])
				}
			}

			toDelete.Add(a.nodeID)
			consumed[i] = true
			consumed[j] = true
			break
		}
	}
	return toDelete, nil
}

// Fuse iterates fusion over the whole pending window, in bounded windows
// when the window is large, until a full sweep merges nothing. Reports
// whether any fusion happened.
func (g *Graph) Fuse(ctx context.Context) (bool, error) {
	modified := false
	for {
		if err := g.RebuildGraph(ctx, true); err != nil {
			return modified, err
		}
		n := g.NumPendingTasks()
		toDelete := mapset.NewSet[int]()
		for begin := 0; begin < n; begin += g.fuseWindow {
			end := begin + g.fuseWindow
			if end > n {
				end = n
			}
			deleted, err := g.FuseRange(ctx, begin, end)
			if err != nil {
				return modified, err
			}
			toDelete = toDelete.Union(deleted)
		}
		if toDelete.Cardinality() == 0 {
			return modified, nil
		}
		modified = true
		g.DeleteNodes(ctx, toDelete)
	}
}
