package stateflow

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/stateflow/smallset"
)

// DisconnectAll removes n from the adjacency containers of every neighbor
// and clears n's own edge maps.
func (g *Graph) DisconnectAll(n *Node) {
	n.InputEdges.ForEach(func(_ astate.State, nodes *smallset.Set[*Node]) bool {
		nodes.ForEach(func(from *Node) bool {
			from.OutputEdges.RemoveNode(n)
			return true
		})
		return true
	})
	n.OutputEdges.ForEach(func(_ astate.State, nodes *smallset.Set[*Node]) bool {
		nodes.ForEach(func(to *Node) bool {
			to.InputEdges.RemoveNode(n)
			return true
		})
		return true
	})
	n.InputEdges = nil
	n.OutputEdges = nil
}

// DisconnectWith removes the symmetric edge between n and other on every
// state.
func (g *Graph) DisconnectWith(n, other *Node) {
	n.InputEdges.RemoveNode(other)
	n.OutputEdges.RemoveNode(other)
	other.InputEdges.RemoveNode(n)
	other.OutputEdges.RemoveNode(n)
}

// ReplaceReference transfers a's edges to b: every outbound edge
// a-(s)->x becomes b-(s)->x. With onlyOutputEdges false every inbound edge
// x-(s)->a likewise becomes x-(s)->b; otherwise a's inbound edges are left
// in place. Edges that would become self-loops on b are dropped.
func (g *Graph) ReplaceReference(a, b *Node, onlyOutputEdges bool) {
	a.OutputEdges.ForEach(func(s astate.State, nodes *smallset.Set[*Node]) bool {
		nodes.ForEach(func(to *Node) bool {
			to.InputEdges.Get(s).Remove(a)
			if to != b {
				g.InsertEdge(b, to, s)
			}
			return true
		})
		return true
	})
	a.OutputEdges = nil

	if onlyOutputEdges {
		return
	}

	a.InputEdges.ForEach(func(s astate.State, nodes *smallset.Set[*Node]) bool {
		nodes.ForEach(func(from *Node) bool {
			from.OutputEdges.Get(s).Remove(a)
			if from != b {
				g.InsertEdge(from, b, s)
			}
			return true
		})
		return true
	})
	a.InputEdges = nil
}

// DeleteNodes disconnects and removes the selected nodes (by current node
// id) from the master list in one pass, then refreshes ids. The initial
// node is never deleted.
func (g *Graph) DeleteNodes(ctx context.Context, nodeIDs mapset.Set[int]) {
	if nodeIDs == nil || nodeIDs.Cardinality() == 0 {
		return
	}
	l := ctxzap.Extract(ctx)

	survivors := g.nodes[:0]
	firstPending := 0
	deleted := 0
	for _, n := range g.nodes {
		if !n.isInitial && nodeIDs.Contains(n.nodeID) {
			g.DisconnectAll(n)
			g.scrubBookkeeping(n)
			deleted++
			continue
		}
		if n.Executed() {
			firstPending++
		}
		survivors = append(survivors, n)
	}
	g.nodes = survivors
	g.firstPending = firstPending
	g.reidNodes()
	g.reidPendingNodes()

	l.Debug("deleted nodes", zap.Int("deleted", deleted), zap.Int("remaining", len(g.nodes)))
}

// scrubBookkeeping drops a deleted node from the builder maps so they never
// dangle. The maps are rebuilt exactly by the next RebuildGraph.
func (g *Graph) scrubBookkeeping(n *Node) {
	for s, owner := range g.latestOwner {
		if owner == n {
			delete(g.latestOwner, s)
		}
	}
	for _, readers := range g.latestReaders {
		readers.Remove(n)
	}
}
