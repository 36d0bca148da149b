// Package stateflow implements the state flow graph: a dependency graph
// over an asynchronous task stream, built from each task's declared input
// and output states, plus the optimization passes (fusion, list-generation
// removal, activation demotion, dead-store elimination) that rewrite the
// graph while preserving observable semantics. The graph is single-owner:
// all operations run to completion on the calling goroutine, and only the
// IR bank behind it is shared.
package stateflow

import (
	"context"
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/ir"
	"github.com/Velaciela/taichi/pkg/irbank"
	"github.com/Velaciela/taichi/pkg/stateflow/smallset"
)

const defaultFuseWindow = 512

// Options tunes a graph.
type Options struct {
	// FuseWindow bounds the number of pending tasks a single fusion range
	// considers, which bounds the transitive-closure bitset memory. Zero
	// means the default.
	FuseWindow int
}

// Graph is the state flow graph. Not safe for concurrent use; one logical
// owner mutates it.
type Graph struct {
	bank *irbank.Bank

	// nodes is the master node list. Nodes before firstPending have
	// been handed to the engine; the suffix is the pending window.
	nodes        []*Node
	initial      *Node
	firstPending int

	latestOwner   map[astate.State]*Node
	latestReaders map[astate.State]*smallset.Set[*Node]
	launchIDs     map[string]int
	listFresh     map[*astate.SNode]bool

	fuseWindow int
}

// New creates a graph holding only the initial node.
func New(bank *irbank.Bank, opts *Options) *Graph {
	g := &Graph{
		bank:       bank,
		fuseWindow: defaultFuseWindow,
	}
	if opts != nil && opts.FuseWindow > 0 {
		g.fuseWindow = opts.FuseWindow
	}
	g.launchIDs = make(map[string]int)
	g.reset()
	return g
}

// reset drops every node and rebuilds the sentinel. Launch counters
// survive so re-inserted records keep their identities.
func (g *Graph) reset() {
	initialMeta := &ir.TaskMeta{
		Name:         "initial_state",
		Type:         ir.TaskSerial,
		InputStates:  mapset.NewSet[astate.State](),
		OutputStates: mapset.NewSet[astate.State](),
	}
	g.initial = &Node{
		Meta:      initialMeta,
		isInitial: true,
		nodeID:    0,
		pendingID: -1,
	}
	g.nodes = []*Node{g.initial}
	g.firstPending = 1
	g.latestOwner = make(map[astate.State]*Node)
	g.latestReaders = make(map[astate.State]*smallset.Set[*Node])
	g.listFresh = make(map[*astate.SNode]bool)
}

// Clear drops all tasks, keeping only the initial node.
func (g *Graph) Clear() {
	g.reset()
}

// Size returns the number of nodes, including the initial node and
// executed tasks not yet pruned.
func (g *Graph) Size() int { return len(g.nodes) }

// NumPendingTasks returns the number of tasks not yet extracted.
func (g *Graph) NumPendingTasks() int { return len(g.nodes) - g.firstPending }

// InitialNode returns the sentinel owning every state's initial value.
func (g *Graph) InitialNode() *Node { return g.initial }

// GetPendingTasks returns the pending nodes in graph order. The returned
// slice aliases graph storage and is valid only until the next mutation.
func (g *Graph) GetPendingTasks() []*Node {
	return g.nodes[g.firstPending:]
}

// GetPendingRange returns GetPendingTasks()[begin:end).
func (g *Graph) GetPendingRange(begin, end int) []*Node {
	return g.nodes[g.firstPending+begin : g.firstPending+end]
}

// InsertTasks ingests launch records in submission order, creating one
// node per record and the dependency and flow edges implied by each
// record's state sets. With filterListgen set, list-regeneration launches
// whose target list is already fresh are dropped without a node.
func (g *Graph) InsertTasks(ctx context.Context, recs []ir.TaskLaunchRecord, filterListgen bool) error {
	l := ctxzap.Extract(ctx)
	for _, rec := range recs {
		meta, err := g.bank.GetOrInternMeta(ctx, rec.Body)
		if err != nil {
			return fmt.Errorf("stateflow: insert %s: %w", rec.Body.KernelName, err)
		}

		if filterListgen && meta.Type == ir.TaskListgen && g.listFresh[meta.Snode] {
			l.Debug("dropped redundant listgen launch",
				zap.String("kernel", meta.Name),
				zap.String("snode", meta.Snode.Name),
			)
			continue
		}

		if rec.LaunchID < 0 {
			rec.LaunchID = g.launchIDs[meta.Name]
			g.launchIDs[meta.Name]++
		}

		node := &Node{
			Rec:       rec,
			Meta:      meta,
			nodeID:    len(g.nodes),
			pendingID: g.NumPendingTasks(),
		}
		g.nodes = append(g.nodes, node)

		// Flow edges: the latest writer of each input state feeds us.
		for s := range meta.InputStates.Iter() {
			g.InsertEdge(g.ownerOf(s), node, s)
			g.readersOf(s).Add(node)
		}

		// Dependency edges: write-after-read from every reader since the
		// last writer, then write-after-write from that writer itself.
		for s := range meta.OutputStates.Iter() {
			g.readersOf(s).ForEach(func(r *Node) bool {
				if r != node {
					g.InsertEdge(r, node, s)
				}
				return true
			})
			if owner := g.ownerOf(s); owner != node {
				g.InsertEdge(owner, node, s)
			}
			g.latestOwner[s] = node
			g.readersOf(s).Clear()
		}

		g.updateListFreshness(meta)
	}
	return nil
}

// ownerOf returns the most recent writer of s, falling back to the initial
// node, whose synthetic metadata grows to own every state it sources.
func (g *Graph) ownerOf(s astate.State) *Node {
	if owner, ok := g.latestOwner[s]; ok {
		return owner
	}
	g.initial.Meta.OutputStates.Add(s)
	g.latestOwner[s] = g.initial
	return g.initial
}

func (g *Graph) readersOf(s astate.State) *smallset.Set[*Node] {
	set, ok := g.latestReaders[s]
	if !ok {
		set = &smallset.Set[*Node]{}
		g.latestReaders[s] = set
	}
	return set
}

// updateListFreshness applies a newly inserted task to the list-freshness
// map: listgen launches make their target list fresh; value or mask writes
// into a sparse node invalidate the lists of that node and its subtree.
func (g *Graph) updateListFreshness(meta *ir.TaskMeta) {
	for s := range meta.OutputStates.Iter() {
		if s.Kind != astate.KindValue && s.Kind != astate.KindMask {
			continue
		}
		if sn, ok := s.Target.(*astate.SNode); ok {
			g.MarkListAsDirty(sn)
		}
	}
	if meta.Type == ir.TaskListgen && meta.Snode != nil {
		g.listFresh[meta.Snode] = true
	}
}

// MarkListAsDirty invalidates the active-cell list of snode and all of its
// descendants.
func (g *Graph) MarkListAsDirty(snode *astate.SNode) {
	snode.Walk(func(sn *astate.SNode) bool {
		g.listFresh[sn] = false
		return true
	})
}

// InsertEdge records the arc from—(state)→to in both adjacency containers.
// Inserting the same tuple twice is a no-op.
func (g *Graph) InsertEdge(from, to *Node, state astate.State) {
	if from == to {
		return
	}
	from.OutputEdges.Ensure(state).Add(to)
	to.InputEdges.Ensure(state).Add(from)
}

// MarkPendingTasksAsExecuted hands the whole pending window to the engine:
// every pending node's pendingID becomes -1 and it stops being a candidate
// for optimization.
func (g *Graph) MarkPendingTasksAsExecuted() {
	for _, n := range g.GetPendingTasks() {
		n.markExecuted()
	}
	g.firstPending = len(g.nodes)
}

// reidNodes refreshes every node's position in the master list.
func (g *Graph) reidNodes() {
	for i, n := range g.nodes {
		n.nodeID = i
	}
}

// reidPendingNodes refreshes every pending node's position in the pending
// window.
func (g *Graph) reidPendingNodes() {
	for i, n := range g.GetPendingTasks() {
		n.pendingID = i
	}
}
