package stateflow

import (
	"fmt"
	"strings"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/ir"
	"github.com/Velaciela/taichi/pkg/stateflow/smallset"
)

// stateEdges is one entry of a StateToNodesMap: the neighbors reached via
// one state.
type stateEdges struct {
	State astate.State
	Nodes *smallset.Set[*Node]
}

// StateToNodesMap associates each state with the set of neighbor nodes
// reached via that state. Entries keep insertion order; the per-state
// neighbor set deduplicates, which makes edge insertion idempotent.
//
// A plain map-of-maps was measured to churn allocations on the common
// low-fan-out case, so entries live in a small ordered vector and neighbor
// sets hold up to eight elements inline before spilling to a map.
type StateToNodesMap []stateEdges

// Get returns the neighbor set for s, or nil.
func (m StateToNodesMap) Get(s astate.State) *smallset.Set[*Node] {
	for i := range m {
		if m[i].State == s {
			return m[i].Nodes
		}
	}
	return nil
}

// Ensure returns the neighbor set for s, creating the entry if absent.
func (m *StateToNodesMap) Ensure(s astate.State) *smallset.Set[*Node] {
	if set := m.Get(s); set != nil {
		return set
	}
	set := &smallset.Set[*Node]{}
	*m = append(*m, stateEdges{State: s, Nodes: set})
	return set
}

// RemoveState drops the entry for s entirely.
func (m *StateToNodesMap) RemoveState(s astate.State) {
	for i := range *m {
		if (*m)[i].State == s {
			*m = append((*m)[:i], (*m)[i+1:]...)
			return
		}
	}
}

// RemoveNode removes n from every neighbor set, dropping entries that
// become empty.
func (m *StateToNodesMap) RemoveNode(n *Node) {
	out := (*m)[:0]
	for _, e := range *m {
		e.Nodes.Remove(n)
		if e.Nodes.Len() > 0 {
			out = append(out, e)
		}
	}
	*m = out
}

// ForEach visits every (state, neighbor set) pair in order, stopping early
// if fn returns false.
func (m StateToNodesMap) ForEach(fn func(s astate.State, nodes *smallset.Set[*Node]) bool) {
	for i := range m {
		if !fn(m[i].State, m[i].Nodes) {
			return
		}
	}
}

// NumEdges counts stored (state, neighbor) pairs.
func (m StateToNodesMap) NumEdges() int {
	n := 0
	for i := range m {
		n += m[i].Nodes.Len()
	}
	return n
}

// Node is a single task launch in the graph.
type Node struct {
	Rec  ir.TaskLaunchRecord
	Meta *ir.TaskMeta

	isInitial bool

	// nodeID is the position in the graph's master node list; refreshed in
	// bulk by reidNodes after any structural mutation.
	nodeID int

	// pendingID is the position within the pending suffix, or -1 once the
	// node has been handed to the execution engine.
	pendingID int

	InputEdges  StateToNodesMap
	OutputEdges StateToNodesMap
}

// IsInitial reports whether this is the sentinel node owning every state's
// initial value.
func (n *Node) IsInitial() bool { return n.isInitial }

// NodeID returns the position in the master node list.
func (n *Node) NodeID() int { return n.nodeID }

// PendingID returns the position in the pending suffix, or -1 if executed.
func (n *Node) PendingID() int { return n.pendingID }

// Pending reports whether the node has not yet been extracted.
func (n *Node) Pending() bool { return n.pendingID >= 0 }

// Executed reports whether the node has been handed to the engine.
func (n *Node) Executed() bool { return n.pendingID == -1 }

func (n *Node) markExecuted() { n.pendingID = -1 }

// HasStateFlow reports the color of the edge n—(state)→destination: true
// for a flow edge (the destination reads the state this node produced),
// false for a plain dependency edge (write-after-read or
// write-after-write; the destination must merely run later).
func (n *Node) HasStateFlow(state astate.State, destination *Node) bool {
	return destination.Meta.Reads(state)
}

// Name returns the kernel name of the launch.
func (n *Node) Name() string {
	if n.isInitial {
		return "initial_state"
	}
	return n.Meta.Name
}

func (n *Node) String() string {
	var sb strings.Builder
	if n.isInitial {
		sb.WriteString("initial_state")
	} else {
		fmt.Fprintf(&sb, "%s#%d", n.Meta.Name, n.Rec.LaunchID)
	}
	fmt.Fprintf(&sb, " [id=%d pending=%d]", n.nodeID, n.pendingID)
	return sb.String()
}
