package stateflow

import (
	"errors"
	"fmt"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/irbank"
	"github.com/Velaciela/taichi/pkg/stateflow/smallset"
)

var ErrInvariantViolated = errors.New("state flow graph invariant violated")

const (
	colorWhite uint8 = iota
	colorGray
	colorBlack
)

// Verify asserts every structural invariant of the graph and returns a
// descriptive error on the first violation. A failure is a programming
// error, never an input error; callers are expected to abort. With
// alsoVerifyIR set, every task body is additionally checked for SSA
// well-formedness.
func (g *Graph) Verify(alsoVerifyIR bool) error {
	if err := g.verifyIDs(); err != nil {
		return err
	}
	if err := g.verifyEdges(); err != nil {
		return err
	}
	if err := g.verifyAcyclic(); err != nil {
		return err
	}
	if err := g.verifyBookkeeping(); err != nil {
		return err
	}
	if alsoVerifyIR {
		for _, n := range g.nodes {
			if n.isInitial {
				continue
			}
			if err := irbank.VerifyBody(n.Rec.Body); err != nil {
				return fmt.Errorf("%w: node %s: %v", ErrInvariantViolated, n, err)
			}
		}
	}
	return nil
}

func (g *Graph) verifyIDs() error {
	if len(g.nodes) == 0 || !g.nodes[0].isInitial {
		return fmt.Errorf("%w: the initial node must be node 0", ErrInvariantViolated)
	}
	for i, n := range g.nodes {
		if i > 0 && n.isInitial {
			return fmt.Errorf("%w: multiple initial nodes (node %d)", ErrInvariantViolated, i)
		}
		if n.nodeID != i {
			return fmt.Errorf("%w: node at position %d has node id %d", ErrInvariantViolated, i, n.nodeID)
		}
		if i < g.firstPending {
			if !n.Executed() {
				return fmt.Errorf("%w: node %s precedes the pending window but is not executed", ErrInvariantViolated, n)
			}
		} else if n.pendingID != i-g.firstPending {
			return fmt.Errorf("%w: node %s has pending id %d, want %d", ErrInvariantViolated, n, n.pendingID, i-g.firstPending)
		}
	}
	return nil
}

func (g *Graph) verifyEdges() error {
	var err error
	for _, a := range g.nodes {
		a.OutputEdges.ForEach(func(s astate.State, nodes *smallset.Set[*Node]) bool {
			nodes.ForEach(func(b *Node) bool {
				// Flow and write-after-write edges leave a writer of s;
				// write-after-read edges leave a reader of s for its next
				// writer.
				fromWriter := a.Meta.Writes(s) && (b.Meta.Reads(s) || b.Meta.Writes(s))
				fromReader := a.Meta.Reads(s) && b.Meta.Writes(s)
				if !fromWriter && !fromReader {
					err = fmt.Errorf("%w: edge %s-(%s)->%s is neither a flow, write-after-write nor write-after-read edge", ErrInvariantViolated, a, s, b)
					return false
				}
				if !b.InputEdges.Get(s).Contains(a) {
					err = fmt.Errorf("%w: edge %s-(%s)->%s has no inbound mirror", ErrInvariantViolated, a, s, b)
					return false
				}
				return true
			})
			return err == nil
		})
		if err != nil {
			return err
		}
		a.InputEdges.ForEach(func(s astate.State, nodes *smallset.Set[*Node]) bool {
			nodes.ForEach(func(b *Node) bool {
				if !b.OutputEdges.Get(s).Contains(a) {
					err = fmt.Errorf("%w: edge %s-(%s)->%s has no outbound mirror", ErrInvariantViolated, b, s, a)
					return false
				}
				return true
			})
			return err == nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// verifyAcyclic runs a coloring DFS over the whole node list.
func (g *Graph) verifyAcyclic() error {
	state := make([]uint8, len(g.nodes))
	var visit func(n *Node) error
	visit = func(n *Node) error {
		state[n.nodeID] = colorGray
		var err error
		n.OutputEdges.ForEach(func(_ astate.State, nodes *smallset.Set[*Node]) bool {
			nodes.ForEach(func(next *Node) bool {
				switch state[next.nodeID] {
				case colorWhite:
					err = visit(next)
				case colorGray:
					err = fmt.Errorf("%w: cycle through %s and %s", ErrInvariantViolated, n, next)
				}
				return err == nil
			})
			return err == nil
		})
		state[n.nodeID] = colorBlack
		return err
	}
	for _, n := range g.nodes {
		if state[n.nodeID] == colorWhite {
			if err := visit(n); err != nil {
				return err
			}
		}
	}
	return nil
}

// verifyBookkeeping recomputes the owner and reader maps by replaying the
// node list in insertion order and compares them with the maintained maps.
func (g *Graph) verifyBookkeeping() error {
	owner := make(map[astate.State]*Node)
	readers := make(map[astate.State]map[*Node]struct{})
	for _, n := range g.nodes {
		if n.isInitial {
			continue
		}
		for s := range n.Meta.InputStates.Iter() {
			set, ok := readers[s]
			if !ok {
				set = make(map[*Node]struct{})
				readers[s] = set
			}
			set[n] = struct{}{}
		}
		for s := range n.Meta.OutputStates.Iter() {
			owner[s] = n
			delete(readers, s)
		}
	}

	for s, want := range g.latestOwner {
		if want.isInitial {
			if _, overwritten := owner[s]; overwritten {
				return fmt.Errorf("%w: %s is owned by the initial node but has a later writer", ErrInvariantViolated, s)
			}
			continue
		}
		if got := owner[s]; got != want {
			return fmt.Errorf("%w: latest owner of %s is %s, replay says %v", ErrInvariantViolated, s, want, got)
		}
	}
	for s, set := range g.latestReaders {
		replayed := readers[s]
		mismatch := false
		set.ForEach(func(r *Node) bool {
			if _, ok := replayed[r]; !ok {
				mismatch = true
				return false
			}
			return true
		})
		if mismatch || set.Len() != len(replayed) {
			return fmt.Errorf("%w: reader set of %s diverges from replay", ErrInvariantViolated, s)
		}
	}
	return nil
}
