package astate

// SNode is one node of the sparse data-structure tree. The tree shape is
// fixed before any task is submitted; the graph only walks it to find the
// descendants whose active-cell lists a structural write invalidates.
type SNode struct {
	ID   int
	Name string

	// Scratch marks nodes whose contents are never observed after the
	// pipeline finishes (temporaries, reduction scratch).
	Scratch bool

	Parent   *SNode
	Children []*SNode
}

// NewSNode creates a child of parent, or a root when parent is nil.
func NewSNode(id int, name string, parent *SNode) *SNode {
	sn := &SNode{ID: id, Name: name, Parent: parent}
	if parent != nil {
		parent.Children = append(parent.Children, sn)
	}
	return sn
}

func (sn *SNode) ResourceName() string {
	return sn.Name
}

// ValueState returns the data state handle for this node.
func (sn *SNode) ValueState() State { return State{Target: sn, Kind: KindValue} }

// ListState returns the active-cell-list state handle for this node.
func (sn *SNode) ListState() State { return State{Target: sn, Kind: KindList} }

// MaskState returns the activation-mask state handle for this node.
func (sn *SNode) MaskState() State { return State{Target: sn, Kind: KindMask} }

// Walk visits sn and every descendant, stopping early if fn returns false.
func (sn *SNode) Walk(fn func(*SNode) bool) bool {
	if !fn(sn) {
		return false
	}
	for _, c := range sn.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether sn is other or an ancestor of other.
func (sn *SNode) IsAncestorOf(other *SNode) bool {
	for n := other; n != nil; n = n.Parent {
		if n == sn {
			return true
		}
	}
	return false
}
