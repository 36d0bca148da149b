// Package astate defines the abstract state namespace the state flow graph
// reasons about: identity-compared handles naming the mutable resources a
// task may read or write, plus the sparse-node tree those handles target.
package astate

import "fmt"

// Kind tags which facet of a resource a state handle names.
type Kind int

const (
	// KindValue is the data payload of a resource.
	KindValue Kind = iota
	// KindList is the active-cell list of a sparse node.
	KindList
	// KindMask is the activation mask of a sparse node.
	KindMask
	// KindAllocator is the allocator bookkeeping of a sparse node.
	KindAllocator
)

func (k Kind) String() string {
	switch k {
	case KindValue:
		return "value"
	case KindList:
		return "list"
	case KindMask:
		return "mask"
	case KindAllocator:
		return "allocator"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Resource is anything a state handle can target.
type Resource interface {
	ResourceName() string
}

// State is an identity-compared handle for one facet of one resource. Two
// states are the same state iff both fields are equal; State is a valid map
// key and set element.
type State struct {
	Target Resource
	Kind   Kind
}

func (s State) String() string {
	if s.Target == nil {
		return s.Kind.String()
	}
	return fmt.Sprintf("%s:%s", s.Target.ResourceName(), s.Kind)
}

// Observable reports whether the post-pipeline world can see the final
// value of this state. Dead-store elimination may only drop writes to
// states that are not observable, or whose value is overwritten before
// extraction.
func (s State) Observable() bool {
	if sn, ok := s.Target.(*SNode); ok {
		// Lists are internal bookkeeping regenerated on demand.
		if s.Kind == KindList {
			return false
		}
		return !sn.Scratch
	}
	return s.Target != nil
}
