package ir

import (
	"fmt"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/Velaciela/taichi/pkg/astate"
)

// TaskType enumerates the launch shapes a task body can have.
type TaskType int

const (
	// TaskSerial runs once on a single lane.
	TaskSerial TaskType = iota
	// TaskRange iterates a dense index range element-wise.
	TaskRange
	// TaskStruct iterates the active cells of a sparse node element-wise.
	TaskStruct
	// TaskListgen regenerates a sparse node's active-cell list.
	TaskListgen
)

func (t TaskType) String() string {
	switch t {
	case TaskSerial:
		return "serial"
	case TaskRange:
		return "range_for"
	case TaskStruct:
		return "struct_for"
	case TaskListgen:
		return "listgen"
	default:
		return fmt.Sprintf("task(%d)", int(t))
	}
}

// ElementWise reports whether the launch shape iterates a domain.
func (t TaskType) ElementWise() bool {
	return t == TaskRange || t == TaskStruct
}

// TaskMeta describes one distinct task body: the abstract states it reads
// and writes, its launch shape, and the attributes the optimization passes
// consult. Interned metadata is shared and must never be mutated; passes
// that change a task's behavior intern a fresh TaskMeta instead.
type TaskMeta struct {
	Name string
	Type TaskType

	// Snode is the iteration root for struct-for launches and the target
	// for listgen launches; nil otherwise.
	Snode *astate.SNode

	// RangeBegin and RangeEnd bound range-for launches.
	RangeBegin int
	RangeEnd   int

	// Launch-invariant attributes that gate fusion.
	Arch     string
	BlockDim int

	InputStates  mapset.Set[astate.State]
	OutputStates mapset.Set[astate.State]

	// TouchedSNodes are the sparse nodes whose cells the task may touch.
	TouchedSNodes mapset.Set[*astate.SNode]

	// ActivationDemotable marks activate-then-write bodies that can be
	// rewritten to plain writes when activation is provably redundant.
	ActivationDemotable bool

	// GuaranteesActivation marks bodies that leave every touched cell of
	// ActivationSNode active on completion.
	GuaranteesActivation bool

	// ActivationSNode is the sparse node the body activates; nil when the
	// body carries no activation.
	ActivationSNode *astate.SNode

	// Deactivates marks bodies that may clear activation of touched cells.
	Deactivates bool

	// HasSideEffects guards dead-store elimination: such tasks are never
	// deleted even when all their output states are dead.
	HasSideEffects bool
}

// Reads reports whether the task reads s.
func (m *TaskMeta) Reads(s astate.State) bool {
	return m.InputStates != nil && m.InputStates.Contains(s)
}

// Writes reports whether the task writes s.
func (m *TaskMeta) Writes(s astate.State) bool {
	return m.OutputStates != nil && m.OutputStates.Contains(s)
}

// SameLaunchShape reports whether two tasks have compatible launch shapes
// for fusion: same shape kind, and for element-wise shapes an identical
// iteration domain.
func (m *TaskMeta) SameLaunchShape(o *TaskMeta) bool {
	if m.Type != o.Type {
		return false
	}
	if m.Arch != o.Arch || m.BlockDim != o.BlockDim {
		return false
	}
	switch m.Type {
	case TaskRange:
		return m.RangeBegin == o.RangeBegin && m.RangeEnd == o.RangeEnd
	case TaskStruct:
		return m.Snode == o.Snode
	case TaskSerial:
		return true
	default:
		// Listgen launches are handled by their own pass, never fused.
		return false
	}
}

func (m *TaskMeta) String() string {
	var sb strings.Builder
	sb.WriteString(m.Name)
	sb.WriteString(" [")
	sb.WriteString(m.Type.String())
	sb.WriteString("] in={")
	sb.WriteString(stateSetString(m.InputStates))
	sb.WriteString("} out={")
	sb.WriteString(stateSetString(m.OutputStates))
	sb.WriteString("}")
	return sb.String()
}

func stateSetString(set mapset.Set[astate.State]) string {
	if set == nil {
		return ""
	}
	parts := make([]string, 0, set.Cardinality())
	for s := range set.Iter() {
		parts = append(parts, s.String())
	}
	// Set iteration order is unstable; keep the rendering deterministic.
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
