package irbank

import (
	mapset "github.com/deckarep/golang-set/v2"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/ir"
)

// analyzeBody derives task metadata from a body: the states it reads and
// writes, the sparse nodes it touches, and the flags the optimization
// passes consult. The result is cached per fingerprint, so the cost is
// paid once per distinct body.
func analyzeBody(body *ir.Body) *ir.TaskMeta {
	meta := &ir.TaskMeta{
		Name:          body.KernelName,
		Type:          body.Type,
		Snode:         body.Snode,
		RangeBegin:    body.RangeBegin,
		RangeEnd:      body.RangeEnd,
		Arch:          body.Arch,
		BlockDim:      body.BlockDim,
		InputStates:   mapset.NewSet[astate.State](),
		OutputStates:  mapset.NewSet[astate.State](),
		TouchedSNodes: mapset.NewSet[*astate.SNode](),
		HasSideEffects: body.SideEffects,
	}

	// A struct-for consumes the active-cell list of its iteration root.
	if body.Type == ir.TaskStruct && body.Snode != nil {
		meta.InputStates.Add(body.Snode.ListState())
		meta.TouchedSNodes.Add(body.Snode)
	}
	if body.Type == ir.TaskListgen && body.Snode != nil {
		meta.InputStates.Add(body.Snode.MaskState())
		meta.OutputStates.Add(body.Snode.ListState())
		meta.TouchedSNodes.Add(body.Snode)
	}

	// A load only makes a state an input if no earlier statement of the
	// same body already wrote it: reads of an intra-body write stay
	// internal. Fused bodies get in = A.in ∪ (B.in \ A.out) for free.
	for _, stmt := range body.Stmts {
		switch s := stmt.(type) {
		case *ir.LoadStmt:
			if !meta.OutputStates.Contains(s.State) {
				meta.InputStates.Add(s.State)
			}
			if sn, ok := s.State.Target.(*astate.SNode); ok {
				meta.TouchedSNodes.Add(sn)
			}
		case *ir.StoreStmt:
			meta.OutputStates.Add(s.State)
			if sn, ok := s.State.Target.(*astate.SNode); ok {
				meta.TouchedSNodes.Add(sn)
			}
		case *ir.ActivateStmt:
			meta.OutputStates.Add(s.Node.MaskState())
			meta.TouchedSNodes.Add(s.Node)
			meta.ActivationDemotable = true
			meta.GuaranteesActivation = true
			if meta.ActivationSNode == nil {
				meta.ActivationSNode = s.Node
			}
		case *ir.DeactivateStmt:
			meta.OutputStates.Add(s.Node.MaskState())
			meta.TouchedSNodes.Add(s.Node)
			meta.Deactivates = true
		case *ir.ListGenStmt:
			meta.InputStates.Add(s.Node.MaskState())
			meta.OutputStates.Add(s.Node.ListState())
			meta.TouchedSNodes.Add(s.Node)
		}
	}

	// Deactivation voids any activation guarantee of the same body.
	if meta.Deactivates {
		meta.GuaranteesActivation = false
	}
	return meta
}

// VerifyBody checks SSA well-formedness: every operand index references an
// earlier statement of the same body.
func VerifyBody(body *ir.Body) error {
	check := func(pos, operand int) error {
		if operand < 0 || operand >= pos {
			return &MalformedBodyError{Kernel: body.KernelName, Stmt: pos, Operand: operand}
		}
		return nil
	}
	for i, stmt := range body.Stmts {
		switch s := stmt.(type) {
		case *ir.BinaryStmt:
			if err := check(i, s.LHS); err != nil {
				return err
			}
			if err := check(i, s.RHS); err != nil {
				return err
			}
		case *ir.UnaryStmt:
			if err := check(i, s.Operand); err != nil {
				return err
			}
		case *ir.BitExtractStmt:
			if err := check(i, s.Input); err != nil {
				return err
			}
		case *ir.StoreStmt:
			if err := check(i, s.Src); err != nil {
				return err
			}
		}
	}
	return nil
}

// MalformedBodyError reports an out-of-range operand reference.
type MalformedBodyError struct {
	Kernel  string
	Stmt    int
	Operand int
}

func (e *MalformedBodyError) Error() string {
	return "irbank: malformed body " + e.Kernel + ": statement references an operand that does not precede it"
}
