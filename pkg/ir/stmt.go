package ir

import (
	"fmt"

	"github.com/Velaciela/taichi/pkg/astate"
)

// Stmt is one statement of a straight-line kernel body. Operand references
// are indices of earlier statements in the owning Body, which keeps the
// representation in SSA form and makes usage rewrites a plain index swap.
type Stmt interface {
	// encode renders a canonical, operand-index based form used for
	// content addressing.
	encode() string
	clone() Stmt
}

// ConstStmt materializes a typed constant.
type ConstStmt struct {
	Val TypedConstant
}

func (s *ConstStmt) encode() string { return fmt.Sprintf("const(%s)", s.Val) }
func (s *ConstStmt) clone() Stmt    { c := *s; return &c }

// BinaryStmt applies Op to the results of two earlier statements.
type BinaryStmt struct {
	Op      BinaryOp
	RetType DataType
	LHS     int
	RHS     int
}

func (s *BinaryStmt) encode() string {
	return fmt.Sprintf("%s<%s>(%d,%d)", s.Op, s.RetType, s.LHS, s.RHS)
}
func (s *BinaryStmt) clone() Stmt { c := *s; return &c }

// UnaryStmt applies Op to one earlier statement. For casts, CastType is the
// destination type.
type UnaryStmt struct {
	Op       UnaryOp
	RetType  DataType
	Operand  int
	CastType DataType
}

func (s *UnaryStmt) encode() string {
	return fmt.Sprintf("%s<%s,%s>(%d)", s.Op, s.RetType, s.CastType, s.Operand)
}
func (s *UnaryStmt) clone() Stmt { c := *s; return &c }

// BitExtractStmt extracts bits [BitBegin, BitEnd) of an integral operand.
type BitExtractStmt struct {
	Input    int
	BitBegin int
	BitEnd   int
}

func (s *BitExtractStmt) encode() string {
	return fmt.Sprintf("bit_extract[%d:%d](%d)", s.BitBegin, s.BitEnd, s.Input)
}
func (s *BitExtractStmt) clone() Stmt { c := *s; return &c }

// LoadStmt reads an abstract state.
type LoadStmt struct {
	State   astate.State
	RetType DataType
}

func (s *LoadStmt) encode() string { return fmt.Sprintf("load<%s>(%s)", s.RetType, s.State) }
func (s *LoadStmt) clone() Stmt    { c := *s; return &c }

// StoreStmt writes the result of an earlier statement into a state.
type StoreStmt struct {
	State astate.State
	Src   int
}

func (s *StoreStmt) encode() string { return fmt.Sprintf("store(%s,%d)", s.State, s.Src) }
func (s *StoreStmt) clone() Stmt    { c := *s; return &c }

// ActivateStmt activates the sparse cells a write is about to touch.
type ActivateStmt struct {
	Node *astate.SNode
}

func (s *ActivateStmt) encode() string { return fmt.Sprintf("activate(%s)", s.Node.Name) }
func (s *ActivateStmt) clone() Stmt    { c := *s; return &c }

// DeactivateStmt clears activation of the sparse cells the task touches.
type DeactivateStmt struct {
	Node *astate.SNode
}

func (s *DeactivateStmt) encode() string { return fmt.Sprintf("deactivate(%s)", s.Node.Name) }
func (s *DeactivateStmt) clone() Stmt    { c := *s; return &c }

// ListGenStmt regenerates the active-cell list of a sparse node.
type ListGenStmt struct {
	Node *astate.SNode
}

func (s *ListGenStmt) encode() string { return fmt.Sprintf("listgen(%s)", s.Node.Name) }
func (s *ListGenStmt) clone() Stmt    { c := *s; return &c }
