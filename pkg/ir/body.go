package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/Velaciela/taichi/pkg/astate"
)

// Body is a straight-line kernel body plus its launch shape. Bodies are
// treated as immutable once interned; passes that edit a body clone it
// first and re-intern the result.
type Body struct {
	KernelName string
	Type       TaskType

	// Snode roots struct-for iteration and targets listgen; nil otherwise.
	Snode *astate.SNode

	// RangeBegin and RangeEnd bound range-for iteration.
	RangeBegin int
	RangeEnd   int

	Arch     string
	BlockDim int

	// SideEffects marks bodies whose execution is observable beyond their
	// declared output states (host callbacks, prints).
	SideEffects bool

	Stmts []Stmt
}

// NewBody builds a serial body from statements in program order. Launch
// attributes beyond the defaults are set on the returned value.
func NewBody(kernelName string, stmts ...Stmt) *Body {
	return &Body{KernelName: kernelName, Type: TaskSerial, Stmts: stmts}
}

// Clone deep-copies the body.
func (b *Body) Clone() *Body {
	out := *b
	out.Stmts = make([]Stmt, len(b.Stmts))
	for i, s := range b.Stmts {
		out.Stmts[i] = s.clone()
	}
	return &out
}

// Fingerprint is the content address of the body: identical IR under an
// identical launch shape yields an identical fingerprint regardless of how
// the body object was built.
func (b *Body) Fingerprint() string {
	var sb strings.Builder
	sb.WriteString(b.KernelName)
	sb.WriteByte('\n')
	snode := ""
	if b.Snode != nil {
		snode = b.Snode.Name
	}
	fmt.Fprintf(&sb, "%s|%s|%d..%d|%s|%d|%t\n",
		b.Type, snode, b.RangeBegin, b.RangeEnd, b.Arch, b.BlockDim, b.SideEffects)
	for _, s := range b.Stmts {
		sb.WriteString(s.encode())
		sb.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(sb.String()))
	return hex.EncodeToString(sum[:16])
}

// String renders the body one statement per line, for debugging.
func (b *Body) String() string {
	var sb strings.Builder
	sb.WriteString(b.KernelName)
	sb.WriteString(" (")
	sb.WriteString(b.Type.String())
	sb.WriteString("):\n")
	for i, s := range b.Stmts {
		sb.WriteString("  %")
		sb.WriteString(strconv.Itoa(i))
		sb.WriteString(" = ")
		sb.WriteString(s.encode())
		sb.WriteByte('\n')
	}
	return sb.String()
}
