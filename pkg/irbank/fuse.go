package irbank

import (
	"context"
	"fmt"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/ir"
)

// AreFusible reports whether two task bodies may be merged into one
// launch: identical launch shapes and launch-invariant attributes, and
// neither is a listgen (listgen launches are owned by their own pass).
func (b *Bank) AreFusible(a, o *ir.TaskMeta) bool {
	if a.Type == ir.TaskListgen || o.Type == ir.TaskListgen {
		return false
	}
	return a.SameLaunchShape(o)
}

// FuseBodies merges two bodies into one that executes first's statements
// and then second's. Returns ErrNotFusible when the launch shapes differ.
// The merged body is interned before it is returned.
func (b *Bank) FuseBodies(ctx context.Context, first, second *ir.Body) (*ir.Body, error) {
	if first.Type != second.Type ||
		first.Snode != second.Snode ||
		first.RangeBegin != second.RangeBegin ||
		first.RangeEnd != second.RangeEnd ||
		first.Arch != second.Arch ||
		first.BlockDim != second.BlockDim {
		return nil, fmt.Errorf("%w: %s + %s", ErrNotFusible, first.KernelName, second.KernelName)
	}

	merged := first.Clone()
	merged.KernelName = first.KernelName + "+" + second.KernelName
	merged.SideEffects = first.SideEffects || second.SideEffects
	offset := len(first.Stmts)
	for _, stmt := range second.Stmts {
		merged.Stmts = append(merged.Stmts, shiftOperands(stmt, offset))
	}

	ctxzap.Extract(ctx).Debug("fused bodies",
		zap.String("first", first.KernelName),
		zap.String("second", second.KernelName),
		zap.Int("stmts", len(merged.Stmts)),
	)
	return b.GetOrInternBody(ctx, merged)
}

// shiftOperands clones stmt with every operand index moved by offset.
func shiftOperands(stmt ir.Stmt, offset int) ir.Stmt {
	switch s := stmt.(type) {
	case *ir.BinaryStmt:
		c := *s
		c.LHS += offset
		c.RHS += offset
		return &c
	case *ir.UnaryStmt:
		c := *s
		c.Operand += offset
		return &c
	case *ir.BitExtractStmt:
		c := *s
		c.Input += offset
		return &c
	case *ir.StoreStmt:
		c := *s
		c.Src += offset
		return &c
	case *ir.ConstStmt:
		c := *s
		return &c
	case *ir.LoadStmt:
		c := *s
		return &c
	case *ir.ActivateStmt:
		c := *s
		return &c
	case *ir.DeactivateStmt:
		c := *s
		return &c
	case *ir.ListGenStmt:
		c := *s
		return &c
	default:
		return stmt
	}
}
