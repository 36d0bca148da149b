package constfold

import (
	"context"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/ir"
)

// Run folds constant subexpressions of body to a fixed point and returns
// the rewritten body and whether anything changed. The input body is not
// mutated. Statement indices are preserved: a folded statement is replaced
// in its own slot, so downstream operand references stay valid; operands
// that become unused are swept by later dead-store elimination.
func Run(ctx context.Context, cache *Cache, body *ir.Body) (*ir.Body, bool) {
	out := body.Clone()
	modified := false
	for pass := 0; ; pass++ {
		if !foldOnce(ctx, cache, out) {
			break
		}
		modified = true
	}
	if modified {
		ctxzap.Extract(ctx).Debug("constant folding changed body",
			zap.String("kernel", body.KernelName),
		)
	}
	return out, modified
}

// foldOnce performs a single sweep, replacing every foldable statement
// with the constant it evaluates to. Returns whether any statement folded.
func foldOnce(ctx context.Context, cache *Cache, body *ir.Body) bool {
	constAt := func(idx int) (ir.TypedConstant, bool) {
		if c, ok := body.Stmts[idx].(*ir.ConstStmt); ok {
			return c.Val, true
		}
		return ir.TypedConstant{}, false
	}

	changed := false
	for i, stmt := range body.Stmts {
		switch s := stmt.(type) {
		case *ir.BinaryStmt:
			lhs, lok := constAt(s.LHS)
			rhs, rok := constAt(s.RHS)
			if !lok || !rok {
				continue
			}
			if v, ok := cache.EvalBinary(ctx, s.Op, s.RetType, lhs, rhs); ok {
				body.Stmts[i] = &ir.ConstStmt{Val: v}
				changed = true
			}
		case *ir.UnaryStmt:
			operand, ok := constAt(s.Operand)
			if s.Op.IsCast() && ok && s.CastType == operand.DT {
				// Casting a value to its own type is the identity.
				body.Stmts[i] = &ir.ConstStmt{Val: operand}
				changed = true
				continue
			}
			if !ok {
				continue
			}
			if v, evalOK := cache.EvalUnary(ctx, s.Op, s.RetType, operand, s.CastType); evalOK {
				body.Stmts[i] = &ir.ConstStmt{Val: v}
				changed = true
			}
		case *ir.BitExtractStmt:
			input, ok := constAt(s.Input)
			if !ok || !input.DT.IsInteger() {
				continue
			}
			width := s.BitEnd - s.BitBegin
			if width <= 0 || width >= 64 {
				continue
			}
			var v int64
			if input.DT.IsSigned() {
				v = (input.AsInt() >> uint(s.BitBegin)) & ((1 << uint(width)) - 1)
			} else {
				v = int64((uint64(input.AsInt()) >> uint(s.BitBegin)) & ((1 << uint(width)) - 1))
			}
			body.Stmts[i] = &ir.ConstStmt{Val: ir.IntConst(input.DT, v)}
			changed = true
		}
	}
	return changed
}
