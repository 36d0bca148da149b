package irbank

import (
	"context"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/ir"
)

// RewriteForDemotion rewrites an activate-then-write body into a plain
// write: activation statements targeting region (or any of its
// descendants) are dropped. The rewritten body is interned; its
// fingerprint differs from the original's.
func (b *Bank) RewriteForDemotion(ctx context.Context, body *ir.Body, region *astate.SNode) (*ir.Body, error) {
	out := body.Clone()
	out.Stmts = out.Stmts[:0]
	remap := make([]int, len(body.Stmts))
	for i, stmt := range body.Stmts {
		if act, ok := stmt.(*ir.ActivateStmt); ok && region.IsAncestorOf(act.Node) {
			remap[i] = -1
			continue
		}
		remap[i] = len(out.Stmts)
		out.Stmts = append(out.Stmts, remapOperands(stmt, remap))
	}

	ctxzap.Extract(ctx).Debug("demoted activation",
		zap.String("kernel", body.KernelName),
		zap.String("region", region.Name),
		zap.Int("stmts_before", len(body.Stmts)),
		zap.Int("stmts_after", len(out.Stmts)),
	)
	return b.GetOrInternBody(ctx, out)
}

// RemoveStores edits a body by dropping every store into one of the dead
// states, then sweeps statements that no longer feed a store or an effect.
// The edited body is interned under its new fingerprint.
func (b *Bank) RemoveStores(ctx context.Context, body *ir.Body, dead mapset.Set[astate.State]) (*ir.Body, error) {
	keep := make([]bool, len(body.Stmts))
	for i, stmt := range body.Stmts {
		switch s := stmt.(type) {
		case *ir.StoreStmt:
			keep[i] = !dead.Contains(s.State)
		case *ir.ActivateStmt, *ir.DeactivateStmt, *ir.ListGenStmt:
			keep[i] = true
		}
	}
	// Backward liveness: a pure statement survives only if a surviving
	// statement consumes it.
	for i := len(body.Stmts) - 1; i >= 0; i-- {
		if !keep[i] {
			continue
		}
		switch s := body.Stmts[i].(type) {
		case *ir.BinaryStmt:
			keep[s.LHS] = true
			keep[s.RHS] = true
		case *ir.UnaryStmt:
			keep[s.Operand] = true
		case *ir.BitExtractStmt:
			keep[s.Input] = true
		case *ir.StoreStmt:
			keep[s.Src] = true
		}
	}

	out := body.Clone()
	out.Stmts = out.Stmts[:0]
	remap := make([]int, len(body.Stmts))
	removed := 0
	for i, stmt := range body.Stmts {
		if !keep[i] {
			remap[i] = -1
			removed++
			continue
		}
		remap[i] = len(out.Stmts)
		out.Stmts = append(out.Stmts, remapOperands(stmt, remap))
	}
	if removed > 0 {
		ctxzap.Extract(ctx).Debug("removed dead statements",
			zap.String("kernel", body.KernelName),
			zap.Int("removed", removed),
		)
	}
	return b.GetOrInternBody(ctx, out)
}

// remapOperands clones stmt, translating operand indices through remap.
// Callers guarantee every referenced operand survived.
func remapOperands(stmt ir.Stmt, remap []int) ir.Stmt {
	switch s := stmt.(type) {
	case *ir.BinaryStmt:
		c := *s
		c.LHS = remap[s.LHS]
		c.RHS = remap[s.RHS]
		return &c
	case *ir.UnaryStmt:
		c := *s
		c.Operand = remap[s.Operand]
		return &c
	case *ir.BitExtractStmt:
		c := *s
		c.Input = remap[s.Input]
		return &c
	case *ir.StoreStmt:
		c := *s
		c.Src = remap[s.Src]
		return &c
	default:
		return shiftOperands(stmt, 0)
	}
}
