// Package constfold is a peephole pass over kernel bodies that evaluates
// operations on constant operands at compile time. It is independent of
// the state flow graph: it sees one body at a time and rewrites statements
// in place, looping until no statement folds.
package constfold

import (
	"context"
	"math"
	"sync"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"go.uber.org/zap"

	"github.com/Velaciela/taichi/pkg/ir"
)

// evaluatorID keys one compiled evaluator: the opcode and the operand and
// result types fully determine its behavior.
type evaluatorID struct {
	op       int
	ret      ir.DataType
	lhs      ir.DataType
	rhs      ir.DataType
	isBinary bool
}

// evaluator computes one operation over constant operands. The second
// operand is ignored for unary evaluators. ok is false when the operation
// cannot be evaluated (division by zero, unsupported opcode).
type evaluator func(lhs, rhs ir.TypedConstant) (ir.TypedConstant, bool)

// Cache holds compiled evaluators, shared by every goroutine running the
// pass. One mutex guards both lookup and evaluator execution; evaluators
// are cheap, and serializing execution matches the contract that a single
// evaluator instance is never run reentrantly.
type Cache struct {
	mu      sync.Mutex
	kernels map[evaluatorID]evaluator
}

// NewCache returns an empty evaluator cache.
func NewCache() *Cache {
	return &Cache{kernels: make(map[evaluatorID]evaluator)}
}

// goodType reports whether constants of dt can be folded. Narrow integer
// constants are left to the backend.
func goodType(dt ir.DataType) bool {
	switch dt {
	case ir.TypeI32, ir.TypeI64, ir.TypeU32, ir.TypeU64, ir.TypeF32, ir.TypeF64:
		return true
	}
	return false
}

// EvalBinary folds op over two constants, returning ok=false when the
// result type is not foldable or the operation cannot be evaluated.
func (c *Cache) EvalBinary(ctx context.Context, op ir.BinaryOp, ret ir.DataType, lhs, rhs ir.TypedConstant) (ir.TypedConstant, bool) {
	if !goodType(ret) {
		return ir.TypedConstant{}, false
	}
	id := evaluatorID{op: int(op), ret: ret, lhs: lhs.DT, rhs: rhs.DT, isBinary: true}

	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.kernels[id]
	if !ok {
		ev = buildBinaryEvaluator(op, ret)
		c.kernels[id] = ev
		ctxzap.Extract(ctx).Debug("compiled constant evaluator",
			zap.String("op", op.String()),
			zap.String("ret", ret.String()),
			zap.Int("cache_size", len(c.kernels)),
		)
	}
	return ev(lhs, rhs)
}

// EvalUnary folds op over one constant. castType carries the destination
// type of cast operations.
func (c *Cache) EvalUnary(ctx context.Context, op ir.UnaryOp, ret ir.DataType, operand ir.TypedConstant, castType ir.DataType) (ir.TypedConstant, bool) {
	if !goodType(ret) {
		return ir.TypedConstant{}, false
	}
	id := evaluatorID{op: int(op), ret: ret, lhs: operand.DT, rhs: castType, isBinary: false}

	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.kernels[id]
	if !ok {
		ev = buildUnaryEvaluator(op, ret, castType)
		c.kernels[id] = ev
		ctxzap.Extract(ctx).Debug("compiled constant evaluator",
			zap.String("op", op.String()),
			zap.String("ret", ret.String()),
			zap.Int("cache_size", len(c.kernels)),
		)
	}
	return ev(operand, ir.TypedConstant{})
}

// Size returns the number of compiled evaluators.
func (c *Cache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.kernels)
}

func buildBinaryEvaluator(op ir.BinaryOp, ret ir.DataType) evaluator {
	if ret == ir.TypeF32 || ret == ir.TypeF64 {
		return func(lhs, rhs ir.TypedConstant) (ir.TypedConstant, bool) {
			a, b := lhs.AsFloat(), rhs.AsFloat()
			var r float64
			switch op {
			case ir.OpAdd:
				r = a + b
			case ir.OpSub:
				r = a - b
			case ir.OpMul:
				r = a * b
			case ir.OpDiv:
				r = a / b
			case ir.OpMin:
				r = math.Min(a, b)
			case ir.OpMax:
				r = math.Max(a, b)
			default:
				return ir.TypedConstant{}, false
			}
			if ret == ir.TypeF32 {
				r = float64(float32(r))
			}
			return ir.FloatConst(ret, r), true
		}
	}
	return func(lhs, rhs ir.TypedConstant) (ir.TypedConstant, bool) {
		a, b := lhs.AsInt(), rhs.AsInt()
		var r int64
		switch op {
		case ir.OpAdd:
			r = a + b
		case ir.OpSub:
			r = a - b
		case ir.OpMul:
			r = a * b
		case ir.OpDiv:
			if b == 0 {
				return ir.TypedConstant{}, false
			}
			r = a / b
		case ir.OpMod:
			if b == 0 {
				return ir.TypedConstant{}, false
			}
			r = a % b
		case ir.OpMin:
			r = b
			if a < b {
				r = a
			}
		case ir.OpMax:
			r = b
			if a > b {
				r = a
			}
		case ir.OpBitAnd:
			r = a & b
		case ir.OpBitOr:
			r = a | b
		case ir.OpBitXor:
			r = a ^ b
		case ir.OpShl:
			if b < 0 || b >= 64 {
				return ir.TypedConstant{}, false
			}
			r = a << uint(b)
		case ir.OpShr:
			if b < 0 || b >= 64 {
				return ir.TypedConstant{}, false
			}
			if ret.IsSigned() {
				r = a >> uint(b)
			} else {
				r = int64(uint64(a) >> uint(b))
			}
		case ir.OpCmpLt:
			r = 0
			if a < b {
				r = 1
			}
		case ir.OpCmpEq:
			r = 0
			if a == b {
				r = 1
			}
		default:
			return ir.TypedConstant{}, false
		}
		return ir.IntConst(ret, truncate(ret, r)), true
	}
}

func buildUnaryEvaluator(op ir.UnaryOp, ret ir.DataType, castType ir.DataType) evaluator {
	return func(operand, _ ir.TypedConstant) (ir.TypedConstant, bool) {
		switch op {
		case ir.OpNeg:
			if ret.IsInteger() {
				return ir.IntConst(ret, truncate(ret, -operand.AsInt())), true
			}
			return ir.FloatConst(ret, -operand.AsFloat()), true
		case ir.OpAbs:
			if ret.IsInteger() {
				v := operand.AsInt()
				if v < 0 {
					v = -v
				}
				return ir.IntConst(ret, truncate(ret, v)), true
			}
			return ir.FloatConst(ret, math.Abs(operand.AsFloat())), true
		case ir.OpSqrt:
			if ret.IsInteger() {
				return ir.TypedConstant{}, false
			}
			return ir.FloatConst(ret, math.Sqrt(operand.AsFloat())), true
		case ir.OpBitNot:
			if !ret.IsInteger() {
				return ir.TypedConstant{}, false
			}
			return ir.IntConst(ret, truncate(ret, ^operand.AsInt())), true
		case ir.OpLogicNot:
			if !ret.IsInteger() {
				return ir.TypedConstant{}, false
			}
			v := int64(1)
			if operand.AsInt() != 0 {
				v = 0
			}
			return ir.IntConst(ret, v), true
		case ir.OpCastBits:
			return ir.FromBits(castType, operand.Bits()), true
		case ir.OpCastValue:
			switch {
			case castType == ir.TypeF32:
				return ir.FloatConst(castType, float64(float32(operand.AsFloat()))), true
			case castType == ir.TypeF64:
				return ir.FloatConst(castType, operand.AsFloat()), true
			case castType.IsInteger():
				return ir.IntConst(castType, truncate(castType, operand.AsInt())), true
			}
			return ir.TypedConstant{}, false
		default:
			return ir.TypedConstant{}, false
		}
	}
}

// truncate wraps v to the width of dt.
func truncate(dt ir.DataType, v int64) int64 {
	switch dt {
	case ir.TypeI32:
		return int64(int32(v))
	case ir.TypeU32:
		return int64(uint32(v))
	default:
		return v
	}
}
