package constfold

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/ir"
)

func constI32(v int64) *ir.ConstStmt {
	return &ir.ConstStmt{Val: ir.IntConst(ir.TypeI32, v)}
}

func TestFoldBinaryChainToFixedPoint(t *testing.T) {
	// (2 + 3) * 4 collapses to a single constant.
	out := astate.NewSNode(1, "x", nil).ValueState()
	body := ir.NewBody("k",
		constI32(2),
		constI32(3),
		&ir.BinaryStmt{Op: ir.OpAdd, RetType: ir.TypeI32, LHS: 0, RHS: 1},
		constI32(4),
		&ir.BinaryStmt{Op: ir.OpMul, RetType: ir.TypeI32, LHS: 2, RHS: 3},
		&ir.StoreStmt{State: out, Src: 4},
	)

	cache := NewCache()
	folded, changed := Run(context.Background(), cache, body)
	require.True(t, changed)

	c, ok := folded.Stmts[4].(*ir.ConstStmt)
	require.True(t, ok, "the chain root folds to a constant")
	require.Equal(t, int64(20), c.Val.Int)

	_, unchangedBody := Run(context.Background(), cache, folded)
	require.False(t, unchangedBody, "folding is idempotent at the fixed point")
}

func TestFoldTable(t *testing.T) {
	cache := NewCache()
	ctx := context.Background()

	binary := []struct {
		name string
		op   ir.BinaryOp
		ret  ir.DataType
		lhs  ir.TypedConstant
		rhs  ir.TypedConstant
		want ir.TypedConstant
	}{
		{"i32 add wraps", ir.OpAdd, ir.TypeI32, ir.IntConst(ir.TypeI32, 1<<31-1), ir.IntConst(ir.TypeI32, 1), ir.IntConst(ir.TypeI32, -1 << 31)},
		{"i64 min", ir.OpMin, ir.TypeI64, ir.IntConst(ir.TypeI64, -5), ir.IntConst(ir.TypeI64, 2), ir.IntConst(ir.TypeI64, -5)},
		{"f64 mul", ir.OpMul, ir.TypeF64, ir.FloatConst(ir.TypeF64, 1.5), ir.FloatConst(ir.TypeF64, 4), ir.FloatConst(ir.TypeF64, 6)},
		{"cmp lt", ir.OpCmpLt, ir.TypeI32, ir.IntConst(ir.TypeI32, 3), ir.IntConst(ir.TypeI32, 4), ir.IntConst(ir.TypeI32, 1)},
		{"bit xor", ir.OpBitXor, ir.TypeU32, ir.IntConst(ir.TypeU32, 0b1100), ir.IntConst(ir.TypeU32, 0b1010), ir.IntConst(ir.TypeU32, 0b0110)},
	}
	for _, tc := range binary {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := cache.EvalBinary(ctx, tc.op, tc.ret, tc.lhs, tc.rhs)
			require.True(t, ok)
			require.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
		})
	}

	t.Run("division by zero does not fold", func(t *testing.T) {
		_, ok := cache.EvalBinary(ctx, ir.OpDiv, ir.TypeI32, ir.IntConst(ir.TypeI32, 1), ir.IntConst(ir.TypeI32, 0))
		require.False(t, ok)
	})
	t.Run("narrow types do not fold", func(t *testing.T) {
		_, ok := cache.EvalBinary(ctx, ir.OpAdd, ir.TypeI8, ir.IntConst(ir.TypeI8, 1), ir.IntConst(ir.TypeI8, 1))
		require.False(t, ok)
	})
}

func TestIdentityCastIsEliminated(t *testing.T) {
	body := ir.NewBody("k",
		constI32(9),
		&ir.UnaryStmt{Op: ir.OpCastValue, RetType: ir.TypeI32, Operand: 0, CastType: ir.TypeI32},
	)
	folded, changed := Run(context.Background(), NewCache(), body)
	require.True(t, changed)

	c, ok := folded.Stmts[1].(*ir.ConstStmt)
	require.True(t, ok)
	require.Equal(t, int64(9), c.Val.Int)
}

func TestBitCastReinterprets(t *testing.T) {
	body := ir.NewBody("k",
		&ir.ConstStmt{Val: ir.FloatConst(ir.TypeF32, 1.0)},
		&ir.UnaryStmt{Op: ir.OpCastBits, RetType: ir.TypeI32, Operand: 0, CastType: ir.TypeI32},
	)
	folded, changed := Run(context.Background(), NewCache(), body)
	require.True(t, changed)

	c, ok := folded.Stmts[1].(*ir.ConstStmt)
	require.True(t, ok)
	require.Equal(t, int64(0x3f800000), c.Val.Int)
}

func TestBitExtractFolds(t *testing.T) {
	body := ir.NewBody("k",
		&ir.ConstStmt{Val: ir.IntConst(ir.TypeI32, 0b110110)},
		&ir.BitExtractStmt{Input: 0, BitBegin: 1, BitEnd: 4},
	)
	folded, changed := Run(context.Background(), NewCache(), body)
	require.True(t, changed)

	c, ok := folded.Stmts[1].(*ir.ConstStmt)
	require.True(t, ok)
	require.Equal(t, int64(0b011), c.Val.Int)
}

func TestNonConstantOperandsAreLeftAlone(t *testing.T) {
	in := astate.NewSNode(1, "x", nil).ValueState()
	body := ir.NewBody("k",
		&ir.LoadStmt{State: in, RetType: ir.TypeI32},
		constI32(1),
		&ir.BinaryStmt{Op: ir.OpAdd, RetType: ir.TypeI32, LHS: 0, RHS: 1},
	)
	_, changed := Run(context.Background(), NewCache(), body)
	require.False(t, changed)
}

func TestEvaluatorCacheIsSharedAcrossGoroutines(t *testing.T) {
	cache := NewCache()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				v, ok := cache.EvalBinary(ctx, ir.OpAdd, ir.TypeI64, ir.IntConst(ir.TypeI64, int64(j)), ir.IntConst(ir.TypeI64, 1))
				if !ok || v.Int != int64(j)+1 {
					t.Errorf("bad fold result: %v %v", v, ok)
					return
				}
			}
		}()
	}
	wg.Wait()
	require.Equal(t, 1, cache.Size(), "one evaluator serves every goroutine")
}
