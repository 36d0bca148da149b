package stateflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Velaciela/taichi/pkg/astate"
	"github.com/Velaciela/taichi/pkg/ir"
	"github.com/Velaciela/taichi/pkg/irbank"
)

// testEnv bundles the fixtures most graph tests need: a bank, a graph, and
// a tiny sparse-node tree with a few value states.
type testEnv struct {
	bank  *irbank.Bank
	graph *Graph
	root  *astate.SNode
	leafA *astate.SNode
	leafB *astate.SNode
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	bank, err := irbank.New(nil)
	require.NoError(t, err)
	root := astate.NewSNode(0, "root", nil)
	return &testEnv{
		bank:  bank,
		graph: New(bank, nil),
		root:  root,
		leafA: astate.NewSNode(1, "x", root),
		leafB: astate.NewSNode(2, "y", root),
	}
}

// sigma returns the value state of a fresh scratch node, handy for tests
// that want anonymous unobservable states.
func sigma(t *testing.T, id int) astate.State {
	t.Helper()
	sn := astate.NewSNode(100+id, "sigma", nil)
	sn.Scratch = true
	return sn.ValueState()
}

// rangeWriter builds an element-wise kernel that stores a constant into
// each output state.
func rangeWriter(name string, outs ...astate.State) *ir.Body {
	stmts := []ir.Stmt{&ir.ConstStmt{Val: ir.IntConst(ir.TypeI32, 1)}}
	for _, s := range outs {
		stmts = append(stmts, &ir.StoreStmt{State: s, Src: 0})
	}
	body := ir.NewBody(name, stmts...)
	body.Type = ir.TaskRange
	body.RangeEnd = 128
	body.Arch = "x64"
	return body
}

// serialReader builds a serial kernel that loads every input state and
// stores the first loaded value (a zero constant when there are no inputs)
// into each output state.
func serialReader(name string, ins []astate.State, outs []astate.State) *ir.Body {
	stmts := make([]ir.Stmt, 0, len(ins)+len(outs)+1)
	for _, s := range ins {
		stmts = append(stmts, &ir.LoadStmt{State: s, RetType: ir.TypeI32})
	}
	if len(ins) == 0 {
		stmts = append(stmts, &ir.ConstStmt{Val: ir.IntConst(ir.TypeI32, 0)})
	}
	for _, s := range outs {
		stmts = append(stmts, &ir.StoreStmt{State: s, Src: 0})
	}
	return ir.NewBody(name, stmts...)
}

func listgenBody(name string, sn *astate.SNode) *ir.Body {
	body := ir.NewBody(name, &ir.ListGenStmt{Node: sn})
	body.Type = ir.TaskListgen
	body.Snode = sn
	return body
}

func records(bodies ...*ir.Body) []ir.TaskLaunchRecord {
	recs := make([]ir.TaskLaunchRecord, len(bodies))
	for i, b := range bodies {
		recs[i] = ir.NewLaunchRecord(b)
	}
	return recs
}

func insert(t *testing.T, env *testEnv, filterListgen bool, bodies ...*ir.Body) {
	t.Helper()
	require.NoError(t, env.graph.InsertTasks(context.Background(), records(bodies...), filterListgen))
	require.NoError(t, env.graph.Verify(true))
}

// emittedNames extracts the pending window and returns the kernel names in
// emission order.
func emittedNames(t *testing.T, g *Graph) []string {
	t.Helper()
	recs := g.ExtractToExecute(context.Background())
	names := make([]string, len(recs))
	for i, r := range recs {
		names[i] = r.Body.KernelName
	}
	return names
}

// pendingByName finds a pending node by kernel name.
func pendingByName(t *testing.T, g *Graph, name string) *Node {
	t.Helper()
	for _, n := range g.GetPendingTasks() {
		if n.Meta.Name == name {
			return n
		}
	}
	t.Fatalf("no pending node named %s", name)
	return nil
}
