// Package ir holds the minimal task intermediate representation the graph
// optimizer works against: straight-line kernel bodies in SSA form, the
// per-body metadata describing which abstract states a launch reads and
// writes, and the launch records handed to the execution engine.
package ir

import "fmt"

// DataType enumerates the primitive types a constant can carry.
type DataType int

const (
	TypeUnknown DataType = iota
	TypeI8
	TypeI32
	TypeI64
	TypeU32
	TypeU64
	TypeF32
	TypeF64
)

func (dt DataType) String() string {
	switch dt {
	case TypeI8:
		return "i8"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeF32:
		return "f32"
	case TypeF64:
		return "f64"
	default:
		return "unknown"
	}
}

// IsInteger reports whether dt is one of the integral types.
func (dt DataType) IsInteger() bool {
	switch dt {
	case TypeI8, TypeI32, TypeI64, TypeU32, TypeU64:
		return true
	}
	return false
}

// IsSigned reports whether dt is a signed integral type.
func (dt DataType) IsSigned() bool {
	switch dt {
	case TypeI8, TypeI32, TypeI64:
		return true
	}
	return false
}

// BinaryOp enumerates binary opcodes.
type BinaryOp int

const (
	OpAdd BinaryOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpMin
	OpMax
	OpBitAnd
	OpBitOr
	OpBitXor
	OpShl
	OpShr
	OpCmpLt
	OpCmpEq
)

func (op BinaryOp) String() string {
	names := [...]string{"add", "sub", "mul", "div", "mod", "min", "max", "bit_and", "bit_or", "bit_xor", "shl", "shr", "cmp_lt", "cmp_eq"}
	if int(op) < len(names) {
		return names[op]
	}
	return fmt.Sprintf("binary(%d)", int(op))
}

// UnaryOp enumerates unary opcodes.
type UnaryOp int

const (
	OpNeg UnaryOp = iota
	OpBitNot
	OpLogicNot
	OpAbs
	OpSqrt
	OpCastValue
	OpCastBits
)

func (op UnaryOp) String() string {
	names := [...]string{"neg", "bit_not", "logic_not", "abs", "sqrt", "cast_value", "cast_bits"}
	if int(op) < len(names) {
		return names[op]
	}
	return fmt.Sprintf("unary(%d)", int(op))
}

// IsCast reports whether op converts between data types.
func (op UnaryOp) IsCast() bool {
	return op == OpCastValue || op == OpCastBits
}
