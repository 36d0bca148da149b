package ir

import (
	"fmt"
	"math"
)

// TypedConstant is a value tagged with its primitive type. Integral values
// live in Int (sign-extended); floating values live in Float.
type TypedConstant struct {
	DT    DataType
	Int   int64
	Float float64
}

// IntConst builds an integral constant.
func IntConst(dt DataType, v int64) TypedConstant {
	return TypedConstant{DT: dt, Int: v}
}

// FloatConst builds a floating constant.
func FloatConst(dt DataType, v float64) TypedConstant {
	return TypedConstant{DT: dt, Float: v}
}

// AsFloat converts the constant's payload to float64 regardless of type.
func (c TypedConstant) AsFloat() float64 {
	if c.DT.IsInteger() {
		if c.DT.IsSigned() {
			return float64(c.Int)
		}
		return float64(uint64(c.Int))
	}
	return c.Float
}

// AsInt converts the constant's payload to int64, truncating floats.
func (c TypedConstant) AsInt() int64 {
	if c.DT.IsInteger() {
		return c.Int
	}
	return int64(c.Float)
}

// Bits returns the raw bit pattern of the payload, used by bit casts.
func (c TypedConstant) Bits() uint64 {
	if c.DT.IsInteger() {
		return uint64(c.Int)
	}
	if c.DT == TypeF32 {
		return uint64(math.Float32bits(float32(c.Float)))
	}
	return math.Float64bits(c.Float)
}

// FromBits reinterprets raw bits as a constant of type dt.
func FromBits(dt DataType, bits uint64) TypedConstant {
	switch dt {
	case TypeF32:
		return TypedConstant{DT: dt, Float: float64(math.Float32frombits(uint32(bits)))}
	case TypeF64:
		return TypedConstant{DT: dt, Float: math.Float64frombits(bits)}
	default:
		return TypedConstant{DT: dt, Int: int64(bits)}
	}
}

func (c TypedConstant) String() string {
	if c.DT.IsInteger() {
		return fmt.Sprintf("%d:%s", c.Int, c.DT)
	}
	return fmt.Sprintf("%g:%s", c.Float, c.DT)
}

// Equal reports payload and type equality. Float payloads compare by bit
// pattern so NaN constants stay foldable.
func (c TypedConstant) Equal(o TypedConstant) bool {
	return c.DT == o.DT && c.Bits() == o.Bits()
}
