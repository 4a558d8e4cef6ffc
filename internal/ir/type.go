package ir

// Type is the type of a value. Polymorphic instructions are parameterized by
// the type of one value, their controlling type variable.
type Type uint8

const (
	// TypeInvalid is the zero Type. It is also the controlling type of
	// instructions which are not polymorphic.
	TypeInvalid Type = iota
	// TypeB1 is a boolean produced by comparisons.
	TypeB1
	// TypeI8 is an 8-bit integer.
	TypeI8
	// TypeI16 is a 16-bit integer.
	TypeI16
	// TypeI32 is a 32-bit integer.
	TypeI32
	// TypeI64 is a 64-bit integer.
	TypeI64
	// TypeF32 is a 32-bit float.
	TypeF32
	// TypeF64 is a 64-bit float.
	TypeF64

	typeEnd
)

var typeNames = [typeEnd]string{
	TypeInvalid: "invalid",
	TypeB1:      "b1",
	TypeI8:      "i8",
	TypeI16:     "i16",
	TypeI32:     "i32",
	TypeI64:     "i64",
	TypeF32:     "f32",
	TypeF64:     "f64",
}

// String implements fmt.Stringer.
func (t Type) String() string {
	if t < typeEnd {
		return typeNames[t]
	}
	return "invalid"
}

// TypeByName returns the Type named s, e.g. "i32".
func TypeByName(s string) (Type, bool) {
	for t := TypeB1; t < typeEnd; t++ {
		if typeNames[t] == s {
			return t, true
		}
	}
	return TypeInvalid, false
}

// Index returns the index of this type used for hashing in generated tables.
func (t Type) Index() int {
	return int(t)
}

// IsInt returns true if the type is an integer.
func (t Type) IsInt() bool {
	return t >= TypeI8 && t <= TypeI64
}

// IsFloat returns true if the type is a float.
func (t Type) IsFloat() bool {
	return t == TypeF32 || t == TypeF64
}

// IsBool returns true if the type is a boolean.
func (t Type) IsBool() bool {
	return t == TypeB1
}

// Bits returns the number of bits of the type.
func (t Type) Bits() byte {
	switch t {
	case TypeB1:
		return 1
	case TypeI8:
		return 8
	case TypeI16:
		return 16
	case TypeI32, TypeF32:
		return 32
	case TypeI64, TypeF64:
		return 64
	default:
		return 0
	}
}

// Bytes returns the number of bytes needed to store the type.
func (t Type) Bytes() int {
	return (int(t.Bits()) + 7) / 8
}
