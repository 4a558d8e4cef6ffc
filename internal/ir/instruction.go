package ir

import (
	"fmt"
	"math"
	"strings"
)

// Value represents an SSA value defined by a function parameter or an instruction result.
type Value uint32

// ValueInvalid is the zero value of an unset Value.
const ValueInvalid Value = math.MaxUint32

// String implements fmt.Stringer.
func (v Value) String() string {
	if v == ValueInvalid {
		return "v?"
	}
	return fmt.Sprintf("v%d", uint32(v))
}

// BlockID is the identifier of a Block in its Function.
type BlockID uint32

// String implements fmt.Stringer.
func (b BlockID) String() string {
	return fmt.Sprintf("blk%d", uint32(b))
}

// IntCC is an integer comparison condition used by icmp.
type IntCC byte

const (
	IntCCEqual IntCC = iota
	IntCCNotEqual
	IntCCSignedLessThan
	IntCCSignedGreaterThanOrEqual
	IntCCSignedGreaterThan
	IntCCSignedLessThanOrEqual
	IntCCUnsignedLessThan
	IntCCUnsignedGreaterThanOrEqual
	IntCCUnsignedGreaterThan
	IntCCUnsignedLessThanOrEqual
)

var intCCNames = [...]string{"eq", "ne", "slt", "sge", "sgt", "sle", "ult", "uge", "ugt", "ule"}

// String implements fmt.Stringer.
func (c IntCC) String() string {
	if int(c) < len(intCCNames) {
		return intCCNames[c]
	}
	return "invalid"
}

// Instruction represents an instruction whose opcode is specified by Opcode.
// Since Go doesn't have union type, this is a flattened type for all
// instruction formats, and each field has a meaning depending on Opcode.
type Instruction struct {
	opcode  Opcode
	ctrl    Type
	args    []Value
	results []Value
	imm     uint64
	offset  int32
	cond    IntCC
	target  BlockID
}

// Opcode returns the opcode of this instruction.
func (i *Instruction) Opcode() Opcode {
	return i.opcode
}

// Args returns the value arguments of this instruction.
func (i *Instruction) Args() []Value {
	return i.args
}

// Arg returns the n-th argument, or ValueInvalid if there is none.
func (i *Instruction) Arg(n int) Value {
	if n < len(i.args) {
		return i.args[n]
	}
	return ValueInvalid
}

// Results returns the values defined by this instruction.
func (i *Instruction) Results() []Value {
	return i.results
}

// Imm returns the raw immediate operand. Float constants store their IEEE bits.
func (i *Instruction) Imm() uint64 {
	return i.imm
}

// ImmSigned returns the immediate operand interpreted as a signed integer.
func (i *Instruction) ImmSigned() int64 {
	return int64(i.imm)
}

// Offset returns the address offset of loads and stores.
func (i *Instruction) Offset() int32 {
	return i.offset
}

// Cond returns the condition of icmp.
func (i *Instruction) Cond() IntCC {
	return i.cond
}

// Target returns the destination block of branches.
func (i *Instruction) Target() BlockID {
	return i.target
}

// WithImm sets the immediate operand and returns the instruction.
func (i *Instruction) WithImm(imm uint64) *Instruction {
	i.imm = imm
	return i
}

// WithF32 sets the immediate operand from a float32 and returns the instruction.
func (i *Instruction) WithF32(f float32) *Instruction {
	i.imm = uint64(math.Float32bits(f))
	return i
}

// WithF64 sets the immediate operand from a float64 and returns the instruction.
func (i *Instruction) WithF64(f float64) *Instruction {
	i.imm = math.Float64bits(f)
	return i
}

// WithOffset sets the address offset and returns the instruction.
func (i *Instruction) WithOffset(offset int32) *Instruction {
	i.offset = offset
	return i
}

// WithCond sets the comparison condition and returns the instruction.
func (i *Instruction) WithCond(c IntCC) *Instruction {
	i.cond = c
	return i
}

// WithTarget sets the branch destination and returns the instruction.
func (i *Instruction) WithTarget(b BlockID) *Instruction {
	i.target = b
	return i
}

// String implements fmt.Stringer.
func (i *Instruction) String() string {
	var b strings.Builder
	if len(i.results) > 0 {
		for n, r := range i.results {
			if n > 0 {
				b.WriteString(", ")
			}
			b.WriteString(r.String())
		}
		b.WriteString(" = ")
	}
	b.WriteString(i.opcode.String())
	if i.opcode.IsPolymorphic() {
		b.WriteByte('.')
		b.WriteString(i.ctrl.String())
	}
	var operands []string
	if i.opcode == OpcodeIcmp {
		operands = append(operands, i.cond.String())
	}
	for _, a := range i.args {
		operands = append(operands, a.String())
	}
	switch i.opcode {
	case OpcodeIconst, OpcodeIaddImm, OpcodeBandImm:
		operands = append(operands, fmt.Sprintf("%d", i.ImmSigned()))
	case OpcodeF32const:
		operands = append(operands, fmt.Sprintf("%g", math.Float32frombits(uint32(i.imm))))
	case OpcodeF64const:
		operands = append(operands, fmt.Sprintf("%g", math.Float64frombits(i.imm)))
	case OpcodeLoad, OpcodeStore:
		operands = append(operands, fmt.Sprintf("%+d", i.offset))
	case OpcodeJump, OpcodeBrz, OpcodeBrnz:
		operands = append(operands, i.target.String())
	}
	if len(operands) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(operands, ", "))
	}
	return b.String()
}
