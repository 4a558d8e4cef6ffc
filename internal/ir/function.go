package ir

import (
	"fmt"
	"strings"
)

// Block is a basic block: a sequence of instructions in layout order.
type Block struct {
	id     BlockID
	instrs []*Instruction
}

// ID returns the identifier of this block.
func (b *Block) ID() BlockID {
	return b.id
}

// Instructions returns the instructions of this block in layout order.
func (b *Block) Instructions() []*Instruction {
	return b.instrs
}

// Function is a function body: blocks of instructions and the types of its values.
//
// Function is not safe for concurrent mutation, but a fully built Function
// can be read from multiple goroutines.
type Function struct {
	Name string

	valueTypes []Type
	params     []Value
	blocks     []*Block
}

// NewFunction returns an empty Function.
func NewFunction(name string) *Function {
	return &Function{Name: name}
}

func (f *Function) allocValue(t Type) Value {
	v := Value(len(f.valueTypes))
	f.valueTypes = append(f.valueTypes, t)
	return v
}

// Param appends a parameter of the given type and returns its Value.
func (f *Function) Param(t Type) Value {
	v := f.allocValue(t)
	f.params = append(f.params, v)
	return v
}

// Params returns the parameters of this function.
func (f *Function) Params() []Value {
	return f.params
}

// AddBlock appends a new empty block to the layout.
func (f *Function) AddBlock() *Block {
	b := &Block{id: BlockID(len(f.blocks))}
	f.blocks = append(f.blocks, b)
	return b
}

// Blocks returns the blocks of this function in layout order.
func (f *Function) Blocks() []*Block {
	return f.blocks
}

// Block returns the block with the given id.
func (f *Function) Block(id BlockID) *Block {
	return f.blocks[id]
}

// Ins appends an instruction to blk and allocates its results.
//
// ctrl is the controlling type of polymorphic opcodes and is ignored otherwise.
// Results have the controlling type, except for comparisons which produce booleans.
func (f *Function) Ins(blk *Block, op Opcode, ctrl Type, args ...Value) *Instruction {
	info := &opcodeInfos[op]
	i := &Instruction{opcode: op, args: args}
	if info.polymorphic {
		i.ctrl = ctrl
	}
	for n := 0; n < info.results; n++ {
		t := ctrl
		if info.boolResult {
			t = TypeB1
		}
		i.results = append(i.results, f.allocValue(t))
	}
	blk.instrs = append(blk.instrs, i)
	return i
}

// ValueType returns the type of v.
func (f *Function) ValueType(v Value) Type {
	if int(v) < len(f.valueTypes) {
		return f.valueTypes[v]
	}
	return TypeInvalid
}

// CtrlTypevar returns the controlling type variable of i, which is
// TypeInvalid for instructions that are not polymorphic.
func (f *Function) CtrlTypevar(i *Instruction) Type {
	if !i.opcode.IsPolymorphic() {
		return TypeInvalid
	}
	return i.ctrl
}

// NumInstructions returns the number of instructions in all blocks.
func (f *Function) NumInstructions() (n int) {
	for _, b := range f.blocks {
		n += len(b.instrs)
	}
	return
}

// Format returns a human readable listing of the function.
func (f *Function) Format() string {
	var b strings.Builder
	params := make([]string, len(f.params))
	for i, p := range f.params {
		params[i] = fmt.Sprintf("%s:%s", p, f.ValueType(p))
	}
	fmt.Fprintf(&b, "function %%%s(%s) {\n", f.Name, strings.Join(params, ", "))
	for _, blk := range f.blocks {
		fmt.Fprintf(&b, "%s:\n", blk.id)
		for _, i := range blk.instrs {
			fmt.Fprintf(&b, "\t%s\n", i)
		}
	}
	b.WriteString("}\n")
	return b.String()
}
