// Package golang_asm assembles reference machine code with the golang-asm
// library, a fork of the Go toolchain assembler. Encodings are cross checked
// against its output.
package golang_asm

import (
	"fmt"

	goasm "github.com/twitchyliquid64/golang-asm"
	"github.com/twitchyliquid64/golang-asm/asm/arch"
	"github.com/twitchyliquid64/golang-asm/obj"
)

// Node is an instruction added to an Assembler.
type Node struct {
	prog *obj.Prog
}

// String implements fmt.Stringer.
func (n *Node) String() string {
	return n.prog.String()
}

// OffsetInBinary returns the offset of the instruction in the assembled code.
// This is only valid after Assemble.
func (n *Node) OffsetInBinary() uint64 {
	return uint64(n.prog.Pc)
}

// Assembler is a single use golang-asm program builder.
type Assembler struct {
	b     *goasm.Builder
	nodes []*Node
	// onGenerateCallbacks holds the callbacks which are called after generating native code.
	onGenerateCallbacks []func(code []byte) error
}

// NewAssembler returns an Assembler for the golang-asm architecture arch, e.g. "amd64".
func NewAssembler(archName string) (*Assembler, error) {
	// goasm.NewBuilder dereferences the architecture without checking it.
	if arch.Set(archName) == nil {
		return nil, fmt.Errorf("unsupported architecture %q", archName)
	}
	b, err := goasm.NewBuilder(archName, 1024)
	if err != nil {
		return nil, fmt.Errorf("failed to create a new assembly builder: %w", err)
	}
	// golang-asm skips the first instruction of a program, so a pseudo NOP
	// which has no encoding takes its place.
	nop := b.NewProg()
	nop.As = obj.ANOP
	b.AddInstruction(nop)
	return &Assembler{b: b}, nil
}

// NewProg returns a new instruction which is not added to the program yet.
func (a *Assembler) NewProg() *obj.Prog {
	return a.b.NewProg()
}

// AddInstruction appends p to the program.
func (a *Assembler) AddInstruction(p *obj.Prog) *Node {
	a.b.AddInstruction(p)
	n := &Node{prog: p}
	a.nodes = append(a.nodes, n)
	return n
}

// AddOnGenerateCallBack registers cb to be called with the code generated by Assemble.
func (a *Assembler) AddOnGenerateCallBack(cb func(code []byte) error) {
	a.onGenerateCallbacks = append(a.onGenerateCallbacks, cb)
}

// Assemble returns the machine code of the program.
func (a *Assembler) Assemble() ([]byte, error) {
	if len(a.nodes) == 0 {
		return nil, fmt.Errorf("no instruction to assemble")
	}
	code := a.b.Assemble()
	for _, cb := range a.onGenerateCallbacks {
		if err := cb(code); err != nil {
			return nil, err
		}
	}
	return code, nil
}

// InstructionBytes splits code returned by Assemble per instruction.
func (a *Assembler) InstructionBytes(code []byte) [][]byte {
	ret := make([][]byte, len(a.nodes))
	for i, n := range a.nodes {
		end := uint64(len(code))
		if i+1 < len(a.nodes) {
			end = a.nodes[i+1].OffsetInBinary()
		}
		ret[i] = code[n.OffsetInBinary():end]
	}
	return ret
}
