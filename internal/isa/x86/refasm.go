package x86

import (
	"fmt"

	"github.com/twitchyliquid64/golang-asm/obj"
	goasmx86 "github.com/twitchyliquid64/golang-asm/obj/x86"

	"github.com/tetratelabs/encsel/internal/asm/golang_asm"
	"github.com/tetratelabs/encsel/internal/ir"
)

// refForm is the operand form of a reference instruction.
type refForm byte

const (
	// refRR is `op CX, AX` or `op X1, X0` for floats.
	refRR refForm = iota
	// refR is `op CX`.
	refR
	// refNone has no operands.
	refNone
)

type refInst struct {
	as   obj.As
	form refForm
}

var refInsts = map[ir.Type]map[ir.Opcode]refInst{
	ir.TypeI32: {
		ir.OpcodeIadd:        {goasmx86.AADDL, refRR},
		ir.OpcodeIsub:        {goasmx86.ASUBL, refRR},
		ir.OpcodeBand:        {goasmx86.AANDL, refRR},
		ir.OpcodeBor:         {goasmx86.AORL, refRR},
		ir.OpcodeBxor:        {goasmx86.AXORL, refRR},
		ir.OpcodeImul:        {goasmx86.AIMULL, refRR},
		ir.OpcodeIshl:        {goasmx86.ASHLL, refRR},
		ir.OpcodeUshr:        {goasmx86.ASHRL, refRR},
		ir.OpcodeSshr:        {goasmx86.ASARL, refRR},
		ir.OpcodeRotl:        {goasmx86.AROLL, refRR},
		ir.OpcodeRotr:        {goasmx86.ARORL, refRR},
		ir.OpcodePopcnt:      {goasmx86.APOPCNTL, refRR},
		ir.OpcodeClz:         {goasmx86.ALZCNTL, refRR},
		ir.OpcodeCtz:         {goasmx86.ATZCNTL, refRR},
		ir.OpcodeX86Udivmodx: {goasmx86.ADIVL, refR},
		ir.OpcodeX86Sdivmodx: {goasmx86.AIDIVL, refR},
		ir.OpcodeCopy:        {goasmx86.AMOVL, refRR},
	},
	ir.TypeI64: {
		ir.OpcodeIadd:        {goasmx86.AADDQ, refRR},
		ir.OpcodeIsub:        {goasmx86.ASUBQ, refRR},
		ir.OpcodeBand:        {goasmx86.AANDQ, refRR},
		ir.OpcodeBor:         {goasmx86.AORQ, refRR},
		ir.OpcodeBxor:        {goasmx86.AXORQ, refRR},
		ir.OpcodeImul:        {goasmx86.AIMULQ, refRR},
		ir.OpcodeIshl:        {goasmx86.ASHLQ, refRR},
		ir.OpcodeUshr:        {goasmx86.ASHRQ, refRR},
		ir.OpcodeSshr:        {goasmx86.ASARQ, refRR},
		ir.OpcodeRotl:        {goasmx86.AROLQ, refRR},
		ir.OpcodeRotr:        {goasmx86.ARORQ, refRR},
		ir.OpcodePopcnt:      {goasmx86.APOPCNTQ, refRR},
		ir.OpcodeClz:         {goasmx86.ALZCNTQ, refRR},
		ir.OpcodeCtz:         {goasmx86.ATZCNTQ, refRR},
		ir.OpcodeX86Udivmodx: {goasmx86.ADIVQ, refR},
		ir.OpcodeX86Sdivmodx: {goasmx86.AIDIVQ, refR},
		ir.OpcodeCopy:        {goasmx86.AMOVQ, refRR},
	},
	ir.TypeF32: {
		ir.OpcodeFadd: {goasmx86.AADDSS, refRR},
		ir.OpcodeFsub: {goasmx86.ASUBSS, refRR},
		ir.OpcodeFmul: {goasmx86.AMULSS, refRR},
		ir.OpcodeFdiv: {goasmx86.ADIVSS, refRR},
		ir.OpcodeSqrt: {goasmx86.ASQRTSS, refRR},
		ir.OpcodeCopy: {goasmx86.AMOVAPS, refRR},
	},
	ir.TypeF64: {
		ir.OpcodeFadd: {goasmx86.AADDSD, refRR},
		ir.OpcodeFsub: {goasmx86.ASUBSD, refRR},
		ir.OpcodeFmul: {goasmx86.AMULSD, refRR},
		ir.OpcodeFdiv: {goasmx86.ADIVSD, refRR},
		ir.OpcodeSqrt: {goasmx86.ASQRTSD, refRR},
		ir.OpcodeCopy: {goasmx86.AMOVAPS, refRR},
	},
	ir.TypeInvalid: {
		ir.OpcodeReturn: {obj.ARET, refNone},
		ir.OpcodeTrap:   {goasmx86.AUD2, refNone},
	},
}

// HasReference returns true if ReferenceBytes knows the canonical form of op on ty.
func HasReference(op ir.Opcode, ty ir.Type) bool {
	_, ok := refInsts[ty][op]
	return ok
}

// ReferenceBytes returns the machine code emitted by the Go assembler for the
// canonical form of op on ty, with the destination in rax (or xmm0) and the
// other operand in rcx (or xmm1).
func ReferenceBytes(op ir.Opcode, ty ir.Type) ([]byte, error) {
	ri, ok := refInsts[ty][op]
	if !ok {
		return nil, fmt.Errorf("no reference instruction for %s.%s", op, ty)
	}

	a, err := golang_asm.NewAssembler("amd64")
	if err != nil {
		return nil, err
	}
	src, dst := int16(goasmx86.REG_CX), int16(goasmx86.REG_AX)
	if ty.IsFloat() {
		src, dst = goasmx86.REG_X1, goasmx86.REG_X0
	}

	p := a.NewProg()
	p.As = ri.as
	switch ri.form {
	case refRR:
		p.From = obj.Addr{Type: obj.TYPE_REG, Reg: src}
		p.To = obj.Addr{Type: obj.TYPE_REG, Reg: dst}
	case refR:
		p.From = obj.Addr{Type: obj.TYPE_REG, Reg: src}
		p.To.Type = obj.TYPE_NONE
	}
	a.AddInstruction(p)

	code, err := a.Assemble()
	if err != nil {
		return nil, fmt.Errorf("assembling %s.%s: %w", op, ty, err)
	}
	return code, nil
}
