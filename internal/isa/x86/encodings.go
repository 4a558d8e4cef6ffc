package x86

import (
	"math"

	"github.com/tetratelabs/encsel/internal/ir"
	"github.com/tetratelabs/encsel/internal/isa"
	"github.com/tetratelabs/encsel/internal/isa/tablegen"
)

// Instruction predicates, in the order of instPredicates.
const (
	instArgIsI8 = iota
	instArgIsI16
	instArgIsI32
	instIsUnsignedImm32
	instImmIsZero

	numInstPreds
)

var instPredicates = [numInstPreds]isa.InstPredicate{
	instArgIsI8:         argIs(ir.TypeI8),
	instArgIsI16:        argIs(ir.TypeI16),
	instArgIsI32:        argIs(ir.TypeI32),
	instIsUnsignedImm32: func(_ *ir.Function, inst *ir.Instruction) bool { return inst.Imm() <= math.MaxUint32 },
	// Only +0.0 is all zero bits.
	instImmIsZero: func(_ *ir.Function, inst *ir.Instruction) bool { return inst.Imm() == 0 },
}

func argIs(t ir.Type) isa.InstPredicate {
	return func(fn *ir.Function, inst *ir.Instruction) bool {
		return fn.ValueType(inst.Arg(0)) == t
	}
}

// Legalize codes, in the order of legalizeActions.
const (
	legExpand isa.LegalizeCode = iota
	legNarrow
	legWiden
	legX86Expand

	numLegalize
)

var legalizeActions = [numLegalize]isa.Legalize{
	legExpand:    isa.LegalizeExpand,
	legNarrow:    isa.LegalizeNarrow,
	legWiden:     isa.LegalizeWiden,
	legX86Expand: isa.LegalizeX86Expand,
}

func enc(r recipeID, bits uint16, preds ...tablegen.Pred) tablegen.Enc {
	return tablegen.Enc{Recipe: int(r), Bits: bits, Preds: preds}
}

func instPred(p int) tablegen.Pred { return tablegen.InstPred(p) }

func isaPred(p int) tablegen.Pred { return tablegen.ISAPred(p) }

// modeEncodings accumulates the encoding lists of one CPU mode.
type modeEncodings struct {
	x64   bool
	lists []tablegen.List
	index map[[2]int]int
}

func (m *modeEncodings) list(ty ir.Type, op ir.Opcode) *tablegen.List {
	key := [2]int{int(ty), int(op)}
	i, ok := m.index[key]
	if !ok {
		i = len(m.lists)
		m.index[key] = i
		m.lists = append(m.lists, tablegen.List{Type: ty, Opcode: op})
	}
	return &m.lists[i]
}

func (m *modeEncodings) add(ty ir.Type, op ir.Opcode, encs ...tablegen.Enc) {
	l := m.list(ty, op)
	l.Encs = append(l.Encs, encs...)
}

func (m *modeEncodings) legalize(ty ir.Type, op ir.Opcode, code isa.LegalizeCode) {
	l := m.list(ty, op)
	l.HasLegalize, l.Legalize = true, code
}

// encs returns the encodings of recipe r for type ty. In 64-bit mode the REX
// variant comes first, and 64-bit integers always need REX.W.
func (m *modeEncodings) encs(ty ir.Type, r recipeID, bits uint16, preds ...tablegen.Pred) []tablegen.Enc {
	switch {
	case !m.x64:
		return []tablegen.Enc{enc(r, bits, preds...)}
	case ty == ir.TypeI64:
		return []tablegen.Enc{enc(rex(r), w(bits), preds...)}
	default:
		return []tablegen.Enc{enc(rex(r), bits, preds...), enc(r, bits, preds...)}
	}
}

func (m *modeEncodings) intOp(ty ir.Type, op ir.Opcode, r recipeID, bits uint16, preds ...tablegen.Pred) {
	m.add(ty, op, m.encs(ty, r, bits, preds...)...)
}

// floatOp adds a float encoding. Float encodings never set REX.W.
func (m *modeEncodings) floatOp(ty ir.Type, op ir.Opcode, r recipeID, bits uint16, preds ...tablegen.Pred) {
	m.add(ty, op, m.encs(ir.TypeF32, r, bits, preds...)...)
}

// ftype returns the mandatory prefix of scalar SSE instructions on t.
func ftype(t ir.Type) int {
	if t == ir.TypeF32 {
		return ppF3
	}
	return ppF2
}

func newMode(name string, x64 bool) tablegen.Mode {
	m := &modeEncodings{x64: x64, index: map[[2]int]int{}}

	intTypes := []ir.Type{ir.TypeI32}
	typeLegalize := map[ir.Type]isa.LegalizeCode{ir.TypeI8: legWiden, ir.TypeI16: legWiden}
	if x64 {
		intTypes = append(intTypes, ir.TypeI64)
	} else {
		typeLegalize[ir.TypeI64] = legNarrow
	}

	for _, ty := range intTypes {
		m.intOp(ty, ir.OpcodeIadd, recOp1rr, op1(0x01))
		m.intOp(ty, ir.OpcodeIsub, recOp1rr, op1(0x29))
		m.intOp(ty, ir.OpcodeBand, recOp1rr, op1(0x21))
		m.intOp(ty, ir.OpcodeBor, recOp1rr, op1(0x09))
		m.intOp(ty, ir.OpcodeBxor, recOp1rr, op1(0x31))
		m.intOp(ty, ir.OpcodeImul, recOp2rrx, op2(0xaf))

		m.intOp(ty, ir.OpcodeIaddImm, recOp1rib, rrr(op1(0x83), 0))
		m.intOp(ty, ir.OpcodeIaddImm, recOp1rid, rrr(op1(0x81), 0))
		m.intOp(ty, ir.OpcodeBandImm, recOp1rib, rrr(op1(0x83), 4))
		m.intOp(ty, ir.OpcodeBandImm, recOp1rid, rrr(op1(0x81), 4))

		m.intOp(ty, ir.OpcodeIshl, recOp1rc, rrr(op1(0xd3), 4))
		m.intOp(ty, ir.OpcodeUshr, recOp1rc, rrr(op1(0xd3), 5))
		m.intOp(ty, ir.OpcodeSshr, recOp1rc, rrr(op1(0xd3), 7))
		m.intOp(ty, ir.OpcodeRotl, recOp1rc, rrr(op1(0xd3), 0))
		m.intOp(ty, ir.OpcodeRotr, recOp1rc, rrr(op1(0xd3), 1))

		// Bit counting needs CPU support, and is expanded otherwise.
		m.intOp(ty, ir.OpcodePopcnt, recMp2urm, mp2(ppF3, 0xb8), isaPred(predUsePopcnt))
		m.legalize(ty, ir.OpcodePopcnt, legX86Expand)
		m.intOp(ty, ir.OpcodeClz, recMp2urm, mp2(ppF3, 0xbd), isaPred(predUseLzcnt))
		m.legalize(ty, ir.OpcodeClz, legX86Expand)
		m.intOp(ty, ir.OpcodeCtz, recMp2urm, mp2(ppF3, 0xbc), isaPred(predUseBmi1))
		m.legalize(ty, ir.OpcodeCtz, legX86Expand)

		// Division goes through x86_udivmodx and x86_sdivmodx.
		m.legalize(ty, ir.OpcodeUdiv, legX86Expand)
		m.legalize(ty, ir.OpcodeSdiv, legX86Expand)
		m.intOp(ty, ir.OpcodeX86Udivmodx, recOp1div, rrr(op1(0xf7), 6))
		m.intOp(ty, ir.OpcodeX86Sdivmodx, recOp1div, rrr(op1(0xf7), 7))

		m.intOp(ty, ir.OpcodeIcmp, recOp1icscc, op1(0x39))

		m.intOp(ty, ir.OpcodeLoad, recOp1ld, op1(0x8b))
		m.intOp(ty, ir.OpcodeStore, recOp1st, op1(0x89))
		m.intOp(ty, ir.OpcodeSpill, recOp1spillSib32, op1(0x89))
		m.intOp(ty, ir.OpcodeFill, recOp1fillSib32, op1(0x8b))
		m.intOp(ty, ir.OpcodeCopy, recOp1umr, op1(0x89))
		m.intOp(ty, ir.OpcodeRegmove, recOp1rmov, op1(0x89))

		// movzx and movsx from the type of the argument.
		m.intOp(ty, ir.OpcodeUextend, recOp2urmNoflags, op2(0xb6), instPred(instArgIsI8))
		m.intOp(ty, ir.OpcodeUextend, recOp2urmNoflags, op2(0xb7), instPred(instArgIsI16))
		m.intOp(ty, ir.OpcodeSextend, recOp2urmNoflags, op2(0xbe), instPred(instArgIsI8))
		m.intOp(ty, ir.OpcodeSextend, recOp2urmNoflags, op2(0xbf), instPred(instArgIsI16))
	}

	if x64 {
		// A 32-bit mov clears the upper half.
		m.add(ir.TypeI64, ir.OpcodeUextend, m.encs(ir.TypeI32, recOp1umr, op1(0x89), instPred(instArgIsI32))...)
		// movsxd
		m.intOp(ir.TypeI64, ir.OpcodeSextend, recOp1urm, op1(0x63), instPred(instArgIsI32))
	}

	m.intOp(ir.TypeI32, ir.OpcodeIconst, recOp1puid, op1(0xb8))
	if x64 {
		m.add(ir.TypeI64, ir.OpcodeIconst, m.encs(ir.TypeI32, recOp1puid, op1(0xb8), instPred(instIsUnsignedImm32))...)
		m.add(ir.TypeI64, ir.OpcodeIconst, enc(recRexOp1puiq, w(op1(0xb8))))
	}

	// Booleans are tested like 32-bit integers.
	for _, ty := range append([]ir.Type{ir.TypeB1}, intTypes...) {
		bty := ty
		if ty == ir.TypeB1 {
			bty = ir.TypeI32
		}
		m.add(ty, ir.OpcodeBrz, m.encs(bty, recOp1tjccb, op1(0x74))...)
		m.add(ty, ir.OpcodeBrz, m.encs(bty, recOp1tjccd, op2(0x84))...)
		m.add(ty, ir.OpcodeBrnz, m.encs(bty, recOp1tjccb, op1(0x75))...)
		m.add(ty, ir.OpcodeBrnz, m.encs(bty, recOp1tjccd, op2(0x85))...)
	}

	for _, ty := range []ir.Type{ir.TypeF32, ir.TypeF64} {
		pp := ftype(ty)
		m.floatOp(ty, ir.OpcodeFadd, recMp2fa, mp2(pp, 0x58))
		m.floatOp(ty, ir.OpcodeFsub, recMp2fa, mp2(pp, 0x5c))
		m.floatOp(ty, ir.OpcodeFmul, recMp2fa, mp2(pp, 0x59))
		m.floatOp(ty, ir.OpcodeFdiv, recMp2fa, mp2(pp, 0x5e))
		m.floatOp(ty, ir.OpcodeSqrt, recMp2furm, mp2(pp, 0x51))
		// movaps
		m.floatOp(ty, ir.OpcodeCopy, recOp2furm, op2(0x28))
		m.floatOp(ty, ir.OpcodeLoad, recMp2fld, mp2(pp, 0x10))
		m.floatOp(ty, ir.OpcodeStore, recMp2fst, mp2(pp, 0x11))
		m.floatOp(ty, ir.OpcodeSpill, recMp2fspillSib32, mp2(pp, 0x11))
		m.floatOp(ty, ir.OpcodeFill, recMp2ffillSib32, mp2(pp, 0x10))
	}
	// Other float constants are expanded into a load from the constant pool.
	m.floatOp(ir.TypeF32, ir.OpcodeF32const, recOp2f32immZ, op2(0x57), instPred(instImmIsZero))
	m.floatOp(ir.TypeF64, ir.OpcodeF64const, recMp2f64immZ, mp2(pp66, 0x57), instPred(instImmIsZero))

	// Instructions which are not polymorphic.
	m.add(ir.TypeInvalid, ir.OpcodeJump, enc(recOp1jmpb, op1(0xeb)), enc(recOp1jmpd, op1(0xe9)))
	m.add(ir.TypeInvalid, ir.OpcodeCall,
		enc(recOp1callpltid, op1(0xe8), isaPred(predIsPIC)),
		enc(recOp1callid, op1(0xe8)))
	m.add(ir.TypeInvalid, ir.OpcodeReturn, enc(recOp1ret, op1(0xc3)))
	m.add(ir.TypeInvalid, ir.OpcodeTrap, enc(recOp2trap, op2(0x0b)))
	m.add(ir.TypeInvalid, ir.OpcodeDebugtrap, enc(recOp1debugtrap, op1(0xcc)))

	return tablegen.Mode{Name: name, Default: legExpand, TypeLegalize: typeLegalize, Lists: m.lists}
}
