package x86

import (
	"bytes"
	"math"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/encsel/internal/ir"
	"github.com/tetratelabs/encsel/internal/isa"
)

func newTarget(t *testing.T, mode string, enable ...string) isa.TargetISA {
	b, err := NewBuilder(mode)
	require.NoError(t, err)
	for _, s := range enable {
		require.NoError(t, b.Settings().Enable(s))
	}
	return b.Finish()
}

// newInst returns an instruction of type ty whose arguments have the type argTy.
func newInst(op ir.Opcode, ty, argTy ir.Type, imm uint64) (*ir.Function, *ir.Instruction) {
	fn := ir.NewFunction("f")
	blk := fn.AddBlock()
	if !op.IsPolymorphic() {
		return fn, fn.Ins(blk, op, ty)
	}
	v := fn.Param(argTy)
	return fn, fn.Ins(blk, op, ty, v, v).WithImm(imm)
}

func legalEncodings(target isa.TargetISA, fn *ir.Function, inst *ir.Instruction, ty ir.Type) ([]string, isa.Legalize) {
	encs := target.LegalEncodings(fn, inst, ty)
	var names []string
	for {
		enc, ok := encs.Next()
		if !ok {
			break
		}
		names = append(names, target.EncInfo().Display(enc))
	}
	return names, encs.Legalize()
}

func TestModeByName(t *testing.T) {
	for _, m := range []Mode{ModeI686, ModeX86_64} {
		actual, ok := ModeByName(m.String())
		require.True(t, ok)
		require.Equal(t, m, actual)
	}
	_, ok := ModeByName("arm64")
	require.False(t, ok)
	require.Equal(t, "mode(5)", Mode(5).String())

	_, err := NewBuilder("arm64")
	require.EqualError(t, err, `unknown x86 mode "arm64"`)
}

func TestRecipes(t *testing.T) {
	for i := range recipes {
		r := &recipes[i]
		require.NotEmpty(t, r.name, "recipe %d", i)
		require.NotZero(t, r.size, r.name)
	}

	// Pairs are followed by their REX variant.
	for _, id := range []recipeID{recOp1rr, recOp1rc, recOp1div, recMp2fa, recOp1tjccb, recOp1tjccd} {
		r, rx := recipes[id], recipes[rex(id)]
		require.Equal(t, "rex"+r.name, rx.name)
		require.Equal(t, r.size+1, rx.size)
		if r.branch != nil {
			require.Equal(t, r.branch.Origin+1, rx.branch.Origin)
			require.Equal(t, r.branch.Bits, rx.branch.Bits)
		}
		for j, c := range rx.ins {
			require.True(t, r.ins[j].RegClass.IsSubclassOf(c.RegClass), rx.name)
		}
	}
	require.Equal(t, GPR, recipes[recRexOp1icscc].outs[0].RegClass)
	require.Equal(t, ABCD, recipes[recOp1icscc].outs[0].RegClass)
	require.Equal(t, FPR, recipes[recRexMp2fa].ins[1].RegClass)
}

func TestValidate(t *testing.T) {
	require.NoError(t, Validate())
}

func TestEncInfo(t *testing.T) {
	require.Equal(t, int(numRecipes), len(encInfo.Constraints))
	for i := range encInfo.Constraints {
		require.NoError(t, encInfo.Constraints[i].Validate(), encInfo.Names[i])
	}

	tests := []struct {
		recipe                       recipeID
		fixedIns, fixedOuts, tiedOps bool
		size                         isa.CodeOffset
		hasBranchRange               bool
	}{
		{recipe: recOp1rr, tiedOps: true, size: 2},
		{recipe: recRexOp1rr, tiedOps: true, size: 3},
		{recipe: recOp1rc, fixedIns: true, tiedOps: true, size: 2},
		{recipe: recOp1div, fixedIns: true, fixedOuts: true, size: 2},
		{recipe: recMp2urm, size: 4},
		{recipe: recOp1tjccb, size: 4, hasBranchRange: true},
		{recipe: recRexOp1tjccd, size: 9, hasBranchRange: true},
		{recipe: recOp1ret, size: 1},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(encInfo.Names[tc.recipe], func(t *testing.T) {
			enc := isa.NewEncoding(int(tc.recipe), 0)
			c := encInfo.Operands(enc)
			require.Equal(t, tc.fixedIns, c.FixedIns)
			require.Equal(t, tc.fixedOuts, c.FixedOuts)
			require.Equal(t, tc.tiedOps, c.TiedOps)
			require.Equal(t, tc.size, encInfo.ByteSize(enc))
			_, ok := encInfo.BranchRange(enc)
			require.Equal(t, tc.hasBranchRange, ok)
		})
	}
}

func TestTarget_LegalEncodings(t *testing.T) {
	tests := []struct {
		name        string
		mode        string
		enable      []string
		op          ir.Opcode
		ty, argTy   ir.Type
		imm         uint64
		exp         []string
		expLegalize isa.Legalize
	}{
		{
			name: "iadd.i32 i686",
			mode: "i686", op: ir.OpcodeIadd, ty: ir.TypeI32,
			exp:         []string{"op1rr#0001"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "iadd.i32 x86_64",
			mode: "x86_64", op: ir.OpcodeIadd, ty: ir.TypeI32,
			exp:         []string{"rexop1rr#0001", "op1rr#0001"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "iadd.i64 x86_64",
			mode: "x86_64", op: ir.OpcodeIadd, ty: ir.TypeI64,
			exp:         []string{"rexop1rr#8001"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "iadd.i64 i686",
			mode: "i686", op: ir.OpcodeIadd, ty: ir.TypeI64,
			expLegalize: isa.LegalizeNarrow,
		},
		{
			name: "iadd.i8",
			mode: "x86_64", op: ir.OpcodeIadd, ty: ir.TypeI8,
			expLegalize: isa.LegalizeWiden,
		},
		{
			name: "ireduce.i32 has no list",
			mode: "x86_64", op: ir.OpcodeIreduce, ty: ir.TypeI32,
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "imul.i64",
			mode: "x86_64", op: ir.OpcodeImul, ty: ir.TypeI64,
			exp:         []string{"rexop2rrx#81af"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "ishl.i32",
			mode: "i686", op: ir.OpcodeIshl, ty: ir.TypeI32,
			exp:         []string{"op1rc#40d3"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "popcnt.i32 baseline",
			mode: "i686", enable: []string{"baseline"}, op: ir.OpcodePopcnt, ty: ir.TypeI32,
			expLegalize: isa.LegalizeX86Expand,
		},
		{
			name: "popcnt.i32 nehalem",
			mode: "i686", enable: []string{"nehalem"}, op: ir.OpcodePopcnt, ty: ir.TypeI32,
			exp:         []string{"mp2urm#09b8"},
			expLegalize: isa.LegalizeX86Expand,
		},
		{
			name: "popcnt.i32 without sse4.2",
			mode: "i686", enable: []string{"has_popcnt"}, op: ir.OpcodePopcnt, ty: ir.TypeI32,
			expLegalize: isa.LegalizeX86Expand,
		},
		{
			name: "popcnt.i64 nehalem",
			mode: "x86_64", enable: []string{"nehalem"}, op: ir.OpcodePopcnt, ty: ir.TypeI64,
			exp:         []string{"rexmp2urm#89b8"},
			expLegalize: isa.LegalizeX86Expand,
		},
		{
			name: "clz.i32 haswell",
			mode: "x86_64", enable: []string{"haswell"}, op: ir.OpcodeClz, ty: ir.TypeI32,
			exp:         []string{"rexmp2urm#09bd", "mp2urm#09bd"},
			expLegalize: isa.LegalizeX86Expand,
		},
		{
			name: "ctz.i64 bmi1",
			mode: "x86_64", enable: []string{"has_bmi1"}, op: ir.OpcodeCtz, ty: ir.TypeI64,
			exp:         []string{"rexmp2urm#89bc"},
			expLegalize: isa.LegalizeX86Expand,
		},
		{
			name: "udiv.i32",
			mode: "x86_64", op: ir.OpcodeUdiv, ty: ir.TypeI32,
			expLegalize: isa.LegalizeX86Expand,
		},
		{
			name: "x86_sdivmodx.i32",
			mode: "i686", op: ir.OpcodeX86Sdivmodx, ty: ir.TypeI32,
			exp:         []string{"op1div#70f7"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "iadd_imm.i32 imm8",
			mode: "i686", op: ir.OpcodeIaddImm, ty: ir.TypeI32, imm: 5,
			exp:         []string{"op1r_ib#0083", "op1r_id#0081"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "iadd_imm.i32 imm32",
			mode: "i686", op: ir.OpcodeIaddImm, ty: ir.TypeI32, imm: 1000,
			exp:         []string{"op1r_id#0081"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "iadd_imm.i64 negative imm8",
			mode: "x86_64", op: ir.OpcodeIaddImm, ty: ir.TypeI64, imm: math.MaxUint64,
			exp:         []string{"rexop1r_ib#8083", "rexop1r_id#8081"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "iadd_imm.i64 imm64",
			mode: "x86_64", op: ir.OpcodeIaddImm, ty: ir.TypeI64, imm: 1 << 40,
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "iconst.i64 unsigned imm32",
			mode: "x86_64", op: ir.OpcodeIconst, ty: ir.TypeI64, imm: 7,
			exp:         []string{"rexop1pu_id#00b8", "op1pu_id#00b8", "rexop1pu_iq#80b8"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "iconst.i64 imm64",
			mode: "x86_64", op: ir.OpcodeIconst, ty: ir.TypeI64, imm: 1 << 40,
			exp:         []string{"rexop1pu_iq#80b8"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "uextend.i32 from i16",
			mode: "i686", op: ir.OpcodeUextend, ty: ir.TypeI32, argTy: ir.TypeI16,
			exp:         []string{"op2urm_noflags#01b7"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "uextend.i64 from i8",
			mode: "x86_64", op: ir.OpcodeUextend, ty: ir.TypeI64, argTy: ir.TypeI8,
			exp:         []string{"rexop2urm_noflags#81b6"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "uextend.i64 from i32",
			mode: "x86_64", op: ir.OpcodeUextend, ty: ir.TypeI64, argTy: ir.TypeI32,
			exp:         []string{"rexop1umr#0089", "op1umr#0089"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "sextend.i64 from i32",
			mode: "x86_64", op: ir.OpcodeSextend, ty: ir.TypeI64, argTy: ir.TypeI32,
			exp:         []string{"rexop1urm#8063"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "sextend.i32 from i64",
			mode: "x86_64", op: ir.OpcodeSextend, ty: ir.TypeI32, argTy: ir.TypeI64,
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "brz.b1",
			mode: "x86_64", op: ir.OpcodeBrz, ty: ir.TypeB1,
			exp:         []string{"rexop1tjccb#0074", "op1tjccb#0074", "rexop1tjccd#0184", "op1tjccd#0184"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "brnz.i64",
			mode: "x86_64", op: ir.OpcodeBrnz, ty: ir.TypeI64,
			exp:         []string{"rexop1tjccb#8075", "rexop1tjccd#8185"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "fadd.f64",
			mode: "i686", op: ir.OpcodeFadd, ty: ir.TypeF64,
			exp:         []string{"mp2fa#0d58"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "f32const zero",
			mode: "x86_64", op: ir.OpcodeF32const, ty: ir.TypeF32,
			exp:         []string{"rexop2f32imm_z#0157", "op2f32imm_z#0157"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "f32const one",
			mode: "x86_64", op: ir.OpcodeF32const, ty: ir.TypeF32, imm: uint64(math.Float32bits(1)),
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "call",
			mode: "x86_64", op: ir.OpcodeCall,
			exp:         []string{"op1call_id#00e8"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "call pic",
			mode: "x86_64", enable: []string{"is_pic"}, op: ir.OpcodeCall,
			exp:         []string{"op1call_plt_id#00e8", "op1call_id#00e8"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "jump",
			mode: "i686", op: ir.OpcodeJump,
			exp:         []string{"op1jmpb#00eb", "op1jmpd#00e9"},
			expLegalize: isa.LegalizeExpand,
		},
		{
			name: "trap",
			mode: "x86_64", op: ir.OpcodeTrap,
			exp:         []string{"op2trap#010b"},
			expLegalize: isa.LegalizeExpand,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			target := newTarget(t, tc.mode, tc.enable...)
			argTy := tc.argTy
			if argTy == ir.TypeInvalid {
				argTy = tc.ty
			}
			fn, inst := newInst(tc.op, tc.ty, argTy, tc.imm)
			actual, legalize := legalEncodings(target, fn, inst, fn.CtrlTypevar(inst))
			require.Equal(t, tc.exp, actual)
			require.Equal(t, tc.expLegalize, legalize)

			// Encode returns the first legal encoding.
			enc, legalize, ok := isa.Encode(target, fn, inst, fn.CtrlTypevar(inst))
			require.Equal(t, len(tc.exp) > 0, ok)
			if ok {
				require.Equal(t, tc.exp[0], target.EncInfo().Display(enc))
			} else {
				require.Equal(t, tc.expLegalize, legalize)
			}
		})
	}
}

func TestTarget_RegClassForType(t *testing.T) {
	i686, x64 := newTarget(t, "i686"), newTarget(t, "x86_64")
	require.Equal(t, GPR8, i686.RegClassForType(ir.TypeI32))
	require.Equal(t, FPR8, i686.RegClassForType(ir.TypeF64))
	require.Equal(t, GPR, x64.RegClassForType(ir.TypeI64))
	require.Equal(t, GPR, x64.RegClassForType(ir.TypeB1))
	require.Equal(t, FPR, x64.RegClassForType(ir.TypeF32))
	require.PanicsWithValue(t, "BUG: x86_64 has no register class for invalid", func() {
		x64.RegClassForType(ir.TypeInvalid)
	})

	require.Equal(t, "x86_64", x64.Name())
	require.Equal(t, "rax", x64.RegInfo().UnitName(RAX))
	require.Equal(t, "xmm15", x64.RegInfo().UnitName(XMM15))
	require.Equal(t, "rflags", x64.RegInfo().UnitName(RFLAGS))
}

func TestBuilder_applyFeatures(t *testing.T) {
	b, err := NewBuilder("x86_64")
	require.NoError(t, err)
	require.NoError(t, b.applyFeatures(map[string]bool{
		"has_sse3": true, "has_ssse3": true, "has_sse41": true, "has_sse42": true,
		"has_popcnt": true, "has_avx": false,
	}))
	flags := b.Finish().Flags()
	require.True(t, flags.Has("use_popcnt"))
	require.False(t, flags.Has("has_avx"))

	require.Error(t, b.applyFeatures(map[string]bool{"has_sse5": true}))
}

func TestNativeBuilder(t *testing.T) {
	b, err := NativeBuilder()
	switch runtime.GOARCH {
	case "amd64", "386":
		require.NoError(t, err)
		target := b.Finish()
		require.Equal(t, hostFeatures()["has_popcnt"], target.Flags().Has("has_popcnt"))
	default:
		require.Error(t, err)
	}
}

func TestReferenceBytes(t *testing.T) {
	for _, mode := range []string{"i686", "x86_64"} {
		target := newTarget(t, mode, "haswell")
		for ty, insts := range refInsts {
			if mode == "i686" && ty == ir.TypeI64 {
				continue
			}
			for op := range insts {
				fn, inst := newInst(op, ty, ty, 0)
				enc, _, ok := isa.Encode(target, fn, inst, fn.CtrlTypevar(inst))
				require.True(t, ok, "%s %s.%s", mode, op, ty)

				ref, err := ReferenceBytes(op, ty)
				require.NoError(t, err)

				prefix := OpcodeBytes(enc.Bits())
				require.True(t, bytes.HasPrefix(ref, prefix), "%s %s.%s: % x is not a prefix of % x", mode, op, ty, prefix, ref)

				switch op {
				case ir.OpcodeIshl, ir.OpcodeUshr, ir.OpcodeSshr, ir.OpcodeRotl, ir.OpcodeRotr,
					ir.OpcodeX86Udivmodx, ir.OpcodeX86Sdivmodx:
					modrm := ref[len(prefix)]
					require.Equal(t, DecodeBits(enc.Bits()).RRR, int(modrm>>3)&7, "%s %s.%s", mode, op, ty)
				}
			}
		}
	}

	_, err := ReferenceBytes(ir.OpcodeIcmp, ir.TypeI32)
	require.EqualError(t, err, "no reference instruction for icmp.i32")
	require.False(t, HasReference(ir.OpcodeIcmp, ir.TypeI32))
	require.True(t, HasReference(ir.OpcodeIadd, ir.TypeI64))
}

func TestOpcodeBytes(t *testing.T) {
	tests := []struct {
		bits uint16
		exp  []byte
	}{
		{bits: op1(0x01), exp: []byte{0x01}},
		{bits: w(op1(0x01)), exp: []byte{0x48, 0x01}},
		{bits: op2(0xaf), exp: []byte{0x0f, 0xaf}},
		{bits: w(mp2(ppF3, 0xb8)), exp: []byte{0xf3, 0x48, 0x0f, 0xb8}},
		{bits: mp2(pp66, 0x57), exp: []byte{0x66, 0x0f, 0x57}},
		{bits: rrr(op1(0xf7), 6), exp: []byte{0xf7}},
	}

	for _, tc := range tests {
		require.Equal(t, tc.exp, OpcodeBytes(tc.bits), "%04x", tc.bits)
	}

	require.Equal(t, Bits{Opcode: 0xd3, RRR: 5, RexW: true}, DecodeBits(w(rrr(op1(0xd3), 5))))
	require.Equal(t, Bits{Opcode: 0x58, Map: map0F, Prefix: ppF2}, DecodeBits(mp2(ppF2, 0x58)))
}
