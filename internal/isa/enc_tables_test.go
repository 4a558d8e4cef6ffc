package isa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/encsel/internal/constanthash"
	"github.com/tetratelabs/encsel/internal/ir"
	"github.com/tetratelabs/encsel/internal/settings"
)

// Word helpers for hand written encoding lists. The test tables have three
// recipes, so legalize words start at 6.
func recipeWord(r int, last bool) EncListEntry {
	w := EncListEntry(r << 1)
	if last {
		w |= 1
	}
	return w
}

func legalizeWord(code int) EncListEntry { return EncListEntry(2*3 + code) }

func predWord(pred, skip int) EncListEntry {
	return EncListEntry(PredStart + skip<<PredBits + pred)
}

const (
	instPredImmZero = 0
	instPredPoison  = 1
	isaPred0        = 2
	isaPred1        = 3
)

func buildLevel2(entries []Level2Entry) Level2Table {
	slots := constanthash.Generate(len(entries), func(i int) uint32 { return uint32(entries[i].Opcode) })
	ret := make(Level2Table, len(slots))
	for s, i := range slots {
		if i >= 0 {
			ret[s] = entries[i]
		}
	}
	return ret
}

func buildLevel1(entries []Level1Entry, missLegalize LegalizeCode) Level1Table {
	slots := constanthash.Generate(len(entries), func(i int) uint32 { return uint32(entries[i].Type.Index()) })
	ret := make(Level1Table, len(slots))
	for s, i := range slots {
		if i >= 0 {
			ret[s] = entries[i]
		} else {
			ret[s] = Level1Entry{Log2Len: Level1Empty, Legalize: missLegalize}
		}
	}
	return ret
}

// testTables returns the tables of a fictional target:
//
//	i32: iadd, isub, imul, band, popcnt, clz with the lists below
//	i64: no window, narrow
//	no controlling type: trap
//	other types: widen
func testTables() (Level1Table, *EncodingTables) {
	encLists := []EncListEntry{
		// 0: iadd
		recipeWord(0, false), 0x10,
		recipeWord(1, true), 0x11,
		// 4: isub
		predWord(isaPred0, 2),
		recipeWord(0, false), 0x20,
		predWord(isaPred1, 0),
		recipeWord(1, true), 0x21,
		// 10: imul
		recipeWord(0, false), 0x30,
		legalizeWord(1),
		// 13: band
		predWord(instPredImmZero, 0),
		recipeWord(2, true), 0x40,
		// 16: popcnt
		predWord(isaPred0, 3),
		predWord(instPredPoison, 0),
		recipeWord(0, true), 0x50,
		recipeWord(1, true), 0x51,
		// 22: clz
		legalizeWord(3),
	}

	i32 := buildLevel2([]Level2Entry{
		{Opcode: ir.OpcodeIadd, Offset: 0},
		{Opcode: ir.OpcodeIsub, Offset: 4},
		{Opcode: ir.OpcodeImul, Offset: 10},
		{Opcode: ir.OpcodeBand, Offset: 13},
		{Opcode: ir.OpcodePopcnt, Offset: 16},
		{Opcode: ir.OpcodeClz, Offset: 22},
	})
	nonPoly := buildLevel2([]Level2Entry{{Opcode: ir.OpcodeTrap, Offset: 0}})
	level2 := append(append(Level2Table{}, i32...), nonPoly...)

	level1 := buildLevel1([]Level1Entry{
		{Type: ir.TypeI32, Log2Len: 3, Legalize: 0, Offset: 0},
		{Type: ir.TypeI64, Log2Len: 0, Legalize: 1, Offset: encListNotFound},
		{Type: ir.TypeInvalid, Log2Len: 1, Legalize: 0, Offset: uint32(len(i32))},
	}, 2)

	return level1, &EncodingTables{
		Level2:          level2,
		EncLists:        encLists,
		LegalizeActions: []Legalize{LegalizeExpand, LegalizeNarrow, LegalizeWiden, LegalizeX86Expand},
		RecipePredicates: []RecipePredicate{
			nil,
			nil,
			func(isaPreds settings.PredicateView, _ *ir.Instruction) bool { return isaPreds.Test(1) },
		},
		InstPredicates: []InstPredicate{
			func(_ *ir.Function, inst *ir.Instruction) bool { return inst.Imm() == 0 },
			func(*ir.Function, *ir.Instruction) bool { panic("poison") },
		},
	}
}

func testInst(op ir.Opcode, ty ir.Type, imm uint64) (*ir.Function, *ir.Instruction) {
	fn := ir.NewFunction("f")
	blk := fn.AddBlock()
	if !op.IsPolymorphic() {
		return fn, fn.Ins(blk, op, ty)
	}
	v := fn.Param(ty)
	return fn, fn.Ins(blk, op, ty, v, v).WithImm(imm)
}

func collect(encs Encodings) ([]Encoding, Legalize) {
	var ret []Encoding
	for {
		enc, ok := encs.Next()
		if !ok {
			break
		}
		ret = append(ret, enc)
	}
	return ret, encs.Legalize()
}

func TestLookupEncList(t *testing.T) {
	level1, tables := testTables()

	tests := []struct {
		name        string
		op          ir.Opcode
		ty          ir.Type
		imm         uint64
		isaPreds    settings.PredicateView
		exp         []Encoding
		expLegalize Legalize
	}{
		{
			name:        "iadd.i32",
			op:          ir.OpcodeIadd,
			ty:          ir.TypeI32,
			exp:         []Encoding{NewEncoding(0, 0x10), NewEncoding(1, 0x11)},
			expLegalize: LegalizeExpand,
		},
		{
			name:        "isub.i32 both guards hold",
			op:          ir.OpcodeIsub,
			ty:          ir.TypeI32,
			isaPreds:    settings.PredicateView{0b11},
			exp:         []Encoding{NewEncoding(0, 0x20), NewEncoding(1, 0x21)},
			expLegalize: LegalizeExpand,
		},
		{
			name:        "isub.i32 first guard skips its group",
			op:          ir.OpcodeIsub,
			ty:          ir.TypeI32,
			isaPreds:    settings.PredicateView{0b10},
			exp:         []Encoding{NewEncoding(1, 0x21)},
			expLegalize: LegalizeExpand,
		},
		{
			name:        "isub.i32 last guard stops",
			op:          ir.OpcodeIsub,
			ty:          ir.TypeI32,
			isaPreds:    settings.PredicateView{0b01},
			exp:         []Encoding{NewEncoding(0, 0x20)},
			expLegalize: LegalizeExpand,
		},
		{
			name:        "isub.i32 no guard holds",
			op:          ir.OpcodeIsub,
			ty:          ir.TypeI32,
			isaPreds:    settings.PredicateView{0},
			expLegalize: LegalizeExpand,
		},
		{
			name:        "imul.i32 custom legalize",
			op:          ir.OpcodeImul,
			ty:          ir.TypeI32,
			exp:         []Encoding{NewEncoding(0, 0x30)},
			expLegalize: LegalizeNarrow,
		},
		{
			name:        "band.i32 recipe predicate holds",
			op:          ir.OpcodeBand,
			ty:          ir.TypeI32,
			isaPreds:    settings.PredicateView{0b10},
			exp:         []Encoding{NewEncoding(2, 0x40)},
			expLegalize: LegalizeExpand,
		},
		{
			name:        "band.i32 last recipe fails",
			op:          ir.OpcodeBand,
			ty:          ir.TypeI32,
			isaPreds:    settings.PredicateView{0},
			expLegalize: LegalizeExpand,
		},
		{
			name:        "band.i32 instruction predicate fails",
			op:          ir.OpcodeBand,
			ty:          ir.TypeI32,
			imm:         1,
			isaPreds:    settings.PredicateView{0b10},
			expLegalize: LegalizeExpand,
		},
		{
			name:        "popcnt.i32 skips without evaluating",
			op:          ir.OpcodePopcnt,
			ty:          ir.TypeI32,
			isaPreds:    settings.PredicateView{0},
			exp:         []Encoding{NewEncoding(1, 0x51)},
			expLegalize: LegalizeExpand,
		},
		{
			name:        "clz.i32 legalize only",
			op:          ir.OpcodeClz,
			ty:          ir.TypeI32,
			expLegalize: LegalizeX86Expand,
		},
		{
			name:        "opcode missing from level 2",
			op:          ir.OpcodeFadd,
			ty:          ir.TypeI32,
			expLegalize: LegalizeExpand,
		},
		{
			name:        "iadd.i64 out of bounds window",
			op:          ir.OpcodeIadd,
			ty:          ir.TypeI64,
			expLegalize: LegalizeNarrow,
		},
		{
			name:        "popcnt.i64 out of bounds window",
			op:          ir.OpcodePopcnt,
			ty:          ir.TypeI64,
			expLegalize: LegalizeNarrow,
		},
		{
			name:        "type missing from level 1",
			op:          ir.OpcodeIadd,
			ty:          ir.TypeF64,
			expLegalize: LegalizeWiden,
		},
		{
			name:        "non polymorphic",
			op:          ir.OpcodeTrap,
			ty:          ir.TypeInvalid,
			exp:         []Encoding{NewEncoding(0, 0x10), NewEncoding(1, 0x11)},
			expLegalize: LegalizeExpand,
		},
		{
			name:        "non polymorphic missing",
			op:          ir.OpcodeReturn,
			ty:          ir.TypeInvalid,
			expLegalize: LegalizeExpand,
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			isaPreds := tc.isaPreds
			if isaPreds == nil {
				isaPreds = settings.PredicateView{0}
			}
			fn, inst := testInst(tc.op, tc.ty, tc.imm)
			encs, legalize := collect(LookupEncList(tc.ty, inst, fn, level1, tables, isaPreds))
			require.Equal(t, tc.exp, encs)
			require.Equal(t, tc.expLegalize, legalize)

			// The same inputs always give the same result.
			encs2, legalize2 := collect(LookupEncList(tc.ty, inst, fn, level1, tables, isaPreds))
			require.Equal(t, encs, encs2)
			require.Equal(t, legalize, legalize2)
		})
	}
}

func TestLookupEncList_guardEvaluated(t *testing.T) {
	level1, tables := testTables()
	fn, inst := testInst(ir.OpcodePopcnt, ir.TypeI32, 0)
	encs := LookupEncList(ir.TypeI32, inst, fn, level1, tables, settings.PredicateView{0b01})
	require.PanicsWithValue(t, "poison", func() { encs.Next() })
}

func TestEncodings_exhausted(t *testing.T) {
	level1, tables := testTables()
	fn, inst := testInst(ir.OpcodeImul, ir.TypeI32, 0)
	encs := LookupEncList(ir.TypeI32, inst, fn, level1, tables, settings.PredicateView{0})

	enc, ok := encs.Next()
	require.True(t, ok)
	require.Equal(t, NewEncoding(0, 0x30), enc)
	require.Panics(t, func() { encs.Legalize() })

	for i := 0; i < 3; i++ {
		enc, ok = encs.Next()
		require.False(t, ok)
		require.Equal(t, EncodingInvalid, enc)
	}
	require.Equal(t, LegalizeCode(1), encs.LegalizeCode())
	require.Equal(t, LegalizeNarrow, encs.Legalize())
}

func TestEncodings_runsOffTheEnd(t *testing.T) {
	level1, tables := testTables()
	// The clz list is the last one: a passing predicate moves past encLists.
	tables.EncLists[22] = predWord(isaPred0, 0)
	require.Error(t, ValidateTables(level1, tables, 2))

	fn, inst := testInst(ir.OpcodeClz, ir.TypeI32, 0)
	encs := LookupEncList(ir.TypeI32, inst, fn, level1, tables, settings.PredicateView{0b01})
	enc, ok := encs.Next()
	require.False(t, ok)
	require.Equal(t, EncodingInvalid, enc)
	// The default legalize code of i32 is kept.
	require.Equal(t, LegalizeExpand, encs.Legalize())
}

func TestEncoding(t *testing.T) {
	enc := NewEncoding(3, 0x1f)
	require.Equal(t, 3, enc.Recipe())
	require.Equal(t, uint16(0x1f), enc.Bits())
	require.True(t, enc.IsLegal())
	require.Equal(t, "#3/001f", enc.String())
	require.False(t, EncodingInvalid.IsLegal())
	require.Equal(t, "-", EncodingInvalid.String())
}

func TestLegalize_String(t *testing.T) {
	require.Equal(t, "expand", LegalizeExpand.String())
	require.Equal(t, "narrow", LegalizeNarrow.String())
	require.Equal(t, "widen", LegalizeWiden.String())
	require.Equal(t, "x86_expand", LegalizeX86Expand.String())
	require.Equal(t, "legalize(9)", Legalize(9).String())
}
