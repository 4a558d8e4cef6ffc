package x86

import (
	"github.com/tetratelabs/encsel/internal/ir"
	"github.com/tetratelabs/encsel/internal/isa"
	"github.com/tetratelabs/encsel/internal/settings"
)

// recipeID is the index of a recipe in recipes.
//
// Recipes which can't address registers needing REX are immediately followed
// by their REX variant, see rex.
type recipeID int

const (
	recOp1rr recipeID = iota
	recRexOp1rr
	recOp2rrx
	recRexOp2rrx
	recOp1rib
	recRexOp1rib
	recOp1rid
	recRexOp1rid
	recOp1rc
	recRexOp1rc
	recMp2urm
	recRexMp2urm
	recOp1div
	recRexOp1div
	recOp1icscc
	recRexOp1icscc
	recOp1puid
	recRexOp1puid
	recOp1umr
	recRexOp1umr
	recOp1urm
	recRexOp1urm
	recOp1rmov
	recRexOp1rmov
	recOp2urmNoflags
	recRexOp2urmNoflags
	recOp1ld
	recRexOp1ld
	recOp1st
	recRexOp1st
	recOp1spillSib32
	recRexOp1spillSib32
	recOp1fillSib32
	recRexOp1fillSib32
	recMp2fa
	recRexMp2fa
	recMp2furm
	recRexMp2furm
	recOp2furm
	recRexOp2furm
	recMp2fld
	recRexMp2fld
	recMp2fst
	recRexMp2fst
	recMp2fspillSib32
	recRexMp2fspillSib32
	recMp2ffillSib32
	recRexMp2ffillSib32
	recOp2f32immZ
	recRexOp2f32immZ
	recMp2f64immZ
	recRexMp2f64immZ
	recOp1tjccb
	recRexOp1tjccb
	recOp1tjccd
	recRexOp1tjccd
	recRexOp1puiq
	recOp1jmpb
	recOp1jmpd
	recOp1callid
	recOp1callpltid
	recOp1ret
	recOp2trap
	recOp1debugtrap

	numRecipes
)

// rex returns the REX variant of r.
func rex(r recipeID) recipeID {
	return r + 1
}

// recipe describes how an encoding emits machine code.
type recipe struct {
	name      string
	ins, outs []isa.OperandConstraint
	// size is the number of bytes emitted, including the immediate or displacement.
	size   uint8
	branch *isa.BranchRange
	pred   isa.RecipePredicate
}

// withRex returns the REX variant of r. REX takes one byte and gives access
// to all the registers of the wide classes.
func (r recipe) withRex() recipe {
	ret := recipe{
		name: "rex" + r.name,
		ins:  widen(r.ins),
		outs: widen(r.outs),
		size: r.size + 1,
		pred: r.pred,
	}
	if r.branch != nil {
		ret.branch = &isa.BranchRange{Origin: r.branch.Origin + 1, Bits: r.branch.Bits}
	}
	return ret
}

func widen(cs []isa.OperandConstraint) []isa.OperandConstraint {
	if cs == nil {
		return nil
	}
	ret := make([]isa.OperandConstraint, len(cs))
	for i, c := range cs {
		switch c.RegClass {
		case GPR8, ABCD:
			c.RegClass = GPR
		case FPR8:
			c.RegClass = FPR
		}
		ret[i] = c
	}
	return ret
}

func ops(cs ...isa.OperandConstraint) []isa.OperandConstraint { return cs }

// isImm8 is true if the immediate fits a sign extended byte.
func isImm8(_ settings.PredicateView, inst *ir.Instruction) bool {
	v := inst.ImmSigned()
	return v == int64(int8(v))
}

// isImm32 is true if the immediate fits a sign extended 32 bit word.
func isImm32(_ settings.PredicateView, inst *ir.Instruction) bool {
	v := inst.ImmSigned()
	return v == int64(int32(v))
}

var recipes = buildRecipes()

func buildRecipes() (recipes [numRecipes]recipe) {
	gpr, gprTied, fpr, fprTied := isa.RegOperand(GPR8), isa.TiedOperand(GPR8, 0), isa.RegOperand(FPR8), isa.TiedOperand(FPR8, 0)

	pairs := map[recipeID]recipe{
		// Binary operations with the destination tied to the first operand: `op r/m, r`.
		recOp1rr: {name: "op1rr", ins: ops(gprTied, gpr), outs: ops(gprTied), size: 2},
		// `op r, r/m` with a two byte opcode.
		recOp2rrx: {name: "op2rrx", ins: ops(gprTied, gpr), outs: ops(gprTied), size: 3},
		recOp1rib: {name: "op1r_ib", ins: ops(gprTied), outs: ops(gprTied), size: 3, pred: isImm8},
		recOp1rid: {name: "op1r_id", ins: ops(gprTied), outs: ops(gprTied), size: 6, pred: isImm32},
		// Shifts and rotates by CL.
		recOp1rc: {name: "op1rc", ins: ops(gprTied, isa.FixedRegOperand(GPR8, RCX)), outs: ops(gprTied), size: 2},
		recMp2urm: {name: "mp2urm", ins: ops(gpr), outs: ops(gpr), size: 4},
		// Division of rdx:rax, with the quotient in rax and the remainder in rdx.
		recOp1div: {
			name: "op1div",
			ins:  ops(isa.FixedRegOperand(GPR8, RAX), isa.FixedRegOperand(GPR8, RDX), gpr),
			outs: ops(isa.FixedRegOperand(GPR8, RAX), isa.FixedRegOperand(GPR8, RDX)),
			size: 2,
		},
		// cmp, setcc and movzx. setcc needs a byte register.
		recOp1icscc: {name: "op1icscc", ins: ops(gpr, gpr), outs: ops(isa.RegOperand(ABCD)), size: 8},
		recOp1puid:  {name: "op1pu_id", outs: ops(gpr), size: 5},
		recOp1umr:   {name: "op1umr", ins: ops(gpr), outs: ops(gpr), size: 2},
		recOp1urm:   {name: "op1urm", ins: ops(gpr), outs: ops(gpr), size: 2},
		recOp1rmov:  {name: "op1rmov", ins: ops(gpr), size: 2},
		// movzx and movsx.
		recOp2urmNoflags: {name: "op2urm_noflags", ins: ops(gpr), outs: ops(gpr), size: 3},
		recOp1ld:         {name: "op1ld", ins: ops(gpr), outs: ops(gpr), size: 6},
		recOp1st:         {name: "op1st", ins: ops(gpr, gpr), size: 6},
		recOp1spillSib32: {name: "op1spillSib32", ins: ops(gpr), outs: ops(isa.StackOperand(GPR8)), size: 7},
		recOp1fillSib32:  {name: "op1fillSib32", ins: ops(isa.StackOperand(GPR8)), outs: ops(gpr), size: 7},

		recMp2fa:          {name: "mp2fa", ins: ops(fprTied, fpr), outs: ops(fprTied), size: 4},
		recMp2furm:        {name: "mp2furm", ins: ops(fpr), outs: ops(fpr), size: 4},
		recOp2furm:        {name: "op2furm", ins: ops(fpr), outs: ops(fpr), size: 3},
		recMp2fld:         {name: "mp2fld", ins: ops(gpr), outs: ops(fpr), size: 8},
		recMp2fst:         {name: "mp2fst", ins: ops(fpr, gpr), size: 8},
		recMp2fspillSib32: {name: "mp2fspillSib32", ins: ops(fpr), outs: ops(isa.StackOperand(FPR8)), size: 9},
		recMp2ffillSib32:  {name: "mp2ffillSib32", ins: ops(isa.StackOperand(FPR8)), outs: ops(fpr), size: 9},
		// Zero float constants are materialized with xorps/xorpd.
		recOp2f32immZ: {name: "op2f32imm_z", outs: ops(fpr), size: 3},
		recMp2f64immZ: {name: "mp2f64imm_z", outs: ops(fpr), size: 4},

		// test and a conditional branch.
		recOp1tjccb: {name: "op1tjccb", ins: ops(gpr), size: 4, branch: &isa.BranchRange{Origin: 4, Bits: 8}},
		recOp1tjccd: {name: "op1tjccd", ins: ops(gpr), size: 8, branch: &isa.BranchRange{Origin: 8, Bits: 32}},
	}
	for id, r := range pairs {
		recipes[id] = r
		recipes[rex(id)] = r.withRex()
	}

	recipes[recRexOp1puiq] = recipe{name: "rexop1pu_iq", outs: ops(isa.RegOperand(GPR)), size: 10}
	recipes[recOp1jmpb] = recipe{name: "op1jmpb", size: 2, branch: &isa.BranchRange{Origin: 2, Bits: 8}}
	recipes[recOp1jmpd] = recipe{name: "op1jmpd", size: 5, branch: &isa.BranchRange{Origin: 5, Bits: 32}}
	// Call arguments follow the calling convention.
	recipes[recOp1callid] = recipe{name: "op1call_id", size: 5}
	recipes[recOp1callpltid] = recipe{name: "op1call_plt_id", size: 5}
	recipes[recOp1ret] = recipe{name: "op1ret", size: 1}
	recipes[recOp2trap] = recipe{name: "op2trap", size: 2}
	recipes[recOp1debugtrap] = recipe{name: "op1debugtrap", size: 1}
	return
}

func newEncInfo() isa.EncInfo {
	ei := isa.EncInfo{
		Constraints: make([]isa.RecipeConstraints, numRecipes),
		Sizing:      make([]isa.RecipeSizing, numRecipes),
		Names:       make([]string, numRecipes),
	}
	for i := range recipes {
		r := &recipes[i]
		ei.Constraints[i] = isa.NewRecipeConstraints(r.ins, r.outs)
		ei.Sizing[i] = isa.RecipeSizing{BaseSize: r.size, BranchRange: r.branch}
		ei.Names[i] = r.name
	}
	return ei
}

func recipePredicates() []isa.RecipePredicate {
	ret := make([]isa.RecipePredicate, numRecipes)
	for i := range recipes {
		ret[i] = recipes[i].pred
	}
	return ret
}
