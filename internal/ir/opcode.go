package ir

// Opcode represents an instruction mnemonic.
type Opcode uint16

const (
	// OpcodeInvalid is the zero Opcode. Generated tables use it to mark empty buckets.
	OpcodeInvalid Opcode = iota

	// OpcodeJump unconditionally jumps to the target block: `jump blk`.
	OpcodeJump
	// OpcodeBrz branches to the target block if `c` is zero: `brz c, blk`.
	OpcodeBrz
	// OpcodeBrnz branches to the target block if `c` is not zero: `brnz c, blk`.
	OpcodeBrnz
	// OpcodeReturn returns from the function: `return rvals`.
	OpcodeReturn
	// OpcodeCall calls a function: `rvals = call FN, args`.
	OpcodeCall
	// OpcodeTrap terminates execution unconditionally.
	OpcodeTrap
	// OpcodeDebugtrap stops in the debugger.
	OpcodeDebugtrap

	// OpcodeIconst: `v = iconst N`.
	OpcodeIconst
	// OpcodeF32const: `v = f32const N`.
	OpcodeF32const
	// OpcodeF64const: `v = f64const N`.
	OpcodeF64const

	// OpcodeCopy: `v = copy x`.
	OpcodeCopy
	// OpcodeSpill copies a register value into a stack slot: `v = spill x`.
	OpcodeSpill
	// OpcodeFill copies a stack slot value into a register: `v = fill x`.
	OpcodeFill
	// OpcodeRegmove moves a value between registers without producing a new value.
	OpcodeRegmove

	// OpcodeIadd: `v = iadd x, y`.
	OpcodeIadd
	// OpcodeIsub: `v = isub x, y`.
	OpcodeIsub
	// OpcodeImul: `v = imul x, y`.
	OpcodeImul
	// OpcodeUdiv: `v = udiv x, y`.
	OpcodeUdiv
	// OpcodeSdiv: `v = sdiv x, y`.
	OpcodeSdiv
	// OpcodeBand: `v = band x, y`.
	OpcodeBand
	// OpcodeBor: `v = bor x, y`.
	OpcodeBor
	// OpcodeBxor: `v = bxor x, y`.
	OpcodeBxor
	// OpcodeIaddImm: `v = iadd_imm x, N`.
	OpcodeIaddImm
	// OpcodeBandImm: `v = band_imm x, N`.
	OpcodeBandImm
	// OpcodeIshl: `v = ishl x, amount`.
	OpcodeIshl
	// OpcodeUshr: `v = ushr x, amount`.
	OpcodeUshr
	// OpcodeSshr: `v = sshr x, amount`.
	OpcodeSshr
	// OpcodeRotl: `v = rotl x, amount`.
	OpcodeRotl
	// OpcodeRotr: `v = rotr x, amount`.
	OpcodeRotr
	// OpcodePopcnt: `v = popcnt x`.
	OpcodePopcnt
	// OpcodeClz: `v = clz x`.
	OpcodeClz
	// OpcodeCtz: `v = ctz x`.
	OpcodeCtz
	// OpcodeIcmp compares two integers: `b = icmp cond, x, y`.
	OpcodeIcmp

	// OpcodeLoad: `v = load ptr+offset`.
	OpcodeLoad
	// OpcodeStore: `store x, ptr+offset`.
	OpcodeStore

	// OpcodeUextend zero-extends x: `v = uextend x`.
	OpcodeUextend
	// OpcodeSextend sign-extends x: `v = sextend x`.
	OpcodeSextend
	// OpcodeIreduce truncates x: `v = ireduce x`.
	OpcodeIreduce

	// OpcodeFadd: `v = fadd x, y`.
	OpcodeFadd
	// OpcodeFsub: `v = fsub x, y`.
	OpcodeFsub
	// OpcodeFmul: `v = fmul x, y`.
	OpcodeFmul
	// OpcodeFdiv: `v = fdiv x, y`.
	OpcodeFdiv
	// OpcodeSqrt: `v = sqrt x`.
	OpcodeSqrt

	// OpcodeX86Udivmodx is the x86 unsigned division: `q, r = x86_udivmodx lo, hi, d`.
	OpcodeX86Udivmodx
	// OpcodeX86Sdivmodx is the x86 signed division: `q, r = x86_sdivmodx lo, hi, d`.
	OpcodeX86Sdivmodx

	opcodeEnd
)

// NumOpcodes is the number of opcodes, including OpcodeInvalid.
const NumOpcodes = int(opcodeEnd)

type opcodeInfo struct {
	name string
	// polymorphic is true if the opcode has a controlling type variable.
	polymorphic bool
	// results is the number of results produced by the instruction.
	results int
	// boolResult is true if the results are booleans regardless of the controlling type.
	boolResult bool
}

var opcodeInfos = [opcodeEnd]opcodeInfo{
	OpcodeInvalid:     {name: "invalid"},
	OpcodeJump:        {name: "jump"},
	OpcodeBrz:         {name: "brz", polymorphic: true},
	OpcodeBrnz:        {name: "brnz", polymorphic: true},
	OpcodeReturn:      {name: "return"},
	OpcodeCall:        {name: "call"},
	OpcodeTrap:        {name: "trap"},
	OpcodeDebugtrap:   {name: "debugtrap"},
	OpcodeIconst:      {name: "iconst", polymorphic: true, results: 1},
	OpcodeF32const:    {name: "f32const", polymorphic: true, results: 1},
	OpcodeF64const:    {name: "f64const", polymorphic: true, results: 1},
	OpcodeCopy:        {name: "copy", polymorphic: true, results: 1},
	OpcodeSpill:       {name: "spill", polymorphic: true, results: 1},
	OpcodeFill:        {name: "fill", polymorphic: true, results: 1},
	OpcodeRegmove:     {name: "regmove", polymorphic: true},
	OpcodeIadd:        {name: "iadd", polymorphic: true, results: 1},
	OpcodeIsub:        {name: "isub", polymorphic: true, results: 1},
	OpcodeImul:        {name: "imul", polymorphic: true, results: 1},
	OpcodeUdiv:        {name: "udiv", polymorphic: true, results: 1},
	OpcodeSdiv:        {name: "sdiv", polymorphic: true, results: 1},
	OpcodeBand:        {name: "band", polymorphic: true, results: 1},
	OpcodeBor:         {name: "bor", polymorphic: true, results: 1},
	OpcodeBxor:        {name: "bxor", polymorphic: true, results: 1},
	OpcodeIaddImm:     {name: "iadd_imm", polymorphic: true, results: 1},
	OpcodeBandImm:     {name: "band_imm", polymorphic: true, results: 1},
	OpcodeIshl:        {name: "ishl", polymorphic: true, results: 1},
	OpcodeUshr:        {name: "ushr", polymorphic: true, results: 1},
	OpcodeSshr:        {name: "sshr", polymorphic: true, results: 1},
	OpcodeRotl:        {name: "rotl", polymorphic: true, results: 1},
	OpcodeRotr:        {name: "rotr", polymorphic: true, results: 1},
	OpcodePopcnt:      {name: "popcnt", polymorphic: true, results: 1},
	OpcodeClz:         {name: "clz", polymorphic: true, results: 1},
	OpcodeCtz:         {name: "ctz", polymorphic: true, results: 1},
	OpcodeIcmp:        {name: "icmp", polymorphic: true, results: 1, boolResult: true},
	OpcodeLoad:        {name: "load", polymorphic: true, results: 1},
	OpcodeStore:       {name: "store", polymorphic: true},
	OpcodeUextend:     {name: "uextend", polymorphic: true, results: 1},
	OpcodeSextend:     {name: "sextend", polymorphic: true, results: 1},
	OpcodeIreduce:     {name: "ireduce", polymorphic: true, results: 1},
	OpcodeFadd:        {name: "fadd", polymorphic: true, results: 1},
	OpcodeFsub:        {name: "fsub", polymorphic: true, results: 1},
	OpcodeFmul:        {name: "fmul", polymorphic: true, results: 1},
	OpcodeFdiv:        {name: "fdiv", polymorphic: true, results: 1},
	OpcodeSqrt:        {name: "sqrt", polymorphic: true, results: 1},
	OpcodeX86Udivmodx: {name: "x86_udivmodx", polymorphic: true, results: 2},
	OpcodeX86Sdivmodx: {name: "x86_sdivmodx", polymorphic: true, results: 2},
}

// String implements fmt.Stringer.
func (o Opcode) String() string {
	if o < opcodeEnd {
		return opcodeInfos[o].name
	}
	return "invalid"
}

// OpcodeByName returns the Opcode whose mnemonic is s, e.g. "iadd".
func OpcodeByName(s string) (Opcode, bool) {
	for o := OpcodeJump; o < opcodeEnd; o++ {
		if opcodeInfos[o].name == s {
			return o, true
		}
	}
	return OpcodeInvalid, false
}

// IsPolymorphic returns true if instructions with this opcode have a controlling type variable.
func (o Opcode) IsPolymorphic() bool {
	return o < opcodeEnd && opcodeInfos[o].polymorphic
}

// IsBranch returns true if this opcode transfers control to a block.
func (o Opcode) IsBranch() bool {
	switch o {
	case OpcodeJump, OpcodeBrz, OpcodeBrnz:
		return true
	default:
		return false
	}
}
