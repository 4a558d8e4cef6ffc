package x86

import "github.com/tetratelabs/encsel/internal/isa"

// Register units.
const (
	RAX isa.RegUnit = iota
	RCX
	RDX
	RBX
	RSP
	RBP
	RSI
	RDI
	R8
	R9
	R10
	R11
	R12
	R13
	R14
	R15
	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM8
	XMM9
	XMM10
	XMM11
	XMM12
	XMM13
	XMM14
	XMM15
	RFLAGS
)

var (
	// GPR holds the general purpose registers.
	GPR = &isa.RegClassData{Name: "GPR", Index: 0, Bank: 0, Mask: unitRange(RAX, R15)}
	// GPR8 holds the general purpose registers which don't need REX.
	GPR8 = &isa.RegClassData{Name: "GPR8", Index: 1, Bank: 0, Mask: unitRange(RAX, RDI)}
	// ABCD holds the registers whose low byte is addressable without REX.
	ABCD = &isa.RegClassData{Name: "ABCD", Index: 2, Bank: 0, Mask: unitRange(RAX, RBX)}
	// FPR holds the SSE registers.
	FPR = &isa.RegClassData{Name: "FPR", Index: 3, Bank: 1, Mask: unitRange(XMM0, XMM15)}
	// FPR8 holds the SSE registers which don't need REX.
	FPR8 = &isa.RegClassData{Name: "FPR8", Index: 4, Bank: 1, Mask: unitRange(XMM0, XMM7)}
	// FLAG holds the flags register.
	FLAG = &isa.RegClassData{Name: "FLAG", Index: 5, Bank: 2, Mask: isa.NewRegSet(RFLAGS)}
)

var regInfo = isa.RegInfo{
	Banks: []isa.RegBank{
		{
			Name:      "IntRegs",
			FirstUnit: RAX,
			Names: []string{
				"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
				"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
			},
		},
		{
			Name:      "FloatRegs",
			FirstUnit: XMM0,
			Names: []string{
				"xmm0", "xmm1", "xmm2", "xmm3", "xmm4", "xmm5", "xmm6", "xmm7",
				"xmm8", "xmm9", "xmm10", "xmm11", "xmm12", "xmm13", "xmm14", "xmm15",
			},
		},
		{Name: "FlagRegs", FirstUnit: RFLAGS, Names: []string{"rflags"}},
	},
	Classes: []*isa.RegClassData{GPR, GPR8, ABCD, FPR, FPR8, FLAG},
}

func unitRange(first, last isa.RegUnit) isa.RegSet {
	var ret isa.RegSet
	for u := first; u <= last; u++ {
		ret = ret.Add(u)
	}
	return ret
}
