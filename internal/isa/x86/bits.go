package x86

// Encoding bits of x86 recipes:
//
//	bits 0-7:   opcode byte
//	bits 8-9:   opcode map: none, 0F, 0F38, 0F3A
//	bits 10-11: mandatory prefix: none, 66, F3, F2
//	bits 12-14: ModRM.reg opcode extension
//	bit 15:     REX.W
const (
	mapNone = iota
	map0F
	map0F38
	map0F3A
)

const (
	ppNone = iota
	pp66
	ppF3
	ppF2
)

// op1 returns the bits of a one byte opcode.
func op1(opcode byte) uint16 {
	return uint16(opcode)
}

// op2 returns the bits of a 0F prefixed opcode.
func op2(opcode byte) uint16 {
	return uint16(opcode) | map0F<<8
}

// mp2 returns the bits of a 0F prefixed opcode with a mandatory prefix.
func mp2(pp int, opcode byte) uint16 {
	return op2(opcode) | uint16(pp)<<10
}

// rrr sets the ModRM.reg opcode extension.
func rrr(bits uint16, r int) uint16 {
	return bits | uint16(r&7)<<12
}

// w sets REX.W.
func w(bits uint16) uint16 {
	return bits | 1<<15
}

// Bits is the decoded form of the encoding bits of x86 recipes.
type Bits struct {
	Opcode byte
	Map    int
	Prefix int
	RRR    int
	RexW   bool
}

// DecodeBits decodes the encoding bits of an x86 encoding.
func DecodeBits(bits uint16) Bits {
	return Bits{
		Opcode: byte(bits),
		Map:    int(bits>>8) & 3,
		Prefix: int(bits>>10) & 3,
		RRR:    int(bits>>12) & 7,
		RexW:   bits&(1<<15) != 0,
	}
}

var (
	prefixBytes = [4][]byte{nil, {0x66}, {0xf3}, {0xf2}}
	mapBytes    = [4][]byte{nil, {0x0f}, {0x0f, 0x38}, {0x0f, 0x3a}}
)

// OpcodeBytes returns the bytes emitted for the given bits before the ModRM
// byte: the mandatory prefix, REX.W when set, the opcode map and the opcode.
// REX bits for extended registers are operand specific and not included.
func OpcodeBytes(bits uint16) []byte {
	b := DecodeBits(bits)
	var ret []byte
	ret = append(ret, prefixBytes[b.Prefix]...)
	if b.RexW {
		ret = append(ret, 0x48)
	}
	ret = append(ret, mapBytes[b.Map]...)
	return append(ret, b.Opcode)
}
