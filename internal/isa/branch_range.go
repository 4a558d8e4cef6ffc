package isa

// BranchRange describes the range of a relative branch displacement.
type BranchRange struct {
	// Origin is the offset of the point the displacement is relative to,
	// measured from the start of the branch instruction.
	Origin uint8
	// Bits is the number of bits of the signed displacement field.
	Bits uint8
}

// Contains returns true if a branch at offset branch can reach dest.
//
// The displacement is computed with 32 bit wrapping arithmetic, so distances
// which don't fit 32 bits are not detected.
func (r BranchRange) Contains(branch, dest CodeOffset) bool {
	d := int32(dest - (branch + CodeOffset(r.Origin)))
	s := 32 - uint32(r.Bits)
	return d == d<<s>>s
}
