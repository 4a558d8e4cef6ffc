package isa

import (
	"fmt"
	"math"
)

// Encoding is the result of encoding selection: a recipe and the bits
// the recipe combines with the operands to produce machine code.
type Encoding struct {
	recipe uint16
	bits   uint16
}

// EncodingInvalid is the Encoding of instructions which have none yet.
var EncodingInvalid = Encoding{recipe: math.MaxUint16}

// NewEncoding returns the Encoding of the given recipe and bits.
func NewEncoding(recipe int, bits uint16) Encoding {
	return Encoding{recipe: uint16(recipe), bits: bits}
}

// Recipe returns the recipe number, an index into the recipe tables of the target.
func (e Encoding) Recipe() int {
	return int(e.recipe)
}

// Bits returns the recipe specific encoding bits.
func (e Encoding) Bits() uint16 {
	return e.bits
}

// IsLegal returns true unless e is EncodingInvalid.
func (e Encoding) IsLegal() bool {
	return e != EncodingInvalid
}

// String implements fmt.Stringer.
func (e Encoding) String() string {
	if !e.IsLegal() {
		return "-"
	}
	return fmt.Sprintf("#%d/%04x", e.recipe, e.bits)
}

// Legalize is the legalization action required by an instruction which has
// no encoding. Performing the action is the job of the legalizer.
type Legalize byte

const (
	// LegalizeExpand expands the instruction into simpler instructions.
	LegalizeExpand Legalize = iota
	// LegalizeNarrow splits the instruction into operations on narrower types.
	LegalizeNarrow
	// LegalizeWiden performs the operation on a wider type.
	LegalizeWiden
	// LegalizeX86Expand expands the instruction into x86 specific sequences.
	LegalizeX86Expand
)

// String implements fmt.Stringer.
func (l Legalize) String() string {
	switch l {
	case LegalizeExpand:
		return "expand"
	case LegalizeNarrow:
		return "narrow"
	case LegalizeWiden:
		return "widen"
	case LegalizeX86Expand:
		return "x86_expand"
	default:
		return fmt.Sprintf("legalize(%d)", byte(l))
	}
}

// LegalizeCode is an index into the legalize actions table of a target.
type LegalizeCode = uint8

// CodeOffset is an offset in bytes from the start of a function's code.
type CodeOffset = uint32

// RecipeSizing describes the code size of a recipe.
type RecipeSizing struct {
	// BaseSize is the size in bytes of the machine code emitted by the recipe.
	BaseSize uint8
	// BranchRange is non-nil for recipes encoding a relative branch displacement.
	BranchRange *BranchRange
}

// EncInfo is the static information about the recipes of a target.
type EncInfo struct {
	// Constraints holds the operand constraints of each recipe.
	Constraints []RecipeConstraints
	// Sizing holds the code size of each recipe.
	Sizing []RecipeSizing
	// Names holds the name of each recipe.
	Names []string
}

// Operands returns the constraints of the recipe of enc, or nil for an illegal encoding.
func (ei *EncInfo) Operands(enc Encoding) *RecipeConstraints {
	if !enc.IsLegal() {
		return nil
	}
	return &ei.Constraints[enc.Recipe()]
}

// ByteSize returns the size in bytes of the code emitted for enc.
func (ei *EncInfo) ByteSize(enc Encoding) CodeOffset {
	if !enc.IsLegal() {
		return 0
	}
	return CodeOffset(ei.Sizing[enc.Recipe()].BaseSize)
}

// BranchRange returns the branch range of the recipe of enc, if it has one.
func (ei *EncInfo) BranchRange(enc Encoding) (BranchRange, bool) {
	if !enc.IsLegal() {
		return BranchRange{}, false
	}
	if r := ei.Sizing[enc.Recipe()].BranchRange; r != nil {
		return *r, true
	}
	return BranchRange{}, false
}

// Display returns a human readable form of enc, e.g. "rr#0001".
func (ei *EncInfo) Display(enc Encoding) string {
	if !enc.IsLegal() {
		return "-"
	}
	if r := enc.Recipe(); r < len(ei.Names) {
		return fmt.Sprintf("%s#%04x", ei.Names[r], enc.Bits())
	}
	return enc.String()
}
