// Package isa implements the target independent part of encoding selection:
// the lookup of encoding lists in generated hash tables, the iteration over
// the legal encodings of an instruction, and the static operand constraints
// and branch ranges of the recipes which encodings refer to.
//
// Targets live in sub packages and provide the generated tables.
package isa

import (
	"github.com/tetratelabs/encsel/internal/ir"
	"github.com/tetratelabs/encsel/internal/settings"
)

// TargetISA is a target instruction set with its settings applied.
//
// A TargetISA is immutable and safe for concurrent use.
type TargetISA interface {
	// Name returns the name of the target, e.g. "x86_64".
	Name() string
	// Flags returns the settings the target was built with.
	Flags() *settings.Flags
	// RegInfo returns the register banks and classes of the target.
	RegInfo() *RegInfo
	// EncInfo returns the recipe information of the target.
	EncInfo() *EncInfo
	// LegalEncodings returns the legal encodings of inst with the given
	// controlling type variable, ir.TypeInvalid for non polymorphic instructions.
	LegalEncodings(fn *ir.Function, inst *ir.Instruction, ctrlTy ir.Type) Encodings
	// RegClassForType returns the register class holding values of type t.
	// This panics if the target can't hold t in a register.
	RegClassForType(t ir.Type) *RegClassData
}

// Encode returns the preferred encoding of inst. When there is none,
// this returns false with the legalize action inst must undergo.
func Encode(t TargetISA, fn *ir.Function, inst *ir.Instruction, ctrlTy ir.Type) (Encoding, Legalize, bool) {
	encs := t.LegalEncodings(fn, inst, ctrlTy)
	if enc, ok := encs.Next(); ok {
		return enc, 0, true
	}
	return EncodingInvalid, encs.Legalize(), false
}
