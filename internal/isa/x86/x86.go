// Package x86 is the x86 target, with the i686 and x86_64 CPU modes.
package x86

import (
	"fmt"

	"github.com/tetratelabs/encsel/internal/encapi"
	"github.com/tetratelabs/encsel/internal/ir"
	"github.com/tetratelabs/encsel/internal/isa"
	"github.com/tetratelabs/encsel/internal/isa/tablegen"
	"github.com/tetratelabs/encsel/internal/settings"
)

// Mode is a CPU mode of the x86 target.
type Mode byte

const (
	// ModeI686 is the 32-bit mode.
	ModeI686 Mode = iota
	// ModeX86_64 is the 64-bit mode.
	ModeX86_64

	numModes
)

var modeNames = [numModes]string{ModeI686: "i686", ModeX86_64: "x86_64"}

// String implements fmt.Stringer.
func (m Mode) String() string {
	if m < numModes {
		return modeNames[m]
	}
	return fmt.Sprintf("mode(%d)", byte(m))
}

// ModeByName returns the Mode named s, e.g. "x86_64".
func ModeByName(s string) (Mode, bool) {
	for m, n := range modeNames {
		if n == s {
			return Mode(m), true
		}
	}
	return 0, false
}

var (
	encInfo = newEncInfo()
	tables  isa.EncodingTables
	level1  [numModes]isa.Level1Table
)

func init() {
	out, err := tablegen.Generate(&tablegen.Input{
		Modes: []tablegen.Mode{
			ModeI686:   newMode(ModeI686.String(), false),
			ModeX86_64: newMode(ModeX86_64.String(), true),
		},
		NumRecipes:   int(numRecipes),
		NumInstPreds: numInstPreds,
		NumLegalize:  int(numLegalize),
	})
	if err != nil {
		panic(fmt.Sprintf("BUG: generating x86 encoding tables: %v", err))
	}
	copy(level1[:], out.Level1)
	tables = isa.EncodingTables{
		Level2:           out.Level2,
		EncLists:         out.EncLists,
		LegalizeActions:  legalizeActions[:],
		RecipePredicates: recipePredicates(),
		InstPredicates:   instPredicates[:],
	}

	if encapi.TablesValidationEnabled {
		if err := Validate(); err != nil {
			panic(fmt.Sprintf("BUG: %v", err))
		}
	}
}

// Validate checks the generated tables of every mode and the operand
// constraints of every recipe.
func Validate() error {
	for m := range level1 {
		if err := isa.ValidateTables(level1[m], &tables, Template.NumBits()); err != nil {
			return fmt.Errorf("invalid %s encoding tables: %w", Mode(m), err)
		}
	}
	for i := range encInfo.Constraints {
		if err := encInfo.Constraints[i].Validate(); err != nil {
			return fmt.Errorf("invalid constraints of recipe %s: %w", encInfo.Names[i], err)
		}
	}
	return nil
}

// Builder configures the settings of an x86 target before Finish.
type Builder struct {
	mode     Mode
	settings *settings.Builder
}

// NewBuilder returns a Builder for the named CPU mode with default settings.
func NewBuilder(mode string) (*Builder, error) {
	m, ok := ModeByName(mode)
	if !ok {
		return nil, fmt.Errorf("unknown x86 mode %q", mode)
	}
	return &Builder{mode: m, settings: Template.NewBuilder()}, nil
}

// Mode returns the CPU mode of the target being built.
func (b *Builder) Mode() Mode {
	return b.mode
}

// Settings returns the settings builder of the target.
func (b *Builder) Settings() *settings.Builder {
	return b.settings
}

// Finish returns the target with the current settings.
func (b *Builder) Finish() isa.TargetISA {
	flags := b.settings.Finish()
	return &target{mode: b.mode, flags: flags, isaPreds: flags.PredicateView()}
}

// target implements isa.TargetISA.
type target struct {
	mode     Mode
	flags    *settings.Flags
	isaPreds settings.PredicateView
}

// Name implements isa.TargetISA Name.
func (t *target) Name() string {
	return t.mode.String()
}

// Flags implements isa.TargetISA Flags.
func (t *target) Flags() *settings.Flags {
	return t.flags
}

// RegInfo implements isa.TargetISA RegInfo.
func (t *target) RegInfo() *isa.RegInfo {
	return &regInfo
}

// EncInfo implements isa.TargetISA EncInfo.
func (t *target) EncInfo() *isa.EncInfo {
	return &encInfo
}

// LegalEncodings implements isa.TargetISA LegalEncodings.
func (t *target) LegalEncodings(fn *ir.Function, inst *ir.Instruction, ctrlTy ir.Type) isa.Encodings {
	return isa.LookupEncList(ctrlTy, inst, fn, level1[t.mode], &tables, t.isaPreds)
}

// RegClassForType implements isa.TargetISA RegClassForType.
func (t *target) RegClassForType(ty ir.Type) *isa.RegClassData {
	switch {
	case ty.IsFloat():
		if t.mode == ModeI686 {
			return FPR8
		}
		return FPR
	case ty.IsInt(), ty.IsBool():
		if t.mode == ModeI686 {
			return GPR8
		}
		return GPR
	default:
		panic(fmt.Sprintf("BUG: %s has no register class for %s", t.mode, ty))
	}
}
