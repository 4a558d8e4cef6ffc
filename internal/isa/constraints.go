package isa

import (
	"errors"
	"fmt"
)

// ConstraintKind is the kind of an OperandConstraint.
type ConstraintKind byte

const (
	// ConstraintReg allows any register of the class.
	ConstraintReg ConstraintKind = iota
	// ConstraintFixedReg requires the register unit OperandConstraint.Unit.
	// The register class is the class enclosing the unit.
	ConstraintFixedReg
	// ConstraintTied requires the same register as the operand
	// OperandConstraint.Peer on the other side: inputs are tied to outputs
	// and outputs to inputs.
	ConstraintTied
	// ConstraintStack requires a stack slot instead of a register.
	ConstraintStack
)

// String implements fmt.Stringer.
func (k ConstraintKind) String() string {
	switch k {
	case ConstraintReg:
		return "reg"
	case ConstraintFixedReg:
		return "fixed"
	case ConstraintTied:
		return "tied"
	case ConstraintStack:
		return "stack"
	default:
		return fmt.Sprintf("constraint(%d)", byte(k))
	}
}

// OperandConstraint is the register constraint on a single operand or result
// of an instruction.
type OperandConstraint struct {
	Kind ConstraintKind
	// RegClass is the class of the value regardless of Kind.
	RegClass *RegClassData
	// Unit is only meaningful for ConstraintFixedReg.
	Unit RegUnit
	// Peer is only meaningful for ConstraintTied.
	Peer uint8
}

// RegOperand returns a constraint allowing any register of rc.
func RegOperand(rc *RegClassData) OperandConstraint {
	return OperandConstraint{Kind: ConstraintReg, RegClass: rc, Unit: RegUnitInvalid}
}

// FixedRegOperand returns a constraint requiring the unit u of rc.
func FixedRegOperand(rc *RegClassData, u RegUnit) OperandConstraint {
	return OperandConstraint{Kind: ConstraintFixedReg, RegClass: rc, Unit: u}
}

// TiedOperand returns a constraint tying the operand to peer on the other side.
func TiedOperand(rc *RegClassData, peer int) OperandConstraint {
	return OperandConstraint{Kind: ConstraintTied, RegClass: rc, Unit: RegUnitInvalid, Peer: uint8(peer)}
}

// StackOperand returns a constraint requiring a stack slot for a value of rc.
func StackOperand(rc *RegClassData) OperandConstraint {
	return OperandConstraint{Kind: ConstraintStack, RegClass: rc, Unit: RegUnitInvalid}
}

// String implements fmt.Stringer.
func (c OperandConstraint) String() string {
	switch c.Kind {
	case ConstraintFixedReg:
		return fmt.Sprintf("fixed(%s:%%u%d)", c.RegClass, c.Unit)
	case ConstraintTied:
		return fmt.Sprintf("tied(%s:%d)", c.RegClass, c.Peer)
	default:
		return fmt.Sprintf("%s(%s)", c.Kind, c.RegClass)
	}
}

// Satisfied returns true if loc is acceptable for this constraint.
func (c *OperandConstraint) Satisfied(loc ValueLoc) bool {
	switch c.Kind {
	case ConstraintReg, ConstraintTied:
		return loc.Kind == ValueLocReg && c.RegClass.Contains(loc.Unit)
	case ConstraintFixedReg:
		return loc.Kind == ValueLocReg && loc.Unit == c.Unit
	case ConstraintStack:
		return loc.Kind == ValueLocStack
	default:
		return false
	}
}

// ValueLocKind is the kind of a ValueLoc.
type ValueLocKind byte

const (
	ValueLocUnassigned ValueLocKind = iota
	ValueLocReg
	ValueLocStack
)

// ValueLoc is where a value lives once registers are allocated.
type ValueLoc struct {
	Kind ValueLocKind
	Unit RegUnit
	Slot uint32
}

// RegLoc returns the location of a value held in unit u.
func RegLoc(u RegUnit) ValueLoc {
	return ValueLoc{Kind: ValueLocReg, Unit: u}
}

// StackLoc returns the location of a value held in the given stack slot.
func StackLoc(slot uint32) ValueLoc {
	return ValueLoc{Kind: ValueLocStack, Unit: RegUnitInvalid, Slot: slot}
}

// RecipeConstraints holds the fixed-arity operand constraints of a recipe.
//
// Variable arguments of calls, returns and branches carrying block arguments
// are not described here. Their locations follow the calling convention.
type RecipeConstraints struct {
	Ins  []OperandConstraint
	Outs []OperandConstraint

	// FixedIns is true if any input is ConstraintFixedReg.
	FixedIns bool
	// FixedOuts is true if any output is ConstraintFixedReg.
	FixedOuts bool
	// TiedOps is true if any input or output is ConstraintTied.
	TiedOps bool
}

// NewRecipeConstraints returns the RecipeConstraints of ins and outs with
// the summary flags computed.
func NewRecipeConstraints(ins, outs []OperandConstraint) RecipeConstraints {
	rc := RecipeConstraints{Ins: ins, Outs: outs}
	for _, c := range ins {
		switch c.Kind {
		case ConstraintFixedReg:
			rc.FixedIns = true
		case ConstraintTied:
			rc.TiedOps = true
		}
	}
	for _, c := range outs {
		switch c.Kind {
		case ConstraintFixedReg:
			rc.FixedOuts = true
		case ConstraintTied:
			rc.TiedOps = true
		}
	}
	return rc
}

// Validate checks that tied operands are symmetric and agree on the register
// class, and that the summary flags match the constraints.
func (rc *RecipeConstraints) Validate() error {
	var errs []error
	check := func(side string, cs, peers []OperandConstraint, otherSide string) {
		for i, c := range cs {
			if c.RegClass == nil {
				errs = append(errs, fmt.Errorf("%s %d: missing register class", side, i))
				continue
			}
			switch c.Kind {
			case ConstraintFixedReg:
				if !c.RegClass.Contains(c.Unit) {
					errs = append(errs, fmt.Errorf("%s %d: unit %d not in %s", side, i, c.Unit, c.RegClass))
				}
			case ConstraintTied:
				if int(c.Peer) >= len(peers) {
					errs = append(errs, fmt.Errorf("%s %d: tied to missing %s %d", side, i, otherSide, c.Peer))
					continue
				}
				p := peers[c.Peer]
				if p.Kind != ConstraintTied || int(p.Peer) != i {
					errs = append(errs, fmt.Errorf("%s %d: tied to %s %d which is %s", side, i, otherSide, c.Peer, p))
				} else if p.RegClass != c.RegClass {
					errs = append(errs, fmt.Errorf("%s %d: tied to %s %d of class %s, not %s",
						side, i, otherSide, c.Peer, p.RegClass, c.RegClass))
				}
			}
		}
	}
	check("input", rc.Ins, rc.Outs, "output")
	check("output", rc.Outs, rc.Ins, "input")

	if expected := NewRecipeConstraints(rc.Ins, rc.Outs); expected.FixedIns != rc.FixedIns ||
		expected.FixedOuts != rc.FixedOuts || expected.TiedOps != rc.TiedOps {
		errs = append(errs, fmt.Errorf("summary flags fixed_ins=%t fixed_outs=%t tied_ops=%t, expected %t %t %t",
			rc.FixedIns, rc.FixedOuts, rc.TiedOps, expected.FixedIns, expected.FixedOuts, expected.TiedOps))
	}
	return errors.Join(errs...)
}

// Check returns an error if the given locations of the fixed-arity operands
// and results don't satisfy the constraints. Tied pairs must share a unit.
func (rc *RecipeConstraints) Check(ins, outs []ValueLoc) error {
	if len(ins) < len(rc.Ins) || len(outs) < len(rc.Outs) {
		return fmt.Errorf("expected at least %d inputs and %d outputs, got %d and %d",
			len(rc.Ins), len(rc.Outs), len(ins), len(outs))
	}
	for i := range rc.Ins {
		c := &rc.Ins[i]
		if !c.Satisfied(ins[i]) {
			return fmt.Errorf("input %d: %s not satisfied by %v", i, c, ins[i])
		}
		if c.Kind != ConstraintTied {
			continue
		}
		if int(c.Peer) >= len(outs) {
			return fmt.Errorf("input %d: tied to output %d but got %d outputs", i, c.Peer, len(outs))
		}
		if outs[c.Peer] != ins[i] {
			return fmt.Errorf("input %d: tied to output %d but located at %v and %v", i, c.Peer, ins[i], outs[c.Peer])
		}
	}
	for i := range rc.Outs {
		if c := &rc.Outs[i]; !c.Satisfied(outs[i]) {
			return fmt.Errorf("output %d: %s not satisfied by %v", i, c, outs[i])
		}
	}
	return nil
}
