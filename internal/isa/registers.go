package isa

import (
	"fmt"
	"math/bits"
	"strings"
)

// RegUnit is a register unit: the smallest allocatable piece of a register
// bank. Units are numbered across all banks of a target.
type RegUnit uint8

// RegUnitInvalid is the unit of constraints which don't name a register.
const RegUnitInvalid RegUnit = 0xff

// NewRegSet returns a new RegSet with the given units.
func NewRegSet(units ...RegUnit) RegSet {
	var ret RegSet
	for _, u := range units {
		ret = ret.Add(u)
	}
	return ret
}

// RegSet represents a set of register units.
type RegSet uint64

// Has returns true if u is in the set.
func (rs RegSet) Has(u RegUnit) bool {
	return u < 64 && rs&(1<<uint(u)) != 0
}

// Add returns the set with u added.
func (rs RegSet) Add(u RegUnit) RegSet {
	if u >= 64 {
		return rs
	}
	return rs | 1<<uint(u)
}

// Len returns the number of units in the set.
func (rs RegSet) Len() int {
	return bits.OnesCount64(uint64(rs))
}

// Range calls f for each unit in ascending order.
func (rs RegSet) Range(f func(u RegUnit)) {
	for i := 0; i < 64; i++ {
		if rs&(1<<uint(i)) != 0 {
			f(RegUnit(i))
		}
	}
}

// Format returns the names of the units in the set.
func (rs RegSet) Format(info *RegInfo) string {
	var ret []string
	rs.Range(func(u RegUnit) {
		ret = append(ret, info.UnitName(u))
	})
	return strings.Join(ret, ", ")
}

// RegBank is a contiguous range of register units sharing a kind,
// e.g. the general purpose registers.
type RegBank struct {
	Name      string
	FirstUnit RegUnit
	// Names holds the name of each unit of the bank.
	Names []string
}

// Contains returns true if u belongs to the bank.
func (b *RegBank) Contains(u RegUnit) bool {
	return u >= b.FirstUnit && int(u-b.FirstUnit) < len(b.Names)
}

// RegClassData describes a register class: the set of units an operand
// constrained to the class may be assigned.
type RegClassData struct {
	Name string
	// Index is the position of the class in RegInfo.Classes.
	Index uint8
	// Bank is the index of the bank of the class in RegInfo.Banks.
	Bank uint8
	// Mask holds the units of the class.
	Mask RegSet
}

// Contains returns true if u belongs to the class.
func (rc *RegClassData) Contains(u RegUnit) bool {
	return rc.Mask.Has(u)
}

// IsSubclassOf returns true if every unit of rc belongs to other.
func (rc *RegClassData) IsSubclassOf(other *RegClassData) bool {
	return rc.Mask&^other.Mask == 0
}

// First returns the lowest unit of the class.
func (rc *RegClassData) First() RegUnit {
	return RegUnit(bits.TrailingZeros64(uint64(rc.Mask)))
}

// String implements fmt.Stringer.
func (rc *RegClassData) String() string {
	return rc.Name
}

// RegInfo describes the registers of a target.
type RegInfo struct {
	Banks   []RegBank
	Classes []*RegClassData
}

// UnitName returns the name of u, or "%uN" if no bank holds it.
func (ri *RegInfo) UnitName(u RegUnit) string {
	for i := range ri.Banks {
		if b := &ri.Banks[i]; b.Contains(u) {
			return b.Names[u-b.FirstUnit]
		}
	}
	return fmt.Sprintf("%%u%d", u)
}

// UnitByName returns the unit named name.
func (ri *RegInfo) UnitByName(name string) (RegUnit, bool) {
	for i := range ri.Banks {
		b := &ri.Banks[i]
		for j, n := range b.Names {
			if n == name {
				return b.FirstUnit + RegUnit(j), true
			}
		}
	}
	return RegUnitInvalid, false
}

// ClassByName returns the register class named name, or nil.
func (ri *RegInfo) ClassByName(name string) *RegClassData {
	for _, rc := range ri.Classes {
		if rc.Name == name {
			return rc
		}
	}
	return nil
}
