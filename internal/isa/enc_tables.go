package isa

import (
	"fmt"
	"math"

	"github.com/tetratelabs/encsel/internal/constanthash"
	"github.com/tetratelabs/encsel/internal/encapi"
	"github.com/tetratelabs/encsel/internal/ir"
	"github.com/tetratelabs/encsel/internal/settings"
)

// RecipePredicate tests ISA settings and the instruction at once. A nil
// RecipePredicate is always satisfied.
type RecipePredicate func(isaPreds settings.PredicateView, inst *ir.Instruction) bool

// InstPredicate tests the shape of an instruction. It can't depend on ISA settings.
type InstPredicate func(fn *ir.Function, inst *ir.Instruction) bool

// Level1Entry is an entry of a level 1 hash table.
//
// One level 1 table exists per CPU mode. It is keyed by the controlling type
// variable, using ir.TypeInvalid for instructions which are not polymorphic.
// The value is a level 2 table, encoded as its Offset in the shared Level2
// table and the binary logarithm of its length.
//
// Empty entries have Log2Len set to Level1Empty. Entries which only carry a
// Legalize code have an Offset such that the level 2 window is out of bounds.
type Level1Entry struct {
	Type     ir.Type
	Log2Len  uint8
	Legalize LegalizeCode
	Offset   uint32
}

// Level1Empty is the Log2Len of empty level 1 entries.
const Level1Empty = math.MaxUint8

// level2 returns the level 2 table of this entry, or false if the window is out of bounds.
func (e *Level1Entry) level2(t Level2Table) (Level2Table, bool) {
	if e.Log2Len >= 32 {
		return nil, false
	}
	begin := uint64(e.Offset)
	end := begin + 1<<e.Log2Len
	if end > uint64(len(t)) {
		return nil, false
	}
	return t[begin:end], true
}

// Level1Table implements constanthash.Table keyed by ir.Type.
type Level1Table []Level1Entry

// Len implements constanthash.Table.
func (t Level1Table) Len() int { return len(t) }

// Key implements constanthash.Table.
func (t Level1Table) Key(idx int) (ir.Type, bool) {
	if t[idx].Log2Len == Level1Empty {
		return ir.TypeInvalid, false
	}
	return t[idx].Type, true
}

// Level2Entry is an entry of a level 2 hash table, keyed by opcode.
// Offset is where the encoding list of the opcode starts in EncLists.
//
// Empty entries have ir.OpcodeInvalid as Opcode.
type Level2Entry struct {
	Opcode ir.Opcode
	Offset uint32
}

// Level2Table implements constanthash.Table keyed by ir.Opcode.
type Level2Table []Level2Entry

// Len implements constanthash.Table.
func (t Level2Table) Len() int { return len(t) }

// Key implements constanthash.Table.
func (t Level2Table) Key(idx int) (ir.Opcode, bool) {
	op := t[idx].Opcode
	return op, op != ir.OpcodeInvalid
}

// EncListEntry is a word of an encoding list.
//
// A recipe word holds `recipe<<1 | last` and is followed by the encoding bits.
// Words below PredStart which are not recipe words stop the list with the
// legalize code `word - 2*len(RecipePredicates)`. Words from PredStart up
// hold `PredStart + skip<<PredBits + predicate`.
type EncListEntry = uint16

const (
	// PredBits is the number of bits holding the predicate number of a predicate word.
	PredBits = 12
	// PredMask extracts the predicate number of a predicate word.
	PredMask = 1<<PredBits - 1
	// PredStart is the first predicate word.
	PredStart = 0x1000

	// encListNotFound is the offset of exhausted iterators.
	encListNotFound = math.MaxUint32
)

// EncodingTables are the generated tables shared by all CPU modes of a target.
type EncodingTables struct {
	Level2           Level2Table
	EncLists         []EncListEntry
	LegalizeActions  []Legalize
	RecipePredicates []RecipePredicate
	InstPredicates   []InstPredicate
}

// LookupEncList finds the encoding list of inst with the given controlling
// type variable using the two level hash tables, and returns an iterator over
// the encodings which are legal for inst.
func LookupEncList(
	ctrlTy ir.Type,
	inst *ir.Instruction,
	fn *ir.Function,
	level1 Level1Table,
	tables *EncodingTables,
	isaPreds settings.PredicateView,
) Encodings {
	offset, legalize := uint32(encListNotFound), LegalizeCode(0)
	if l1idx, found := constanthash.Probe[ir.Type](level1, ctrlTy, uint32(ctrlTy.Index())); !found {
		// No level 1 entry for the type. The vacant slot carries the default legalize code.
		legalize = level1[l1idx].Legalize
	} else {
		l1ent := &level1[l1idx]
		legalize = l1ent.Legalize
		// An out of bounds window means the type only has a custom legalize code.
		if l2tab, ok := l1ent.level2(tables.Level2); ok {
			opcode := inst.Opcode()
			if l2idx, found := constanthash.Probe[ir.Opcode](l2tab, opcode, uint32(opcode)); found {
				offset = l2tab[l2idx].Offset
			}
		}
	}

	// offset is encListNotFound when no encoding list was found, and the
	// legalize code is always valid.
	return Encodings{
		offset:   offset,
		legalize: legalize,
		inst:     inst,
		fn:       fn,
		tables:   tables,
		isaPreds: isaPreds,
	}
}

// Encodings iterates over the legal encodings of an instruction in priority
// order: the first Encoding returned by Next is the one to use.
//
// Encodings is single pass. A new lookup is needed to iterate again.
type Encodings struct {
	// offset into tables.EncLists, or encListNotFound once exhausted.
	offset uint32
	// legalize code to use if no encoding is found.
	legalize LegalizeCode
	inst     *ir.Instruction
	fn       *ir.Function
	tables   *EncodingTables
	isaPreds settings.PredicateView
}

// Next returns the next legal encoding, or false when there are no more.
func (e *Encodings) Next() (Encoding, bool) {
	encList := e.tables.EncLists
	recipePreds := e.tables.RecipePredicates
	// A list running off the end of encList stops here, as ValidateTables
	// rejects such tables before they are used.
	for e.offset < uint32(len(encList)) {
		entry := int(encList[e.offset])

		// Check for "recipe+bits".
		if recipe := entry >> 1; recipe < len(recipePreds) {
			bits := e.offset + 1
			if entry&1 == 0 {
				e.offset += 2
			} else {
				e.offset = encListNotFound
			}
			if p := recipePreds[recipe]; p == nil || p(e.isaPreds, e.inst) {
				if encapi.EncodingsLoggingEnabled {
					fmt.Printf("[enclist %d] recipe %d bits %#04x: selected\n", bits-1, recipe, encList[bits])
				}
				return NewEncoding(recipe, encList[bits]), true
			}
			if encapi.EncodingsLoggingEnabled {
				fmt.Printf("[enclist %d] recipe %d: predicate failed\n", bits-1, recipe)
			}
			continue
		}

		// Check for "stop with legalize".
		if entry < PredStart {
			e.legalize = LegalizeCode(entry - 2*len(recipePreds))
			if encapi.EncodingsLoggingEnabled {
				fmt.Printf("[enclist %d] stop with legalize code %d\n", e.offset, e.legalize)
			}
			e.offset = encListNotFound
			return EncodingInvalid, false
		}

		// Finally, this must be a predicate entry.
		predEntry := entry - PredStart
		skip := predEntry >> PredBits
		pred := predEntry & PredMask

		ok := e.checkPred(pred)
		if encapi.EncodingsLoggingEnabled {
			fmt.Printf("[enclist %d] predicate %d = %t, skip %d\n", e.offset, pred, ok, skip)
		}
		if ok {
			e.offset++
		} else if skip == 0 {
			e.offset = encListNotFound
			return EncodingInvalid, false
		} else {
			e.offset += uint32(1 + skip)
		}
	}
	e.offset = encListNotFound
	return EncodingInvalid, false
}

// checkPred tests an instruction predicate or an ISA predicate. ISA predicates
// are numbered after the instruction predicates.
func (e *Encodings) checkPred(pred int) bool {
	instPreds := e.tables.InstPredicates
	if pred < len(instPreds) {
		return instPreds[pred](e.fn, e.inst)
	}
	return e.isaPreds.Test(pred - len(instPreds))
}

// LegalizeCode returns the legalize code which stopped the enumeration of
// encodings. This is the default code of the controlling type, or a custom
// code of the instruction.
//
// This must only be called after Next returned false.
func (e *Encodings) LegalizeCode() LegalizeCode {
	if encapi.EncodingsValidationEnabled && e.offset != encListNotFound {
		panic("BUG: Encodings.Legalize called before the iterator is exhausted")
	}
	return e.legalize
}

// Legalize returns the legalize action for LegalizeCode.
//
// This must only be called after Next returned false.
func (e *Encodings) Legalize() Legalize {
	return e.tables.LegalizeActions[e.LegalizeCode()]
}
