package isa

import (
	"fmt"
	"sort"

	"github.com/tetratelabs/encsel/internal/constanthash"
	"github.com/tetratelabs/encsel/internal/ir"
)

// ValidateTables checks that generated tables are well formed:
//
//   - level 1 and every level 2 window are power of two sized with a vacant
//     slot, so that every probe miss lands on an in bounds default row,
//   - every entry is reachable by probing for its key,
//   - level 2 windows are either fully in bounds or fully out of bounds,
//   - every legalize code refers to an action,
//   - every encoding list decodes along all predicate outcomes, refers to
//     existing predicates and stops before leaving the list.
//
// numISAPreds is the number of ISA predicates of the target settings.
func ValidateTables(level1 Level1Table, tables *EncodingTables, numISAPreds int) error {
	if uint64(len(tables.EncLists)) >= encListNotFound {
		return fmt.Errorf("%d encoding list words leave no room for the not found offset", len(tables.EncLists))
	}
	for i, p := range tables.InstPredicates {
		if p == nil {
			return fmt.Errorf("instruction predicate %d is nil", i)
		}
	}

	if err := checkHashTable[ir.Type](level1, func(i int) ir.Type { return level1[i].Type },
		func(t ir.Type) uint32 { return uint32(t.Index()) }); err != nil {
		return fmt.Errorf("level 1: %w", err)
	}

	starts := map[uint32]struct{}{}
	for i := range level1 {
		e := &level1[i]
		if int(e.Legalize) >= len(tables.LegalizeActions) {
			return fmt.Errorf("level 1 entry %d: legalize code %d out of range", i, e.Legalize)
		}
		if e.Log2Len == Level1Empty {
			continue
		}
		if e.Log2Len >= 32 {
			return fmt.Errorf("level 1 entry %d (%s): level 2 length 1<<%d", i, e.Type, e.Log2Len)
		}
		l2, ok := e.level2(tables.Level2)
		if !ok {
			if uint64(e.Offset) < uint64(len(tables.Level2)) {
				return fmt.Errorf("level 1 entry %d (%s): level 2 window [%d, %d) partially out of bounds",
					i, e.Type, e.Offset, uint64(e.Offset)+1<<e.Log2Len)
			}
			continue
		}
		if err := checkHashTable[ir.Opcode](l2, func(i int) ir.Opcode { return l2[i].Opcode },
			func(op ir.Opcode) uint32 { return uint32(op) }); err != nil {
			return fmt.Errorf("level 2 of %s: %w", e.Type, err)
		}
		for j := range l2 {
			if l2[j].Opcode == ir.OpcodeInvalid {
				continue
			}
			off := l2[j].Offset
			if uint64(off) >= uint64(len(tables.EncLists)) {
				return fmt.Errorf("level 2 of %s: %s list offset %d out of range", e.Type, l2[j].Opcode, off)
			}
			starts[off] = struct{}{}
		}
	}

	sorted := make([]uint32, 0, len(starts))
	for s := range starts {
		sorted = append(sorted, s)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	visited := make([]bool, len(tables.EncLists))
	for _, s := range sorted {
		for i := range visited {
			visited[i] = false
		}
		if err := checkEncList(tables, numISAPreds, s, starts, visited); err != nil {
			return fmt.Errorf("encoding list at %d: %w", s, err)
		}
	}
	return nil
}

// checkHashTable checks that the table is power of two sized, has a vacant
// slot, and that every key is found where it is stored.
func checkHashTable[K comparable](t constanthash.Table[K], key func(i int) K, hash func(K) uint32) error {
	n := t.Len()
	if n == 0 || n&(n-1) != 0 {
		return fmt.Errorf("size %d is not a power of two", n)
	}
	vacant := false
	for i := 0; i < n; i++ {
		if _, ok := t.Key(i); !ok {
			vacant = true
			break
		}
	}
	if !vacant {
		return fmt.Errorf("no vacant slot in %d slots", n)
	}
	for i := 0; i < n; i++ {
		if _, ok := t.Key(i); !ok {
			continue
		}
		k := key(i)
		if idx, found := constanthash.Probe(t, k, hash(k)); !found || idx != i {
			return fmt.Errorf("entry %d (%v) is not reachable by probing", i, k)
		}
	}
	return nil
}

// checkEncList decodes the list starting at start along every predicate outcome.
func checkEncList(tables *EncodingTables, numISAPreds int, start uint32, starts map[uint32]struct{}, visited []bool) error {
	encList := tables.EncLists
	numRecipes := len(tables.RecipePredicates)
	numPreds := len(tables.InstPredicates) + numISAPreds

	work := []uint32{start}
	for len(work) > 0 {
		off := work[len(work)-1]
		work = work[:len(work)-1]
		for {
			if uint64(off) >= uint64(len(encList)) {
				return fmt.Errorf("runs off the end at %d", off)
			}
			if visited[off] {
				break
			}
			visited[off] = true
			if _, ok := starts[off]; ok && off != start {
				return fmt.Errorf("falls into the list at %d", off)
			}

			entry := int(encList[off])
			if entry>>1 < numRecipes {
				if uint64(off)+1 >= uint64(len(encList)) {
					return fmt.Errorf("recipe word at %d has no encoding bits", off)
				}
				if entry&1 != 0 {
					break
				}
				off += 2
				continue
			}
			if entry < PredStart {
				if code := entry - 2*numRecipes; code >= len(tables.LegalizeActions) {
					return fmt.Errorf("legalize code %d at %d out of range", code, off)
				}
				break
			}
			p := entry - PredStart
			if pred := p & PredMask; pred >= numPreds {
				return fmt.Errorf("predicate %d at %d out of range", pred, off)
			}
			if skip := p >> PredBits; skip > 0 {
				work = append(work, off+1+uint32(skip))
			}
			off++
		}
	}
	return nil
}
