// Package constanthash implements the open addressing hash tables used for
// statically generated lookup data such as encoding tables and setting names.
//
// Tables are plain slices whose length is a power of two. They are probed
// quadratically and always contain at least one vacant slot, so a lookup
// which misses returns the index of a vacant slot. Generators place a
// default row there.
package constanthash

import (
	"fmt"
	"math/bits"
)

// Table is a read-only view of a generated hash table keyed by K.
type Table[K comparable] interface {
	// Len returns the number of slots. This must be a power of two.
	Len() int
	// Key returns the key in the given slot, or false if the slot is vacant.
	Key(idx int) (K, bool)
}

// Probe looks for key in table using the given hash.
//
// When found is true, idx is the slot holding key. Otherwise idx is a
// vacant slot, which is always in bounds.
func Probe[K comparable](table Table[K], key K, hash uint32) (idx int, found bool) {
	n := table.Len()
	mask := n - 1
	idx = int(hash)
	for step := 0; step < n; step++ {
		idx &= mask
		k, ok := table.Key(idx)
		if !ok {
			return idx, false
		} else if k == key {
			return idx, true
		}
		// Quadratic probing visits every slot of a power-of-two table.
		idx += step + 1
	}
	panic(fmt.Sprintf("BUG: hash table of %d slots has no vacant slot", n))
}

// SimpleHash is the string hash used for tables keyed by names.
func SimpleHash(s string) uint32 {
	h := uint32(5381)
	for _, c := range s {
		h = (h ^ uint32(c)) + bits.RotateLeft32(h, -6)
	}
	return h
}

// TableSize returns the number of slots of a table holding n keys.
//
// The result is a power of two leaving at least one vacant slot.
func TableSize(n int) int {
	size := n * 6 / 5
	if size > 0 && size&(size-1) == 0 {
		return size * 2
	}
	ret := 1
	for ret < size {
		ret <<= 1
	}
	if ret == n {
		ret <<= 1
	}
	return ret
}

// Generate places n keys into a table of TableSize(n) slots using the same
// probe sequence as Probe. hash returns the hash of the i-th key.
//
// The returned slice maps each slot to the index of the key stored there,
// or -1 for vacant slots.
func Generate(n int, hash func(i int) uint32) []int {
	size := TableSize(n)
	mask := size - 1
	slots := make([]int, size)
	for i := range slots {
		slots[i] = -1
	}
	for i := 0; i < n; i++ {
		h := int(hash(i)) & mask
		for s := 1; slots[h] != -1; s++ {
			h = (h + s) & mask
		}
		slots[h] = i
	}
	return slots
}
