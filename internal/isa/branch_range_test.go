package isa

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBranchRange_Contains(t *testing.T) {
	r := BranchRange{Origin: 4, Bits: 9}

	tests := []struct {
		branch, dest CodeOffset
		exp          bool
	}{
		{branch: 0, dest: 0, exp: true},
		{branch: 0, dest: 2, exp: true},
		{branch: 2, dest: 0, exp: true},
		{branch: 1000, dest: 1000, exp: true},
		// Displacements are relative to branch+4 and range over [-256, 255].
		{branch: 1000, dest: 1258, exp: true},
		{branch: 1000, dest: 1260, exp: false},
		{branch: 1000, dest: 1259, exp: true},
		{branch: 1000, dest: 748, exp: true},
		{branch: 1000, dest: 747, exp: false},
		{branch: 1000, dest: 746, exp: false},
	}

	for _, tc := range tests {
		require.Equal(t, tc.exp, r.Contains(tc.branch, tc.dest), "%d -> %d", tc.branch, tc.dest)
	}
}

func TestBranchRange_Contains_translation(t *testing.T) {
	ranges := []BranchRange{
		{Origin: 2, Bits: 8},
		{Origin: 4, Bits: 9},
		{Origin: 5, Bits: 32},
		{Origin: 0, Bits: 16},
	}
	for _, r := range ranges {
		for _, delta := range []int64{-70000, -32769, -32768, -257, -256, -129, -128, -1, 0, 1, 127, 128, 255, 256, 32767, 32768, 70000} {
			var exp *bool
			for _, branch := range []CodeOffset{100000, 200000, 1 << 30} {
				dest := CodeOffset(int64(branch) + int64(r.Origin) + delta)
				got := r.Contains(branch, dest)
				if exp == nil {
					exp = &got
				}
				require.Equal(t, *exp, got, "%+v: delta %d at %d", r, delta, branch)
			}
		}
	}
}

func TestBranchRange_Contains_fullWidth(t *testing.T) {
	r := BranchRange{Origin: 5, Bits: 32}
	require.True(t, r.Contains(0, 0xffff_fff0))
	require.True(t, r.Contains(0xffff_fff0, 0))
}
