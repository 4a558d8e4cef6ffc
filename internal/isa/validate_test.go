package isa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tetratelabs/encsel/internal/ir"
)

func TestValidateTables(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		level1, tables := testTables()
		require.NoError(t, ValidateTables(level1, tables, 2))
	})

	tests := []struct {
		name   string
		modify func(level1 Level1Table, tables *EncodingTables) Level1Table
		expErr string
	}{
		{
			name: "level 1 not a power of two",
			modify: func(level1 Level1Table, _ *EncodingTables) Level1Table {
				return level1[:3]
			},
			expErr: "level 1: size 3 is not a power of two",
		},
		{
			name: "level 1 full",
			modify: func(level1 Level1Table, _ *EncodingTables) Level1Table {
				for i := range level1 {
					if level1[i].Log2Len == Level1Empty {
						level1[i] = Level1Entry{Type: ir.TypeF32, Log2Len: 0, Offset: encListNotFound}
					}
				}
				return level1
			},
			expErr: "level 1: no vacant slot in 4 slots",
		},
		{
			name: "level 1 legalize out of range",
			modify: func(level1 Level1Table, _ *EncodingTables) Level1Table {
				for i := range level1 {
					if level1[i].Log2Len == Level1Empty {
						level1[i].Legalize = 4
					}
				}
				return level1
			},
			expErr: "legalize code 4 out of range",
		},
		{
			name: "partial window",
			modify: func(level1 Level1Table, tables *EncodingTables) Level1Table {
				tables.Level2 = tables.Level2[:9]
				return level1
			},
			expErr: "level 2 window [8, 10) partially out of bounds",
		},
		{
			name: "list offset out of range",
			modify: func(level1 Level1Table, tables *EncodingTables) Level1Table {
				for i := range tables.Level2 {
					if tables.Level2[i].Opcode == ir.OpcodeClz {
						tables.Level2[i].Offset = 100
					}
				}
				return level1
			},
			expErr: "level 2 of i32: clz list offset 100 out of range",
		},
		{
			name: "list runs off the end",
			modify: func(level1 Level1Table, tables *EncodingTables) Level1Table {
				tables.EncLists[22] = predWord(isaPred0, 0)
				return level1
			},
			expErr: "encoding list at 22: runs off the end at 23",
		},
		{
			name: "list falls into the next one",
			modify: func(level1 Level1Table, tables *EncodingTables) Level1Table {
				tables.EncLists[2] = recipeWord(1, false)
				return level1
			},
			expErr: "encoding list at 0: falls into the list at 4",
		},
		{
			name: "predicate out of range",
			modify: func(level1 Level1Table, tables *EncodingTables) Level1Table {
				tables.EncLists[13] = predWord(4, 0)
				return level1
			},
			expErr: "encoding list at 13: predicate 4 at 13 out of range",
		},
		{
			name: "legalize word out of range",
			modify: func(level1 Level1Table, tables *EncodingTables) Level1Table {
				tables.EncLists[12] = legalizeWord(5)
				return level1
			},
			expErr: "encoding list at 10: legalize code 5 at 12 out of range",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			level1, tables := testTables()
			level1 = tc.modify(level1, tables)
			err := ValidateTables(level1, tables, 2)
			require.Error(t, err)
			require.Contains(t, err.Error(), tc.expErr)
		})
	}
}
