package wumanber

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShiftTable_UsesClosestOccurrenceToPrefixEnd(t *testing.T) {
	// "ab" starts at 0 and at 2 in "abab"; the occurrence at 2 ends the prefix.
	shift := buildShiftTable([][]byte{[]byte("abab")}, 4, 2)

	assert.Equal(t, map[string]int{"ab": 0, "ba": 1}, shift)
}

func TestShiftTable_MinimumAcrossPatterns(t *testing.T) {
	shift := buildShiftTable([][]byte{[]byte("abcd"), []byte("cdzz")}, 4, 2)

	assert.Equal(t, map[string]int{
		"ab": 2,
		"bc": 1,
		"cd": 0,
		"dz": 1,
		"zz": 0,
	}, shift)
}

func TestShiftTable_OnlyPrefixOfLongerPatterns(t *testing.T) {
	shift := buildShiftTable([][]byte{[]byte("abc"), []byte("xyzuvw")}, 3, 2)

	assert.Equal(t, map[string]int{"ab": 1, "bc": 0, "xy": 1, "yz": 0}, shift)
	assert.NotContains(t, shift, "zu")
}

func TestPrefixIndex(t *testing.T) {
	patterns := [][]byte{[]byte("abcd"), []byte("cdzz"), []byte("xbcd")}
	shift := buildShiftTable(patterns, 4, 2)

	idx := buildPrefixIndex(patterns, 4, 2, shift)

	assert.Equal(t, []int{0}, idx.candidates([]byte("cd"), []byte("ab")))
	assert.Equal(t, []int{2}, idx.candidates([]byte("cd"), []byte("xb")))
	assert.Equal(t, []int{1}, idx.candidates([]byte("zz"), []byte("cd")))
	assert.Nil(t, idx.candidates([]byte("zz"), []byte("ab")))
	assert.Nil(t, idx.candidates([]byte("qq"), []byte("ab")))
}

func TestSlipTable(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		m, b     int
		want     map[string]int
	}{
		{
			name:     "block repeated inside pattern",
			patterns: []string{"abab"},
			m:        4, b: 2,
			want: map[string]int{"ab": 2},
		},
		{
			name:     "trigger block starting another pattern",
			patterns: []string{"abcd", "cdzz"},
			m:        4, b: 2,
			want: map[string]int{"cd": 2, "zz": 3},
		},
		{
			name:     "block size equals m",
			patterns: []string{"ab", "cd"},
			m:        2, b: 2,
			want: map[string]int{"ab": 1, "cd": 1},
		},
		{
			name:     "run of one byte",
			patterns: []string{"aaaa"},
			m:        4, b: 2,
			want: map[string]int{"aa": 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			patterns := make([][]byte, len(tt.patterns))
			for i, p := range tt.patterns {
				patterns[i] = []byte(p)
			}
			other := tt.m - tt.b + 1
			shift := buildShiftTable(patterns, tt.m, tt.b)

			slip := buildSlipTable(patterns, tt.m, tt.b, other, shift)

			assert.Equal(t, tt.want, slip)
		})
	}
}

func TestMatcher_TablesAndStats(t *testing.T) {
	mt, err := NewString([]string{"abcd", "cdzz"}, Config{Kind: KindDHS})
	require.NoError(t, err)

	tables := mt.Tables()
	assert.Equal(t, 0, tables.Shift["cd"])
	assert.Equal(t, map[string][]string{"ab": {"abcd"}}, tables.Prefix["cd"])
	assert.Equal(t, map[string]int{"cd": 2, "zz": 3}, tables.Slip)

	// Mutating the copy leaves the matcher untouched.
	tables.Shift["cd"] = 7
	assert.Equal(t, 0, mt.Tables().Shift["cd"])

	stats := mt.Stats()
	assert.Equal(t, Stats{
		Kind:          "dhs",
		Patterns:      2,
		M:             4,
		B:             2,
		Other:         3,
		Blocks:        5,
		Triggers:      2,
		PrefixBuckets: 2,
		SlipEntries:   2,
	}, stats)
}

func TestMatcher_BaseHasNoSlipTable(t *testing.T) {
	mt, err := NewString([]string{"abcd"}, Config{})
	require.NoError(t, err)

	assert.Nil(t, mt.Tables().Slip)
	assert.Zero(t, mt.Stats().SlipEntries)
}
