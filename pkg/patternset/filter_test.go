package patternset

import (
	"testing"

	"github.com/praetorian-inc/wmscan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setsWithIDs(ids ...string) []*types.PatternSet {
	out := make([]*types.PatternSet, len(ids))
	for i, id := range ids {
		out[i] = &types.PatternSet{ID: id}
	}
	return out
}

func ids(sets []*types.PatternSet) []string {
	out := make([]string, len(sets))
	for i, s := range sets {
		out[i] = s.ID
	}
	return out
}

func TestParsePatterns(t *testing.T) {
	assert.Nil(t, ParsePatterns(""))
	assert.Equal(t, []string{"a", "b.*"}, ParsePatterns(" a , ,b.* "))
}

func TestFilter(t *testing.T) {
	all := setsWithIDs("markers", "private-keys", "magic", "cloud-credentials")

	tests := []struct {
		name   string
		config FilterConfig
		want   []string
	}{
		{"no filters", FilterConfig{}, []string{"markers", "private-keys", "magic", "cloud-credentials"}},
		{"include", FilterConfig{Include: []string{"^m"}}, []string{"markers", "magic"}},
		{"exclude", FilterConfig{Exclude: []string{"keys$", "cred"}}, []string{"markers", "magic"}},
		{"include then exclude", FilterConfig{Include: []string{"^m"}, Exclude: []string{"magic"}}, []string{"markers"}},
		{"negative lookahead", FilterConfig{Include: []string{"^(?!m)"}}, []string{"private-keys", "cloud-credentials"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filter(all, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestFilter_InvalidExpression(t *testing.T) {
	_, err := Filter(setsWithIDs("a"), FilterConfig{Include: []string{"("}})
	assert.ErrorContains(t, err, "invalid filter pattern")

	_, err = Filter(setsWithIDs("a"), FilterConfig{Exclude: []string{"[z-a]"}})
	assert.Error(t, err)
}
