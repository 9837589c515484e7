// Package prefilter decides which pattern sets are worth running on a blob
// by looking for each set's keywords with a single Aho-Corasick pass.
package prefilter

import (
	"github.com/cloudflare/ahocorasick"
	"github.com/praetorian-inc/wmscan/pkg/types"
)

// Prefilter maps keyword hits back to pattern sets.
type Prefilter struct {
	matcher     *ahocorasick.Matcher
	sets        []*types.PatternSet
	keywordSets [][]int // keyword index -> indexes into sets
	always      []bool  // sets without keywords
}

// New builds a prefilter for sets. Sets without keywords always pass.
func New(sets []*types.PatternSet) *Prefilter {
	pf := &Prefilter{
		sets:   sets,
		always: make([]bool, len(sets)),
	}

	var keywords []string
	index := make(map[string]int)
	for i, set := range sets {
		if len(set.Keywords) == 0 {
			pf.always[i] = true
			continue
		}
		for _, kw := range set.Keywords {
			k, ok := index[kw]
			if !ok {
				k = len(keywords)
				index[kw] = k
				keywords = append(keywords, kw)
				pf.keywordSets = append(pf.keywordSets, nil)
			}
			pf.keywordSets[k] = append(pf.keywordSets[k], i)
		}
	}

	if len(keywords) > 0 {
		pf.matcher = ahocorasick.NewStringMatcher(keywords)
	}
	return pf
}

// Filter returns the sets that may match content, in their original order.
// It is safe for concurrent use.
func (pf *Prefilter) Filter(content []byte) []*types.PatternSet {
	selected := make([]bool, len(pf.sets))
	copy(selected, pf.always)

	if pf.matcher != nil {
		for _, hit := range pf.matcher.MatchThreadSafe(content) {
			for _, i := range pf.keywordSets[hit] {
				selected[i] = true
			}
		}
	}

	result := make([]*types.PatternSet, 0, len(pf.sets))
	for i, ok := range selected {
		if ok {
			result = append(result, pf.sets[i])
		}
	}
	return result
}

// Keywords reports whether any set uses keywords.
func (pf *Prefilter) Keywords() bool {
	return pf.matcher != nil
}
