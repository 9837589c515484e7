package wumanber

// prefixIndex is keyed by suffix block, then prefix block, and holds
// indexes into Matcher.patterns. Nesting the maps keeps both lookups on
// the string(byteSlice) fast path, which does not allocate.
type prefixIndex map[string]map[string][]int

// buildPrefixIndex groups the patterns whose m-prefix ends in a trigger
// block by that block and by their first block.
func buildPrefixIndex(patterns [][]byte, m, b int, shift map[string]int) prefixIndex {
	index := make(prefixIndex)
	for i, p := range patterns {
		suffix := string(p[m-b : m])
		if d, ok := shift[suffix]; !ok || d != 0 {
			continue
		}
		bucket, ok := index[suffix]
		if !ok {
			bucket = make(map[string][]int)
			index[suffix] = bucket
		}
		prefix := string(p[:b])
		bucket[prefix] = append(bucket[prefix], i)
	}
	return index
}

// candidates returns the patterns that may start at a window whose first
// block is prefix and whose last block is suffix.
func (idx prefixIndex) candidates(suffix, prefix []byte) []int {
	bucket, ok := idx[string(suffix)]
	if !ok {
		return nil
	}
	return bucket[string(prefix)]
}
