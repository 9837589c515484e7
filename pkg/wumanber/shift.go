package wumanber

// buildShiftTable maps every b-byte block found in the m-prefix of any
// pattern to the smallest distance between the end of one of its
// occurrences and the end of that prefix.
//
// The distance for a block within one pattern comes from its rightmost
// occurrence, so a block that ends some prefix always gets 0. Blocks that
// appear in no prefix are absent from the table and shift by other.
func buildShiftTable(patterns [][]byte, m, b int) map[string]int {
	shift := make(map[string]int)
	for _, p := range patterns {
		prefix := p[:m]
		for i := 0; i+b <= m; i++ {
			blk := prefix[i : i+b]
			// Each distinct block once per pattern.
			if findLeftmost(prefix, blk) != i {
				continue
			}
			d := m - findRightmost(prefix, blk) - b
			if cur, ok := shift[string(blk)]; !ok || d < cur {
				shift[string(blk)] = d
			}
		}
	}
	return shift
}
