package wumanber

// buildSlipTable computes, for every trigger block, how far the DHS scanner
// may advance after a verification attempt at that block.
//
// best is the rightmost start of the block, over all m-prefixes, that lies
// left of the canonical suffix position m-b. A window ending k bytes later
// can only match if the block sits at offset m-b-k of some prefix, so every
// advance below m-b-best is provably empty. With no such occurrence, no
// window overlapping the block can match and the scanner moves by other.
func buildSlipTable(patterns [][]byte, m, b, other int, shift map[string]int) map[string]int {
	best := make(map[string]int)
	for _, p := range patterns {
		// Occurrences starting before m-b all fit in p[:m-1].
		head := p[:m-1]
		for i := 0; i+b <= len(head); i++ {
			blk := head[i : i+b]
			if d, ok := shift[string(blk)]; !ok || d != 0 {
				continue
			}
			if findLeftmost(head, blk) != i {
				continue
			}
			idx := findRightmost(head, blk)
			if cur, ok := best[string(blk)]; !ok || idx > cur {
				best[string(blk)] = idx
			}
		}
	}

	slip := make(map[string]int)
	for blk, d := range shift {
		if d != 0 {
			continue
		}
		if idx, ok := best[blk]; ok {
			slip[blk] = m - b - idx
		} else {
			slip[blk] = other
		}
	}
	return slip
}
