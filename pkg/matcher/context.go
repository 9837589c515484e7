package matcher

import "bytes"

// ExtractContext returns the text around content[start:end]. Before runs
// from the start of the line that is lines lines above the match line up to
// start; after runs from end through the end of the line that is lines
// lines below the match line. Both are copies, so keeping them does not pin
// content in memory.
func ExtractContext(content []byte, start, end int, lines int) (before, after []byte) {
	if lines <= 0 || start < 0 || start > end || end > len(content) {
		return nil, nil
	}

	from := bytes.LastIndexByte(content[:start], '\n') + 1
	for i := 0; i < lines && from > 0; i++ {
		from = bytes.LastIndexByte(content[:from-1], '\n') + 1
	}

	to := end
	for i := 0; i <= lines && to < len(content); i++ {
		nl := bytes.IndexByte(content[to:], '\n')
		if nl < 0 {
			to = len(content)
			break
		}
		to += nl + 1
	}

	if from < start {
		before = bytes.Clone(content[from:start])
	}
	if end < to {
		after = bytes.Clone(content[end:to])
	}
	return before, after
}
