package types

import (
	"bytes"
	"sort"
)

// LineIndex converts byte offsets to line and column numbers. Building it
// costs one pass over the content; each lookup is a binary search.
type LineIndex struct {
	newlines []int // offsets of '\n' bytes, ascending
	size     int
}

// NewLineIndex indexes the newlines in content.
func NewLineIndex(content []byte) *LineIndex {
	li := &LineIndex{size: len(content)}
	for off := 0; ; {
		i := bytes.IndexByte(content[off:], '\n')
		if i < 0 {
			break
		}
		li.newlines = append(li.newlines, off+i)
		off += i + 1
	}
	return li
}

// Position returns the 1-based line and column of offset. Offsets past the
// end are clamped to the end of the content.
func (li *LineIndex) Position(offset int) SourcePoint {
	offset = max(0, min(offset, li.size))
	// Newlines strictly before offset.
	n := sort.SearchInts(li.newlines, offset)
	lineStart := 0
	if n > 0 {
		lineStart = li.newlines[n-1] + 1
	}
	return SourcePoint{Line: n + 1, Column: offset - lineStart + 1}
}

// Span returns the source span of the byte range [start, end).
func (li *LineIndex) Span(start, end int) SourceSpan {
	return SourceSpan{Start: li.Position(start), End: li.Position(end)}
}
