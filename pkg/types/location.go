package types

// OffsetSpan is the byte range [Start, End).
type OffsetSpan struct {
	Start int64
	End   int64
}

// Len returns End - Start.
func (s OffsetSpan) Len() int64 {
	return s.End - s.Start
}

// SourcePoint is a 1-based line and byte column.
type SourcePoint struct {
	Line   int
	Column int
}

// SourceSpan is the line/column range of an OffsetSpan.
type SourceSpan struct {
	Start SourcePoint
	End   SourcePoint
}

// Location ties a byte range to its source position.
type Location struct {
	Offset OffsetSpan
	Source SourceSpan
}
