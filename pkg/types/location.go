package types

// OffsetSpan is byte range [Start, End) - half-open interval.
type OffsetSpan struct {
	Start int64
	End   int64
}

// Len returns the number of bytes in the span.
func (s OffsetSpan) Len() int64 {
	return s.End - s.Start
}

// Shift moves the span by delta bytes.
func (s OffsetSpan) Shift(delta int64) OffsetSpan {
	return OffsetSpan{Start: s.Start + delta, End: s.End + delta}
}

// Contains reports whether other lies entirely inside s.
func (s OffsetSpan) Contains(other OffsetSpan) bool {
	return other.Start >= s.Start && other.End <= s.End
}

// WindowRef identifies the window a match was found in.
type WindowRef struct {
	Index   int        // sequence number of the window within its stream
	Span    OffsetSpan // absolute stream range covered by the window
	Partial bool       // window was flushed before reaching the chunk size
}

// Location places a match in the stream.
// Offset is absolute (relative to the first byte ever submitted to the stream).
type Location struct {
	Offset OffsetSpan
	Window WindowRef
}
