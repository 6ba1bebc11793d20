package matcher

import (
	"github.com/praetorian-inc/streamscan/pkg/stream"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

// AdjustMatchOffset converts window-relative offsets to stream-absolute
// offsets, records the window the match came from and recomputes the
// structural ID so hits seen through overlapping windows share one identity.
func AdjustMatchOffset(match *types.Match, w stream.Window) {
	match.Location.Offset = match.Location.Offset.Shift(w.Offset)
	match.Location.Window = types.WindowRef{
		Index:   w.Index,
		Span:    types.OffsetSpan{Start: w.Offset, End: w.End()},
		Partial: w.Partial,
	}
	match.StructuralID = match.ComputeStructuralID(match.RuleStructuralID)
}
