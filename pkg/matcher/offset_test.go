package matcher

import (
	"testing"

	"github.com/praetorian-inc/streamscan/pkg/stream"
	"github.com/praetorian-inc/streamscan/pkg/types"
	"github.com/stretchr/testify/assert"
)

func TestAdjustMatchOffset(t *testing.T) {
	w := stream.Window{Data: []byte("0123456789"), Offset: 1000, Index: 4, Partial: true}
	m := &types.Match{
		StreamID:         "s",
		RuleStructuralID: "rule",
		Location:         types.Location{Offset: types.OffsetSpan{Start: 2, End: 5}},
	}

	AdjustMatchOffset(m, w)

	assert.Equal(t, types.OffsetSpan{Start: 1002, End: 1005}, m.Location.Offset)
	assert.Equal(t, 4, m.Location.Window.Index)
	assert.Equal(t, types.OffsetSpan{Start: 1000, End: 1010}, m.Location.Window.Span)
	assert.True(t, m.Location.Window.Partial)
	assert.Equal(t, m.ComputeStructuralID("rule"), m.StructuralID)
}

func TestAdjustMatchOffset_SameHitThroughTwoWindows(t *testing.T) {
	// "SECRET" at absolute offset 6, seen from windows starting at 0 and 4
	a := &types.Match{RuleStructuralID: "r", Location: types.Location{Offset: types.OffsetSpan{Start: 6, End: 12}}}
	b := &types.Match{RuleStructuralID: "r", Location: types.Location{Offset: types.OffsetSpan{Start: 2, End: 8}}}

	AdjustMatchOffset(a, stream.Window{Data: make([]byte, 16), Offset: 0, Index: 0})
	AdjustMatchOffset(b, stream.Window{Data: make([]byte, 16), Offset: 4, Index: 1})

	assert.Equal(t, a.Location.Offset, b.Location.Offset)
	assert.Equal(t, a.StructuralID, b.StructuralID)
	assert.NotEqual(t, a.Location.Window.Index, b.Location.Window.Index)
}
