package matcher

import (
	"testing"

	"github.com/praetorian-inc/streamscan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(rule string, start, end int64, groups ...string) *types.Match {
	m := &types.Match{RuleID: rule, Location: types.Location{Offset: types.OffsetSpan{Start: start, End: end}}}
	for _, g := range groups {
		m.Groups = append(m.Groups, []byte(g))
	}
	return m
}

func TestDeduplicator_ByLocation(t *testing.T) {
	d := NewDeduplicator()
	require.True(t, d.AddIfNew(at("r1", 10, 20, "secret")))

	tests := []struct {
		name  string
		m     *types.Match
		isNew bool
	}{
		{"same location other groups", at("r1", 10, 20, "other"), false},
		{"different start", at("r1", 11, 20, "secret"), true},
		{"different end", at("r1", 10, 21, "secret"), true},
		{"different rule", at("r2", 10, 20, "secret"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.isNew, d.AddIfNew(tt.m))
		})
	}
	assert.Len(t, d.seen, 4)
}

func TestDeduplicator_ByContent(t *testing.T) {
	d := newDeduplicatorFor(DedupeByContent)

	assert.True(t, d.AddIfNew(at("r1", 10, 20, "secret")))
	assert.False(t, d.AddIfNew(at("r1", 50, 60, "secret")))
	assert.True(t, d.AddIfNew(at("r1", 50, 60, "other")))
	assert.True(t, d.AddIfNew(at("r2", 10, 20, "secret")))
	assert.Len(t, d.seen, 3)
}

func TestDeduplicator_GroupBoundariesMatter(t *testing.T) {
	d := newDeduplicatorFor(DedupeByContent)

	assert.True(t, d.AddIfNew(at("r", 0, 1, "ab", "c")))
	assert.True(t, d.AddIfNew(at("r", 0, 1, "a", "bc")))
}

func TestParseDedupeMode(t *testing.T) {
	for in, want := range map[string]DedupeMode{"": DedupeByLocation, "location": DedupeByLocation, " Content ": DedupeByContent} {
		got, err := ParseDedupeMode(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)

		again, err := ParseDedupeMode(got.String())
		require.NoError(t, err)
		assert.Equal(t, want, again)
	}
	_, err := ParseDedupeMode("exact")
	assert.ErrorContains(t, err, "unknown dedupe mode")
}
