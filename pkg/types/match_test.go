package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatch_ComputeStructuralID(t *testing.T) {
	ruleStructuralID := "rule_struct_id_456"

	match := Match{
		StreamID: "s",
		Location: Location{Offset: OffsetSpan{Start: 10, End: 30}},
	}
	structuralID := match.ComputeStructuralID(ruleStructuralID)
	assert.Len(t, structuralID, 40) // SHA-1 hex is 40 chars

	// Same hit seen through a different window keeps its identity
	other := Match{
		BlobID:   ComputeBlobID([]byte("another window")),
		StreamID: "s",
		Location: Location{
			Offset: OffsetSpan{Start: 10, End: 30},
			Window: WindowRef{Index: 7, Span: OffsetSpan{Start: 8, End: 40}},
		},
	}
	assert.Equal(t, structuralID, other.ComputeStructuralID(ruleStructuralID))

	tests := []struct {
		name  string
		match Match
		rule  string
	}{
		{"different start", Match{StreamID: "s", Location: Location{Offset: OffsetSpan{Start: 11, End: 30}}}, ruleStructuralID},
		{"different end", Match{StreamID: "s", Location: Location{Offset: OffsetSpan{Start: 10, End: 31}}}, ruleStructuralID},
		{"different stream", Match{StreamID: "t", Location: Location{Offset: OffsetSpan{Start: 10, End: 30}}}, ruleStructuralID},
		{"different rule", Match{StreamID: "s", Location: Location{Offset: OffsetSpan{Start: 10, End: 30}}}, "other_rule"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotEqual(t, structuralID, tt.match.ComputeStructuralID(tt.rule))
		})
	}
}

func TestMatch_JSONOmitsEmptyEngineMetadata(t *testing.T) {
	data, err := json.Marshal(Match{RuleID: "r"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"Tags"`)
	assert.NotContains(t, string(data), `"Meta"`)

	data, err = json.Marshal(Match{RuleID: "r", Tags: []string{"malware"}})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Tags":["malware"]`)
}
