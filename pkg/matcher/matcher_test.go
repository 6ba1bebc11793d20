package matcher

import (
	"testing"

	"github.com/praetorian-inc/streamscan/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEngine(t *testing.T) {
	tests := []struct {
		input   string
		want    Engine
		wantErr bool
	}{
		{"", EngineRegexp, false},
		{"regexp", EngineRegexp, false},
		{"Portable", EngineRegexp, false},
		{"HYPERSCAN", EngineHyperscan, false},
		{" yara ", EngineYARA, false},
		{"pcre", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseEngine(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNew_DefaultsToPortableEngine(t *testing.T) {
	m, err := New(Config{Rules: []*types.Rule{{ID: "t", Name: "T", Pattern: `test`}}, Options: DefaultOptions()})
	require.NoError(t, err)
	defer m.Close()

	_, ok := m.(*PortableRegexpMatcher)
	assert.True(t, ok)

	matches, err := m.Match([]byte("a test"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestNew_UnknownEngine(t *testing.T) {
	_, err := New(Config{Engine: "pcre", Rules: []*types.Rule{{ID: "t", Pattern: `t`}}})
	assert.Error(t, err)
}

func TestNew_YARANeedsFiles(t *testing.T) {
	_, err := New(Config{Engine: EngineYARA})
	assert.Error(t, err)
}
