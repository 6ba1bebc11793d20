package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

func TestParsePatterns(t *testing.T) {
	assert.Equal(t, []string{}, ParsePatterns(""))
	assert.Equal(t, []string{}, ParsePatterns(" , ,"))
	assert.Equal(t, []string{`aws\..*`, "github"}, ParsePatterns(` aws\..* ,github,`))
}

func filterIDs(rules []*types.Rule) []string {
	ids := []string{}
	for _, r := range rules {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestFilter(t *testing.T) {
	rules := []*types.Rule{
		{ID: "streamscan.aws.1", Categories: []string{"api", "cloud"}},
		{ID: "streamscan.aws.2", Categories: []string{"cloud", "secret"}},
		{ID: "streamscan.github.1", Categories: []string{"api"}},
		{ID: "streamscan.http.1", Categories: []string{"network"}},
	}

	tests := []struct {
		name   string
		config FilterConfig
		want   []string
	}{
		{
			name: "empty config keeps everything",
			want: []string{"streamscan.aws.1", "streamscan.aws.2", "streamscan.github.1", "streamscan.http.1"},
		},
		{
			name:   "include",
			config: FilterConfig{Include: []string{`\.aws\.`}},
			want:   []string{"streamscan.aws.1", "streamscan.aws.2"},
		},
		{
			name:   "exclude",
			config: FilterConfig{Exclude: []string{`aws`, `http`}},
			want:   []string{"streamscan.github.1"},
		},
		{
			name:   "exclude wins over include",
			config: FilterConfig{Include: []string{`aws`}, Exclude: []string{`\.2$`}},
			want:   []string{"streamscan.aws.1"},
		},
		{
			name:   "categories",
			config: FilterConfig{Categories: []string{"api"}},
			want:   []string{"streamscan.aws.1", "streamscan.github.1"},
		},
		{
			name:   "categories combine with include",
			config: FilterConfig{Include: []string{`aws`}, Categories: []string{"secret"}},
			want:   []string{"streamscan.aws.2"},
		},
		{
			name:   "nothing matches",
			config: FilterConfig{Include: []string{`slack`}},
			want:   []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Filter(rules, tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, filterIDs(got))
		})
	}
	assert.Len(t, rules, 4, "input must not be modified")
}

func TestFilter_InvalidRegex(t *testing.T) {
	rules := []*types.Rule{{ID: "a"}}

	_, err := Filter(rules, FilterConfig{Include: []string{"[a-"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid regex pattern "[a-"`)

	_, err = Filter(rules, FilterConfig{Exclude: []string{"(unclosed"}})
	assert.Error(t, err)
}

func TestFilter_NilRules(t *testing.T) {
	got, err := Filter(nil, FilterConfig{Include: []string{"x"}})
	require.NoError(t, err)
	assert.Empty(t, got)
}
