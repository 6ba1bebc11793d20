package rule

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

func validRule() *types.Rule {
	r := &types.Rule{
		ID:       "test.token.1",
		Name:     "Test Token",
		Pattern:  `\btok_([a-z0-9]{8})\b`,
		Keywords: []string{"tok_"},
	}
	r.StructuralID = r.ComputeStructuralID()
	return r
}

func TestValidateRule(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *types.Rule)
		wantErr []string
	}{
		{name: "valid", mutate: func(*types.Rule) {}},
		{name: "empty structural id is accepted", mutate: func(r *types.Rule) { r.StructuralID = "" }},
		{name: "lookahead is accepted", mutate: func(r *types.Rule) {
			r.Pattern = `tok_(?=[a-z])([a-z0-9]{8})`
			r.StructuralID = ""
		}},
		{name: "missing id", mutate: func(r *types.Rule) { r.ID = "" }, wantErr: []string{"rule ID is required"}},
		{name: "missing name", mutate: func(r *types.Rule) { r.Name = "" }, wantErr: []string{"name is required"}},
		{name: "missing pattern", mutate: func(r *types.Rule) {
			r.Pattern = ""
			r.StructuralID = ""
		}, wantErr: []string{"pattern is required"}},
		{name: "invalid pattern", mutate: func(r *types.Rule) {
			r.Pattern = "([a-"
			r.StructuralID = ""
		}, wantErr: []string{"invalid pattern for rule test.token.1"}},
		{name: "empty keyword", mutate: func(r *types.Rule) { r.Keywords = []string{"tok_", ""} }, wantErr: []string{"empty keyword"}},
		{name: "stale structural id", mutate: func(r *types.Rule) { r.Pattern = `tok_[0-9]+` }, wantErr: []string{"stale StructuralID"}},
		{name: "every problem reported", mutate: func(r *types.Rule) {
			r.Name = ""
			r.Pattern = ""
			r.StructuralID = ""
		}, wantErr: []string{"2 errors occurred", "name is required", "pattern is required"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validRule()
			tt.mutate(r)
			err := ValidateRule(r)
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, msg := range tt.wantErr {
				assert.Contains(t, err.Error(), msg)
			}
		})
	}

	assert.EqualError(t, ValidateRule(nil), "rule is nil")
}

func TestValidateRuleset(t *testing.T) {
	known := map[string]bool{"a": true, "b": true}

	tests := []struct {
		name    string
		rs      *types.Ruleset
		known   map[string]bool
		wantErr string
	}{
		{name: "valid", rs: &types.Ruleset{ID: "rs", Name: "RS", RuleIDs: []string{"a", "b"}}, known: known},
		{name: "unknown ids allowed without reference set", rs: &types.Ruleset{ID: "rs", Name: "RS", RuleIDs: []string{"zzz"}}},
		{name: "nil", wantErr: "ruleset is nil"},
		{name: "missing id", rs: &types.Ruleset{Name: "RS", RuleIDs: []string{"a"}}, wantErr: "ruleset ID is required"},
		{name: "missing name", rs: &types.Ruleset{ID: "rs", RuleIDs: []string{"a"}}, wantErr: "name is required"},
		{name: "no rules", rs: &types.Ruleset{ID: "rs", Name: "RS"}, wantErr: "at least one rule"},
		{name: "duplicate", rs: &types.Ruleset{ID: "rs", Name: "RS", RuleIDs: []string{"a", "a"}}, wantErr: "duplicate rule ID a"},
		{name: "unknown", rs: &types.Ruleset{ID: "rs", Name: "RS", RuleIDs: []string{"a", "c"}}, known: known, wantErr: "unknown rule ID c"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRuleset(tt.rs, tt.known)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
