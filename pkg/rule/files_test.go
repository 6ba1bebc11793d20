package rule

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoRules = `rules:
  - name: Marker
    id: test.marker.1
    pattern: 'MARK(ER)'
    keywords: [MARK]
  - name: Digits
    id: test.digits.1
    pattern: '[0-9]{6}'
`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRuleFiles_File(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.yml", twoRules)

	rules, err := NewLoader().LoadRuleFiles([]string{path})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "test.marker.1", rules[0].ID)
	assert.Equal(t, []string{"MARK"}, rules[0].Keywords)
	assert.NotEmpty(t, rules[1].StructuralID)
}

func TestLoadRuleFiles_Directory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", `rules:
  - {name: B, id: test.b, pattern: 'bbb'}
`)
	writeFile(t, dir, "nested/a.yml", `rules:
  - {name: A, id: test.a, pattern: 'aaa'}
`)
	writeFile(t, dir, "README.md", "not a rule file")

	rules, err := NewLoader().LoadRuleFiles([]string{dir})
	require.NoError(t, err)
	require.Len(t, rules, 2)
	// lexical order of full paths: b.yaml < nested/a.yml
	assert.Equal(t, "test.b", rules[0].ID)
	assert.Equal(t, "test.a", rules[1].ID)
}

func TestLoadRuleFiles_Errors(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.yml", twoRules)

	tests := []struct {
		name    string
		path    string
		wantMsg string
	}{
		{"missing path", filepath.Join(dir, "missing.yml"), "missing.yml"},
		{"malformed yaml", writeFile(t, dir, "bad.yml", "rules: [[["), "failed to parse YAML"},
		{"empty rules", writeFile(t, dir, "empty.yml", "rules: []"), "no rules found"},
		{"invalid rule", writeFile(t, dir, "invalid.yml", "rules:\n  - {name: X, id: x, pattern: '([a-'}\n"), "invalid pattern"},
		{"empty directory", filepath.Join(dir, "emptydir"), "no .yml or .yaml"},
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "emptydir"), 0o755))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLoader().LoadRuleFiles([]string{good, tt.path})
			require.Error(t, err)

			var loadErr *RuleLoadError
			require.True(t, errors.As(err, &loadErr))
			assert.Equal(t, tt.path, loadErr.Path)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadRuleFiles_MissingPathCheckedBeforeParsing(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "bad.yml", "rules: [[[")
	missing := filepath.Join(dir, "missing.yml")

	_, err := NewLoader().LoadRuleFiles([]string{bad, missing})
	var loadErr *RuleLoadError
	require.True(t, errors.As(err, &loadErr))
	assert.Equal(t, missing, loadErr.Path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestApplyRuleset(t *testing.T) {
	rules, err := NewLoader().LoadBuiltinRules()
	require.NoError(t, err)
	rulesets, err := NewLoader().LoadBuiltinRulesets()
	require.NoError(t, err)

	rs, err := FindRuleset(rulesets, "network")
	require.NoError(t, err)

	selected, err := ApplyRuleset(rules, rs)
	require.NoError(t, err)
	require.Len(t, selected, len(rs.RuleIDs))
	assert.Equal(t, rs.RuleIDs[0], selected[0].ID)

	_, err = FindRuleset(rulesets, "nope")
	assert.Error(t, err)

	_, err = ApplyRuleset(rules[:1], rs)
	assert.Error(t, err)
}
