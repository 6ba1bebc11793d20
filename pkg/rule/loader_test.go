package rule

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRules(t *testing.T) {
	rules, err := ParseRules([]byte(`rules:
  - name: Telnet Password
    id: test.telnet.1
    pattern: 'Password: (\S+)'
    description: Cleartext telnet login
    examples: ['Password: hunter2']
    negative_examples: ['Password:']
    references: ['https://example.com/telnet']
    categories: [network, secret]
    keywords: ['Password:']
  - name: Session
    id: test.session.1
    pattern: '(?P<sid>SID=[0-9a-f]{16})'
`))
	require.NoError(t, err)
	require.Len(t, rules, 2)

	r := rules[0]
	assert.Equal(t, "test.telnet.1", r.ID)
	assert.Equal(t, "Telnet Password", r.Name)
	assert.Equal(t, `Password: (\S+)`, r.Pattern)
	assert.Equal(t, "Cleartext telnet login", r.Description)
	assert.Equal(t, []string{"Password: hunter2"}, r.Examples)
	assert.Equal(t, []string{"Password:"}, r.NegativeExamples)
	assert.Equal(t, []string{"https://example.com/telnet"}, r.References)
	assert.Equal(t, []string{"network", "secret"}, r.Categories)
	assert.Equal(t, []string{"Password:"}, r.Keywords)
	assert.Equal(t, r.ComputeStructuralID(), r.StructuralID)

	// Named groups hash like unnamed ones.
	assert.Equal(t, rules[1].ComputeStructuralID(), rules[1].StructuralID)
	assert.Len(t, rules[1].StructuralID, 40)
}

func TestParseRules_Errors(t *testing.T) {
	_, err := ParseRules([]byte("rules: [[["))
	assert.ErrorContains(t, err, "failed to parse YAML")

	rules, err := ParseRules([]byte("other: 1\n"))
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestParseRulesets(t *testing.T) {
	rulesets, err := ParseRulesets([]byte(`rulesets:
  - id: long
    name: Long Form
    include_rule_ids: [a, b]
  - id: short
    name: Short Form
    description: uses rule_ids
    rule_ids: [c]
`))
	require.NoError(t, err)
	require.Len(t, rulesets, 2)
	assert.Equal(t, []string{"a", "b"}, rulesets[0].RuleIDs)
	assert.Equal(t, "short", rulesets[1].ID)
	assert.Equal(t, "uses rule_ids", rulesets[1].Description)
	assert.Equal(t, []string{"c"}, rulesets[1].RuleIDs)

	_, err = ParseRulesets([]byte("rulesets: {"))
	assert.Error(t, err)
}

func TestLoader_CustomFS(t *testing.T) {
	fsys := fstest.MapFS{
		"rules/one.yml":    {Data: []byte("rules:\n  - {name: One, id: fs.one, pattern: 'one'}\n")},
		"rules/two.yaml":   {Data: []byte("rules:\n  - {name: Two, id: fs.two, pattern: 'two'}\n")},
		"rules/notes.txt":  {Data: []byte("ignored")},
		"rulesets/all.yml": {Data: []byte("rulesets:\n  - {id: all, name: All, rule_ids: [fs.one, fs.two]}\n")},
		"rulesets/skip.md": {Data: []byte("ignored")},
		"unrelated/x.yml":  {Data: []byte("rules: [[[")},
	}
	loader := NewLoaderWithFS(fsys)

	rules, err := loader.LoadBuiltinRules()
	require.NoError(t, err)
	require.Len(t, rules, 2)
	assert.Equal(t, "fs.one", rules[0].ID)
	assert.Equal(t, "fs.two", rules[1].ID)

	rulesets, err := loader.LoadBuiltinRulesets()
	require.NoError(t, err)
	require.Len(t, rulesets, 1)
	assert.Equal(t, []string{"fs.one", "fs.two"}, rulesets[0].RuleIDs)
}

func TestLoader_CustomFSErrors(t *testing.T) {
	_, err := NewLoaderWithFS(fstest.MapFS{}).LoadBuiltinRules()
	assert.Error(t, err, "missing rules directory")

	broken := fstest.MapFS{"rules/bad.yml": {Data: []byte("rules: [[[")}}
	_, err = NewLoaderWithFS(broken).LoadBuiltinRules()
	assert.ErrorContains(t, err, "failed to parse rules/bad.yml")
}
