package rule

import "github.com/praetorian-inc/streamscan/pkg/types"

// yamlRulesFile is a rules document: a top-level "rules" list.
type yamlRulesFile struct {
	Rules []yamlRule `yaml:"rules"`
}

type yamlRule struct {
	Name             string   `yaml:"name"`
	ID               string   `yaml:"id"`
	Pattern          string   `yaml:"pattern"`
	Description      string   `yaml:"description,omitempty"`
	Examples         []string `yaml:"examples,omitempty"`
	NegativeExamples []string `yaml:"negative_examples,omitempty"`
	References       []string `yaml:"references,omitempty"`
	Categories       []string `yaml:"categories,omitempty"`
	Keywords         []string `yaml:"keywords,omitempty"`
}

func (yr yamlRule) rule() *types.Rule {
	r := &types.Rule{
		ID:               yr.ID,
		Name:             yr.Name,
		Pattern:          yr.Pattern,
		Description:      yr.Description,
		Examples:         yr.Examples,
		NegativeExamples: yr.NegativeExamples,
		References:       yr.References,
		Categories:       yr.Categories,
		Keywords:         yr.Keywords,
	}
	r.StructuralID = r.ComputeStructuralID()
	return r
}

// yamlRulesetsFile is a rulesets document: a top-level "rulesets" list.
type yamlRulesetsFile struct {
	Rulesets []yamlRuleset `yaml:"rulesets"`
}

// yamlRuleset accepts both include_rule_ids and the shorter rule_ids.
type yamlRuleset struct {
	ID             string   `yaml:"id"`
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description,omitempty"`
	IncludeRuleIDs []string `yaml:"include_rule_ids"`
	RuleIDs        []string `yaml:"rule_ids"`
}

func (yrs yamlRuleset) ruleset() *types.Ruleset {
	ids := yrs.IncludeRuleIDs
	if len(ids) == 0 {
		ids = yrs.RuleIDs
	}
	return &types.Ruleset{
		ID:          yrs.ID,
		Name:        yrs.Name,
		Description: yrs.Description,
		RuleIDs:     ids,
	}
}
