package rule

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

// FilterConfig selects rules by ID. Include and Exclude hold regular
// expressions matched against rule IDs; Categories keeps rules tagged with
// any of the listed categories.
type FilterConfig struct {
	Include    []string
	Exclude    []string
	Categories []string
}

// ParsePatterns splits a comma-separated list, dropping empty entries.
func ParsePatterns(patterns string) []string {
	result := []string{}
	for _, p := range strings.Split(patterns, ",") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

func compileAll(patterns []string) ([]*regexp.Regexp, error) {
	regexes := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid regex pattern %q: %w", p, err)
		}
		regexes = append(regexes, re)
	}
	return regexes, nil
}

func anyMatch(regexes []*regexp.Regexp, id string) bool {
	return slices.ContainsFunc(regexes, func(re *regexp.Regexp) bool {
		return re.MatchString(id)
	})
}

// Filter returns the rules that pass config, in their original order. An
// empty Include keeps every rule; Exclude wins over Include. The input slice
// is not modified.
func Filter(rules []*types.Rule, config FilterConfig) ([]*types.Rule, error) {
	include, err := compileAll(config.Include)
	if err != nil {
		return nil, err
	}
	exclude, err := compileAll(config.Exclude)
	if err != nil {
		return nil, err
	}

	kept := make([]*types.Rule, 0, len(rules))
	for _, r := range rules {
		if len(include) > 0 && !anyMatch(include, r.ID) {
			continue
		}
		if anyMatch(exclude, r.ID) {
			continue
		}
		if len(config.Categories) > 0 && !slices.ContainsFunc(r.Categories, func(c string) bool {
			return slices.Contains(config.Categories, c)
		}) {
			continue
		}
		kept = append(kept, r)
	}
	return kept, nil
}

// ApplyRuleset keeps only the rules a ruleset includes, in ruleset order.
// Unknown rule IDs are reported as an error.
func ApplyRuleset(rules []*types.Rule, rs *types.Ruleset) ([]*types.Rule, error) {
	byID := make(map[string]*types.Rule, len(rules))
	for _, r := range rules {
		byID[r.ID] = r
	}

	selected := make([]*types.Rule, 0, len(rs.RuleIDs))
	for _, id := range rs.RuleIDs {
		r, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("ruleset %s references unknown rule ID: %s", rs.ID, id)
		}
		selected = append(selected, r)
	}
	return selected, nil
}

// FindRuleset returns the ruleset with the given ID.
func FindRuleset(rulesets []*types.Ruleset, id string) (*types.Ruleset, error) {
	for _, rs := range rulesets {
		if rs.ID == id {
			return rs, nil
		}
	}
	return nil, fmt.Errorf("unknown ruleset %q", id)
}
