// Package prefilter narrows a rule set to the rules worth running on a piece
// of content, using an Aho-Corasick automaton over the rules' keywords.
package prefilter

import (
	"slices"
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

// Prefilter is safe for concurrent use.
type Prefilter struct {
	mu        sync.Mutex // ahocorasick.Matcher keeps per-call state
	ac        *ahocorasick.Matcher
	rules     []*types.Rule
	byKeyword [][]int // keyword index -> indexes into rules
	always    []bool  // rule has no keywords
}

// New indexes the keywords of rules. Matching is case-sensitive.
func New(rules []*types.Rule) *Prefilter {
	pf := &Prefilter{rules: rules, always: make([]bool, len(rules))}

	index := make(map[string]int)
	var keywords []string
	for i, r := range rules {
		if len(r.Keywords) == 0 {
			pf.always[i] = true
			continue
		}
		for _, kw := range r.Keywords {
			k, ok := index[kw]
			if !ok {
				k = len(keywords)
				index[kw] = k
				keywords = append(keywords, kw)
				pf.byKeyword = append(pf.byKeyword, nil)
			}
			pf.byKeyword[k] = append(pf.byKeyword[k], i)
		}
	}
	if len(keywords) > 0 {
		pf.ac = ahocorasick.NewStringMatcher(keywords)
	}
	return pf
}

// Filter returns, in their original order, the rules without keywords and
// the rules with at least one keyword present in content.
func (pf *Prefilter) Filter(content []byte) []*types.Rule {
	keep := slices.Clone(pf.always)
	if pf.ac != nil {
		pf.mu.Lock()
		hits := pf.ac.Match(content)
		pf.mu.Unlock()
		for _, k := range hits {
			for _, i := range pf.byKeyword[k] {
				keep[i] = true
			}
		}
	}

	out := make([]*types.Rule, 0, len(pf.rules))
	for i, ok := range keep {
		if ok {
			out = append(out, pf.rules[i])
		}
	}
	return out
}
