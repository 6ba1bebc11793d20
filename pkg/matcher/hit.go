package matcher

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// hitSearchSlack is how far past a reported end offset resolveHit looks for
// the match that produced it.
const hitSearchSlack = 100

var errHitNotFound = errors.New("pattern did not match at reported offset")

var regexComment = regexp.MustCompile(`\(\?#[^)]*\)`)

// flattenExtended rewrites a free-spacing (?x) pattern into the compact form
// hyperscan compiles: comments and unescaped whitespace are dropped, as are
// inline (?s) and (?m) flags, which the engine always sets. Other patterns
// are returned unchanged.
func flattenExtended(pattern string) string {
	body, ok := strings.CutPrefix(strings.TrimSpace(pattern), "(?x)")
	if !ok {
		return pattern
	}
	body = regexComment.ReplaceAllString(body, "")
	body = strings.NewReplacer("(?s)", "", "(?m)", "").Replace(body)

	var b strings.Builder
	escaped := false
	for _, r := range body {
		switch {
		case escaped:
			escaped = false
		case r == '\\':
			escaped = true
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// resolveHit re-runs re over content to recover the bounds and submatches of
// a hit reported as [start,end). Without start-of-match tracking the engine
// reports start as 0; the match ending nearest end is used then. Submatches
// alias content.
func resolveHit(content []byte, re *regexp.Regexp, start, end int) (int, int, [][]byte, error) {
	if start < 0 || start > end || end > len(content) {
		return 0, 0, nil, errors.Errorf("hit [%d,%d) outside %d byte window", start, end, len(content))
	}
	if start > 0 {
		sub := re.FindSubmatch(content[start:end])
		if sub == nil {
			return 0, 0, nil, errHitNotFound
		}
		return start, end, sub, nil
	}

	limit := min(end+hitSearchSlack, len(content))
	var best []int
	bestDist := -1
	for _, loc := range re.FindAllSubmatchIndex(content[:limit], -1) {
		dist := loc[1] - end
		if dist < 0 {
			dist = -dist
		}
		if bestDist < 0 || dist < bestDist {
			best, bestDist = loc, dist
		}
	}
	if best == nil {
		return 0, 0, nil, errHitNotFound
	}

	sub := make([][]byte, len(best)/2)
	for i := range sub {
		if best[2*i] >= 0 {
			sub[i] = content[best[2*i]:best[2*i+1]]
		}
	}
	return best[0], best[1], sub, nil
}

// hitGroups copies the positional groups of sub, skipping the whole match.
func hitGroups(sub [][]byte) [][]byte {
	if len(sub) < 2 {
		return nil
	}
	groups := make([][]byte, 0, len(sub)-1)
	for _, g := range sub[1:] {
		groups = append(groups, bytes.Clone(g))
	}
	return groups
}

// hitNamedGroups copies the named groups of sub.
func hitNamedGroups(re *regexp.Regexp, sub [][]byte) map[string][]byte {
	named := make(map[string][]byte)
	for i, name := range re.SubexpNames() {
		if i == 0 || name == "" || i >= len(sub) {
			continue
		}
		named[name] = bytes.Clone(sub[i])
	}
	return named
}
