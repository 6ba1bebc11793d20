package matcher

import (
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"
	"github.com/praetorian-inc/streamscan/pkg/logger"
	"github.com/praetorian-inc/streamscan/pkg/prefilter"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

const parallelThreshold = 10000 // bytes

// PortableRegexpMatcher implements Matcher using regexp2 (pure Go, no CGO).
//
// Matching and capture extraction happen in a single pass. Rules carrying
// keywords are only run when the Aho-Corasick prefilter finds one of them in
// the content. Content of parallelThreshold bytes or more is scanned by a
// worker pool, one rule per job.
//
// PortableRegexpMatcher is safe for concurrent use. The compiled regex and
// group name caches are read-only after construction and every call uses its
// own Deduplicator.
type PortableRegexpMatcher struct {
	rules          []*types.Rule
	regexCache     map[string]*regexp2.Regexp // read-only after init
	groupNameCache map[string][]string        // read-only after init
	prefilter      *prefilter.Prefilter
	contextLines   int
	opts           Options
	log            logger.Logger
}

// NewPortableRegexp creates a portable regexp matcher with DefaultOptions.
func NewPortableRegexp(rules []*types.Rule, contextLines int) (*PortableRegexpMatcher, error) {
	return NewPortableRegexpWithOptions(rules, contextLines, DefaultOptions(), logger.Std())
}

// NewPortableRegexpWithOptions creates a portable regexp matcher.
func NewPortableRegexpWithOptions(rules []*types.Rule, contextLines int, opts Options, log logger.Logger) (*PortableRegexpMatcher, error) {
	if len(rules) == 0 {
		return nil, fmt.Errorf("no rules provided")
	}
	if opts.RuleTimeout <= 0 {
		opts.RuleTimeout = DefaultOptions().RuleTimeout
	}

	m := &PortableRegexpMatcher{
		rules:          rules,
		regexCache:     make(map[string]*regexp2.Regexp),
		groupNameCache: make(map[string][]string),
		prefilter:      prefilter.New(rules),
		contextLines:   contextLines,
		opts:           opts,
		log:            log,
	}

	// Compile up front so a bad pattern fails construction, not a scan.
	for _, rule := range rules {
		if rule.StructuralID == "" {
			rule.StructuralID = rule.ComputeStructuralID()
		}
		if _, ok := m.regexCache[rule.Pattern]; ok {
			continue
		}
		re, err := compilePattern(rule)
		if err != nil {
			return nil, err
		}
		re.MatchTimeout = opts.RuleTimeout
		m.regexCache[rule.Pattern] = re
		m.groupNameCache[rule.Pattern] = re.GetGroupNames()
	}

	return m, nil
}

// compilePattern tries RE2 mode first (no backtracking) and falls back to
// the Perl-compatible mode for advanced features like (?x).
func compilePattern(rule *types.Rule) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(rule.Pattern, regexp2.RE2|regexp2.Multiline)
	if err == nil {
		return re, nil
	}
	re, err = regexp2.Compile(rule.Pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("failed to compile pattern %q for rule %s: %w", rule.Pattern, rule.ID, err)
	}
	return re, nil
}

// Match scans content against all loaded rules.
func (m *PortableRegexpMatcher) Match(content []byte) ([]*types.Match, error) {
	blobID := types.ComputeBlobID(content)
	return m.MatchWithBlobID(content, blobID)
}

// MatchWithBlobID scans content with a known BlobID.
// Outside tolerant mode the first failing rule fails the whole call.
func (m *PortableRegexpMatcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	result, err := m.MatchWithStats(content, blobID)
	if err != nil {
		return nil, err
	}
	return result.Matches, nil
}

// MatchWithStats is MatchDetailed with the tolerance policy applied. The
// result is returned even when err is set, for its per-rule accounting.
func (m *PortableRegexpMatcher) MatchWithStats(content []byte, blobID types.BlobID) (*MatchResult, error) {
	result := m.MatchDetailed(content, blobID)
	if m.opts.Tolerant {
		return result, nil
	}
	if failed := result.Failed(); len(failed) > 0 {
		return result, fmt.Errorf("rule %s: %w", failed[0].RuleID, failed[0].Error)
	}
	return result, nil
}

// MatchDetailed scans content and reports per-rule statistics alongside the
// matches. Rule failures never abort the scan here; they are recorded in
// RuleStats and logged.
func (m *PortableRegexpMatcher) MatchDetailed(content []byte, blobID types.BlobID) *MatchResult {
	candidates := m.prefilter.Filter(content)
	result := &MatchResult{RuleStats: make(map[string]RuleStat, len(m.rules))}

	if len(candidates) < len(m.rules) {
		picked := make(map[*types.Rule]bool, len(candidates))
		for _, rule := range candidates {
			picked[rule] = true
		}
		for _, rule := range m.rules {
			if !picked[rule] {
				result.record(RuleStat{RuleID: rule.ID, Status: RuleSkipped})
			}
		}
	}

	var perRule []ruleOutcome
	if len(content) >= parallelThreshold && len(candidates) > 1 {
		perRule = m.matchParallel(content, blobID, candidates)
	} else {
		perRule = m.matchSequential(content, blobID, candidates)
	}

	result.Matches = make([]*types.Match, 0, len(candidates))
	dedup := newDeduplicatorFor(m.opts.Dedupe)

	for _, outcome := range perRule {
		result.record(outcome.stat)
		for _, match := range outcome.matches {
			if dedup.AddIfNew(match) {
				result.Matches = append(result.Matches, match)
			}
		}
	}
	return result
}

type ruleOutcome struct {
	stat    RuleStat
	matches []*types.Match
}

// runRule collects every match of one rule. A regex failure stops the rule
// but keeps the matches found before it.
func (m *PortableRegexpMatcher) runRule(rule *types.Rule, contentStr string, index runeIndex, content []byte, blobID types.BlobID) ruleOutcome {
	start := time.Now()
	out := ruleOutcome{stat: RuleStat{RuleID: rule.ID, Status: RuleCompleted}}

	re := m.regexCache[rule.Pattern]
	if re == nil {
		out.stat.Status = RuleSkipped
		return out
	}

	match, err := re.FindStringMatch(contentStr)
	for err == nil && match != nil {
		s := index.byteOffset(match.Index)
		e := index.byteOffset(match.Index + match.Length)

		groups := extractCaptureGroups(match, index, content)
		namedGroups := extractNamedGroups(match, m.groupNameCache[rule.Pattern], index, content)
		out.matches = append(out.matches, buildMatchResult(blobID, rule, s, e, groups, namedGroups, content, m.contextLines))

		match, err = re.FindNextMatch(match)
	}

	out.stat.Duration = time.Since(start)
	if err != nil {
		out.stat.Error = err
		if isTimeout(err) {
			out.stat.Status = RuleTimedOut
			m.log.Warnf("rule %s regex timeout on content (skipping rule for this window)", rule.ID)
		} else {
			out.stat.Status = RuleError
			m.log.Warnf("rule %s regex error (skipping rule for this window): %v", rule.ID, err)
		}
	}
	return out
}

func isTimeout(err error) bool {
	return err != nil && strings.Contains(err.Error(), "match timeout")
}

// matchSequential runs the candidate rules one after another.
func (m *PortableRegexpMatcher) matchSequential(content []byte, blobID types.BlobID, rules []*types.Rule) []ruleOutcome {
	contentStr := string(content)
	index := newRuneIndex(content)
	outcomes := make([]ruleOutcome, 0, len(rules))
	for _, rule := range rules {
		outcomes = append(outcomes, m.runRule(rule, contentStr, index, content, blobID))
	}
	return outcomes
}

// matchParallel runs the candidate rules on a worker pool. Outcomes keep the
// rule order so results do not depend on scheduling.
func (m *PortableRegexpMatcher) matchParallel(content []byte, blobID types.BlobID, rules []*types.Rule) []ruleOutcome {
	numWorkers := runtime.GOMAXPROCS(0)
	if numWorkers > len(rules) {
		numWorkers = len(rules)
	}
	contentStr := string(content)
	index := newRuneIndex(content)
	outcomes := make([]ruleOutcome, len(rules))

	jobs := make(chan int, len(rules))
	for i := range rules {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				outcomes[idx] = m.runRule(rules[idx], contentStr, index, content, blobID)
			}
		}()
	}
	wg.Wait()

	return outcomes
}

// Close releases resources (no-op for regexp).
func (m *PortableRegexpMatcher) Close() error {
	return nil
}
