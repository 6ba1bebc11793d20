package matcher

import (
	"slices"
	"strings"
	"time"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

// RuleStatus is the outcome of running one rule over one window.
type RuleStatus int

const (
	RuleCompleted RuleStatus = iota
	RuleTimedOut
	RuleError
	// RuleSkipped means the keyword prefilter found none of the rule's keywords.
	RuleSkipped
)

var ruleStatusNames = [...]string{
	RuleCompleted: "completed",
	RuleTimedOut:  "timeout",
	RuleError:     "error",
	RuleSkipped:   "skipped",
}

func (rs RuleStatus) String() string {
	if rs < 0 || int(rs) >= len(ruleStatusNames) {
		return "unknown"
	}
	return ruleStatusNames[rs]
}

// failed reports whether the rule stopped before searching the whole window.
func (rs RuleStatus) failed() bool {
	return rs == RuleTimedOut || rs == RuleError
}

// RuleStat records how a single rule fared. Error is set for timeouts and
// engine errors.
type RuleStat struct {
	RuleID   string
	Status   RuleStatus
	Duration time.Duration
	Error    error
}

// ResultSummary counts rules per outcome.
type ResultSummary struct {
	TotalRules     int
	CompletedRules int
	TimedOutRules  int
	ErrorRules     int
	SkippedRules   int
}

func (s *ResultSummary) count(rs RuleStatus) {
	s.TotalRules++
	switch rs {
	case RuleCompleted:
		s.CompletedRules++
	case RuleTimedOut:
		s.TimedOutRules++
	case RuleError:
		s.ErrorRules++
	case RuleSkipped:
		s.SkippedRules++
	}
}

// Add accumulates the counts of o, e.g. over the windows of a stream.
func (s *ResultSummary) Add(o ResultSummary) {
	s.TotalRules += o.TotalRules
	s.CompletedRules += o.CompletedRules
	s.TimedOutRules += o.TimedOutRules
	s.ErrorRules += o.ErrorRules
	s.SkippedRules += o.SkippedRules
}

// MatchResult is the detailed output of a window scan: the matches plus a
// per-rule account keyed by rule ID.
type MatchResult struct {
	Matches   []*types.Match
	RuleStats map[string]RuleStat
	Summary   ResultSummary
}

// Failed returns the stats of rules that timed out or errored, ordered by
// rule ID.
func (r *MatchResult) Failed() []RuleStat {
	var out []RuleStat
	for _, st := range r.RuleStats {
		if st.Status.failed() {
			out = append(out, st)
		}
	}
	slices.SortFunc(out, func(a, b RuleStat) int { return strings.Compare(a.RuleID, b.RuleID) })
	return out
}

func (r *MatchResult) record(st RuleStat) {
	r.RuleStats[st.RuleID] = st
	r.Summary.count(st.Status)
}
