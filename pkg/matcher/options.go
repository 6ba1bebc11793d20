package matcher

import "time"

// Options tunes how a matcher treats slow or failing rules.
type Options struct {
	// Tolerant logs a rule that times out or errors and carries on with the
	// remaining rules instead of failing the window.
	Tolerant bool
	// RuleTimeout bounds one rule over one window.
	RuleTimeout time.Duration
	Dedupe      DedupeMode
}

const defaultRuleTimeout = 5 * time.Second

// DefaultOptions fails a window on the first rule failure.
func DefaultOptions() Options {
	return Options{RuleTimeout: defaultRuleTimeout}
}
