package rule

import "fmt"

// RuleLoadError reports a rule source that could not be loaded: a path that
// does not exist or cannot be read, malformed YAML, or an invalid rule.
type RuleLoadError struct {
	Path string
	Err  error
}

func (e *RuleLoadError) Error() string {
	return fmt.Sprintf("load rules %s: %v", e.Path, e.Err)
}

func (e *RuleLoadError) Unwrap() error {
	return e.Err
}
