//go:build !cgo || !yara

package matcher

import "fmt"

// NewYARA stub for builds without libyara (non-CGO or missing yara tag).
func NewYARA(files []string, compiled bool, contextLines int) (Matcher, error) {
	return nil, fmt.Errorf("yara engine requires CGO (build with CGO_ENABLED=1 and -tags=yara)")
}
