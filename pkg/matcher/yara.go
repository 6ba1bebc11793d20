//go:build cgo && yara

package matcher

import (
	"fmt"
	"os"
	"time"

	"github.com/hillu/go-yara/v4"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

const yaraNamespace = "streamscan"

// YARAMatcher implements Matcher with libyara. Every string hit of a
// matching rule becomes one Match; rules that match on their condition
// alone produce a single Match spanning the whole content.
//
// Scanning compiled rules is safe for concurrent use.
type YARAMatcher struct {
	rules        *yara.Rules
	timeout      time.Duration
	contextLines int
}

// NewYARA compiles YARA source files, or loads one precompiled rules file
// when compiled is set.
func NewYARA(files []string, compiled bool, contextLines int) (Matcher, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("no YARA rule files provided")
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return nil, fmt.Errorf("yara rules %s: %w", f, err)
		}
	}

	var rules *yara.Rules
	var err error
	if compiled {
		if len(files) != 1 {
			return nil, fmt.Errorf("compiled YARA rules must be a single file, got %d", len(files))
		}
		rules, err = yara.LoadRules(files[0])
		if err != nil {
			return nil, fmt.Errorf("load compiled rules %s: %w", files[0], err)
		}
	} else {
		rules, err = compileYARA(files)
		if err != nil {
			return nil, err
		}
	}

	return &YARAMatcher{
		rules:        rules,
		timeout:      DefaultOptions().RuleTimeout,
		contextLines: contextLines,
	}, nil
}

func compileYARA(files []string) (*yara.Rules, error) {
	compiler, err := yara.NewCompiler()
	if err != nil {
		return nil, fmt.Errorf("yara compiler init: %w", err)
	}
	defer compiler.Destroy()

	for _, path := range files {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", path, err)
		}
		err = compiler.AddFile(f, yaraNamespace)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("compile %s: %w", path, err)
		}
	}

	rules, err := compiler.GetRules()
	if err != nil {
		return nil, fmt.Errorf("get rules: %w", err)
	}
	return rules, nil
}

// Match scans content against all loaded rules.
func (m *YARAMatcher) Match(content []byte) ([]*types.Match, error) {
	return m.MatchWithBlobID(content, types.ComputeBlobID(content))
}

// MatchWithBlobID scans content with a known BlobID.
func (m *YARAMatcher) MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error) {
	if m.rules == nil {
		return nil, fmt.Errorf("yara matcher is closed")
	}

	var hits yara.MatchRules
	if err := m.rules.ScanMem(content, yara.ScanFlagsFastMode, m.timeout, &hits); err != nil {
		return nil, fmt.Errorf("yara scan: %w", err)
	}

	var matches []*types.Match
	dedup := NewDeduplicator()
	for _, hit := range hits {
		rule := &types.Rule{ID: hit.Namespace + "." + hit.Rule, Name: hit.Rule, Pattern: hit.Namespace + ":" + hit.Rule}
		rule.StructuralID = rule.ComputeStructuralID()

		meta := make(map[string]string, len(hit.Metas))
		for _, item := range hit.Metas {
			meta[item.Identifier] = fmt.Sprintf("%v", item.Value)
		}

		spans := make([][2]int, 0, len(hit.Strings))
		for _, s := range hit.Strings {
			start := int(s.Offset)
			spans = append(spans, [2]int{start, start + len(s.Data)})
		}
		if len(spans) == 0 {
			spans = append(spans, [2]int{0, len(content)})
		}

		for _, span := range spans {
			if span[1] > len(content) {
				continue
			}
			match := buildMatchResult(blobID, rule, span[0], span[1], nil, nil, content, m.contextLines)
			match.Tags = hit.Tags
			match.Meta = meta
			if dedup.AddIfNew(match) {
				matches = append(matches, match)
			}
		}
	}
	return matches, nil
}

// Close releases the compiled rules.
func (m *YARAMatcher) Close() error {
	if m.rules != nil {
		m.rules.Destroy()
		m.rules = nil
	}
	return nil
}
