package rule

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

// Loader reads rules from YAML files and from an embedded builtin tree with
// "rules/" and "rulesets/" directories.
type Loader struct {
	fs fs.FS
}

// NewLoader creates a loader whose builtins are the embedded rules.
func NewLoader() *Loader {
	return &Loader{fs: builtinFS}
}

// NewLoaderWithFS creates a loader whose builtins come from fsys.
func NewLoaderWithFS(fsys fs.FS) *Loader {
	return &Loader{fs: fsys}
}

// ParseRules parses every rule of a rules YAML document and computes their
// structural IDs.
func ParseRules(data []byte) ([]*types.Rule, error) {
	var doc yamlRulesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	rules := make([]*types.Rule, 0, len(doc.Rules))
	for _, yr := range doc.Rules {
		rules = append(rules, yr.rule())
	}
	return rules, nil
}

// ParseRulesets parses every ruleset of a rulesets YAML document.
func ParseRulesets(data []byte) ([]*types.Ruleset, error) {
	var doc yamlRulesetsFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	rulesets := make([]*types.Ruleset, 0, len(doc.Rulesets))
	for _, yrs := range doc.Rulesets {
		rulesets = append(rulesets, yrs.ruleset())
	}
	return rulesets, nil
}

// LoadRuleFiles loads every rule from the given YAML files or directories.
// Directories are walked for .yml and .yaml files in lexical order. Every path
// is checked to exist and be readable before any file is parsed. Failures are
// reported as *RuleLoadError naming the offending path.
func (l *Loader) LoadRuleFiles(paths []string) ([]*types.Rule, error) {
	var files []string
	for _, path := range paths {
		found, err := collectRuleFiles(path)
		if err != nil {
			return nil, &RuleLoadError{Path: path, Err: err}
		}
		files = append(files, found...)
	}

	var rules []*types.Rule
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &RuleLoadError{Path: path, Err: err}
		}
		loaded, err := ParseRules(data)
		if err != nil {
			return nil, &RuleLoadError{Path: path, Err: err}
		}
		if len(loaded) == 0 {
			return nil, &RuleLoadError{Path: path, Err: fmt.Errorf("no rules found in YAML")}
		}
		for _, r := range loaded {
			if err := ValidateRule(r); err != nil {
				return nil, &RuleLoadError{Path: path, Err: err}
			}
		}
		rules = append(rules, loaded...)
	}
	return rules, nil
}

// collectRuleFiles resolves path to the rule files it names.
func collectRuleFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		f.Close()
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && isRuleFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .yml or .yaml rule files in directory")
	}
	sort.Strings(files)
	return files, nil
}

func isRuleFile(path string) bool {
	ext := filepath.Ext(path)
	return ext == ".yml" || ext == ".yaml"
}

// walkBuiltin parses each YAML file under dir of the builtin tree.
func (l *Loader) walkBuiltin(dir string, parse func(path string, data []byte) error) error {
	return fs.WalkDir(l.fs, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !isRuleFile(path) {
			return nil
		}
		data, err := fs.ReadFile(l.fs, path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		if err := parse(path, data); err != nil {
			return fmt.Errorf("failed to parse %s: %w", path, err)
		}
		return nil
	})
}

// LoadBuiltinRules loads the builtin rules.
func (l *Loader) LoadBuiltinRules() ([]*types.Rule, error) {
	var rules []*types.Rule
	err := l.walkBuiltin("rules", func(_ string, data []byte) error {
		loaded, err := ParseRules(data)
		rules = append(rules, loaded...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rules, nil
}

// LoadBuiltinRulesets loads the builtin rulesets.
func (l *Loader) LoadBuiltinRulesets() ([]*types.Ruleset, error) {
	var rulesets []*types.Ruleset
	err := l.walkBuiltin("rulesets", func(_ string, data []byte) error {
		loaded, err := ParseRulesets(data)
		rulesets = append(rulesets, loaded...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return rulesets, nil
}
