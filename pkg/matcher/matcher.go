package matcher

import (
	"fmt"
	"strings"

	"github.com/praetorian-inc/streamscan/pkg/logger"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

// Matcher scans content for rule matches.
//
// Implementations are safe for concurrent use: a single compiled rule set is
// shared by every stream processor.
type Matcher interface {
	// Match scans content against all loaded rules.
	// Returns matches with offsets relative to content and capture groups.
	Match(content []byte) ([]*types.Match, error)

	// MatchWithBlobID scans content with a known BlobID.
	MatchWithBlobID(content []byte, blobID types.BlobID) ([]*types.Match, error)

	// Close releases resources (e.g., Hyperscan scratch space).
	Close() error
}

// StatsMatcher is implemented by engines that account for every rule of a
// window: completed, timed out, failed or skipped by the prefilter.
type StatsMatcher interface {
	Matcher
	MatchWithStats(content []byte, blobID types.BlobID) (*MatchResult, error)
}

// Engine selects the matching backend.
type Engine string

const (
	// EngineRegexp is the pure Go regexp2 engine. Always available.
	EngineRegexp Engine = "regexp"
	// EngineHyperscan requires CGO and the hyperscan build tag.
	EngineHyperscan Engine = "hyperscan"
	// EngineYARA requires CGO and the yara build tag. Rules come from
	// YARA source or compiled files instead of YAML regex rules.
	EngineYARA Engine = "yara"
)

// ParseEngine parses an engine name. The empty string selects EngineRegexp.
func ParseEngine(s string) (Engine, error) {
	switch Engine(strings.ToLower(strings.TrimSpace(s))) {
	case "", EngineRegexp, "portable":
		return EngineRegexp, nil
	case EngineHyperscan:
		return EngineHyperscan, nil
	case EngineYARA:
		return EngineYARA, nil
	}
	return "", fmt.Errorf("unknown matcher engine %q (want regexp, hyperscan or yara)", s)
}

// Config for matcher initialization.
type Config struct {
	// Engine selects the backend (default EngineRegexp)
	Engine Engine

	// Rules to compile and load into the matcher (regexp and hyperscan engines)
	Rules []*types.Rule

	// RuleFiles are YARA source files, or a single compiled rules file when
	// Compiled is set (yara engine)
	RuleFiles []string

	// Compiled marks RuleFiles as precompiled YARA rules
	Compiled bool

	// ContextLines of snippet context extracted around each match
	ContextLines int

	// Options tune error tolerance, timeouts and deduplication
	Options Options

	// Logger receives engine warnings (zero value discards them)
	Logger logger.Logger
}

// New creates a new Matcher with the given config.
func New(cfg Config) (Matcher, error) {
	engine := cfg.Engine
	if engine == "" {
		engine = EngineRegexp
	}

	switch engine {
	case EngineRegexp:
		return NewPortableRegexpWithOptions(cfg.Rules, cfg.ContextLines, cfg.Options, cfg.Logger)
	case EngineHyperscan:
		return NewHyperscan(cfg.Rules, cfg.ContextLines)
	case EngineYARA:
		return NewYARA(cfg.RuleFiles, cfg.Compiled, cfg.ContextLines)
	}
	return nil, fmt.Errorf("unknown matcher engine %q", engine)
}
