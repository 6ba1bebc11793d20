// Package streamscan detects secrets in byte streams that arrive in pieces.
//
// A Processor buffers submitted bytes into windows according to its Mode and
// matches each ready window against a compiled rule set. Match offsets are
// absolute within the stream, so a hit is located the same way whichever
// window reported it.
//
// # Basic Usage
//
// Scan a flow with overlapping windows using the builtin rules:
//
//	p, err := streamscan.New(nil,
//	    streamscan.WithMode(streamscan.Overlapped),
//	    streamscan.WithChunkSize(4096),
//	    streamscan.WithOverlapSize(512),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer p.Close()
//
//	for packet := range packets {
//	    if err := p.Submit(packet); err != nil {
//	        log.Print(err)
//	    }
//	    for _, m := range p.Results() {
//	        fmt.Printf("Found %s at offset %d\n", m.RuleName, m.Location.Offset.Start)
//	    }
//	}
//	matches, err := p.Finish()
//
// # Many Streams
//
// Compile rules once and share them between processors:
//
//	rs, err := streamscan.LoadRuleSet([]string{"rules/"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rs.Close()
//
//	p, err := streamscan.NewWithMatcher(rs.Matcher(), streamscan.WithStreamID(flowID))
package streamscan

import (
	"fmt"
	"time"

	"github.com/praetorian-inc/streamscan/pkg/logger"
	"github.com/praetorian-inc/streamscan/pkg/matcher"
	"github.com/praetorian-inc/streamscan/pkg/processor"
	"github.com/praetorian-inc/streamscan/pkg/rule"
	"github.com/praetorian-inc/streamscan/pkg/store"
	"github.com/praetorian-inc/streamscan/pkg/stream"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

// Re-export commonly used types for convenience.
// Users can import just "github.com/praetorian-inc/streamscan" without subpackages.
type (
	// Match represents a single detection result.
	Match = types.Match

	// Rule defines a detection pattern for a specific secret type.
	Rule = types.Rule

	// Window is a contiguous range of stream bytes handed to the matcher.
	Window = stream.Window

	// Mode selects how submitted bytes are grouped into windows.
	Mode = stream.Mode

	// State is the processing state of a Processor.
	State = processor.State

	// MatchEngineError reports a window whose match attempt failed.
	MatchEngineError = processor.MatchEngineError

	// RuleLoadError reports a rule file that could not be loaded.
	RuleLoadError = rule.RuleLoadError

	// MatcherOptions sets the failure policy, per-rule timeout and
	// dedupe mode of the regexp engine.
	MatcherOptions = matcher.Options

	// DedupeMode selects how duplicate matches within a window are detected.
	DedupeMode = matcher.DedupeMode
)

// Processing modes.
const (
	Raw        = stream.Raw
	Disjoint   = stream.Disjoint
	Overlapped = stream.Overlapped
	Cumulative = stream.Cumulative
)

// Matcher engines.
const (
	EngineRegexp    = matcher.EngineRegexp
	EngineHyperscan = matcher.EngineHyperscan
	EngineYARA      = matcher.EngineYARA
)

// Dedupe modes.
const (
	DedupeByLocation = matcher.DedupeByLocation
	DedupeByContent  = matcher.DedupeByContent
)

// Error values returned by processors.
var (
	ErrInvalidInput  = stream.ErrInvalidInput
	ErrNotReady      = stream.ErrNotReady
	ErrInvalidConfig = stream.ErrInvalidConfig
	ErrClosed        = stream.ErrClosed
	ErrInvalidMode   = processor.ErrInvalidMode
)

// ParseMode parses a mode name such as "overlapped" or "sliding_window".
func ParseMode(s string) (Mode, error) {
	return stream.ParseMode(s)
}

// config holds processor and rule set configuration.
type config struct {
	stream        stream.Config
	engine        matcher.Engine
	compiled      bool
	contextLines  int
	matcherOpts   matcher.Options
	manualAnalyze bool
	skipPartial   bool
	streamID      string
	store         store.Store
	logger        logger.Logger
}

func newConfig(opts []Option) *config {
	c := &config{
		engine:       matcher.EngineRegexp,
		contextLines: 2,
		matcherOpts:  matcher.DefaultOptions(),
		logger:       logger.Std(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stream.Mode != stream.Raw && c.stream.ChunkSize == 0 {
		c.stream.ChunkSize = stream.DefaultChunkSize
	}
	return c
}

// Option configures a Processor or RuleSet.
type Option func(*config)

// WithMode sets the processing mode. Default is Raw.
func WithMode(m Mode) Option {
	return func(c *config) {
		c.stream.Mode = m
	}
}

// WithChunkSize sets the window size in bytes. Default is 1024 for every
// mode except Raw.
func WithChunkSize(n int) Option {
	return func(c *config) {
		c.stream.ChunkSize = n
	}
}

// WithOverlapSize sets the bytes shared by consecutive Overlapped windows.
func WithOverlapSize(n int) Option {
	return func(c *config) {
		c.stream.OverlapSize = n
	}
}

// WithWindowStep sets the distance between Overlapped window starts, as an
// alternative to WithOverlapSize.
func WithWindowStep(n int) Option {
	return func(c *config) {
		c.stream.WindowStep = n
	}
}

// WithMaxCumulativeSize caps a Cumulative buffer; older bytes are evicted.
func WithMaxCumulativeSize(n int) Option {
	return func(c *config) {
		c.stream.MaxCumulativeSize = n
	}
}

// WithEngine selects the matcher backend. Default is EngineRegexp.
func WithEngine(e matcher.Engine) Option {
	return func(c *config) {
		c.engine = e
	}
}

// WithCompiledRules treats the rule path as one precompiled YARA file.
func WithCompiledRules() Option {
	return func(c *config) {
		c.compiled = true
	}
}

// WithMatcherOptions replaces the regexp engine options. Default is
// matcher.DefaultOptions: a window fails when any rule times out or errors.
func WithMatcherOptions(o MatcherOptions) Option {
	return func(c *config) {
		c.matcherOpts = o
	}
}

// WithTolerant keeps the matches of a window whose rules partly failed
// instead of reporting a MatchEngineError.
func WithTolerant() Option {
	return func(c *config) {
		c.matcherOpts.Tolerant = true
	}
}

// WithRuleTimeout bounds the time one rule may spend on one window.
func WithRuleTimeout(d time.Duration) Option {
	return func(c *config) {
		c.matcherOpts.RuleTimeout = d
	}
}

// WithDedupe sets how duplicate matches within a window are detected.
func WithDedupe(m DedupeMode) Option {
	return func(c *config) {
		c.matcherOpts.Dedupe = m
	}
}

// WithManualAnalyze allows Analyze in automatic modes.
func WithManualAnalyze() Option {
	return func(c *config) {
		c.manualAnalyze = true
	}
}

// WithSkipPartial makes Finish drop a trailing partial window unscanned.
func WithSkipPartial() Option {
	return func(c *config) {
		c.skipPartial = true
	}
}

// WithContextLines sets the number of context lines to include around matches.
// Default is 2 lines before and after.
func WithContextLines(lines int) Option {
	return func(c *config) {
		c.contextLines = lines
	}
}

// WithStreamID names the stream. A random UUID is used by default.
func WithStreamID(id string) Option {
	return func(c *config) {
		c.streamID = id
	}
}

// WithStore records every completed match attempt in s.
func WithStore(s store.Store) Option {
	return func(c *config) {
		c.store = s
	}
}

// WithLogger sets the logger. Default is the global logger.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// RuleSet is a compiled set of rules that can be shared by many processors.
type RuleSet struct {
	matcher matcher.Matcher
	rules   []*Rule
}

// LoadRuleSet compiles the rules found at paths (files or directories).
// Empty paths select the builtin rules. For EngineYARA, paths are YARA
// sources or, with WithCompiledRules, a single compiled file.
func LoadRuleSet(paths []string, opts ...Option) (*RuleSet, error) {
	c := newConfig(opts)

	mc := matcher.Config{
		Engine:       c.engine,
		ContextLines: c.contextLines,
		Options:      c.matcherOpts,
		Logger:       c.logger,
	}

	var rules []*Rule
	if c.engine == matcher.EngineYARA {
		if len(paths) == 0 {
			return nil, fmt.Errorf("yara engine requires rule files")
		}
		mc.RuleFiles = paths
		mc.Compiled = c.compiled
	} else {
		var err error
		loader := rule.NewLoader()
		if len(paths) > 0 {
			rules, err = loader.LoadRuleFiles(paths)
		} else {
			rules, err = loader.LoadBuiltinRules()
		}
		if err != nil {
			return nil, err
		}
		mc.Rules = rules
	}

	m, err := matcher.New(mc)
	if err != nil {
		return nil, fmt.Errorf("creating matcher: %w", err)
	}
	return &RuleSet{matcher: m, rules: rules}, nil
}

// Matcher returns the compiled matcher.
func (rs *RuleSet) Matcher() matcher.Matcher {
	return rs.matcher
}

// Rules returns a copy of the loaded rules. It is empty for YARA rule sets.
func (rs *RuleSet) Rules() []*Rule {
	rules := make([]*Rule, len(rs.rules))
	copy(rules, rs.rules)
	return rules
}

// Close releases the compiled rules.
func (rs *RuleSet) Close() error {
	return rs.matcher.Close()
}

// Processor scans one logical stream. See processor.Processor for the
// operations it provides.
type Processor struct {
	*processor.Processor
	owned *RuleSet
}

// New compiles the rules at rulePaths and creates a Processor over them.
// Empty rulePaths select the builtin rules. The rule set is released by Close.
func New(rulePaths []string, opts ...Option) (*Processor, error) {
	rs, err := LoadRuleSet(rulePaths, opts...)
	if err != nil {
		return nil, err
	}
	p, err := NewWithMatcher(rs.Matcher(), opts...)
	if err != nil {
		rs.Close()
		return nil, err
	}
	p.owned = rs
	return p, nil
}

// NewWithMatcher creates a Processor over a matcher owned by the caller.
func NewWithMatcher(m matcher.Matcher, opts ...Option) (*Processor, error) {
	c := newConfig(opts)
	p, err := processor.New(m, processor.Config{
		Stream:        c.stream,
		ManualAnalyze: c.manualAnalyze,
		SkipPartial:   c.skipPartial,
		StreamID:      c.streamID,
		Store:         c.store,
		Logger:        c.logger,
	})
	if err != nil {
		return nil, err
	}
	return &Processor{Processor: p}, nil
}

// Close releases the stream buffer and, for a Processor built by New, the
// compiled rules.
func (p *Processor) Close() {
	p.Processor.Close()
	if p.owned != nil {
		p.owned.Close()
		p.owned = nil
	}
}
