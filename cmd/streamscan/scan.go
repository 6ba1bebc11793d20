package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/streamscan/pkg/logger"
	"github.com/praetorian-inc/streamscan/pkg/matcher"
	"github.com/praetorian-inc/streamscan/pkg/processor"
	"github.com/praetorian-inc/streamscan/pkg/rule"
	"github.com/praetorian-inc/streamscan/pkg/sarif"
	"github.com/praetorian-inc/streamscan/pkg/source"
	"github.com/praetorian-inc/streamscan/pkg/store"
	"github.com/praetorian-inc/streamscan/pkg/stream"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

var (
	scanRulesPath     string
	scanRulesInclude  string
	scanRulesExclude  string
	scanRuleset       string
	scanCategories    string
	scanOutputPath    string
	scanOutputFormat  string
	scanMode          string
	scanChunkSize     int
	scanOverlap       int
	scanStep          int
	scanMaxCumulative int
	scanManualAnalyze bool
	scanSkipPartial   bool
	scanReadSize      int
	scanEngine        string
	scanCompiled      bool
	scanContextLines  int
	scanTolerant      bool
	scanRuleTimeout   time.Duration
	scanDedupe        string
	scanStreamID      string
	scanColor         string

	scanIncludeHidden  bool
	scanMaxFileSize    int64
	scanFollowSymlinks bool
	scanWorkers        int
)

var scanCmd = &cobra.Command{
	Use:   "scan <file|dir|->",
	Short: "Scan byte streams for secrets",
	Long: `Scan a file or standard input ("-") for secrets. Input is read in
--read-size pieces and each piece is submitted to a stream processor, the way
packets of a network flow would arrive. Windows are matched as soon as the
selected mode makes them ready; the buffered tail is scanned at end of input.

A directory target scans every text file below it as its own stream, named by
its relative path. A .gitignore at the directory root is honored.`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVar(&scanRulesPath, "rules", "", "Rule files or directories, comma-separated (YARA files with --engine yara)")
	scanCmd.Flags().StringVar(&scanRulesInclude, "rules-include", "", "Include rules matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanRulesExclude, "rules-exclude", "", "Exclude rules matching regex pattern (comma-separated)")
	scanCmd.Flags().StringVar(&scanRuleset, "ruleset", "", "Use only the rules of a builtin ruleset (default, network)")
	scanCmd.Flags().StringVar(&scanCategories, "rules-category", "", "Keep rules tagged with any of these categories (comma-separated)")
	scanCmd.Flags().StringVar(&scanOutputPath, "output", store.MemoryPath, "Result database path")
	scanCmd.Flags().StringVar(&scanOutputFormat, "format", "human", "Output format: json, sarif, human")
	scanCmd.Flags().StringVar(&scanMode, "mode", "overlapped", "Processing mode: raw, disjoint, overlapped, cumulative")
	scanCmd.Flags().IntVar(&scanChunkSize, "chunk-size", stream.DefaultChunkSize, "Window size in bytes")
	scanCmd.Flags().IntVar(&scanOverlap, "overlap", 0, "Bytes shared by consecutive windows (overlapped mode, default: a quarter of --chunk-size)")
	scanCmd.Flags().IntVar(&scanStep, "step", 0, "Distance between window starts, instead of --overlap (overlapped mode)")
	scanCmd.Flags().IntVar(&scanMaxCumulative, "max-cumulative", 0, "Cap of the cumulative buffer in bytes (0 = unbounded)")
	scanCmd.Flags().BoolVar(&scanManualAnalyze, "manual-analyze", false, "Allow forced analysis in automatic modes")
	scanCmd.Flags().BoolVar(&scanSkipPartial, "skip-partial", false, "Do not scan a partial window at end of input")
	scanCmd.Flags().IntVar(&scanReadSize, "read-size", 1500, "Bytes read from the input per submission")
	scanCmd.Flags().StringVar(&scanEngine, "engine", "regexp", "Matcher engine: regexp, hyperscan, yara")
	scanCmd.Flags().BoolVar(&scanCompiled, "compiled", false, "Treat --rules as one precompiled YARA rules file")
	scanCmd.Flags().IntVar(&scanContextLines, "context-lines", 2, "Lines of context before/after matches (0 to disable)")
	scanCmd.Flags().BoolVar(&scanTolerant, "tolerant", false, "Keep the matches of a window whose rules partly timed out or failed (regexp engine)")
	scanCmd.Flags().DurationVar(&scanRuleTimeout, "rule-timeout", 0, "Time one rule may spend on one window (regexp engine, default 5s)")
	scanCmd.Flags().StringVar(&scanDedupe, "dedupe", "location", "Duplicate detection within a window: location, content (regexp engine)")
	scanCmd.Flags().StringVar(&scanStreamID, "stream-id", "", "Stream identifier (default: input name)")
	scanCmd.Flags().StringVar(&scanColor, "color", "auto", "Color output: auto, always, never")
	scanCmd.Flags().BoolVar(&scanIncludeHidden, "include-hidden", false, "Include hidden files and directories (directory targets)")
	scanCmd.Flags().Int64Var(&scanMaxFileSize, "max-file-size", 10*1024*1024, "Skip files larger than this many bytes (directory targets, 0 = no limit)")
	scanCmd.Flags().BoolVar(&scanFollowSymlinks, "follow-symlinks", false, "Follow symbolic links to files (directory targets)")
	scanCmd.Flags().IntVar(&scanWorkers, "workers", 0, "Streams scanned concurrently (directory targets, 0 = number of CPUs)")
}

// scanSummary is what one scan run produced.
type scanSummary struct {
	Streams int
	Bytes   int64
	Windows int
	Matches []*types.Match
	Errors  int
	Rules   matcher.ResultSummary
}

// add accumulates the counters of one finished stream.
func (sum *scanSummary) add(st processor.Stats, errCount int) {
	sum.Streams++
	sum.Bytes += st.BytesSubmitted
	sum.Windows += st.WindowsScanned
	sum.Errors += errCount
	sum.Rules.Add(st.Rules)
}

// scanRun holds what every stream of one scan shares.
type scanRun struct {
	matcher matcher.Matcher
	store   store.Store
	stream  stream.Config
	options scanOptions
}

// scan runs one stream named id over in.
func (r *scanRun) scan(id string, in io.Reader) (processor.Stats, int, error) {
	p, err := processor.New(r.matcher, processor.Config{
		Stream:        r.stream,
		ManualAnalyze: r.options.Stream.ManualAnalyze,
		SkipPartial:   r.options.Stream.SkipPartial,
		StreamID:      id,
		Store:         r.store,
		Logger:        logger.Std(),
	})
	if err != nil {
		return processor.Stats{}, 0, fmt.Errorf("creating processor: %w", err)
	}
	defer p.Close()

	errCount, err := feed(p, in, r.options.Stream.ReadSize)
	if err != nil {
		return processor.Stats{}, errCount, fmt.Errorf("scanning %s: %w", id, err)
	}
	return p.Stats(), errCount, nil
}

// scanTree runs one stream per text file under root, named by its relative
// path.
func (r *scanRun) scanTree(ctx context.Context, root string) (scanSummary, error) {
	var (
		mu  sync.Mutex
		sum scanSummary
	)
	walker := source.NewWalker(source.Config{
		Root:           root,
		IncludeHidden:  r.options.Source.IncludeHidden,
		MaxFileSize:    r.options.Source.MaxFileSize,
		FollowSymlinks: r.options.Source.FollowSymlinks,
		Workers:        r.options.Source.Workers,
	})
	err := walker.Each(ctx, func(_ context.Context, f source.File, in io.Reader) error {
		st, errCount, err := r.scan(f.Name, in)
		if err != nil {
			return err
		}
		mu.Lock()
		sum.add(st, errCount)
		mu.Unlock()
		logger.Debugf("scanned %s: %d bytes, %d windows", f.Name, st.BytesSubmitted, st.WindowsScanned)
		return nil
	})
	if err != nil {
		return sum, err
	}

	sum.Matches, err = r.store.GetAllMatches()
	return sum, err
}

func runScan(cmd *cobra.Command, args []string) error {
	target := args[0]

	opts, err := resolveScanOptions(cmd)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if opts.Stream.ReadSize <= 0 {
		return fmt.Errorf("read size must be positive, got %d", opts.Stream.ReadSize)
	}

	streamCfg, err := buildStreamConfig(opts.Stream)
	if err != nil {
		return err
	}

	var info os.FileInfo
	if target != "-" {
		if info, err = os.Stat(target); err != nil {
			return fmt.Errorf("target does not exist: %s", target)
		}
	}
	tree := info != nil && info.IsDir()

	// Load rules and create matcher
	rules, m, err := buildMatcher(opts.Matcher)
	if err != nil {
		return err
	}
	defer m.Close()

	// Create store
	s, err := store.New(opts.Store)
	if err != nil {
		return fmt.Errorf("creating store: %w", err)
	}
	defer s.Close()
	for _, r := range rules {
		if err := s.AddRule(r); err != nil {
			return fmt.Errorf("storing rule: %w", err)
		}
	}

	run := &scanRun{matcher: m, store: s, stream: streamCfg, options: opts}

	var summary scanSummary
	if tree {
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		if summary, err = run.scanTree(ctx, target); err != nil {
			return err
		}
	} else {
		in := cmd.InOrStdin()
		if target != "-" {
			f, err := os.Open(target)
			if err != nil {
				return fmt.Errorf("opening target: %w", err)
			}
			defer f.Close()
			in = f
		}

		id := scanStreamID
		if id == "" {
			id = streamName(target)
		}
		st, errCount, err := run.scan(id, in)
		if err != nil {
			return err
		}
		summary.add(st, errCount)
		if summary.Matches, err = s.GetMatches(id); err != nil {
			return fmt.Errorf("retrieving matches: %w", err)
		}
	}

	// Keep stdout pure JSON for json/sarif output
	status := cmd.OutOrStdout()
	if scanOutputFormat == "json" || scanOutputFormat == "sarif" {
		status = cmd.ErrOrStderr()
	}
	if tree {
		fmt.Fprintf(status, "Streams scanned: %d\n", summary.Streams)
	}
	fmt.Fprintf(status, "Scan complete: %d bytes, %d windows, %d matches, %d findings\n",
		summary.Bytes, summary.Windows, len(summary.Matches), len(store.GroupFindings(summary.Matches)))
	if summary.Errors > 0 {
		fmt.Fprintf(status, "Match errors: %d window(s) failed\n", summary.Errors)
	}
	if r := summary.Rules; r.TimedOutRules+r.ErrorRules > 0 {
		fmt.Fprintf(status, "Rule failures: %d timed out, %d errored\n", r.TimedOutRules, r.ErrorRules)
	}
	if opts.Store.Path != store.MemoryPath {
		fmt.Fprintf(status, "Results stored in: %s\n", opts.Store.Path)
	}

	sarifSource := target
	if tree {
		sarifSource = ""
	}

	switch scanOutputFormat {
	case "json":
		return outputMatches(cmd, summary.Matches)
	case "sarif":
		return outputSARIF(cmd, rules, summary.Matches, sarifSource)
	case "human":
		return outputHuman(cmd, summary)
	default:
		return fmt.Errorf("unknown output format: %s", scanOutputFormat)
	}
}

// feed submits in to p in pieces of readSize bytes and drains the stream at
// end of input. RAW streams are analyzed after every piece. Match engine
// failures are counted and logged; any other error aborts.
func feed(p *processor.Processor, in io.Reader, readSize int) (int, error) {
	var failed int
	tolerate := func(err error) error {
		if err == nil {
			return nil
		}
		var merr *multierror.Error
		if !errors.As(err, &merr) {
			merr = &multierror.Error{Errors: []error{err}}
		}
		for _, e := range merr.Errors {
			var mee *processor.MatchEngineError
			if !errors.As(e, &mee) {
				return err
			}
			failed++
		}
		return nil
	}

	buf := make([]byte, readSize)
	for {
		n, rerr := io.ReadFull(in, buf)
		if n > 0 {
			if err := tolerate(p.Submit(buf[:n])); err != nil {
				return failed, err
			}
			if p.Mode() == stream.Raw {
				if _, err := p.Analyze(); tolerate(err) != nil {
					return failed, err
				}
			}
		}
		if rerr == io.EOF || rerr == io.ErrUnexpectedEOF {
			break
		}
		if rerr != nil {
			return failed, rerr
		}
	}

	_, err := p.Finish()
	return failed, tolerate(err)
}

// =============================================================================
// HELPERS
// =============================================================================

func buildStreamConfig(sec streamSection) (stream.Config, error) {
	mode, err := stream.ParseMode(sec.Mode)
	if err != nil {
		return stream.Config{}, err
	}

	cfg := stream.Config{Mode: mode}
	switch mode {
	case stream.Raw:
	case stream.Overlapped:
		cfg.ChunkSize = sec.ChunkSize
		cfg.OverlapSize = sec.OverlapSize
		cfg.WindowStep = sec.WindowStep
		switch {
		case cfg.WindowStep > 0:
			cfg.OverlapSize = 0
		case cfg.OverlapSize == overlapAuto:
			cfg.OverlapSize = cfg.ChunkSize / 4
		}
	case stream.Cumulative:
		cfg.ChunkSize = sec.ChunkSize
		cfg.MaxCumulativeSize = sec.MaxCumulativeSize
	default:
		cfg.ChunkSize = sec.ChunkSize
	}
	return cfg, nil
}

func buildMatcher(sec matcherSection) ([]*types.Rule, matcher.Matcher, error) {
	engine, err := matcher.ParseEngine(sec.Engine)
	if err != nil {
		return nil, nil, err
	}
	opts, err := sec.options()
	if err != nil {
		return nil, nil, err
	}

	cfg := matcher.Config{
		Engine:       engine,
		ContextLines: sec.ContextLines,
		Options:      opts,
		Logger:       logger.Std(),
	}

	var rules []*types.Rule
	if engine == matcher.EngineYARA {
		if len(sec.Rules) == 0 {
			return nil, nil, fmt.Errorf("yara engine requires --rules")
		}
		cfg.RuleFiles = sec.Rules
		cfg.Compiled = sec.Compiled
	} else {
		rules, err = loadRules(sec)
		if err != nil {
			return nil, nil, fmt.Errorf("loading rules: %w", err)
		}
		cfg.Rules = rules
	}

	m, err := matcher.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating matcher: %w", err)
	}
	return rules, m, nil
}

// loadRules loads the rule files of sec (or the builtins), narrows them to
// the selected builtin ruleset and applies the include/exclude/category
// filters.
func loadRules(sec matcherSection) ([]*types.Rule, error) {
	loader := rule.NewLoader()

	var rules []*types.Rule
	var err error
	if len(sec.Rules) > 0 {
		rules, err = loader.LoadRuleFiles(sec.Rules)
	} else {
		rules, err = loader.LoadBuiltinRules()
	}
	if err != nil {
		return nil, err
	}

	if sec.Ruleset != "" {
		rulesets, err := loader.LoadBuiltinRulesets()
		if err != nil {
			return nil, fmt.Errorf("loading rulesets: %w", err)
		}
		rs, err := rule.FindRuleset(rulesets, sec.Ruleset)
		if err != nil {
			return nil, err
		}
		if rules, err = rule.ApplyRuleset(rules, rs); err != nil {
			return nil, err
		}
	}

	if sec.Include != "" || sec.Exclude != "" || len(sec.Categories) > 0 {
		rules, err = rule.Filter(rules, rule.FilterConfig{
			Include:    rule.ParsePatterns(sec.Include),
			Exclude:    rule.ParsePatterns(sec.Exclude),
			Categories: sec.Categories,
		})
		if err != nil {
			return nil, fmt.Errorf("filtering rules: %w", err)
		}
	}

	return rules, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func streamName(target string) string {
	if target == "-" {
		return "stdin"
	}
	return filepath.Base(target)
}

func outputMatches(cmd *cobra.Command, matches []*types.Match) error {
	if matches == nil {
		matches = []*types.Match{}
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(matches)
}

// outputSARIF writes matches as a SARIF log with rules as its rule table.
// An empty source names each result by its stream.
func outputSARIF(cmd *cobra.Command, rules []*types.Rule, matches []*types.Match, source string) error {
	b := sarif.NewBuilder(version)
	for _, r := range rules {
		b.AddRule(r)
	}
	for _, m := range matches {
		src := source
		if src == "" {
			src = m.StreamID
		}
		b.AddMatch(m, src)
	}
	if err := b.WriteTo(cmd.OutOrStdout()); err != nil {
		return fmt.Errorf("writing SARIF output: %w", err)
	}
	return nil
}

func outputHuman(cmd *cobra.Command, summary scanSummary) error {
	p := newPalette(colorEnabled(scanColor))
	out := cmd.OutOrStdout()

	findings := store.GroupFindings(summary.Matches)
	if len(findings) == 0 {
		fmt.Fprintf(out, "\nNo findings.\n")
		return nil
	}

	fmt.Fprintln(out)
	printFindings(out, p, findings)
	return nil
}
