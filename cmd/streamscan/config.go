package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/streamscan/pkg/confengine"
	"github.com/praetorian-inc/streamscan/pkg/matcher"
	"github.com/praetorian-inc/streamscan/pkg/store"
)

// overlapAuto marks an overlap size left unset; buildStreamConfig turns it
// into a quarter of the chunk size.
const overlapAuto = -1

// streamSection mirrors the "stream" section of the config file.
type streamSection struct {
	Mode              string `config:"mode"`
	ChunkSize         int    `config:"chunk_size"`
	OverlapSize       int    `config:"overlap_size"`
	WindowStep        int    `config:"window_step"`
	MaxCumulativeSize int    `config:"max_cumulative_size"`
	ManualAnalyze     bool   `config:"manual_analyze"`
	SkipPartial       bool   `config:"skip_partial"`
	ReadSize          int    `config:"read_size"`
}

// matcherSection mirrors the "matcher" section of the config file.
type matcherSection struct {
	Engine       string   `config:"engine"`
	Rules        []string `config:"rules"`
	Include      string   `config:"include"`
	Exclude      string   `config:"exclude"`
	Ruleset      string   `config:"ruleset"`
	Categories   []string `config:"categories"`
	Compiled     bool     `config:"compiled"`
	ContextLines int      `config:"context_lines"`

	Tolerant    bool          `config:"tolerant"`
	RuleTimeout time.Duration `config:"rule_timeout"`
	Dedupe      string        `config:"dedupe"`
}

// options returns the matcher options of sec. A zero rule timeout keeps the
// default.
func (sec matcherSection) options() (matcher.Options, error) {
	opts := matcher.DefaultOptions()
	dedupe, err := matcher.ParseDedupeMode(sec.Dedupe)
	if err != nil {
		return opts, err
	}
	opts.Tolerant = sec.Tolerant
	opts.Dedupe = dedupe
	if sec.RuleTimeout > 0 {
		opts.RuleTimeout = sec.RuleTimeout
	}
	return opts, nil
}

// sourceSection mirrors the "source" section of the config file. It applies
// to directory targets.
type sourceSection struct {
	IncludeHidden  bool  `config:"include_hidden"`
	MaxFileSize    int64 `config:"max_file_size"`
	FollowSymlinks bool  `config:"follow_symlinks"`
	Workers        int   `config:"workers"`
}

type scanOptions struct {
	Stream  streamSection  `config:"stream"`
	Matcher matcherSection `config:"matcher"`
	Source  sourceSection  `config:"source"`
	Store   store.Config   `config:"store"`
}

// resolveScanOptions starts from the scan flags, overlays the config file
// and lets explicitly set flags win over file values.
func resolveScanOptions(cmd *cobra.Command) (scanOptions, error) {
	flags := scanOptions{
		Stream: streamSection{
			Mode:              scanMode,
			ChunkSize:         scanChunkSize,
			OverlapSize:       scanOverlap,
			WindowStep:        scanStep,
			MaxCumulativeSize: scanMaxCumulative,
			ManualAnalyze:     scanManualAnalyze,
			SkipPartial:       scanSkipPartial,
			ReadSize:          scanReadSize,
		},
		Matcher: matcherSection{
			Engine:       scanEngine,
			Rules:        splitList(scanRulesPath),
			Include:      scanRulesInclude,
			Exclude:      scanRulesExclude,
			Ruleset:      scanRuleset,
			Categories:   splitList(scanCategories),
			Compiled:     scanCompiled,
			ContextLines: scanContextLines,
			Tolerant:     scanTolerant,
			RuleTimeout:  scanRuleTimeout,
			Dedupe:       scanDedupe,
		},
		Source: sourceSection{
			IncludeHidden:  scanIncludeHidden,
			MaxFileSize:    scanMaxFileSize,
			FollowSymlinks: scanFollowSymlinks,
			Workers:        scanWorkers,
		},
		Store: store.Config{Path: scanOutputPath},
	}
	if scanOverlap == 0 && !cmd.Flags().Changed("overlap") {
		flags.Stream.OverlapSize = overlapAuto
	}
	if configPath == "" {
		return flags, nil
	}

	conf, err := confengine.LoadConfigPath(configPath)
	if err != nil {
		return flags, err
	}
	opts := flags
	for name, section := range map[string]any{
		"stream":  &opts.Stream,
		"matcher": &opts.Matcher,
		"source":  &opts.Source,
		"store":   &opts.Store,
	} {
		if err := conf.UnpackChild(name, section); err != nil {
			return flags, err
		}
	}

	changed := cmd.Flags().Changed
	override := func(name string, apply func()) {
		if changed(name) {
			apply()
		}
	}
	override("mode", func() { opts.Stream.Mode = flags.Stream.Mode })
	override("chunk-size", func() { opts.Stream.ChunkSize = flags.Stream.ChunkSize })
	override("overlap", func() { opts.Stream.OverlapSize = flags.Stream.OverlapSize })
	override("step", func() { opts.Stream.WindowStep = flags.Stream.WindowStep })
	override("max-cumulative", func() { opts.Stream.MaxCumulativeSize = flags.Stream.MaxCumulativeSize })
	override("manual-analyze", func() { opts.Stream.ManualAnalyze = flags.Stream.ManualAnalyze })
	override("skip-partial", func() { opts.Stream.SkipPartial = flags.Stream.SkipPartial })
	override("read-size", func() { opts.Stream.ReadSize = flags.Stream.ReadSize })
	override("engine", func() { opts.Matcher.Engine = flags.Matcher.Engine })
	override("rules", func() { opts.Matcher.Rules = flags.Matcher.Rules })
	override("rules-include", func() { opts.Matcher.Include = flags.Matcher.Include })
	override("rules-exclude", func() { opts.Matcher.Exclude = flags.Matcher.Exclude })
	override("ruleset", func() { opts.Matcher.Ruleset = flags.Matcher.Ruleset })
	override("rules-category", func() { opts.Matcher.Categories = flags.Matcher.Categories })
	override("compiled", func() { opts.Matcher.Compiled = flags.Matcher.Compiled })
	override("context-lines", func() { opts.Matcher.ContextLines = flags.Matcher.ContextLines })
	override("tolerant", func() { opts.Matcher.Tolerant = flags.Matcher.Tolerant })
	override("rule-timeout", func() { opts.Matcher.RuleTimeout = flags.Matcher.RuleTimeout })
	override("dedupe", func() { opts.Matcher.Dedupe = flags.Matcher.Dedupe })
	override("include-hidden", func() { opts.Source.IncludeHidden = flags.Source.IncludeHidden })
	override("max-file-size", func() { opts.Source.MaxFileSize = flags.Source.MaxFileSize })
	override("follow-symlinks", func() { opts.Source.FollowSymlinks = flags.Source.FollowSymlinks })
	override("workers", func() { opts.Source.Workers = flags.Source.Workers })
	override("output", func() { opts.Store = flags.Store })
	return opts, nil
}
