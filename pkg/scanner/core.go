package scanner

import (
	"slices"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/praetorian-inc/streamscan/pkg/logger"
	"github.com/praetorian-inc/streamscan/pkg/matcher"
	"github.com/praetorian-inc/streamscan/pkg/metrics"
	"github.com/praetorian-inc/streamscan/pkg/processor"
	"github.com/praetorian-inc/streamscan/pkg/rule"
	"github.com/praetorian-inc/streamscan/pkg/store"
	"github.com/praetorian-inc/streamscan/pkg/stream"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

var (
	// ErrStreamNotFound is returned for operations on an unknown stream ID.
	ErrStreamNotFound = errors.New("scanner: stream not found")

	// ErrStreamExists is returned by Open when the requested ID is in use.
	ErrStreamExists = errors.New("scanner: stream already open")
)

var (
	// cachedBuiltinRules holds builtin rules loaded once per process
	cachedBuiltinRules []*types.Rule
	cachedRulesErr     error
	cacheOnce          sync.Once
)

// loadBuiltinRulesCached loads builtin rules once and caches them
func loadBuiltinRulesCached() ([]*types.Rule, error) {
	cacheOnce.Do(func() {
		loader := rule.NewLoader()
		cachedBuiltinRules, cachedRulesErr = loader.LoadBuiltinRules()
	})
	return cachedBuiltinRules, cachedRulesErr
}

// streamEntry serializes access to one processor.
type streamEntry struct {
	mu sync.Mutex
	p  *processor.Processor
}

// Core shares one compiled matcher between many streams. Each stream gets its
// own processor; the registry and every processor are guarded, so a Core may
// be driven from several goroutines.
type Core struct {
	matcher matcher.Matcher
	store   store.Store
	logger  DebugLogger
	owned   bool // matcher and store are closed with the Core

	mu      sync.Mutex
	streams map[string]*streamEntry
}

// NewCore creates a new Core scanner with the given rules
// rulesJSON can be:
// - "" or "builtin" to load builtin rules (cached)
// - JSON string with custom rules array
func NewCore(rulesJSON string, logger DebugLogger) (*Core, error) {
	return NewCoreWithOptions(rulesJSON, matcher.DefaultOptions(), logger)
}

// NewCoreWithOptions is NewCore with explicit matcher options (tolerance,
// rule timeout, dedupe mode).
func NewCoreWithOptions(rulesJSON string, opts matcher.Options, logger DebugLogger) (*Core, error) {
	if logger == nil {
		logger = NoopLogger{}
	}

	var rules []*types.Rule
	if rulesJSON == "" || rulesJSON == "builtin" {
		var err error
		rules, err = loadBuiltinRulesCached()
		if err != nil {
			logger.Log("loadBuiltinRulesCached failed: %v", err)
			return nil, err
		}
		logger.Log("Loaded %d builtin rules", len(rules))
	} else {
		if err := json.Unmarshal([]byte(rulesJSON), &rules); err != nil {
			logger.Log("JSON unmarshal failed: %v", err)
			return nil, err
		}
		logger.Log("Parsed %d custom rules", len(rules))
	}

	m, err := matcher.New(matcher.Config{
		Rules:        rules,
		ContextLines: 2,
		Options:      opts,
	})
	if err != nil {
		logger.Log("matcher.New failed: %v", err)
		return nil, err
	}

	s, err := store.New(store.Config{Path: store.MemoryPath})
	if err != nil {
		m.Close()
		return nil, err
	}

	c := NewCoreWithMatcher(m, s, logger)
	c.owned = true
	return c, nil
}

// NewCoreWithMatcher creates a Core over an existing matcher and optional
// store. Both stay owned by the caller.
func NewCoreWithMatcher(m matcher.Matcher, s store.Store, logger DebugLogger) *Core {
	if logger == nil {
		logger = NoopLogger{}
	}
	return &Core{
		matcher: m,
		store:   s,
		logger:  logger,
		streams: make(map[string]*streamEntry),
	}
}

// Store returns the result sink, nil when none is configured.
func (c *Core) Store() store.Store {
	return c.store
}

// Open registers a new stream and returns its ID.
func (c *Core) Open(opts StreamOptions) (string, error) {
	mode, err := stream.ParseMode(opts.Mode)
	if err != nil {
		return "", err
	}
	chunk := opts.ChunkSize
	if mode != stream.Raw && chunk == 0 {
		chunk = stream.DefaultChunkSize
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if opts.StreamID != "" {
		if _, exists := c.streams[opts.StreamID]; exists {
			return "", errors.Wrapf(ErrStreamExists, "%s", opts.StreamID)
		}
	}

	p, err := processor.New(c.matcher, processor.Config{
		Stream: stream.Config{
			Mode:              mode,
			ChunkSize:         chunk,
			OverlapSize:       opts.OverlapSize,
			WindowStep:        opts.WindowStep,
			MaxCumulativeSize: opts.MaxCumulativeSize,
		},
		ManualAnalyze: opts.ManualAnalyze,
		SkipPartial:   opts.SkipPartial,
		StreamID:      opts.StreamID,
		Store:         c.store,
		Logger:        logger.Std(),
	})
	if err != nil {
		return "", err
	}

	c.streams[p.ID()] = &streamEntry{p: p}
	metrics.OpenStreams.Inc()
	c.logger.Log("opened stream %s mode=%s chunk=%d", p.ID(), mode, chunk)
	return p.ID(), nil
}

// with runs fn on the processor of stream id while holding its lock.
func (c *Core) with(id string, fn func(p *processor.Processor) error) error {
	c.mu.Lock()
	e, ok := c.streams[id]
	c.mu.Unlock()
	if !ok {
		return errors.Wrapf(ErrStreamNotFound, "%s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.p == nil {
		return errors.Wrapf(ErrStreamNotFound, "%s", id)
	}
	return fn(e.p)
}

func resultOf(p *processor.Processor) *StreamResult {
	return &StreamResult{
		StreamID: p.ID(),
		State:    p.State().String(),
		Matches:  p.Results(),
	}
}

// Submit feeds data to a stream. A non-nil result accompanies match engine
// errors, since the windows that did scan still produced results.
func (c *Core) Submit(id string, data []byte) (*StreamResult, error) {
	var res *StreamResult
	err := c.with(id, func(p *processor.Processor) error {
		err := p.Submit(data)
		if errors.Is(err, stream.ErrInvalidInput) {
			return err
		}
		res = resultOf(p)
		return err
	})
	return res, err
}

// Analyze forces a scan of the buffered bytes of a stream.
func (c *Core) Analyze(id string) (*StreamResult, error) {
	return c.run(id, (*processor.Processor).Analyze)
}

// Finish drains the buffered tail of a stream.
func (c *Core) Finish(id string) (*StreamResult, error) {
	return c.run(id, (*processor.Processor).Finish)
}

func (c *Core) run(id string, op func(*processor.Processor) ([]*types.Match, error)) (*StreamResult, error) {
	var res *StreamResult
	err := c.with(id, func(p *processor.Processor) error {
		_, err := op(p)
		if errors.Is(err, processor.ErrInvalidMode) {
			return err
		}
		res = resultOf(p)
		return err
	})
	return res, err
}

// Results returns the latest results of a stream.
func (c *Core) Results(id string) (*StreamResult, error) {
	var res *StreamResult
	err := c.with(id, func(p *processor.Processor) error {
		res = resultOf(p)
		return nil
	})
	return res, err
}

// Reset discards the buffered bytes and results of a stream.
func (c *Core) Reset(id string) error {
	return c.with(id, func(p *processor.Processor) error {
		p.Reset()
		return nil
	})
}

// Stats returns counters of a stream.
func (c *Core) Stats(id string) (*StreamStats, error) {
	var st *StreamStats
	err := c.with(id, func(p *processor.Processor) error {
		st = statsOf(p)
		return nil
	})
	return st, err
}

func statsOf(p *processor.Processor) *StreamStats {
	s := p.Stats()
	return &StreamStats{
		StreamID:       p.ID(),
		Mode:           p.Mode().String(),
		State:          p.State().String(),
		Submissions:    s.Submissions,
		BytesSubmitted: s.BytesSubmitted,
		Attempts:       s.Attempts,
		WindowsScanned: s.WindowsScanned,
		MatchErrors:    s.MatchErrors,
		Matches:        s.Matches,
		Buffered:       s.Buffer.Buffered,
		Evicted:        s.Buffer.Evicted,
		LastWindow:     s.LastWindow.Index,
		LastOffset:     s.LastWindow.Offset,
		RulesSkipped:   s.Rules.SkippedRules,
		RulesTimedOut:  s.Rules.TimedOutRules,
		RulesFailed:    s.Rules.ErrorRules,
	}
}

// CloseStream releases a stream and returns its final counters.
func (c *Core) CloseStream(id string) (*StreamStats, error) {
	c.mu.Lock()
	e, ok := c.streams[id]
	delete(c.streams, id)
	c.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(ErrStreamNotFound, "%s", id)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	st := statsOf(e.p)
	e.p.Close()
	e.p = nil
	metrics.OpenStreams.Dec()
	c.logger.Log("closed stream %s after %d window(s)", id, st.WindowsScanned)
	return st, nil
}

// Streams returns the IDs of the open streams, sorted.
func (c *Core) Streams() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	ids := make([]string, 0, len(c.streams))
	for id := range c.streams {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Scan scans a single content string as a one-shot RAW stream.
func (c *Core) Scan(content, source string) (*ScanResult, error) {
	if content == "" {
		return &ScanResult{Source: source, Matches: []*types.Match{}}, nil
	}

	p, err := processor.New(c.matcher, processor.Config{
		Stream:   stream.Config{Mode: stream.Raw},
		StreamID: source,
		Store:    c.store,
		Logger:   logger.Std(),
	})
	if err != nil {
		return nil, err
	}
	defer p.Close()

	if err := p.Submit([]byte(content)); err != nil {
		return nil, err
	}
	matches, err := p.Analyze()
	if err != nil {
		return nil, err
	}
	if matches == nil {
		matches = []*types.Match{}
	}

	return &ScanResult{
		Source:  source,
		Matches: matches,
	}, nil
}

// ScanBatch scans multiple content items
func (c *Core) ScanBatch(items []ContentItem) (*BatchScanResult, error) {
	var results []ScanResult
	total := 0

	for _, item := range items {
		result, err := c.Scan(item.Content, item.Source)
		if err != nil {
			// Skip items that fail to scan
			c.logger.Log("scan %s failed: %v", item.Source, err)
			continue
		}

		results = append(results, *result)
		total += len(result.Matches)
	}

	return &BatchScanResult{
		Results: results,
		Total:   total,
	}, nil
}

// Close releases every open stream and, for a Core built by NewCore, the
// matcher and store.
func (c *Core) Close() {
	for _, id := range c.Streams() {
		c.CloseStream(id)
	}
	if !c.owned {
		return
	}
	if c.matcher != nil {
		c.matcher.Close()
	}
	if c.store != nil {
		c.store.Close()
	}
}

// GetBuiltinRules returns the built-in rules (cached)
func GetBuiltinRules() ([]*types.Rule, error) {
	return loadBuiltinRulesCached()
}
