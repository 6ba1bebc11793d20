// Package processor bridges a stream buffer to a matcher. A Processor owns one
// stream.Buffer, shares a read-only matcher.Matcher with other processors and
// keeps the matches of its most recent match attempt.
//
// A Processor is not safe for concurrent use; confine each one to a single
// goroutine.
package processor

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/praetorian-inc/streamscan/pkg/logger"
	"github.com/praetorian-inc/streamscan/pkg/matcher"
	"github.com/praetorian-inc/streamscan/pkg/metrics"
	"github.com/praetorian-inc/streamscan/pkg/store"
	"github.com/praetorian-inc/streamscan/pkg/stream"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

// Config configures a Processor.
type Config struct {
	Stream stream.Config

	// ManualAnalyze allows Analyze on automatic modes as a forced flush scan.
	ManualAnalyze bool `config:"manual_analyze"`

	// SkipPartial makes Finish drop a trailing partial window unscanned.
	SkipPartial bool `config:"skip_partial"`

	// StreamID identifies the stream in matches and in the store.
	// A random UUID is used when empty.
	StreamID string

	// Store, when set, receives the matches of every completed attempt.
	Store store.Store

	Logger logger.Logger
}

// Processor drives one logical stream.
type Processor struct {
	id      string
	cfg     Config
	buf     stream.Buffer
	matcher matcher.Matcher
	log     logger.Logger
	mode    string

	results []*types.Match
	state   State
	stats   Stats
	closed  bool

	// buffer counters already exported to metrics
	seenIngested int64
	seenEvicted  int64
}

// New creates a Processor over a shared matcher.
func New(m matcher.Matcher, cfg Config) (*Processor, error) {
	if m == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	buf, err := stream.New(cfg.Stream)
	if err != nil {
		return nil, err
	}

	id := cfg.StreamID
	if id == "" {
		id = uuid.NewString()
	}

	p := &Processor{
		id:      id,
		cfg:     cfg,
		buf:     buf,
		matcher: m,
		mode:    buf.Mode().String(),
		log:     cfg.Logger.With("stream", id),
	}
	p.log.Debugf("processor created: mode=%s chunk=%d overlap=%d cap=%d",
		p.mode, cfg.Stream.ChunkSize, cfg.Stream.OverlapSize, cfg.Stream.MaxCumulativeSize)
	return p, nil
}

// ID returns the stream identifier.
func (p *Processor) ID() string {
	return p.id
}

// Mode returns the buffering mode.
func (p *Processor) Mode() stream.Mode {
	return p.buf.Mode()
}

// State returns the current state.
func (p *Processor) State() State {
	return p.state
}

// Stats returns lifetime counters.
func (p *Processor) Stats() Stats {
	s := p.stats
	s.Buffer = p.buf.Stats()
	return s
}

// Results returns the matches of the most recent completed match attempt,
// ordered by absolute offset. The returned slice must not be modified.
func (p *Processor) Results() []*types.Match {
	return p.results
}

// Submit ingests data. In automatic modes every window made ready by data is
// scanned before Submit returns, and Results becomes the union of their
// matches deduplicated by location. When no window was ready, Results keeps
// its previous value. In RAW mode data only replaces the pending submission.
//
// Matcher failures are returned as *MatchEngineError values (combined with
// multierror when several windows fail); the stream stays usable.
func (p *Processor) Submit(data []byte) error {
	if p.closed {
		return stream.ErrClosed
	}
	ready, err := p.buf.Ingest(data)
	if err != nil {
		return err
	}
	p.stats.Submissions++
	p.stats.BytesSubmitted += int64(len(data))
	p.observeBuffer()
	p.state = Buffering

	if !ready.Ready {
		return nil
	}

	a := p.begin()
	for {
		w, err := p.buf.TakeWindow()
		if errors.Is(err, stream.ErrNotReady) {
			break
		}
		if err != nil {
			a.errs = multierror.Append(a.errs, err)
			break
		}
		p.scan(a, w)
	}
	return p.complete(a)
}

// Analyze flushes the buffer and scans whatever it held, even nothing.
// Allowed in RAW mode, or in any mode when ManualAnalyze is set.
func (p *Processor) Analyze() ([]*types.Match, error) {
	if p.closed {
		return nil, stream.ErrClosed
	}
	if p.buf.Mode() != stream.Raw && !p.cfg.ManualAnalyze {
		return nil, errors.Wrapf(ErrInvalidMode, "analyze in %s mode", p.mode)
	}

	a := p.begin()
	p.scan(a, p.buf.Flush())
	err := p.complete(a)
	return p.results, err
}

// Finish drains the stream at its end: the buffered tail is flushed and
// scanned as a (possibly partial) window. Nothing is scanned when the tail
// is empty or when it is partial and SkipPartial is set; Results is then
// left unchanged.
func (p *Processor) Finish() ([]*types.Match, error) {
	if p.closed {
		return nil, stream.ErrClosed
	}
	w := p.buf.Flush()
	if w.Empty() || (w.Partial && p.cfg.SkipPartial) {
		if !w.Empty() {
			p.log.Debugf("skipping partial window %d at offset %d (%d bytes)", w.Index, w.Offset, w.Len())
		}
		p.state = Idle
		p.recordStream()
		return p.results, nil
	}

	a := p.begin()
	p.scan(a, w)
	err := p.complete(a)
	return p.results, err
}

// Reset discards buffered bytes and clears Results.
func (p *Processor) Reset() {
	if p.closed {
		return
	}
	p.buf.Reset()
	p.results = nil
	p.state = Idle
}

// Close releases the buffer. Later calls return stream.ErrClosed.
func (p *Processor) Close() {
	if p.closed {
		return
	}
	p.recordStream()
	p.closed = true
	p.buf.Close()
}

// attempt accumulates one match attempt across its windows.
type attempt struct {
	dedup   *matcher.Deduplicator
	matches []*types.Match
	windows int
	errs    *multierror.Error
}

func (p *Processor) begin() *attempt {
	p.state = Matching
	return &attempt{dedup: matcher.NewDeduplicator()}
}

func (p *Processor) scan(a *attempt, w stream.Window) {
	a.windows++
	p.stats.WindowsScanned++
	p.stats.LastWindow = WindowInfo{Index: w.Index, Offset: w.Offset, Length: w.Len(), Partial: w.Partial}
	metrics.WindowsScanned.WithLabelValues(p.mode, strconv.FormatBool(w.Partial)).Inc()

	blobID := types.ComputeBlobID(w.Data)
	start := time.Now()
	matches, err := p.match(w.Data, blobID)
	metrics.MatchDuration.WithLabelValues(p.mode).Observe(time.Since(start).Seconds())

	if err != nil {
		p.stats.MatchErrors++
		metrics.MatchErrors.WithLabelValues(p.mode).Inc()
		p.log.Warnf("match failed on window %d at offset %d: %v", w.Index, w.Offset, err)
		a.errs = multierror.Append(a.errs, &MatchEngineError{WindowIndex: w.Index, WindowOffset: w.Offset, Err: err})
		return
	}

	for _, m := range matches {
		m.StreamID = p.id
		matcher.AdjustMatchOffset(m, w)
		if a.dedup.AddIfNew(m) {
			a.matches = append(a.matches, m)
		}
	}

	if p.cfg.Store != nil {
		if err := p.cfg.Store.AddBlob(blobID, int64(w.Len())); err != nil {
			a.errs = multierror.Append(a.errs, fmt.Errorf("store window: %w", err))
		}
	}
}

// match runs the matcher over one window, folding per-rule outcomes into
// the stream's counters when the engine reports them.
func (p *Processor) match(data []byte, blobID types.BlobID) ([]*types.Match, error) {
	sm, ok := p.matcher.(matcher.StatsMatcher)
	if !ok {
		return p.matcher.MatchWithBlobID(data, blobID)
	}
	res, err := sm.MatchWithStats(data, blobID)
	if res != nil {
		p.stats.Rules.Add(res.Summary)
		p.observeRules(res.Summary)
		for _, st := range res.Failed() {
			p.log.Debugf("rule %s %s after %s: %v", st.RuleID, st.Status, st.Duration, st.Error)
		}
	}
	if err != nil {
		return nil, err
	}
	return res.Matches, nil
}

func (p *Processor) observeRules(s matcher.ResultSummary) {
	outcomes := [...]struct {
		status matcher.RuleStatus
		n      int
	}{
		{matcher.RuleCompleted, s.CompletedRules},
		{matcher.RuleTimedOut, s.TimedOutRules},
		{matcher.RuleError, s.ErrorRules},
		{matcher.RuleSkipped, s.SkippedRules},
	}
	for _, o := range outcomes {
		if o.n > 0 {
			metrics.RuleOutcomes.WithLabelValues(p.mode, o.status.String()).Add(float64(o.n))
		}
	}
}

// complete publishes the attempt: Results is replaced when at least one
// window was attempted.
func (p *Processor) complete(a *attempt) error {
	p.state = Idle
	if a.windows == 0 {
		return a.errs.ErrorOrNil()
	}

	slices.SortStableFunc(a.matches, func(x, y *types.Match) int {
		if c := cmp.Compare(x.Location.Offset.Start, y.Location.Offset.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Location.Offset.End, y.Location.Offset.End); c != 0 {
			return c
		}
		return cmp.Compare(x.RuleID, y.RuleID)
	})
	p.results = a.matches
	p.stats.Attempts++
	p.stats.Matches += len(a.matches)
	metrics.Matches.WithLabelValues(p.mode).Add(float64(len(a.matches)))
	p.observeBuffer()

	if len(a.matches) > 0 {
		p.log.Debugf("%d match(es) in %d window(s)", len(a.matches), a.windows)
	}

	if p.cfg.Store != nil {
		if err := store.Record(p.cfg.Store, a.matches); err != nil {
			a.errs = multierror.Append(a.errs, fmt.Errorf("store matches: %w", err))
		}
		p.recordStream()
	}
	return a.errs.ErrorOrNil()
}

func (p *Processor) recordStream() {
	if p.cfg.Store == nil || p.closed {
		return
	}
	sc := p.cfg.Stream
	overlap := sc.OverlapSize
	if sc.WindowStep > 0 {
		overlap = sc.ChunkSize - sc.WindowStep
	}
	bs := p.buf.Stats()
	err := p.cfg.Store.AddStream(store.Stream{
		ID:                p.id,
		Mode:              p.mode,
		ChunkSize:         sc.ChunkSize,
		OverlapSize:       overlap,
		MaxCumulativeSize: sc.MaxCumulativeSize,
		BytesIngested:     bs.Ingested,
		Windows:           p.stats.WindowsScanned,
	})
	if err != nil {
		p.log.Warnf("store stream: %v", err)
	}
}

// observeBuffer exports buffer counter deltas.
func (p *Processor) observeBuffer() {
	bs := p.buf.Stats()
	if d := bs.Ingested - p.seenIngested; d > 0 {
		metrics.BytesIngested.WithLabelValues(p.mode).Add(float64(d))
	}
	if d := bs.Evicted - p.seenEvicted; d > 0 {
		metrics.BytesEvicted.WithLabelValues(p.mode).Add(float64(d))
	}
	p.seenIngested = bs.Ingested
	p.seenEvicted = bs.Evicted
}
