// Package stream implements the chunking policies that decide which bytes of
// an incoming stream are visible to a matcher and when a match attempt fires.
//
// A Buffer is owned by a single stream and is not safe for concurrent use.
package stream

// Window is a contiguous span of the stream handed to a matcher.
//
// Data aliases the buffer storage: it stays valid until the next Ingest,
// Flush or Reset on the buffer that produced it. Copy it to keep it longer.
type Window struct {
	Data    []byte
	Offset  int64 // absolute offset of Data[0] in the stream
	Index   int   // sequence number of the window, -1 for an empty flush
	Partial bool  // flushed before reaching ChunkSize
}

// Len returns the window length.
func (w Window) Len() int {
	return len(w.Data)
}

// Empty reports whether the window carries no bytes.
func (w Window) Empty() bool {
	return len(w.Data) == 0
}

// End returns the absolute offset one past the last byte of the window.
func (w Window) End() int64 {
	return w.Offset + int64(len(w.Data))
}

// Readiness describes the next window a Buffer can hand out.
type Readiness struct {
	Ready   bool
	Offset  int64 // absolute offset of the next window
	Length  int   // length of the next window
	Pending int   // complete windows extractable without more input
}

// Stats are lifetime counters of a Buffer.
type Stats struct {
	Ingested int64 // bytes accepted by Ingest
	Evicted  int64 // bytes dropped by the cumulative cap
	Windows  int   // windows handed out, flushes included
	Flushes  int   // non-empty flushes
	Buffered int   // bytes currently stored
}

// Buffer is the polymorphic chunking policy. One implementation exists per Mode.
type Buffer interface {
	// Mode returns the policy the buffer was created with.
	Mode() Mode

	// Ingest stores p according to the mode and reports readiness.
	// An empty p yields ErrInvalidInput.
	Ingest(p []byte) (Readiness, error)

	// Ready reports whether TakeWindow would succeed.
	Ready() Readiness

	// TakeWindow returns the ready window and applies the mode's
	// post-consumption cleanup. Returns ErrNotReady when nothing is ready.
	TakeWindow() (Window, error)

	// Flush returns whatever bytes are buffered, even a partial window.
	// It never fails and may return an empty window.
	Flush() Window

	// Reset discards all buffered bytes.
	Reset()

	// Len returns the number of bytes currently stored.
	Len() int

	Stats() Stats

	// Close releases the storage. The buffer must not be used afterwards.
	Close()
}

// New creates the Buffer for cfg.Mode.
func New(cfg Config) (Buffer, error) {
	cfg, err := cfg.normalize()
	if err != nil {
		return nil, err
	}

	st := state{cfg: cfg, arena: newArena()}
	switch cfg.Mode {
	case Raw:
		return &rawBuffer{state: st}, nil
	case Disjoint, Overlapped:
		return &chunkedBuffer{state: st, step: cfg.ChunkSize - cfg.OverlapSize}, nil
	default:
		return &cumulativeBuffer{state: st}, nil
	}
}

// state is shared by every mode.
type state struct {
	cfg   Config
	arena *arena
	total int64 // bytes ever ingested
	next  int   // index of the next window
	stats Stats
}

func (b *state) Mode() Mode {
	return b.cfg.Mode
}

func (b *state) Len() int {
	if b.arena.buf == nil {
		return 0
	}
	return b.arena.len()
}

func (b *state) Stats() Stats {
	s := b.stats
	s.Buffered = b.Len()
	return s
}

func (b *state) Close() {
	b.arena.release()
}

func (b *state) closed() bool {
	return b.arena.buf == nil
}

// accept validates p and appends it to the arena.
func (b *state) accept(p []byte) error {
	if b.closed() {
		return ErrClosed
	}
	if len(p) == 0 {
		return ErrInvalidInput
	}
	b.arena.append(p)
	b.total += int64(len(p))
	b.stats.Ingested += int64(len(p))
	return nil
}

// window builds a window over the first n live bytes.
func (b *state) window(n int) Window {
	w := Window{
		Data:    b.arena.bytes()[:n],
		Offset:  b.arena.base,
		Index:   b.next,
		Partial: b.cfg.Mode != Raw && n < b.cfg.ChunkSize,
	}
	b.next++
	b.stats.Windows++
	return w
}

func (b *state) emptyWindow() Window {
	return Window{Offset: b.total, Index: -1}
}
