package stream

// chunkedBuffer implements Disjoint and Overlapped modes. Disjoint is the
// special case step == ChunkSize.
type chunkedBuffer struct {
	state
	step int   // bytes discarded per window: ChunkSize - OverlapSize
	seen int64 // absolute offset up to which bytes were part of a window
}

func (b *chunkedBuffer) Ingest(p []byte) (Readiness, error) {
	if err := b.accept(p); err != nil {
		return Readiness{}, err
	}
	return b.Ready(), nil
}

func (b *chunkedBuffer) Ready() Readiness {
	if b.closed() {
		return Readiness{}
	}
	n := b.arena.len()
	if n < b.cfg.ChunkSize {
		return Readiness{}
	}
	return Readiness{
		Ready:   true,
		Offset:  b.arena.base,
		Length:  b.cfg.ChunkSize,
		Pending: (n-b.cfg.ChunkSize)/b.step + 1,
	}
}

func (b *chunkedBuffer) TakeWindow() (Window, error) {
	if b.closed() {
		return Window{}, ErrClosed
	}
	if b.arena.len() < b.cfg.ChunkSize {
		return Window{}, ErrNotReady
	}
	w := b.window(b.cfg.ChunkSize)
	b.seen = w.End()
	// The trailing OverlapSize bytes stay behind as the seed of the next window.
	b.arena.discard(b.step)
	return w, nil
}

// fresh returns the number of stored bytes no window has covered yet.
func (b *chunkedBuffer) fresh() int64 {
	from := b.seen
	if from < b.arena.base {
		from = b.arena.base
	}
	if n := b.arena.end() - from; n > 0 {
		return n
	}
	return 0
}

func (b *chunkedBuffer) Flush() Window {
	if b.closed() {
		return b.emptyWindow()
	}
	if b.fresh() == 0 {
		// Only the overlap seed of an already scanned window is left.
		b.Reset()
		return b.emptyWindow()
	}
	w := b.window(b.arena.len())
	b.stats.Flushes++
	b.Reset()
	return w
}

func (b *chunkedBuffer) Reset() {
	if b.closed() {
		return
	}
	b.arena.reset(b.total)
	b.seen = b.total
}
