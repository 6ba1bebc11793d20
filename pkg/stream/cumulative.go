package stream

// cumulativeBuffer never consumes bytes: every window spans everything still
// stored. With a cap, the oldest bytes are evicted FIFO and are lost to all
// later windows.
type cumulativeBuffer struct {
	state
	fresh int // stored bytes not yet part of a window
}

func (b *cumulativeBuffer) Ingest(p []byte) (Readiness, error) {
	if err := b.accept(p); err != nil {
		return Readiness{}, err
	}
	b.fresh += len(p)

	if limit := b.cfg.MaxCumulativeSize; limit > 0 && b.arena.len() > limit {
		n := b.arena.len() - limit
		b.arena.discard(n)
		b.stats.Evicted += int64(n)
	}
	if b.fresh > b.arena.len() {
		b.fresh = b.arena.len()
	}
	return b.Ready(), nil
}

func (b *cumulativeBuffer) Ready() Readiness {
	if b.closed() || b.fresh == 0 || b.arena.len() < b.cfg.ChunkSize {
		return Readiness{}
	}
	return Readiness{
		Ready:   true,
		Offset:  b.arena.base,
		Length:  b.arena.len(),
		Pending: 1,
	}
}

func (b *cumulativeBuffer) TakeWindow() (Window, error) {
	if b.closed() {
		return Window{}, ErrClosed
	}
	if !b.Ready().Ready {
		return Window{}, ErrNotReady
	}
	w := b.window(b.arena.len())
	b.fresh = 0
	return w, nil
}

// Flush returns the whole cumulative window if it holds unscanned bytes.
// Storage is retained so later windows keep their reach-back.
func (b *cumulativeBuffer) Flush() Window {
	if b.closed() || b.fresh == 0 {
		return b.emptyWindow()
	}
	w := b.window(b.arena.len())
	b.stats.Flushes++
	b.fresh = 0
	return w
}

func (b *cumulativeBuffer) Reset() {
	if b.closed() {
		return
	}
	b.arena.reset(b.total)
	b.fresh = 0
}
