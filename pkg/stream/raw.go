package stream

// rawBuffer holds only the most recent submission and never becomes ready.
type rawBuffer struct {
	state
}

func (b *rawBuffer) Ingest(p []byte) (Readiness, error) {
	if b.closed() {
		return Readiness{}, ErrClosed
	}
	if len(p) == 0 {
		return Readiness{}, ErrInvalidInput
	}
	// The previous submission is replaced, not extended.
	b.arena.reset(b.total)
	if err := b.accept(p); err != nil {
		return Readiness{}, err
	}
	return Readiness{}, nil
}

func (b *rawBuffer) Ready() Readiness {
	return Readiness{}
}

func (b *rawBuffer) TakeWindow() (Window, error) {
	if b.closed() {
		return Window{}, ErrClosed
	}
	return Window{}, ErrNotReady
}

func (b *rawBuffer) Flush() Window {
	if b.closed() || b.arena.len() == 0 {
		return b.emptyWindow()
	}
	w := b.window(b.arena.len())
	b.stats.Flushes++
	b.arena.reset(b.total)
	return w
}

func (b *rawBuffer) Reset() {
	if b.closed() {
		return
	}
	b.arena.reset(b.total)
}
