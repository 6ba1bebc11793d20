package stream

import "github.com/valyala/bytebufferpool"

// arenaPool recycles storage between streams; a process typically opens and
// closes many short-lived streams (one per flow).
var arenaPool bytebufferpool.Pool

// arena is a growable byte region addressed through a moving start index.
// Consumed bytes are not copied out immediately: the dead prefix is reclaimed
// only when it is at least as large as the live region, so every byte is moved
// at most a constant number of times.
type arena struct {
	buf   *bytebufferpool.ByteBuffer
	start int
	base  int64 // absolute stream offset of buf.B[start]
}

func newArena() *arena {
	return &arena{buf: arenaPool.Get()}
}

// bytes returns the live region. The slice aliases the arena and is only
// valid until the next append or reset.
func (a *arena) bytes() []byte {
	return a.buf.B[a.start:]
}

func (a *arena) len() int {
	return len(a.buf.B) - a.start
}

// end returns the absolute offset one past the last live byte.
func (a *arena) end() int64 {
	return a.base + int64(a.len())
}

func (a *arena) append(p []byte) {
	a.compact()
	a.buf.B = append(a.buf.B, p...)
}

// discard drops n bytes from the front of the live region.
func (a *arena) discard(n int) {
	if n > a.len() {
		n = a.len()
	}
	a.start += n
	a.base += int64(n)
	if a.start == len(a.buf.B) {
		a.buf.B = a.buf.B[:0]
		a.start = 0
	}
}

func (a *arena) compact() {
	if a.start == 0 {
		return
	}
	live := len(a.buf.B) - a.start
	if a.start < live {
		return
	}
	n := copy(a.buf.B, a.buf.B[a.start:])
	a.buf.B = a.buf.B[:n]
	a.start = 0
}

// reset empties the arena; the next byte stored will sit at offset base.
func (a *arena) reset(base int64) {
	a.buf.Reset()
	a.start = 0
	a.base = base
}

func (a *arena) release() {
	if a.buf == nil {
		return
	}
	arenaPool.Put(a.buf)
	a.buf = nil
	a.start = 0
}
