package octio

import "sync/atomic"

// chunk is a fixed-capacity memory region plus four cursors constrained by
// 0 ≤ startGap ≤ readPosition ≤ writePosition ≤ limit ≤ capacity, with
// endGap = capacity - limit. startGap reserves room to prepend a header
// later; endGap reserves room to append a trailer.
//
// A chunk belongs to exactly one chain at a time (pool free-list, an
// Input's active slot, an Input's recorded chain, an Output's chain, or a
// Packet) except once it has been made read-only, at which point refCount
// tracks how many chains hold a shared, immutable view of it.
type chunk struct {
	buf  []byte // length == capacity, allocated once, never resized
	next *chunk

	startGap      int
	readPosition  int
	writePosition int
	limit         int

	// readOnly chunks may be referenced from more than one chain at once;
	// refCount is the count of active references and is only meaningful
	// once readOnly is true. Updated atomically.
	readOnly bool
	refCount int32

	// inPool is 0 while a chunk is owned by some chain and 1 once it has
	// been recycled (whether it sits in a Pool's free-list or was dropped
	// past the soft cap). Pool.recycle uses it to detect double-recycle.
	inPool int32
}

func newChunk(capacity int) *chunk {
	return &chunk{buf: make([]byte, capacity), limit: capacity}
}

func (c *chunk) capacity() int { return len(c.buf) }

func (c *chunk) endGap() int { return c.capacity() - c.limit }

// readRemaining is the number of unread bytes currently available in this
// chunk.
func (c *chunk) readRemaining() int { return c.writePosition - c.readPosition }

// writeRemaining is the number of bytes that can still be written before
// this chunk is full.
func (c *chunk) writeRemaining() int { return c.limit - c.writePosition }

// exhausted reports whether this chunk has no more unread bytes.
func (c *chunk) exhausted() bool { return c.readRemaining() == 0 }

// full reports whether this chunk has no more room to write.
func (c *chunk) full() bool { return c.writeRemaining() == 0 }

// resetEmpty restores a chunk to the pool's borrow() contract: cursors
// reset to the empty state, full capacity available, no reservation
// installed, detached from any chain, exclusively owned.
func (c *chunk) resetEmpty() {
	c.next = nil
	c.startGap = 0
	c.readPosition = 0
	c.writePosition = 0
	c.limit = c.capacity()
	c.readOnly = false
	c.refCount = 0
}

// installGaps applies a caller's head/tail reservation policy. Must be
// called on a freshly borrowed chunk, before any bytes are written.
func (c *chunk) installGaps(headGap, tailGap int) {
	c.startGap = headGap
	c.readPosition = headGap
	c.writePosition = headGap
	c.limit = c.capacity() - tailGap
}

// readableView returns the currently unread bytes without advancing the
// cursor. Valid only until the chunk is next mutated.
func (c *chunk) readableView() []byte {
	return c.buf[c.readPosition:c.writePosition]
}

// writableView returns the space available for writes without advancing
// the cursor.
func (c *chunk) writableView() []byte {
	return c.buf[c.writePosition:c.limit]
}

// shareReadOnly converts an exclusively owned chunk into a shared,
// immutable one with a single reference. Called when a packet is copied,
// since a chunk may only be shared across chains once converted to
// read-only state.
func (c *chunk) shareReadOnly() {
	c.readOnly = true
	atomic.StoreInt32(&c.refCount, 1)
}

// retain adds one reference to an already-shared chunk (clone of a
// packet).
func (c *chunk) retain() {
	atomic.AddInt32(&c.refCount, 1)
}

// release drops one reference. When the count reaches zero the chunk
// returns to pool p. Used only for readOnly chunks; owning chains that
// never shared a chunk recycle it directly via pool.recycle instead.
func (c *chunk) release(p *Pool) {
	if atomic.AddInt32(&c.refCount, -1) == 0 {
		p.recycle(c)
	}
}
