package octio

// Packet is an immutable handle on a chunk chain produced by Output.Build.
// It carries its own length so callers don't need to walk the chain to
// learn how much data it holds.
//
// A Packet is consumed in one of two ways: Consume converts it into an
// Input that drains and recycles the chain as it reads, or Copy clones it
// into a second, independent Packet that shares the same underlying
// chunks (made read-only on first copy) without copying bytes.
type Packet struct {
	pool   *Pool
	head   *chunk
	tail   *chunk
	length int
}

// Len returns the number of bytes remaining in the packet.
func (p *Packet) Len() int { return p.length }

// Empty reports whether the packet holds no bytes.
func (p *Packet) Empty() bool { return p.length == 0 }

// Consume converts the packet into an Input over its own chain, backed by
// src for any further fill once the chain is exhausted. src may be nil if
// the caller only ever intends to read the packet's existing bytes (any
// read past the chain's end then fails with ErrEOF rather than blocking).
// The packet must not be used again after Consume.
func (p *Packet) Consume(src FillSource) *Input {
	in := newInputFromChunk(p.pool, src, p.head)
	p.head, p.tail, p.length = nil, nil, 0
	return in
}

// Copy clones the packet into a new, independent Packet over the same
// underlying chunks. The first Copy call converts every chunk in the
// chain to a shared, read-only state; later copies, and the original,
// simply retain an extra reference. Each resulting Packet must still be
// Consume'd or Released exactly once.
func (p *Packet) Copy() *Packet {
	for c := p.head; c != nil; c = c.next {
		if !c.readOnly {
			// c had exactly one owner (p) before this call, not yet
			// reflected in refCount since it only takes on meaning once
			// readOnly. Converting it now must account for that existing
			// owner plus the new clone: shareReadOnly sets refCount to 1,
			// then retain brings it to 2.
			c.shareReadOnly()
			c.retain()
		} else {
			c.retain()
		}
	}
	return &Packet{pool: p.pool, head: p.head, tail: p.tail, length: p.length}
}

// Release recycles (or drops a reference to) every chunk the packet still
// owns without converting it to an Input. Safe to call on an
// already-emptied packet (e.g. after Consume).
func (p *Packet) Release() {
	c := p.head
	for c != nil {
		next := c.next
		disposeChunk(p.pool, c)
		c = next
	}
	p.head, p.tail, p.length = nil, nil, 0
}
