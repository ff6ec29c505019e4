package octio

// recordedEntry is one (chunk, read-start, effective-limit) triple held in
// a recorded chain. start is the chunk's readPosition at the moment it was
// recorded — the point a later replay of this entry must rewind to, since
// whatever first read through the chunk during the preview session will
// have advanced readPosition all the way to writePosition by the time the
// entry is revisited. The effective limit is the chunk's writePosition at
// record time; pointed hands it back, but Input's rebind sites read a
// rebound chunk up to its current writePosition and do not apply it.
type recordedEntry struct {
	c     *chunk
	start int
	limit int
}

// recordedChain is an ordered, append-only-at-the-tail, drop-only-at-the-
// head sequence of chunks an Input retains to support nested, rewindable
// preview sessions. It is deliberately a flat FIFO, not an index, so
// resuming outside a preview only ever walks forward.
type recordedChain struct {
	entries []recordedEntry
}

// append takes ownership of c: the chain is now responsible for recycling
// it (via discardFirst, eventually). start is c's readPosition at the time
// of recording, restored on any later rebind to this entry.
func (r *recordedChain) append(c *chunk, start, limit int) {
	r.entries = append(r.entries, recordedEntry{c: c, start: start, limit: limit})
}

// isEmpty reports whether the chain currently holds no entries.
func (r *recordedChain) isEmpty() bool { return len(r.entries) == 0 }

// size returns the number of entries from fromIndex (inclusive) to the
// tail.
func (r *recordedChain) size(fromIndex int) int {
	n := len(r.entries) - fromIndex
	if n < 0 {
		return 0
	}
	return n
}

// isAfterLast reports whether i is at or past the tail of the chain.
func (r *recordedChain) isAfterLast(i int) bool {
	return i >= len(r.entries)
}

// pointed invokes fn with a borrowed view of the i-th entry. The view
// (chunk pointer, recorded read-start, and recorded effective limit) must
// not be retained past fn's return.
func (r *recordedChain) pointed(i int, fn func(c *chunk, start, limit int)) {
	e := r.entries[i]
	fn(e.c, e.start, e.limit)
}

// discardFirst releases ownership of the head entry back to the caller,
// who is then responsible for recycling it, and drops it from the chain.
func (r *recordedChain) discardFirst() *chunk {
	if len(r.entries) == 0 {
		return nil
	}
	c := r.entries[0].c
	r.entries = r.entries[1:]
	return c
}
