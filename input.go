package octio

import "math"

// FillSource is the one capability interface an external collaborator
// supplies to an Input. Fill writes up to len(dst) bytes into dst starting
// at dst[0] and returns the count written; 0 with a nil error means the
// source is at EOF.
type FillSource interface {
	Fill(dst []byte) (int, error)
}

// SourceCloser is optionally implemented by a FillSource to release the
// underlying resource when the owning Input is closed.
type SourceCloser interface {
	CloseSource() error
}

// MultiChunkFillSource is an optional interface a FillSource can implement
// when it can fill several chunks more cheaply in one call than Input would
// by calling Fill once per chunk — e.g. a readv(2)-backed source. When src
// implements it, Prefetch grows its recorded chain through FillChunks
// instead of Fill.
type MultiChunkFillSource interface {
	FillChunks(dsts [][]byte) (int, error)
}

// Input is a pull-style buffered byte reader over an abstract FillSource.
// It holds one active chunk plus, while a preview session is open (or
// draining), a recorded chain of chunks visited so those bytes can be
// replayed. Input is not safe for concurrent use.
type Input struct {
	pool *Pool
	src  FillSource

	active *chunk

	chain          *recordedChain
	previewIndex   int
	previewDiscard bool // true ⇔ no preview session is open

	closed bool
}

// NewInput constructs an Input backed by src, borrowing its first chunk
// from pool.
func NewInput(pool *Pool, src FillSource) *Input {
	c := pool.borrow()
	c.installGaps(0, 0)
	return &Input{pool: pool, src: src, active: c, previewDiscard: true}
}

// newInputFromChunk seeds an Input with an already-populated chunk chain
// (e.g. a Packet being consumed as an Input) instead of an empty borrowed
// one.
func newInputFromChunk(pool *Pool, src FillSource, first *chunk) *Input {
	return &Input{pool: pool, src: src, active: first, previewDiscard: true}
}

func (in *Input) checkOpen(op string) error {
	if in.closed {
		return newStateError(op, "input is closed")
	}
	return nil
}

// ensureAvailable guarantees the active chunk has at least one unread byte
// if any remain in the source, refilling via fetchCachedOrFill only when
// the active chunk is currently exhausted.
func (in *Input) ensureAvailable() (int, error) {
	if !in.active.exhausted() {
		return in.active.readRemaining(), nil
	}
	return in.fetchCachedOrFill()
}

// fetchCachedOrFill refills or advances the active chunk once it has been
// exhausted, dispatching on whether a preview session is open and whether a
// recorded chain already exists.
func (in *Input) fetchCachedOrFill() (int, error) {
	switch {
	case in.previewDiscard && in.chain == nil:
		// A chunk already linked via next holds real data an Input seeded
		// from a Packet (newInputFromChunk) was constructed over — consume
		// it before ever calling src.Fill. An ordinary pool-borrowed chunk
		// never has next set (resetEmpty clears it), so this never fires
		// on the plain streaming path.
		if in.active.next != nil {
			old := in.active
			in.active = old.next
			old.next = nil
			disposeChunk(in.pool, old)
			return in.active.readRemaining(), nil
		}
		return in.fillFromSource(in.active)

	case in.previewDiscard && in.chain != nil:
		head := in.chain.discardFirst()
		disposeChunk(in.pool, head)
		if in.chain.isEmpty() {
			in.chain = nil
			in.previewIndex = 0
			fresh := in.pool.borrow()
			fresh.installGaps(0, 0)
			in.active = fresh
			return in.fillFromSource(in.active)
		}
		var next *chunk
		var start int
		in.chain.pointed(0, func(c *chunk, s, _ int) { next, start = c, s })
		next.readPosition = start
		in.active = next
		in.previewIndex = 0
		return in.active.readRemaining(), nil

	case !in.previewDiscard && in.chain == nil:
		in.chain = &recordedChain{}
		in.chain.append(in.active, in.active.readPosition, in.active.writePosition)
		in.previewIndex = 0
		return in.fillAndStoreInPreview()

	default: // !in.previewDiscard && in.chain != nil
		return in.fillAndStoreInPreview()
	}
}

func (in *Input) fillAndStoreInPreview() (int, error) {
	if in.previewIndex+1 < in.chain.size(0) {
		in.previewIndex++
		var next *chunk
		var start int
		in.chain.pointed(in.previewIndex, func(c *chunk, s, _ int) { next, start = c, s })
		next.readPosition = start
		in.active = next
		return in.active.readRemaining(), nil
	}

	c := in.pool.borrow()
	c.installGaps(0, 0)
	n, err := in.fillFromSource(c)
	if err != nil {
		in.pool.recycle(c)
		return 0, err
	}
	if n == 0 {
		in.pool.recycle(c)
		return 0, nil
	}
	in.chain.append(c, c.readPosition, c.writePosition)
	in.previewIndex++
	in.active = c
	return n, nil
}

// fillFromSource refills chunk c in place, discarding whatever it held
// before.
func (in *Input) fillFromSource(c *chunk) (int, error) {
	if in.src == nil {
		return 0, nil
	}
	c.readPosition = c.startGap
	c.writePosition = c.startGap
	dst := c.buf[c.writePosition:c.limit]
	if len(dst) == 0 {
		return 0, nil
	}
	n, err := in.src.Fill(dst)
	if n > 0 {
		c.writePosition += n
	}
	if err != nil && err != ErrEOF {
		return 0, wrapHookError(err, "Fill")
	}
	return n, nil
}

// ReadByte reads and returns the next byte, refilling as needed.
func (in *Input) ReadByte() (byte, error) {
	if err := in.checkOpen("ReadByte"); err != nil {
		return 0, err
	}
	if in.active.exhausted() {
		n, err := in.fetchCachedOrFill()
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, ErrEOF
		}
	}
	b := in.active.buf[in.active.readPosition]
	in.active.readPosition++
	return b, nil
}

// readPrimitive reads size bytes big-endian, advancing the cursor. Fast
// path reads straight out of the active chunk when it already holds size
// contiguous bytes; otherwise it falls back to a byte-at-a-time read that
// may cross one or more chunk boundaries.
func (in *Input) readPrimitive(size int) (uint64, error) {
	if err := in.checkOpen("read"); err != nil {
		return 0, err
	}
	if in.active.readRemaining() >= size {
		start := in.active.readPosition
		in.active.readPosition += size
		return bytesToUint64(in.active.buf[start : start+size]), nil
	}

	var result uint64
	for i := 0; i < size; i++ {
		b, err := in.ReadByte()
		if err != nil {
			return 0, err
		}
		result = accumulateBigEndian(result, b)
	}
	return result, nil
}

func bytesToUint64(b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(loadUint16(b))
	case 4:
		return uint64(loadUint32(b))
	case 8:
		return loadUint64(b)
	default:
		var v uint64
		for _, c := range b {
			v = accumulateBigEndian(v, c)
		}
		return v
	}
}

// ReadShort reads a big-endian 16-bit integer.
func (in *Input) ReadShort() (int16, error) {
	v, err := in.readPrimitive(sizeShort)
	return int16(v), err
}

// ReadShortLE reads a little-endian 16-bit integer.
func (in *Input) ReadShortLE() (int16, error) {
	v, err := in.readPrimitive(sizeShort)
	if err != nil {
		return 0, err
	}
	return int16(reverse16(uint16(v))), nil
}

// ReadInt reads a big-endian 32-bit integer.
func (in *Input) ReadInt() (int32, error) {
	v, err := in.readPrimitive(sizeInt)
	return int32(v), err
}

// ReadIntLE reads a little-endian 32-bit integer.
func (in *Input) ReadIntLE() (int32, error) {
	v, err := in.readPrimitive(sizeInt)
	if err != nil {
		return 0, err
	}
	return int32(reverse32(uint32(v))), nil
}

// ReadLong reads a big-endian 64-bit integer.
func (in *Input) ReadLong() (int64, error) {
	v, err := in.readPrimitive(sizeLong)
	return int64(v), err
}

// ReadLongLE reads a little-endian 64-bit integer.
func (in *Input) ReadLongLE() (int64, error) {
	v, err := in.readPrimitive(sizeLong)
	if err != nil {
		return 0, err
	}
	return int64(reverse64(v)), nil
}

// ReadFloat reads a big-endian IEEE-754 32-bit float.
func (in *Input) ReadFloat() (float32, error) {
	v, err := in.readPrimitive(sizeFloat)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(uint32(v)), nil
}

// ReadFloatLE reads a little-endian IEEE-754 32-bit float.
func (in *Input) ReadFloatLE() (float32, error) {
	v, err := in.readPrimitive(sizeFloat)
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(reverse32(uint32(v))), nil
}

// ReadDouble reads a big-endian IEEE-754 64-bit float.
func (in *Input) ReadDouble() (float64, error) {
	v, err := in.readPrimitive(sizeDouble)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(v), nil
}

// ReadDoubleLE reads a little-endian IEEE-754 64-bit float.
func (in *Input) ReadDoubleLE() (float64, error) {
	v, err := in.readPrimitive(sizeDouble)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(reverse64(v)), nil
}

// ReadFully reads exactly len(dst) bytes, failing with ErrEOF if the source
// ends first.
func (in *Input) ReadFully(dst []byte) error {
	if err := in.checkOpen("ReadFully"); err != nil {
		return err
	}
	off := 0
	for off < len(dst) {
		if in.active.exhausted() {
			n, err := in.fetchCachedOrFill()
			if err != nil {
				return err
			}
			if n == 0 {
				return ErrEOF
			}
		}
		off += in.drainActiveInto(dst[off:])
	}
	return nil
}

// ReadAvailable reads up to len(dst) bytes, stopping at EOF without error.
// It returns the number of bytes actually read.
func (in *Input) ReadAvailable(dst []byte) (int, error) {
	if err := in.checkOpen("ReadAvailable"); err != nil {
		return 0, err
	}
	off := 0
	for off < len(dst) {
		if in.active.exhausted() {
			n, err := in.fetchCachedOrFill()
			if err != nil {
				return off, err
			}
			if n == 0 {
				break
			}
		}
		off += in.drainActiveInto(dst[off:])
	}
	return off, nil
}

func (in *Input) drainActiveInto(dst []byte) int {
	avail := in.active.readRemaining()
	n := len(dst)
	if n > avail {
		n = avail
	}
	start := in.active.readPosition
	copy(dst[:n], in.active.buf[start:start+n])
	in.active.readPosition += n
	return n
}

// Preview records the active cursor and preview-discard state, marks a
// recording (or nested recording) session open, runs fn, then restores the
// cursor and — for the outermost session — the discard flag, rebinding the
// active chunk from the recorded chain if fn advanced into a different one.
func Preview[R any](in *Input, fn func(*Input) (R, error)) (R, error) {
	var zero R
	if err := in.checkOpen("Preview"); err != nil {
		return zero, err
	}
	n, err := in.ensureAvailable()
	if err != nil {
		return zero, err
	}
	if n == 0 {
		return zero, ErrEOF
	}

	chainExistedAtEntry := in.chain != nil
	savedIndex := 0
	if chainExistedAtEntry {
		savedIndex = in.previewIndex
	}
	savedPosition := in.active.readPosition
	savedDiscard := in.previewDiscard

	in.previewDiscard = false
	result, ferr := fn(in)
	preRestoreIndex := in.previewIndex

	if in.chain == nil {
		in.active.readPosition = savedPosition
	} else {
		var rebound *chunk
		in.chain.pointed(savedIndex, func(c *chunk, _, _ int) { rebound = c })
		in.active = rebound
		in.active.readPosition = savedPosition
		in.previewIndex = savedIndex
	}
	in.previewDiscard = savedDiscard

	if in.previewDiscard && !chainExistedAtEntry && preRestoreIndex == 0 {
		// Outermost preview that entered with no recorded chain and never
		// advanced past the chunk it started on: nothing recorded is
		// needed going forward.
		in.chain = nil
		in.previewIndex = 0
	}

	return result, ferr
}

// Prefetch ensures at least n bytes are visible across the active chunk
// plus however many additional chunks the reader retains, opening a
// recorded chain if one is not already active. It returns false (without
// error) if the source reaches EOF before n bytes accumulate.
func (in *Input) Prefetch(n int) (bool, error) {
	if err := in.checkOpen("Prefetch"); err != nil {
		return false, err
	}
	if n < 0 {
		return false, newArgumentError("Prefetch", "negative n")
	}
	if in.active.readRemaining() >= n {
		return true, nil
	}
	if in.chain == nil {
		in.chain = &recordedChain{}
		in.chain.append(in.active, in.active.readPosition, in.active.writePosition)
		in.previewIndex = 0
	}

	total := 0
	for i := in.previewIndex; !in.chain.isAfterLast(i); i++ {
		in.chain.pointed(i, func(c *chunk, _, _ int) { total += c.readRemaining() })
	}

	if batch, ok := in.src.(MultiChunkFillSource); ok {
		for total < n {
			more, err := in.prefetchBatch(batch, n-total)
			if err != nil {
				return false, err
			}
			if more == 0 {
				return false, nil
			}
			total += more
		}
		return true, nil
	}

	for total < n {
		local := in.pool.borrow()
		local.installGaps(0, 0)
		nr, err := in.fillFromSource(local)
		if err != nil {
			// Recycle the chunk this call just borrowed, not the active one.
			in.pool.recycle(local)
			return false, err
		}
		if nr == 0 {
			in.pool.recycle(local)
			return false, nil
		}
		in.chain.append(local, local.readPosition, local.writePosition)
		total += nr
	}
	return true, nil
}

// prefetchBatch borrows enough chunks to cover need bytes and fills them
// in a single MultiChunkFillSource.FillChunks call, recycling every
// locally borrowed chunk the batch didn't end up needing (mirrors
// Prefetch's single-chunk recycle-the-local-borrow discipline).
func (in *Input) prefetchBatch(src MultiChunkFillSource, need int) (int, error) {
	count := (need + in.pool.Capacity() - 1) / in.pool.Capacity()
	if count < 1 {
		count = 1
	}
	locals := make([]*chunk, count)
	dsts := make([][]byte, count)
	for i := range locals {
		c := in.pool.borrow()
		c.installGaps(0, 0)
		locals[i] = c
		dsts[i] = c.buf[c.startGap:c.limit]
	}

	n, err := src.FillChunks(dsts)
	if err != nil && err != ErrEOF {
		for _, c := range locals {
			in.pool.recycle(c)
		}
		return 0, wrapHookError(err, "FillChunks")
	}

	filled := 0
	remaining := n
	for _, c := range locals {
		room := len(c.buf[c.startGap:c.limit])
		take := remaining
		if take > room {
			take = room
		}
		if take > 0 {
			c.writePosition = c.startGap + take
			in.chain.append(c, c.readPosition, c.writePosition)
			filled += take
			remaining -= take
		} else {
			in.pool.recycle(c)
		}
	}
	return filled, nil
}

// Discard advances past n bytes, pulling further chunks as needed, failing
// with ErrEOF if the source ends first.
func (in *Input) Discard(n int) error {
	if err := in.checkOpen("Discard"); err != nil {
		return err
	}
	if n < 0 {
		return newArgumentError("Discard", "negative n")
	}
	remaining := n
	for remaining > 0 {
		if in.active.exhausted() {
			k, err := in.fetchCachedOrFill()
			if err != nil {
				return err
			}
			if k == 0 {
				return ErrEOF
			}
		}
		avail := in.active.readRemaining()
		skip := remaining
		if skip > avail {
			skip = avail
		}
		in.active.readPosition += skip
		remaining -= skip
	}
	return nil
}

// Eof reports whether no more bytes are available, refilling once to find
// out if the active chunk is currently exhausted.
func (in *Input) Eof() bool {
	if in.closed {
		return true
	}
	if !in.active.exhausted() {
		return false
	}
	n, err := in.fetchCachedOrFill()
	if err != nil {
		return true
	}
	return n == 0
}

// ReadAvailableTo copies (or, when possible, zero-copy hands off) bytes
// from this Input into dst and returns the number of bytes transferred.
// The copy path drains bytes already cached in the active chunk (and, while
// a recorded chain exists, moves on through fetchCachedOrFill); the
// zero-copy path below makes one FillSource.Fill call.
//
// Zero-copy applies when this Input currently has no cached bytes (active
// chunk exhausted, no recorded chain) and dst shares this Input's pool: the
// reader then asks dst for a writable region of its tail chunk and passes
// it directly to its own FillSource, skipping the intermediate copy.
func (in *Input) ReadAvailableTo(dst *Output) (int, error) {
	if err := in.checkOpen("ReadAvailableTo"); err != nil {
		return 0, err
	}
	if in.active.exhausted() && in.chain == nil && dst.pool == in.pool {
		region := dst.reserveForFill()
		n, err := in.src.Fill(region)
		if n > 0 {
			dst.commitFill(n)
		}
		if err != nil && err != ErrEOF {
			return n, wrapHookError(err, "Fill")
		}
		return n, nil
	}

	total := 0
	for {
		if in.active.exhausted() {
			break
		}
		chunkBytes := in.active.readableView()
		n, err := dst.Write(chunkBytes)
		in.active.readPosition += n
		total += n
		if err != nil {
			return total, err
		}
		if n < len(chunkBytes) {
			break
		}
		if in.chain == nil {
			break
		}
		k, err := in.fetchCachedOrFill()
		if err != nil || k == 0 {
			break
		}
	}
	return total, nil
}

// Close recycles the active chunk and any recorded chain entries exactly
// once each, then invokes the source's CloseSource hook if it implements
// SourceCloser. Double-close is a programming error and panics.
func (in *Input) Close() error {
	if in.closed {
		panic(newStateError("Input.Close", "already closed"))
	}
	in.closed = true

	// Whenever a recorded chain is open, in.active always aliases one of
	// its entries (the one at previewIndex) — draining the chain recycles
	// it too, so it must not also be recycled directly here.
	if in.chain != nil {
		for !in.chain.isEmpty() {
			c := in.chain.discardFirst()
			disposeChunk(in.pool, c)
		}
		in.chain = nil
		in.active = nil
	} else if in.active != nil {
		// Any chunks still linked via next are unconsumed continuation of
		// a Packet this Input was seeded from (newInputFromChunk) and must
		// be recycled too, not just the current one.
		c := in.active
		for c != nil {
			next := c.next
			c.next = nil
			disposeChunk(in.pool, c)
			c = next
		}
		in.active = nil
	}

	if closer, ok := in.src.(SourceCloser); ok {
		if err := closer.CloseSource(); err != nil {
			return wrapHookError(err, "CloseSource")
		}
	}
	return nil
}
