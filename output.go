package octio

import "math"

// mergeMaxBytes bounds how much data WritePacket is willing to move in
// order to merge a foreign chain into this builder rather than splice it
// in unmodified.
const mergeMaxBytes = 200

// FlushSink is the capability interface an external collaborator supplies
// to an Output so it can drain accumulated chunks to a real destination.
// Flush drains the readable bytes of one chunk; the chunk is recycled by
// the core after Flush returns, whether or not it errors.
type FlushSink interface {
	Flush(data []byte) error
}

// DestinationCloser is optionally implemented by a FlushSink to release
// the underlying resource when the owning Output is closed.
type DestinationCloser interface {
	CloseDestination() error
}

// OutputOptions configures an Output/builder.
type OutputOptions struct {
	// Pool supplies chunks. Required.
	Pool *Pool
	// Sink receives flushed chunk data; nil makes this a pure packet
	// builder with no flush target (Flush reports a state error; Close
	// recycles the buffered chunks without flushing them; Build/Reset/
	// Release still work).
	Sink FlushSink
	// HeaderReserve/TrailerReserve install a startGap/endGap on every
	// chunk this builder allocates, reserving room for a header to be
	// prepended or a trailer to be appended later without a copy.
	HeaderReserve int
	TrailerReserve int
}

// Output is a push-style buffered byte writer that accumulates writes
// across a chain of pooled chunks. It is not safe for concurrent use.
type Output struct {
	pool *Pool
	sink FlushSink

	headGap, tailGap int

	head *chunk
	tail *chunk

	chainedSize          int // bytes committed in chunks other than tail
	tailInitialPosition  int // where appending into the current tail began

	closed bool
}

// NewOutput constructs an Output per opts.
func NewOutput(opts OutputOptions) *Output {
	return &Output{
		pool:    opts.Pool,
		sink:    opts.Sink,
		headGap: opts.HeaderReserve,
		tailGap: opts.TrailerReserve,
	}
}

// NewBuilder constructs a pure packet builder: an Output with no flush
// sink, meant to be drained with Build rather than Flush.
func NewBuilder(pool *Pool) *Output {
	return NewOutput(OutputOptions{Pool: pool})
}

func (o *Output) checkOpen(op string) error {
	if o.closed {
		return newStateError(op, "output is closed")
	}
	return nil
}

func (o *Output) ensureTail() {
	if o.tail != nil {
		return
	}
	c := o.pool.borrow()
	c.installGaps(o.headGap, o.tailGap)
	o.head = c
	o.tail = c
	o.tailInitialPosition = c.writePosition
}

// retarget commits the current tail's written span, plus the readable bytes
// of any chunks already linked between it and newTail, into chainedSize and
// makes newTail the tail going forward.
func (o *Output) retarget(newTail *chunk) {
	o.chainedSize += o.tail.writePosition - o.tailInitialPosition
	for c := o.tail.next; c != nil && c != newTail; c = c.next {
		o.chainedSize += c.readRemaining()
	}
	o.tail = newTail
	o.tailInitialPosition = newTail.readPosition
}

func (o *Output) appendNewBuffer() {
	c := o.pool.borrow()
	c.installGaps(o.headGap, o.tailGap)
	o.tail.next = c
	o.retarget(c)
}

// Len returns the total number of bytes buffered so far.
func (o *Output) Len() int {
	if o.tail == nil {
		return 0
	}
	return o.chainedSize + (o.tail.writePosition - o.tailInitialPosition)
}

// WriteByte appends a single byte, rotating to a new chunk if the tail is
// full.
func (o *Output) WriteByte(b byte) error {
	if err := o.checkOpen("WriteByte"); err != nil {
		return err
	}
	o.ensureTail()
	if o.tail.writeRemaining() == 0 {
		o.appendNewBuffer()
	}
	o.tail.buf[o.tail.writePosition] = b
	o.tail.writePosition++
	return nil
}

// Write appends p, implementing io.Writer.
func (o *Output) Write(p []byte) (int, error) {
	if err := o.checkOpen("Write"); err != nil {
		return 0, err
	}
	o.ensureTail()
	written := 0
	for written < len(p) {
		if o.tail.writeRemaining() == 0 {
			o.appendNewBuffer()
		}
		n := copy(o.tail.writableView(), p[written:])
		o.tail.writePosition += n
		written += n
	}
	return written, nil
}

func storeBigEndian(dst []byte, v uint64, size int) {
	switch size {
	case sizeShort:
		storeUint16(dst, uint16(v))
	case sizeInt:
		storeUint32(dst, uint32(v))
	case sizeLong:
		storeUint64(dst, v)
	}
}

// writePrimitive writes size bytes of v big-endian, taking the fast path
// when the tail already has size contiguous bytes free, and falling back
// to byte-at-a-time writes otherwise. The fallback goes through WriteByte,
// which owns its own single cursor advance, rather than writing a byte and
// separately bumping the cursor again.
func (o *Output) writePrimitive(v uint64, size int) error {
	if err := o.checkOpen("write"); err != nil {
		return err
	}
	o.ensureTail()
	if o.tail.writeRemaining() >= size {
		start := o.tail.writePosition
		storeBigEndian(o.tail.buf[start:start+size], v, size)
		o.tail.writePosition += size
		return nil
	}
	for i := size - 1; i >= 0; i-- {
		if err := o.WriteByte(byte(v >> uint(8*i))); err != nil {
			return err
		}
	}
	return nil
}

// WriteShort writes a big-endian 16-bit integer.
func (o *Output) WriteShort(v int16) error { return o.writePrimitive(uint64(uint16(v)), sizeShort) }

// WriteShortLE writes a little-endian 16-bit integer.
func (o *Output) WriteShortLE(v int16) error {
	return o.writePrimitive(uint64(reverse16(uint16(v))), sizeShort)
}

// WriteInt writes a big-endian 32-bit integer.
func (o *Output) WriteInt(v int32) error { return o.writePrimitive(uint64(uint32(v)), sizeInt) }

// WriteIntLE writes a little-endian 32-bit integer.
func (o *Output) WriteIntLE(v int32) error {
	return o.writePrimitive(uint64(reverse32(uint32(v))), sizeInt)
}

// WriteLong writes a big-endian 64-bit integer.
func (o *Output) WriteLong(v int64) error { return o.writePrimitive(uint64(v), sizeLong) }

// WriteLongLE writes a little-endian 64-bit integer.
func (o *Output) WriteLongLE(v int64) error { return o.writePrimitive(reverse64(uint64(v)), sizeLong) }

// WriteFloat writes a big-endian IEEE-754 32-bit float.
func (o *Output) WriteFloat(v float32) error {
	return o.writePrimitive(uint64(math.Float32bits(v)), sizeFloat)
}

// WriteFloatLE writes a little-endian IEEE-754 32-bit float.
func (o *Output) WriteFloatLE(v float32) error {
	return o.writePrimitive(uint64(reverse32(math.Float32bits(v))), sizeFloat)
}

// WriteDouble writes a big-endian IEEE-754 64-bit float.
func (o *Output) WriteDouble(v float64) error {
	return o.writePrimitive(math.Float64bits(v), sizeDouble)
}

// WriteDoubleLE writes a little-endian IEEE-754 64-bit float.
func (o *Output) WriteDoubleLE(v float64) error {
	return o.writePrimitive(reverse64(math.Float64bits(v)), sizeDouble)
}

// WriteShorts/WriteInts/WriteLongs/WriteFloats/WriteDoubles write whole
// arrays big-endian; the LE-suffixed siblings write them little-endian.
// Callers slice src themselves to express an offset/length.

func (o *Output) WriteShorts(vs []int16) error {
	for _, v := range vs {
		if err := o.WriteShort(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteShortsLE(vs []int16) error {
	for _, v := range vs {
		if err := o.WriteShortLE(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteInts(vs []int32) error {
	for _, v := range vs {
		if err := o.WriteInt(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteIntsLE(vs []int32) error {
	for _, v := range vs {
		if err := o.WriteIntLE(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteLongs(vs []int64) error {
	for _, v := range vs {
		if err := o.WriteLong(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteLongsLE(vs []int64) error {
	for _, v := range vs {
		if err := o.WriteLongLE(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteFloats(vs []float32) error {
	for _, v := range vs {
		if err := o.WriteFloat(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteFloatsLE(vs []float32) error {
	for _, v := range vs {
		if err := o.WriteFloatLE(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteDoubles(vs []float64) error {
	for _, v := range vs {
		if err := o.WriteDouble(v); err != nil {
			return err
		}
	}
	return nil
}

func (o *Output) WriteDoublesLE(vs []float64) error {
	for _, v := range vs {
		if err := o.WriteDoubleLE(v); err != nil {
			return err
		}
	}
	return nil
}

// Fill appends count copies of b.
func (o *Output) Fill(count int, b byte) error {
	if count < 0 {
		return newArgumentError("Fill", "negative count")
	}
	for i := 0; i < count; i++ {
		if err := o.WriteByte(b); err != nil {
			return err
		}
	}
	return nil
}

// AppendRune UTF-8 encodes r: 1 byte for code points ≤ 0x7F, 2 bytes for
// ≤ 0x7FF, 3 bytes otherwise. Only the Basic Multilingual Plane is handled
// directly; combining surrogate pairs outside it is the caller's
// responsibility.
func (o *Output) AppendRune(r rune) error {
	switch {
	case r <= 0x7F:
		return o.WriteByte(byte(r))
	case r <= 0x7FF:
		if err := o.WriteByte(byte(0xC0 | (r >> 6))); err != nil {
			return err
		}
		return o.WriteByte(byte(0x80 | (r & 0x3F)))
	default:
		if err := o.WriteByte(byte(0xE0 | (r >> 12))); err != nil {
			return err
		}
		if err := o.WriteByte(byte(0x80 | ((r >> 6) & 0x3F))); err != nil {
			return err
		}
		return o.WriteByte(byte(0x80 | (r & 0x3F)))
	}
}

// AppendString UTF-8 encodes every rune of s in order.
func (o *Output) AppendString(s string) error {
	for _, r := range s {
		if err := o.AppendRune(r); err != nil {
			return err
		}
	}
	return nil
}

// AppendRunes UTF-8 encodes every rune of rs in order — octio's equivalent
// of append(charArray, start, end): callers slice rs themselves.
func (o *Output) AppendRunes(rs []rune) error {
	for _, r := range rs {
		if err := o.AppendRune(r); err != nil {
			return err
		}
	}
	return nil
}

// AppendStringPtr UTF-8 encodes *s, or writes the literal four-byte string
// "null" when s is nil — Go has no distinct null string, so a *string
// stands in for a nullable character sequence: nil means the caller wants
// the four-byte sentinel written, not zero bytes.
func (o *Output) AppendStringPtr(s *string) error {
	if s == nil {
		_, err := o.Write([]byte("null"))
		return err
	}
	return o.AppendString(*s)
}

// WriteStringUtf8 is an alias of AppendString.
func (o *Output) WriteStringUtf8(s string) error { return o.AppendString(s) }

// WritePacket takes ownership of p's chain and appends it to this
// builder's tail, merging small chains in place when doing so is cheaper
// than splicing.
func (o *Output) WritePacket(p *Packet) error {
	if err := o.checkOpen("WritePacket"); err != nil {
		return err
	}
	if p == nil || p.head == nil {
		return nil
	}
	head, tail := p.head, p.tail
	p.head, p.tail, p.length = nil, nil, 0
	o.appendChunkChain(head, tail)
	return nil
}

// WritePacketN writes exactly n bytes from p into this builder, leaving
// any remainder in p. Fails with ErrEOF if p holds fewer than n bytes.
func (o *Output) WritePacketN(p *Packet, n int64) error {
	if err := o.checkOpen("WritePacketN"); err != nil {
		return err
	}
	if n < 0 {
		return newArgumentError("WritePacketN", "negative n")
	}
	if n == 0 {
		return nil
	}
	if int64(p.length) < n {
		return ErrEOF
	}

	remaining := n
	for remaining > 0 {
		c := p.head
		avail := int64(c.readRemaining())
		if avail <= remaining {
			if _, err := o.Write(c.buf[c.readPosition:c.writePosition]); err != nil {
				return err
			}
			p.head = c.next
			if p.head == nil {
				p.tail = nil
			}
			disposeChunk(p.pool, c)
			remaining -= avail
			p.length -= int(avail)
		} else {
			n2 := int(remaining)
			if _, err := o.Write(c.buf[c.readPosition : c.readPosition+n2]); err != nil {
				return err
			}
			c.readPosition += n2
			p.length -= n2
			remaining = 0
		}
	}
	return nil
}

// appendChunkChain links or merges a foreign [head,tail] chain, already
// detached from its owner, onto this builder.
func (o *Output) appendChunkChain(foreignHead, foreignTail *chunk) {
	if o.tail == nil {
		o.head, o.tail = foreignHead, foreignTail
		for c := foreignHead; c != foreignTail; c = c.next {
			o.chainedSize += c.readRemaining()
		}
		o.tailInitialPosition = foreignTail.readPosition
		return
	}

	appendSize := foreignHead.readRemaining()
	appendFits := appendSize > 0 && appendSize <= mergeMaxBytes &&
		appendSize <= o.tail.writeRemaining()+o.tail.endGap()

	tailSize := o.tail.writePosition - o.tailInitialPosition
	prependFits := o.head == o.tail && foreignHead == foreignTail &&
		tailSize > 0 && tailSize <= mergeMaxBytes &&
		tailSize <= foreignHead.startGap && !foreignHead.readOnly

	switch {
	case appendFits && prependFits:
		if tailSize <= appendSize {
			o.mergePrepend(foreignHead)
		} else {
			o.mergeAppend(foreignHead, foreignTail)
		}
	case appendFits:
		o.mergeAppend(foreignHead, foreignTail)
	case prependFits:
		o.mergePrepend(foreignHead)
	default:
		o.tail.next = foreignHead
		o.retarget(foreignTail)
	}
}

// mergeAppend copy-merges a small foreign head into this builder's tail,
// growing the tail into its reserved end-gap if needed, then splices in
// whatever followed the foreign head unmodified.
func (o *Output) mergeAppend(foreignHead, foreignTail *chunk) {
	needed := foreignHead.readRemaining()
	if o.tail.writeRemaining() < needed {
		o.tail.limit += needed - o.tail.writeRemaining()
	}
	n := copy(o.tail.buf[o.tail.writePosition:o.tail.limit], foreignHead.buf[foreignHead.readPosition:foreignHead.writePosition])
	o.tail.writePosition += n

	rest := foreignHead.next
	disposeChunk(o.pool, foreignHead)
	if foreignHead != foreignTail {
		o.tail.next = rest
		o.retarget(foreignTail)
	}
}

// mergePrepend copy-merges this builder's single in-progress tail into the
// foreign head's reserved start-gap, making the foreign chunk the
// builder's new (and, in the case this function is chosen, only) chunk.
// Only attempted when both sides are a single chunk (appendChunkChain's
// prependFits guard) to avoid walking the chain for a predecessor pointer
// a singly-linked chain doesn't carry — a deliberate narrowing of the
// spec's general case (see DESIGN.md).
func (o *Output) mergePrepend(foreignHead *chunk) {
	moveLen := o.tail.writePosition - o.tailInitialPosition
	dstStart := foreignHead.startGap - moveLen
	copy(foreignHead.buf[dstStart:foreignHead.startGap], o.tail.buf[o.tailInitialPosition:o.tail.writePosition])
	foreignHead.readPosition = dstStart

	disposeChunk(o.pool, o.tail)
	o.head = foreignHead
	o.tail = foreignHead
	o.tailInitialPosition = foreignHead.readPosition
}

// stealAll detaches the whole chain, committing the tail's written span,
// and returns the head (nil if the builder is empty).
func (o *Output) stealAll() *chunk {
	head := o.head
	o.head = nil
	o.tail = nil
	o.chainedSize = 0
	o.tailInitialPosition = 0
	return head
}

// Build wraps stealAll's chain in an immutable Packet carrying the total
// size. The builder is reusable immediately afterward.
func (o *Output) Build() *Packet {
	total := o.Len()
	tail := o.tail
	head := o.stealAll()
	return &Packet{pool: o.pool, head: head, tail: tail, length: total}
}

// Reset recycles every chunk this builder owns without producing a
// packet. The builder remains usable afterward.
func (o *Output) Reset() {
	c := o.head
	for c != nil {
		next := c.next
		disposeChunk(o.pool, c)
		c = next
	}
	o.head = nil
	o.tail = nil
	o.chainedSize = 0
	o.tailInitialPosition = 0
}

// Release recycles every owned chunk. It does the same cleanup as Reset
// (this package doesn't pool Output instances themselves, so there is
// nothing further to release), and the builder remains usable afterward.
func (o *Output) Release() { o.Reset() }

// reserveForFill returns the writable region of this builder's tail
// chunk, growing the chain if the current tail is full. Used only by
// Input.ReadAvailableTo's zero-copy path.
func (o *Output) reserveForFill() []byte {
	o.ensureTail()
	if o.tail.writeRemaining() == 0 {
		o.appendNewBuffer()
	}
	return o.tail.writableView()
}

// commitFill advances the tail's write cursor by n bytes a zero-copy fill
// just deposited directly into reserveForFill's region.
func (o *Output) commitFill(n int) {
	o.tail.writePosition += n
}

// Flush hands each owned chunk's readable bytes to the sink in order,
// then recycles it, continuing through the whole chain even if an
// individual Flush call errors so every owned chunk is still recycled
// exactly once before Flush returns.
func (o *Output) Flush() error {
	if err := o.checkOpen("Flush"); err != nil {
		return err
	}
	if o.sink == nil {
		return newStateError("Flush", "output has no sink")
	}

	c := o.head
	var flushErr error
	for c != nil {
		next := c.next
		if flushErr == nil {
			data := c.buf[c.readPosition:c.writePosition]
			if len(data) > 0 {
				if err := o.sink.Flush(data); err != nil {
					flushErr = wrapHookError(err, "Flush")
				}
			}
		}
		disposeChunk(o.pool, c)
		c = next
	}
	o.head = nil
	o.tail = nil
	o.chainedSize = 0
	o.tailInitialPosition = 0
	return flushErr
}

// Close flushes then calls the sink's CloseDestination hook if present.
// Double-close is a programming error and panics (mirrors Input.Close).
func (o *Output) Close() error {
	if o.closed {
		panic(newStateError("Output.Close", "already closed"))
	}
	var err error
	if o.sink != nil {
		err = o.Flush()
	} else {
		o.Reset()
	}
	o.closed = true
	if closer, ok := o.sink.(DestinationCloser); ok {
		if cerr := closer.CloseDestination(); cerr != nil && err == nil {
			err = wrapHookError(cerr, "CloseDestination")
		}
	}
	return err
}
