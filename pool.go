package octio

import "sync/atomic"

// DefaultChunkCapacity is the chunk size NewPool uses when
// PoolOptions.Capacity is left at zero.
const DefaultChunkCapacity = 4096

// DefaultSoftCap bounds how many idle chunks a Pool retains before it
// starts dropping recycled chunks for the garbage collector to reclaim.
const DefaultSoftCap = 64

// PoolOptions configures a Pool. The zero value is not usable directly;
// use NewPool, which fills in defaults for zero fields. A pool is
// constructed in-process by the embedder, not read off disk, so this is a
// plain functional-options-shaped struct rather than a file or flag parser.
type PoolOptions struct {
	// Capacity is the fixed size, in bytes, of every chunk this pool
	// lends out. All chunks from one Pool share this capacity.
	Capacity int

	// SoftCap bounds the number of idle chunks retained between borrows.
	// Chunks recycled past this bound are simply dropped.
	SoftCap int
}

// PoolStats reports lifetime borrow/recycle/drop counts. Exists mainly to
// let callers (and this package's own tests) verify that borrow and
// recycle counts stay balanced over a run.
type PoolStats struct {
	Borrowed uint64
	Recycled uint64
	Dropped  uint64
}

// Pool is a bounded free-list of reusable chunks of one fixed capacity.
// Its borrow/recycle operations are safe for concurrent use from multiple
// goroutines: the free-list is a buffered channel, so handoff between
// goroutines never takes a user-visible lock.
//
// A channel-backed free list is used here rather than sync.Pool because a
// deterministic soft cap is required (chunks recycled past it are dropped,
// not silently evicted by the GC at an arbitrary time) and because
// double-recycle needs to be reliably detectable — guarantees sync.Pool
// does not make.
type Pool struct {
	capacity int
	free     chan *chunk

	borrowed atomic.Uint64
	recycled atomic.Uint64
	dropped  atomic.Uint64
}

// NewPool constructs a Pool per opts, defaulting Capacity and SoftCap when
// left at zero.
func NewPool(opts PoolOptions) *Pool {
	cap := opts.Capacity
	if cap <= 0 {
		cap = DefaultChunkCapacity
	}
	soft := opts.SoftCap
	if soft <= 0 {
		soft = DefaultSoftCap
	}
	return &Pool{
		capacity: cap,
		free:     make(chan *chunk, soft),
	}
}

// Capacity returns the fixed chunk size this pool lends out.
func (p *Pool) Capacity() int { return p.capacity }

// borrow returns a chunk initialized to the empty state with no
// reservation applied — the caller installs head/tail gaps before use.
func (p *Pool) borrow() *chunk {
	select {
	case c := <-p.free:
		atomic.StoreInt32(&c.inPool, 0)
		p.borrowed.Add(1)
		return c
	default:
	}
	c := newChunk(p.capacity)
	p.borrowed.Add(1)
	return c
}

// recycle accepts a chunk in any state, resets it, and either stores it
// for reuse (below the soft cap) or drops it. Recycling an already-recycled
// chunk is a programming error and panics with a *StateError; the check
// always runs, matching the way the rest of this package's invariants are
// enforced unconditionally.
func (p *Pool) recycle(c *chunk) {
	if !atomic.CompareAndSwapInt32(&c.inPool, 0, 1) {
		logger().Error().
			Int("pool_cap", p.capacity).
			Str("event", "double_recycle").
			Msg("octio: chunk recycled twice")
		panic(newStateError("Pool.recycle", "chunk already recycled"))
	}

	c.resetEmpty()
	p.recycled.Add(1)

	select {
	case p.free <- c:
	default:
		p.dropped.Add(1)
		logger().Debug().
			Int("pool_cap", p.capacity).
			Str("event", "soft_cap_drop").
			Msg("octio: pool at soft cap, dropping chunk")
	}
}

// disposeChunk recycles c the right way regardless of whether it was ever
// shared: an exclusively owned chunk goes straight back to the pool, while
// a chunk a Packet.copy made read-only only returns to the pool once its
// last reference drops. Callers that consume a chunk chain of unknown
// provenance (anything that might have originated from a Packet) should
// always use this instead of calling p.recycle or c.release directly.
func disposeChunk(p *Pool, c *chunk) {
	if c.readOnly {
		c.release(p)
	} else {
		p.recycle(c)
	}
}

// Stats returns a snapshot of lifetime borrow/recycle/drop counts.
func (p *Pool) Stats() PoolStats {
	return PoolStats{
		Borrowed: p.borrowed.Load(),
		Recycled: p.recycled.Load(),
		Dropped:  p.dropped.Load(),
	}
}
