package octio

import "testing"

func TestRecordedChainAppendAndDiscard(t *testing.T) {
	var r recordedChain
	if !r.isEmpty() {
		t.Fatalf("new chain should be empty")
	}

	c1 := newChunk(4)
	c2 := newChunk(4)
	r.append(c1, 0, 4)
	r.append(c2, 1, 2)

	if r.isEmpty() {
		t.Fatalf("chain with entries should not be empty")
	}
	if got := r.size(0); got != 2 {
		t.Fatalf("size(0) = %d, want 2", got)
	}
	if got := r.size(1); got != 1 {
		t.Fatalf("size(1) = %d, want 1", got)
	}
	if r.isAfterLast(1) {
		t.Fatalf("index 1 should still be within bounds")
	}
	if !r.isAfterLast(2) {
		t.Fatalf("index 2 should be past the tail")
	}

	var seen *chunk
	var seenStart, seenLimit int
	r.pointed(1, func(c *chunk, start, limit int) { seen, seenStart, seenLimit = c, start, limit })
	if seen != c2 || seenStart != 1 || seenLimit != 2 {
		t.Fatalf("pointed(1) = (%v, %d, %d), want (%v, 1, 2)", seen, seenStart, seenLimit, c2)
	}

	head := r.discardFirst()
	if head != c1 {
		t.Fatalf("discardFirst returned %v, want %v", head, c1)
	}
	if got := r.size(0); got != 1 {
		t.Fatalf("size(0) after discard = %d, want 1", got)
	}

	r.discardFirst()
	if !r.isEmpty() {
		t.Fatalf("chain should be empty after discarding every entry")
	}
	if got := r.discardFirst(); got != nil {
		t.Fatalf("discardFirst on empty chain should return nil, got %v", got)
	}
}
