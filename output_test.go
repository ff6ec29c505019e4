package octio

import (
	"math"
	"testing"
)

type collectSink struct {
	data   []byte
	closed bool
}

func (c *collectSink) Flush(data []byte) error {
	c.data = append(c.data, data...)
	return nil
}

func (c *collectSink) CloseDestination() error {
	c.closed = true
	return nil
}

func readAllFromPacket(t *testing.T, p *Packet) []byte {
	t.Helper()
	got := make([]byte, p.Len())
	in := p.Consume(nil)
	defer in.Close()
	if err := in.ReadFully(got); err != nil {
		t.Fatalf("reading built packet: %v", err)
	}
	return got
}

func TestOutputWriteAndBuildRoundTrip(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 4, SoftCap: 8})
	out := NewBuilder(pool)
	if _, err := out.Write([]byte("abcdefgh")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if out.Len() != 8 {
		t.Fatalf("Len = %d, want 8", out.Len())
	}

	p := out.Build()
	if p.Len() != 8 {
		t.Fatalf("built packet Len = %d, want 8", p.Len())
	}
	if got := readAllFromPacket(t, p); string(got) != "abcdefgh" {
		t.Fatalf("round trip = %q", got)
	}
	if out.Len() != 0 {
		t.Fatalf("builder should be empty after Build, Len = %d", out.Len())
	}
}

func TestOutputPrimitivesBigAndLittleEndian(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 64, SoftCap: 8})
	out := NewBuilder(pool)

	mustWrite := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	mustWrite(out.WriteShort(0x1234))
	mustWrite(out.WriteIntLE(0x01020304))
	mustWrite(out.WriteLong(0x0102030405060708))
	mustWrite(out.WriteFloat(3.5))
	mustWrite(out.WriteDoubleLE(-2.25))

	p := out.Build()
	in := p.Consume(nil)
	defer in.Close()

	if v, err := in.ReadShort(); err != nil || v != 0x1234 {
		t.Fatalf("ReadShort = %v, %v", v, err)
	}
	if v, err := in.ReadIntLE(); err != nil || v != 0x01020304 {
		t.Fatalf("ReadIntLE = %v, %v", v, err)
	}
	if v, err := in.ReadLong(); err != nil || v != 0x0102030405060708 {
		t.Fatalf("ReadLong = %v, %v", v, err)
	}
	if v, err := in.ReadFloat(); err != nil || v != 3.5 {
		t.Fatalf("ReadFloat = %v, %v", v, err)
	}
	if v, err := in.ReadDoubleLE(); err != nil || v != -2.25 {
		t.Fatalf("ReadDoubleLE = %v, %v", v, err)
	}
}

func TestOutputPrimitivesAcrossChunkBoundary(t *testing.T) {
	// Chunk capacity smaller than an 8-byte primitive forces writePrimitive's
	// byte-at-a-time fallback, which must not double-count the cursor.
	pool := NewPool(PoolOptions{Capacity: 3, SoftCap: 8})
	out := NewBuilder(pool)
	if err := out.WriteLong(0x0102030405060708); err != nil {
		t.Fatalf("WriteLong: %v", err)
	}
	if out.Len() != 8 {
		t.Fatalf("Len = %d, want 8", out.Len())
	}

	p := out.Build()
	in := p.Consume(nil)
	defer in.Close()
	v, err := in.ReadLong()
	if err != nil {
		t.Fatalf("ReadLong: %v", err)
	}
	if v != 0x0102030405060708 {
		t.Fatalf("ReadLong = %#x, want 0x0102030405060708", v)
	}
}

func TestOutputAppendStringUtf8(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 64, SoftCap: 8})
	out := NewBuilder(pool)
	s := "hié中" // ASCII + 2-byte + 3-byte code points
	if err := out.AppendString(s); err != nil {
		t.Fatalf("AppendString: %v", err)
	}
	p := out.Build()
	got := readAllFromPacket(t, p)
	if string(got) != s {
		t.Fatalf("round trip = %q, want %q", got, s)
	}
}

func TestOutputAppendStringPtrNull(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 64, SoftCap: 8})
	out := NewBuilder(pool)
	if err := out.AppendStringPtr(nil); err != nil {
		t.Fatalf("AppendStringPtr(nil): %v", err)
	}
	p := out.Build()
	got := readAllFromPacket(t, p)
	if string(got) != "null" {
		t.Fatalf("AppendStringPtr(nil) wrote %q, want null", got)
	}
}

func TestOutputWriteFloatsArray(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 64, SoftCap: 8})
	out := NewBuilder(pool)
	vals := []float32{1, -2.5, math.MaxFloat32}
	if err := out.WriteFloats(vals); err != nil {
		t.Fatalf("WriteFloats: %v", err)
	}
	p := out.Build()
	in := p.Consume(nil)
	defer in.Close()
	for _, want := range vals {
		got, err := in.ReadFloat()
		if err != nil {
			t.Fatalf("ReadFloat: %v", err)
		}
		if got != want {
			t.Fatalf("ReadFloat = %v, want %v", got, want)
		}
	}
}

func TestOutputWritePacketAppendMerge(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 256, SoftCap: 8})
	out := NewBuilder(pool)
	if _, err := out.Write([]byte("builder-prefix-")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	small := NewBuilder(pool)
	if _, err := small.Write([]byte("small-packet")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	packet := small.Build()

	if err := out.WritePacket(packet); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}

	want := "builder-prefix-small-packet"
	got := readAllFromPacket(t, out.Build())
	if string(got) != want {
		t.Fatalf("WritePacket merge result = %q, want %q", got, want)
	}
}

func TestOutputWritePacketSpliceWhenTooLargeToMerge(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 8, SoftCap: 16})
	out := NewBuilder(pool)
	if _, err := out.Write([]byte("ab")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	big := NewBuilder(pool)
	payload := make([]byte, 64)
	for i := range payload {
		payload[i] = byte('A' + i%26)
	}
	if _, err := big.Write(payload); err != nil {
		t.Fatalf("Write: %v", err)
	}
	packet := big.Build()

	if err := out.WritePacket(packet); err != nil {
		t.Fatalf("WritePacket: %v", err)
	}
	got := readAllFromPacket(t, out.Build())
	want := append([]byte("ab"), payload...)
	if string(got) != string(want) {
		t.Fatalf("spliced result mismatch: got %d bytes, want %d", len(got), len(want))
	}
}

func TestOutputWritePacketN(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 8, SoftCap: 16})
	src := NewBuilder(pool)
	if _, err := src.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	packet := src.Build()

	out := NewBuilder(pool)
	if err := out.WritePacketN(packet, 4); err != nil {
		t.Fatalf("WritePacketN: %v", err)
	}
	if packet.Len() != 6 {
		t.Fatalf("remaining packet Len = %d, want 6", packet.Len())
	}

	got := readAllFromPacket(t, out.Build())
	if string(got) != "0123" {
		t.Fatalf("WritePacketN wrote %q, want 0123", got)
	}
	rest := readAllFromPacket(t, packet)
	if string(rest) != "456789" {
		t.Fatalf("remainder = %q, want 456789", rest)
	}
}

func TestOutputFlushAndClose(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 4, SoftCap: 8})
	sink := &collectSink{}
	out := NewOutput(OutputOptions{Pool: pool, Sink: sink})
	if _, err := out.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := out.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if string(sink.data) != "0123456789" {
		t.Fatalf("flushed data = %q, want 0123456789", sink.data)
	}
	if !sink.closed {
		t.Fatalf("Close should call CloseDestination")
	}

	stats := pool.Stats()
	if stats.Borrowed != stats.Recycled {
		t.Fatalf("pool imbalance after Close: %+v", stats)
	}

	defer func() {
		if recover() == nil {
			t.Fatalf("double Close should panic")
		}
	}()
	out.Close()
}

func TestOutputResetRecyclesChunks(t *testing.T) {
	pool := NewPool(PoolOptions{Capacity: 4, SoftCap: 8})
	out := NewBuilder(pool)
	if _, err := out.Write([]byte("0123456789")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out.Reset()
	if out.Len() != 0 {
		t.Fatalf("Len after Reset = %d, want 0", out.Len())
	}
	stats := pool.Stats()
	if stats.Borrowed != stats.Recycled {
		t.Fatalf("pool imbalance after Reset: %+v", stats)
	}
}
