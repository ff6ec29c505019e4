package octio

import "encoding/binary"

// Byte widths of the primitive types this package reads and writes.
const (
	sizeByte   = 1
	sizeShort  = 2
	sizeInt    = 4
	sizeLong   = 8
	sizeFloat  = 4
	sizeDouble = 8
)

// Big-endian is the default, unadorned encoding: there is no stored
// byte-order attribute anywhere in this package, and every call site picks
// big- or little-endian explicitly by which function it calls.

func loadUint16(b []byte) uint16 { return binary.BigEndian.Uint16(b) }
func loadUint32(b []byte) uint32 { return binary.BigEndian.Uint32(b) }
func loadUint64(b []byte) uint64 { return binary.BigEndian.Uint64(b) }

func storeUint16(b []byte, v uint16) { binary.BigEndian.PutUint16(b, v) }
func storeUint32(b []byte, v uint32) { binary.BigEndian.PutUint32(b, v) }
func storeUint64(b []byte, v uint64) { binary.BigEndian.PutUint64(b, v) }

func reverse16(v uint16) uint16 {
	return v<<8 | v>>8
}

func reverse32(v uint32) uint32 {
	return v<<24 | (v<<8)&0x00FF0000 | (v>>8)&0x0000FF00 | v>>24
}

func reverse64(v uint64) uint64 {
	return v<<56 | (v<<40)&0x00FF000000000000 | (v<<24)&0x0000FF0000000000 |
		(v<<8)&0x000000FF00000000 | (v>>8)&0x00000000FF000000 |
		(v>>24)&0x0000000000FF0000 | (v>>40)&0x000000000000FF00 | v>>56
}

// accumulateBigEndian folds a byte read one at a time into a 64-bit
// accumulator: result = (result << 8) | byte. Used by the slow path for
// primitive reads that straddle more than one refill. Callers convert to
// the narrower target type at the end.
func accumulateBigEndian(result uint64, b byte) uint64 {
	return result<<8 | uint64(b)
}
