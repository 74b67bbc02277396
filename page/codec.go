package page

import (
	"encoding/binary"

	"wtfdb/segment"
)

// Codec encodes and decodes a fixed-size, trivially-copyable value of
// type T to and from a byte span of exactly Size() bytes. Keys and
// values handled by this package are always fixed-size (spec.md §1);
// variable-length keys/values are an explicit non-goal.
type Codec[T any] interface {
	Size() int
	Put(buf []byte, v T)
	Get(buf []byte) T
}

// Uint64Codec is the codec for the uint64 keys/values used throughout
// spec.md's concrete scenarios (K=V=u64, §8).
type Uint64Codec struct{}

func (Uint64Codec) Size() int                { return 8 }
func (Uint64Codec) Put(buf []byte, v uint64) { binary.BigEndian.PutUint64(buf, v) }
func (Uint64Codec) Get(buf []byte) uint64    { return binary.BigEndian.Uint64(buf) }

// Int64Codec is a codec for signed 64-bit keys/values.
type Int64Codec struct{}

func (Int64Codec) Size() int                { return 8 }
func (Int64Codec) Put(buf []byte, v int64)  { binary.BigEndian.PutUint64(buf, uint64(v)) }
func (Int64Codec) Get(buf []byte) int64     { return int64(binary.BigEndian.Uint64(buf)) }

// Uint32Codec is a codec for 32-bit keys/values.
type Uint32Codec struct{}

func (Uint32Codec) Size() int                { return 4 }
func (Uint32Codec) Put(buf []byte, v uint32) { binary.BigEndian.PutUint32(buf, v) }
func (Uint32Codec) Get(buf []byte) uint32    { return binary.BigEndian.Uint32(buf) }

// PageIDCodec encodes a segment.PageID, the fixed-size child pointer
// every inner node stores regardless of the tree's key/value types.
type PageIDCodec struct{}

func (PageIDCodec) Size() int { return 8 }
func (PageIDCodec) Put(buf []byte, v segment.PageID) {
	binary.BigEndian.PutUint64(buf, uint64(v))
}
func (PageIDCodec) Get(buf []byte) segment.PageID {
	return segment.PageID(binary.BigEndian.Uint64(buf))
}
