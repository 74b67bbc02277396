// Package page implements the byte-layout of B+Tree nodes: the shared
// header, and the LeafNode/InnerNode views that encode to and decode
// from a fixed-size page buffer (spec.md §4.1-§4.3, §6). Nothing in this
// package touches I/O or a buffer manager; it is pure data layout and
// in-memory mutation, grounded in the teacher's index/leafnode.go and
// index/innernode.go byte-packing style (manual big-endian fields,
// slices.Insert/slices.Delete for sorted mutation).
package page

import "encoding/binary"

// HeaderSize is the fixed byte size of the header every node starts
// with: level (u16) + count (u16) (spec.md §3, §6).
const HeaderSize = 4

// Header is the first HeaderSize bytes of every page: the node's level
// and the number of keys it currently holds.
type Header struct {
	Level uint16
	Count uint16
}

// IsLeaf reports whether a node at this level is a leaf (spec.md §3:
// level 0 is always a leaf).
func (h Header) IsLeaf() bool { return h.Level == 0 }

// ReadHeader decodes the header from the front of a page buffer.
func ReadHeader(buf []byte) Header {
	return Header{
		Level: binary.BigEndian.Uint16(buf[0:2]),
		Count: binary.BigEndian.Uint16(buf[2:4]),
	}
}

// WriteHeader encodes the header into the front of a page buffer.
func WriteHeader(buf []byte, h Header) {
	binary.BigEndian.PutUint16(buf[0:2], h.Level)
	binary.BigEndian.PutUint16(buf[2:4], h.Count)
}
