package page

import (
	"slices"

	"github.com/pkg/errors"
)

// LeafCapacity computes the maximum number of key/value pairs a leaf
// page of pageSize bytes can hold: ⌊(P − HeaderSize) / (sizeof(K) +
// sizeof(V))⌋ (spec.md §3).
func LeafCapacity(pageSize, keySize, valSize int) int {
	return (pageSize - HeaderSize) / (keySize + valSize)
}

// LeafNode is the decoded, in-memory form of a leaf page: sorted keys
// and their values, plus the codecs and capacity needed to serialize
// back into a page buffer (spec.md §4.2). Mutating methods operate on
// Go slices rather than shuffling bytes in place directly, the way the
// teacher's leafnode.go decodes into []int/[]int before mutating and
// the way ajg7-GengarDB's btree.go decodes a leaf's entries before
// rewriting them; this package trades a copy on every Insert/Erase for
// code that is straightforward to get right.
type LeafNode[K any, V any] struct {
	Keys   []K
	Values []V

	keyCodec Codec[K]
	valCodec Codec[V]
	capacity int
}

// NewLeafNode builds an empty leaf node ready for Insert.
func NewLeafNode[K any, V any](keyCodec Codec[K], valCodec Codec[V], capacity int) *LeafNode[K, V] {
	return &LeafNode[K, V]{keyCodec: keyCodec, valCodec: valCodec, capacity: capacity}
}

func (l *LeafNode[K, V]) Capacity() int { return l.capacity }
func (l *LeafNode[K, V]) Count() int    { return len(l.Keys) }

// DecodeLeaf reads a leaf node out of a page buffer.
func DecodeLeaf[K any, V any](buf []byte, keyCodec Codec[K], valCodec Codec[V], capacity int) (*LeafNode[K, V], error) {
	h := ReadHeader(buf)
	if !h.IsLeaf() {
		return nil, errors.Errorf("page: expected leaf node, got level %d", h.Level)
	}
	if int(h.Count) > capacity {
		return nil, errors.Errorf("page: leaf count %d exceeds capacity %d", h.Count, capacity)
	}

	l := NewLeafNode(keyCodec, valCodec, capacity)
	off := HeaderSize
	ks := keyCodec.Size()
	for i := 0; i < int(h.Count); i++ {
		l.Keys = append(l.Keys, keyCodec.Get(buf[off:off+ks]))
		off += ks
	}
	vs := valCodec.Size()
	for i := 0; i < int(h.Count); i++ {
		l.Values = append(l.Values, valCodec.Get(buf[off:off+vs]))
		off += vs
	}
	return l, nil
}

// EncodeTo serializes the leaf node into buf, which must be at least
// HeaderSize + capacity*(sizeof(K)+sizeof(V)) bytes long.
func (l *LeafNode[K, V]) EncodeTo(buf []byte) {
	WriteHeader(buf, Header{Level: 0, Count: uint16(len(l.Keys))})
	off := HeaderSize
	ks := l.keyCodec.Size()
	for _, k := range l.Keys {
		l.keyCodec.Put(buf[off:off+ks], k)
		off += ks
	}
	vs := l.valCodec.Size()
	for _, v := range l.Values {
		l.valCodec.Put(buf[off:off+vs], v)
		off += vs
	}
}

// LowerBound returns the smallest index i such that Keys[i] >= k, or
// Count() if every key is smaller (spec.md §4.2).
func (l *LeafNode[K, V]) LowerBound(cmp Comparator[K], k K) int {
	lo, hi := 0, len(l.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(l.Keys[mid], k) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// Lookup returns the value for k and whether it was found. A miss is
// the soft NotFound case (spec.md §7): no error, just ok == false.
func (l *LeafNode[K, V]) Lookup(cmp Comparator[K], k K) (V, bool) {
	i := l.LowerBound(cmp, k)
	if i < len(l.Keys) && cmp(l.Keys[i], k) == 0 {
		return l.Values[i], true
	}
	var zero V
	return zero, false
}

// Insert overwrites the value of an existing key, or inserts a new
// key/value pair in sorted position. Precondition when k is new:
// Count() < Capacity() — violating it is a CapacityViolation, a hard
// assertion that panics rather than returning an error (spec.md §4.2,
// §7).
func (l *LeafNode[K, V]) Insert(cmp Comparator[K], k K, v V) {
	i := l.LowerBound(cmp, k)
	if i < len(l.Keys) && cmp(l.Keys[i], k) == 0 {
		l.Values[i] = v
		return
	}
	if len(l.Keys) >= l.capacity {
		panic(errors.Errorf("btree: CapacityViolation: leaf insert at count=%d capacity=%d", len(l.Keys), l.capacity))
	}
	l.Keys = slices.Insert(l.Keys, i, k)
	l.Values = slices.Insert(l.Values, i, v)
}

// Erase removes k if present. Absence is the soft NotFound case: a
// no-op, never an error (spec.md §4.2, §7).
func (l *LeafNode[K, V]) Erase(cmp Comparator[K], k K) {
	i := l.LowerBound(cmp, k)
	if i >= len(l.Keys) || cmp(l.Keys[i], k) != 0 {
		return
	}
	l.Keys = slices.Delete(l.Keys, i, i+1)
	l.Values = slices.Delete(l.Values, i, i+1)
}

// Split moves the upper half of l's entries into a new right-hand leaf
// at the ⌊count/2⌋ split point, and returns the separator to install
// in the parent: the first key of the new right leaf (spec.md §4.2).
// Precondition: Count() >= 2.
func (l *LeafNode[K, V]) Split() (right *LeafNode[K, V], separator K) {
	if len(l.Keys) < 2 {
		panic(errors.Errorf("btree: CapacityViolation: leaf split requires count>=2, got %d", len(l.Keys)))
	}
	m := len(l.Keys) / 2
	right = NewLeafNode(l.keyCodec, l.valCodec, l.capacity)
	right.Keys = append([]K(nil), l.Keys[m:]...)
	right.Values = append([]V(nil), l.Values[m:]...)
	l.Keys = l.Keys[:m]
	l.Values = l.Values[:m]
	return right, right.Keys[0]
}

// BorrowFromLeft moves left's largest entry to the front of l, and
// returns the new separator to install in the parent in place of the
// one that used to sit between left and l (spec.md §4.2).
func (l *LeafNode[K, V]) BorrowFromLeft(left *LeafNode[K, V]) (newSeparator K) {
	n := len(left.Keys) - 1
	k, v := left.Keys[n], left.Values[n]
	left.Keys = left.Keys[:n]
	left.Values = left.Values[:n]
	l.Keys = append([]K{k}, l.Keys...)
	l.Values = append([]V{v}, l.Values...)
	return l.Keys[0]
}

// BorrowFromRight moves right's smallest entry to the end of l, and
// returns the new separator to install in the parent in place of the
// one that used to sit between l and right (spec.md §4.2).
func (l *LeafNode[K, V]) BorrowFromRight(right *LeafNode[K, V]) (newSeparator K) {
	k, v := right.Keys[0], right.Values[0]
	right.Keys = right.Keys[1:]
	right.Values = right.Values[1:]
	l.Keys = append(l.Keys, k)
	l.Values = append(l.Values, v)
	return right.Keys[0]
}

// MergeWith appends right's entries onto l, collapsing the two leaves
// into one (spec.md §4.2). Precondition: Count()+right.Count() <=
// Capacity().
func (l *LeafNode[K, V]) MergeWith(right *LeafNode[K, V]) {
	if len(l.Keys)+len(right.Keys) > l.capacity {
		panic(errors.Errorf("btree: CapacityViolation: leaf merge %d+%d exceeds capacity %d", len(l.Keys), len(right.Keys), l.capacity))
	}
	l.Keys = append(l.Keys, right.Keys...)
	l.Values = append(l.Values, right.Values...)
}
