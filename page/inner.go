package page

import (
	"slices"

	"github.com/pkg/errors"

	"wtfdb/segment"
)

// InnerCapacity computes the maximum number of separator keys an inner
// page of pageSize bytes can hold: it always stores one more child
// pointer than separator keys, so the reserved PageID slot comes out of
// the same budget (spec.md §3):
// ⌊(P − HeaderSize − sizeof(PageID)) / (sizeof(K) + sizeof(PageID))⌋.
func InnerCapacity(pageSize, keySize int) int {
	var pid PageIDCodec
	return (pageSize - HeaderSize - pid.Size()) / (keySize + pid.Size())
}

// InnerNode is the decoded, in-memory form of an inner page: Count()
// separator keys and Count()+1 children (spec.md §4.3). Level is the
// node's level in the tree (one more than its children's level); it is
// carried explicitly rather than derived, since an inner node's level
// cannot be recovered from its contents alone.
type InnerNode[K any] struct {
	Level    uint16
	Keys     []K
	Children []segment.PageID

	keyCodec Codec[K]
	capacity int
}

// NewInnerNode builds an empty inner node ready to have its Keys and
// Children populated directly (the one-root-split case) or via Insert.
func NewInnerNode[K any](keyCodec Codec[K], capacity int) *InnerNode[K] {
	return &InnerNode[K]{keyCodec: keyCodec, capacity: capacity}
}

func (n *InnerNode[K]) Capacity() int { return n.capacity }
func (n *InnerNode[K]) Count() int    { return len(n.Keys) }

// DecodeInner reads an inner node out of a page buffer.
func DecodeInner[K any](buf []byte, keyCodec Codec[K], capacity int) (*InnerNode[K], error) {
	h := ReadHeader(buf)
	if h.IsLeaf() {
		return nil, errors.Errorf("page: expected inner node, got a leaf")
	}
	if int(h.Count) > capacity {
		return nil, errors.Errorf("page: inner count %d exceeds capacity %d", h.Count, capacity)
	}

	n := NewInnerNode(keyCodec, capacity)
	n.Level = h.Level
	off := HeaderSize
	ks := keyCodec.Size()
	for i := 0; i < int(h.Count); i++ {
		n.Keys = append(n.Keys, keyCodec.Get(buf[off:off+ks]))
		off += ks
	}
	var pid PageIDCodec
	for i := 0; i < int(h.Count)+1; i++ {
		n.Children = append(n.Children, pid.Get(buf[off:off+pid.Size()]))
		off += pid.Size()
	}
	return n, nil
}

// EncodeTo serializes the inner node into buf.
func (n *InnerNode[K]) EncodeTo(buf []byte) {
	WriteHeader(buf, Header{Level: n.Level, Count: uint16(len(n.Keys))})
	off := HeaderSize
	ks := n.keyCodec.Size()
	for _, k := range n.Keys {
		n.keyCodec.Put(buf[off:off+ks], k)
		off += ks
	}
	var pid PageIDCodec
	for _, c := range n.Children {
		pid.Put(buf[off:off+pid.Size()], c)
		off += pid.Size()
	}
}

// LowerBound returns the smallest index i with Keys[i] >= k, or Count()
// if every key is smaller (spec.md §4.3).
func (n *InnerNode[K]) LowerBound(cmp Comparator[K], k K) int {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.Keys[mid], k) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// ChildFor returns the child subtree where k must live: Children[i]
// holds every key < Keys[i], and Children[i+1] holds every key >=
// Keys[i] (spec.md §4.3, I2), so a key equal to a separator belongs to
// the child on the separator's right, not its left. That's the
// smallest index i with Keys[i] > k — an upper bound on k, not
// LowerBound's first index with Keys[i] >= k.
func (n *InnerNode[K]) ChildFor(cmp Comparator[K], k K) segment.PageID {
	lo, hi := 0, len(n.Keys)
	for lo < hi {
		mid := (lo + hi) / 2
		if cmp(n.Keys[mid], k) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return n.Children[lo]
}

// Insert adds a separator/right-child pair in sorted position.
// Precondition: Count() < Capacity() — a full node must be split
// instead (spec.md §4.3, §7).
func (n *InnerNode[K]) Insert(cmp Comparator[K], separator K, rightChild segment.PageID) {
	if len(n.Keys) >= n.capacity {
		panic(errors.Errorf("btree: CapacityViolation: inner insert at count=%d capacity=%d", len(n.Keys), n.capacity))
	}
	i := n.LowerBound(cmp, separator)
	n.Keys = slices.Insert(n.Keys, i, separator)
	n.Children = slices.Insert(n.Children, i+1, rightChild)
}

// InsertOverflow inserts (separator, rightChild) into a full node and
// immediately splits the resulting count+1 entries using the lift
// convention: the middle key is removed from both halves and promoted
// to the caller to install in the grandparent, rather than being
// copied down into the right half (spec.md §4.3 and Design Notes —
// this is the point on which spec.md explicitly overrides the
// copy-convention some B+Tree descriptions use).
func (n *InnerNode[K]) InsertOverflow(cmp Comparator[K], separator K, rightChild segment.PageID) (right *InnerNode[K], lifted K) {
	idx := n.LowerBound(cmp, separator)
	keys := slices.Insert(append([]K(nil), n.Keys...), idx, separator)
	children := slices.Insert(append([]segment.PageID(nil), n.Children...), idx+1, rightChild)

	m := len(keys) / 2
	lifted = keys[m]

	right = NewInnerNode(n.keyCodec, n.capacity)
	right.Level = n.Level
	right.Keys = append([]K(nil), keys[m+1:]...)
	right.Children = append([]segment.PageID(nil), children[m+1:]...)

	n.Keys = keys[:m]
	n.Children = children[:m+1]
	return right, lifted
}

// EraseSeparator removes the separator at index i along with the child
// immediately to its right, used when merging two children collapses
// one separator out of the parent (spec.md §4.3).
func (n *InnerNode[K]) EraseSeparator(i int) {
	n.Keys = slices.Delete(n.Keys, i, i+1)
	n.Children = slices.Delete(n.Children, i+1, i+2)
}

// BorrowFromLeft pulls left's last child across the separator that
// currently sits between left and n in the parent: that separator
// becomes n's new first key, left's last key is promoted to replace it
// in the parent, and left's last child becomes n's new first child
// (spec.md §4.3).
func (n *InnerNode[K]) BorrowFromLeft(left *InnerNode[K], parentSeparator K) (newParentSeparator K) {
	lastKeyIdx := len(left.Keys) - 1
	promoted := left.Keys[lastKeyIdx]
	movedChild := left.Children[len(left.Children)-1]

	left.Keys = left.Keys[:lastKeyIdx]
	left.Children = left.Children[:len(left.Children)-1]

	n.Keys = append([]K{parentSeparator}, n.Keys...)
	n.Children = append([]segment.PageID{movedChild}, n.Children...)
	return promoted
}

// BorrowFromRight is the mirror of BorrowFromLeft: right's first child
// crosses the separator between n and right.
func (n *InnerNode[K]) BorrowFromRight(right *InnerNode[K], parentSeparator K) (newParentSeparator K) {
	promoted := right.Keys[0]
	movedChild := right.Children[0]

	right.Keys = right.Keys[1:]
	right.Children = right.Children[1:]

	n.Keys = append(n.Keys, parentSeparator)
	n.Children = append(n.Children, movedChild)
	return promoted
}

// MergeWith folds the parent separator between n and right, plus
// right's own entries, onto n (spec.md §4.3). Precondition:
// Count()+1+right.Count() <= Capacity().
func (n *InnerNode[K]) MergeWith(right *InnerNode[K], parentSeparator K) {
	if len(n.Keys)+1+len(right.Keys) > n.capacity {
		panic(errors.Errorf("btree: CapacityViolation: inner merge %d+1+%d exceeds capacity %d", len(n.Keys), len(right.Keys), n.capacity))
	}
	n.Keys = append(n.Keys, parentSeparator)
	n.Keys = append(n.Keys, right.Keys...)
	n.Children = append(n.Children, right.Children...)
}
