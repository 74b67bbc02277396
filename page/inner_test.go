package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wtfdb/segment"
)

func uint64Inner(capacity int) *InnerNode[uint64] {
	n := NewInnerNode[uint64](Uint64Codec{}, capacity)
	n.Level = 1
	return n
}

func Test_InnerCapacity_reservesOneExtraChildSlot(t *testing.T) {
	cap := InnerCapacity(testPageSize, 8)
	assert.Greater(t, cap, 60)
	assert.Less(t, cap, 66)

	// A 36-byte page fits one key/child pair after the header and the
	// reserved extra child slot; without the reservation it would fit two.
	assert.Equal(t, 1, InnerCapacity(36, 8))
}

func Test_Inner_ChildFor_picksCorrectSubtree(t *testing.T) {
	cmp := Ordered[uint64]()
	n := uint64Inner(8)
	n.Keys = []uint64{10, 20}
	n.Children = []segment.PageID{1, 2, 3}

	assert.Equal(t, segment.PageID(1), n.ChildFor(cmp, 5))
	assert.Equal(t, segment.PageID(2), n.ChildFor(cmp, 10))
	assert.Equal(t, segment.PageID(2), n.ChildFor(cmp, 15))
	assert.Equal(t, segment.PageID(3), n.ChildFor(cmp, 20))
	assert.Equal(t, segment.PageID(3), n.ChildFor(cmp, 100))
}

func Test_Inner_Insert_sortedPosition(t *testing.T) {
	cmp := Ordered[uint64]()
	n := uint64Inner(8)
	n.Keys = []uint64{10}
	n.Children = []segment.PageID{1, 2}

	n.Insert(cmp, 20, 3)
	assert.Equal(t, []uint64{10, 20}, n.Keys)
	assert.Equal(t, []segment.PageID{1, 2, 3}, n.Children)
}

func Test_Inner_Insert_capacityViolationPanics(t *testing.T) {
	cmp := Ordered[uint64]()
	n := uint64Inner(1)
	n.Keys = []uint64{10}
	n.Children = []segment.PageID{1, 2}
	assert.Panics(t, func() { n.Insert(cmp, 20, 3) })
}

func Test_Inner_InsertOverflow_liftsMiddleKey(t *testing.T) {
	cmp := Ordered[uint64]()
	n := uint64Inner(4)
	n.Keys = []uint64{10, 20, 30, 40}
	n.Children = []segment.PageID{1, 2, 3, 4, 5}

	right, lifted := n.InsertOverflow(cmp, 25, 100)

	// keys' = [10,20,25,30,40], m=2 -> lifted=25, left=[10,20], right=[30,40]
	assert.Equal(t, uint64(25), lifted)
	assert.Equal(t, []uint64{10, 20}, n.Keys)
	assert.Equal(t, []segment.PageID{1, 2, 3}, n.Children)
	assert.Equal(t, []uint64{30, 40}, right.Keys)
	assert.Equal(t, []segment.PageID{100, 4, 5}, right.Children)
	assert.Equal(t, n.Level, right.Level)

	// The lifted key never appears in either half (the "lift
	// convention" spec.md fixes over copying it into the right half).
	assert.NotContains(t, n.Keys, lifted)
	assert.NotContains(t, right.Keys, lifted)
}

func Test_Inner_EraseSeparator(t *testing.T) {
	n := uint64Inner(8)
	n.Keys = []uint64{10, 20, 30}
	n.Children = []segment.PageID{1, 2, 3, 4}

	n.EraseSeparator(1)
	assert.Equal(t, []uint64{10, 30}, n.Keys)
	assert.Equal(t, []segment.PageID{1, 2, 4}, n.Children)
}

func Test_Inner_BorrowFromLeft_rotatesThroughParent(t *testing.T) {
	left := uint64Inner(8)
	left.Keys = []uint64{1, 2, 3}
	left.Children = []segment.PageID{10, 11, 12, 13}

	n := uint64Inner(8)
	n.Keys = []uint64{}
	n.Children = []segment.PageID{20}

	newSep := n.BorrowFromLeft(left, 5)
	assert.Equal(t, uint64(3), newSep)
	assert.Equal(t, []uint64{1, 2}, left.Keys)
	assert.Equal(t, []segment.PageID{10, 11, 12}, left.Children)
	assert.Equal(t, []uint64{5}, n.Keys)
	assert.Equal(t, []segment.PageID{13, 20}, n.Children)
}

func Test_Inner_BorrowFromRight_rotatesThroughParent(t *testing.T) {
	right := uint64Inner(8)
	right.Keys = []uint64{8, 9}
	right.Children = []segment.PageID{30, 31, 32}

	n := uint64Inner(8)
	n.Keys = []uint64{}
	n.Children = []segment.PageID{20}

	newSep := n.BorrowFromRight(right, 5)
	assert.Equal(t, uint64(8), newSep)
	assert.Equal(t, []uint64{9}, right.Keys)
	assert.Equal(t, []segment.PageID{31, 32}, right.Children)
	assert.Equal(t, []uint64{5}, n.Keys)
	assert.Equal(t, []segment.PageID{20, 30}, n.Children)
}

func Test_Inner_MergeWith(t *testing.T) {
	left := uint64Inner(8)
	left.Keys = []uint64{1}
	left.Children = []segment.PageID{10, 11}

	right := uint64Inner(8)
	right.Keys = []uint64{3}
	right.Children = []segment.PageID{12, 13}

	left.MergeWith(right, 2)
	assert.Equal(t, []uint64{1, 2, 3}, left.Keys)
	assert.Equal(t, []segment.PageID{10, 11, 12, 13}, left.Children)
}

func Test_Inner_MergeWith_capacityViolationPanics(t *testing.T) {
	left := uint64Inner(2)
	left.Keys = []uint64{1}
	left.Children = []segment.PageID{10, 11}

	right := uint64Inner(2)
	right.Keys = []uint64{3}
	right.Children = []segment.PageID{12, 13}

	assert.Panics(t, func() { left.MergeWith(right, 2) })
}

func Test_Inner_EncodeDecode_roundTrips(t *testing.T) {
	n := uint64Inner(8)
	n.Level = 2
	n.Keys = []uint64{10, 20}
	n.Children = []segment.PageID{1, 2, 3}

	buf := make([]byte, testPageSize)
	n.EncodeTo(buf)

	decoded, err := DecodeInner[uint64](buf, Uint64Codec{}, 8)
	require.NoError(t, err)
	assert.Equal(t, n.Level, decoded.Level)
	assert.Equal(t, n.Keys, decoded.Keys)
	assert.Equal(t, n.Children, decoded.Children)
}

func Test_DecodeInner_rejectsLeafPage(t *testing.T) {
	buf := make([]byte, testPageSize)
	WriteHeader(buf, Header{Level: 0, Count: 0})
	_, err := DecodeInner[uint64](buf, Uint64Codec{}, 8)
	assert.Error(t, err)
}
