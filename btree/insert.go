package btree

import (
	"fmt"

	"github.com/pkg/errors"

	"wtfdb/page"
	"wtfdb/segment"
)

// Insert writes k/v into the tree, overwriting the value if k is
// already present (spec.md §4.5).
func (t *Tree[K, V]) Insert(k K, v V) error {
	if t.IsEmpty() {
		id := t.allocatePageID()
		frame, err := t.bm.FixPage(id, true)
		if err != nil {
			return fmt.Errorf("btree: BufferManagerFailure: allocate root leaf: %w", err)
		}
		leaf := page.NewLeafNode(t.keyCodec, t.valCodec, t.leafCap)
		leaf.Insert(t.cmp, k, v)
		leaf.EncodeTo(frame.Data)
		t.bm.UnfixPage(frame, true)
		t.root = id
		t.logger.Debugw("created root leaf", "page_id", id)
		return nil
	}

	path, leafID, err := t.descendWithPath(k)
	if err != nil {
		return err
	}

	leafFrame, err := t.bm.FixPage(leafID, true)
	if err != nil {
		return fmt.Errorf("btree: BufferManagerFailure: fix leaf %d: %w", leafID, err)
	}
	leaf, err := page.DecodeLeaf(leafFrame.Data, t.keyCodec, t.valCodec, t.leafCap)
	if err != nil {
		t.bm.UnfixPage(leafFrame, false)
		return errors.Wrap(err, "btree: InvariantViolation")
	}

	if _, exists := leaf.Lookup(t.cmp, k); exists {
		leaf.Insert(t.cmp, k, v)
		leaf.EncodeTo(leafFrame.Data)
		t.bm.UnfixPage(leafFrame, true)
		return nil
	}

	if leaf.Count() < leaf.Capacity() {
		leaf.Insert(t.cmp, k, v)
		leaf.EncodeTo(leafFrame.Data)
		t.bm.UnfixPage(leafFrame, true)
		return nil
	}

	// The leaf is full: split it first, then place (k, v) on whichever
	// side the separator says it belongs (spec.md §4.2, §4.5). Each half
	// has at most ⌈count/2⌉ entries, always room for one more. With an
	// odd capacity the left half starts one entry below the underflow
	// threshold; if (k, v) went right, the right half's first entry moves
	// left and the right half's new first key becomes the separator.
	rightID := t.allocatePageID()
	rightFrame, err := t.bm.FixPage(rightID, true)
	if err != nil {
		t.bm.UnfixPage(leafFrame, false)
		return fmt.Errorf("btree: BufferManagerFailure: allocate split leaf: %w", err)
	}

	right, separator := leaf.Split()
	if t.cmp(k, separator) < 0 {
		leaf.Insert(t.cmp, k, v)
	} else {
		right.Insert(t.cmp, k, v)
	}
	if leaf.Count() < underflowThreshold(t.leafCap) {
		separator = leaf.BorrowFromRight(right)
	}
	leaf.EncodeTo(leafFrame.Data)
	right.EncodeTo(rightFrame.Data)
	t.bm.UnfixPage(leafFrame, true)
	t.bm.UnfixPage(rightFrame, true)
	t.logger.Debugw("split leaf", "left", leafID, "right", rightID, "separator", separator)

	return t.propagateSplit(path, separator, rightID)
}

// propagateSplit installs (separator, rightID) into the nearest
// ancestor with spare capacity, splitting ancestors upward (lift
// convention) as needed, and grows a new root if the split reaches past
// the top of the recorded path (spec.md §4.5).
func (t *Tree[K, V]) propagateSplit(path []segment.PageID, separator K, rightID segment.PageID) error {
	for i := len(path) - 1; i >= 0; i-- {
		parentID := path[i]
		parentFrame, err := t.bm.FixPage(parentID, true)
		if err != nil {
			return fmt.Errorf("btree: BufferManagerFailure: fix parent %d: %w", parentID, err)
		}
		parent, err := page.DecodeInner(parentFrame.Data, t.keyCodec, t.innerCap)
		if err != nil {
			t.bm.UnfixPage(parentFrame, false)
			return errors.Wrap(err, "btree: InvariantViolation")
		}

		if parent.Count() < parent.Capacity() {
			parent.Insert(t.cmp, separator, rightID)
			parent.EncodeTo(parentFrame.Data)
			t.bm.UnfixPage(parentFrame, true)
			return nil
		}

		newRightID := t.allocatePageID()
		newRightFrame, err := t.bm.FixPage(newRightID, true)
		if err != nil {
			t.bm.UnfixPage(parentFrame, false)
			return fmt.Errorf("btree: BufferManagerFailure: allocate split inner: %w", err)
		}
		newRight, lifted := parent.InsertOverflow(t.cmp, separator, rightID)
		parent.EncodeTo(parentFrame.Data)
		newRight.EncodeTo(newRightFrame.Data)
		t.bm.UnfixPage(parentFrame, true)
		t.bm.UnfixPage(newRightFrame, true)
		t.logger.Debugw("split inner", "left", parentID, "right", newRightID, "lifted", lifted)

		separator = lifted
		rightID = newRightID
	}

	// The split outgrew every recorded ancestor, including the root:
	// grow a new root one level taller (spec.md §4.5 step 6).
	newRootID := t.allocatePageID()
	newRootFrame, err := t.bm.FixPage(newRootID, true)
	if err != nil {
		return fmt.Errorf("btree: BufferManagerFailure: allocate new root: %w", err)
	}
	childLevel, err := t.levelOf(t.root)
	if err != nil {
		t.bm.UnfixPage(newRootFrame, false)
		return err
	}
	newRoot := page.NewInnerNode(t.keyCodec, t.innerCap)
	newRoot.Level = childLevel + 1
	newRoot.Keys = []K{separator}
	newRoot.Children = []segment.PageID{t.root, rightID}
	newRoot.EncodeTo(newRootFrame.Data)
	t.bm.UnfixPage(newRootFrame, true)

	t.logger.Infow("grew new root", "page_id", newRootID, "old_root", t.root)
	t.root = newRootID
	return nil
}

func (t *Tree[K, V]) levelOf(id segment.PageID) (uint16, error) {
	frame, err := t.bm.FixPage(id, false)
	if err != nil {
		return 0, fmt.Errorf("btree: BufferManagerFailure: fix page %d: %w", id, err)
	}
	h := page.ReadHeader(frame.Data)
	t.bm.UnfixPage(frame, false)
	return h.Level, nil
}
