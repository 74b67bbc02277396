package btree

import (
	"fmt"

	"github.com/pkg/errors"

	"wtfdb/buffer"
	"wtfdb/page"
	"wtfdb/segment"
)

// Erase removes k from the tree if present. Absence is the soft
// NotFound case: a no-op, never an error (spec.md §4.6, §7).
func (t *Tree[K, V]) Erase(k K) error {
	if t.IsEmpty() {
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
	leaf.Erase(t.cmp, k)

	if len(path) == 0 {
		// The leaf is the root: exempt from the underflow threshold, but
		// the tree empties out entirely once its last key is gone
		// (spec.md §4.6 step 5).
		if leaf.Count() == 0 {
			t.bm.UnfixPage(leafFrame, true)
			t.root = segment.None
			t.logger.Infow("erased last key, tree is now empty")
			return nil
		}
		leaf.EncodeTo(leafFrame.Data)
		t.bm.UnfixPage(leafFrame, true)
		return nil
	}

	if leaf.Count() >= underflowThreshold(t.leafCap) {
		leaf.EncodeTo(leafFrame.Data)
		t.bm.UnfixPage(leafFrame, true)
		return nil
	}

	if err := t.resolveLeafUnderflow(path, leafID, leaf, leafFrame); err != nil {
		return err
	}
	return t.resolveAncestorUnderflow(path)
}

// resolveLeafUnderflow handles an underflowing leaf: borrow from the
// left sibling, then the right, then merge, preferring the left
// sibling (spec.md §4.6 step 3).
func (t *Tree[K, V]) resolveLeafUnderflow(path []segment.PageID, leafID segment.PageID, leaf *page.LeafNode[K, V], leafFrame *buffer.Frame) error {
	parentID := path[len(path)-1]
	parentFrame, err := t.bm.FixPage(parentID, true)
	if err != nil {
		t.bm.UnfixPage(leafFrame, true)
		return fmt.Errorf("btree: BufferManagerFailure: fix parent %d: %w", parentID, err)
	}
	parent, err := page.DecodeInner(parentFrame.Data, t.keyCodec, t.innerCap)
	if err != nil {
		t.bm.UnfixPage(leafFrame, true)
		t.bm.UnfixPage(parentFrame, false)
		return errors.Wrap(err, "btree: InvariantViolation")
	}

	idx := indexOfChild(parent.Children, leafID)
	threshold := underflowThreshold(t.leafCap)

	if idx > 0 {
		leftID := parent.Children[idx-1]
		leftFrame, err := t.bm.FixPage(leftID, true)
		if err != nil {
			t.bm.UnfixPage(leafFrame, true)
			t.bm.UnfixPage(parentFrame, false)
			return fmt.Errorf("btree: BufferManagerFailure: fix left sibling %d: %w", leftID, err)
		}
		left, err := page.DecodeLeaf(leftFrame.Data, t.keyCodec, t.valCodec, t.leafCap)
		if err != nil {
			t.bm.UnfixPage(leafFrame, true)
			t.bm.UnfixPage(parentFrame, false)
			t.bm.UnfixPage(leftFrame, false)
			return errors.Wrap(err, "btree: InvariantViolation")
		}
		if left.Count() > threshold {
			parent.Keys[idx-1] = leaf.BorrowFromLeft(left)
			leaf.EncodeTo(leafFrame.Data)
			left.EncodeTo(leftFrame.Data)
			parent.EncodeTo(parentFrame.Data)
			t.bm.UnfixPage(leafFrame, true)
			t.bm.UnfixPage(leftFrame, true)
			t.bm.UnfixPage(parentFrame, true)
			return nil
		}
		t.bm.UnfixPage(leftFrame, false)
	}

	if idx < len(parent.Children)-1 {
		rightID := parent.Children[idx+1]
		rightFrame, err := t.bm.FixPage(rightID, true)
		if err != nil {
			t.bm.UnfixPage(leafFrame, true)
			t.bm.UnfixPage(parentFrame, false)
			return fmt.Errorf("btree: BufferManagerFailure: fix right sibling %d: %w", rightID, err)
		}
		right, err := page.DecodeLeaf(rightFrame.Data, t.keyCodec, t.valCodec, t.leafCap)
		if err != nil {
			t.bm.UnfixPage(leafFrame, true)
			t.bm.UnfixPage(parentFrame, false)
			t.bm.UnfixPage(rightFrame, false)
			return errors.Wrap(err, "btree: InvariantViolation")
		}
		if right.Count() > threshold {
			parent.Keys[idx] = leaf.BorrowFromRight(right)
			leaf.EncodeTo(leafFrame.Data)
			right.EncodeTo(rightFrame.Data)
			parent.EncodeTo(parentFrame.Data)
			t.bm.UnfixPage(leafFrame, true)
			t.bm.UnfixPage(rightFrame, true)
			t.bm.UnfixPage(parentFrame, true)
			return nil
		}
		t.bm.UnfixPage(rightFrame, false)
	}

	// Neither sibling had anything to lend: merge, preferring left.
	if idx > 0 {
		leftID := parent.Children[idx-1]
		leftFrame, err := t.bm.FixPage(leftID, true)
		if err != nil {
			t.bm.UnfixPage(leafFrame, true)
			t.bm.UnfixPage(parentFrame, false)
			return fmt.Errorf("btree: BufferManagerFailure: fix left sibling %d: %w", leftID, err)
		}
		left, err := page.DecodeLeaf(leftFrame.Data, t.keyCodec, t.valCodec, t.leafCap)
		if err != nil {
			t.bm.UnfixPage(leafFrame, true)
			t.bm.UnfixPage(parentFrame, false)
			t.bm.UnfixPage(leftFrame, false)
			return errors.Wrap(err, "btree: InvariantViolation")
		}
		left.MergeWith(leaf)
		left.EncodeTo(leftFrame.Data)
		parent.EraseSeparator(idx - 1)
		parent.EncodeTo(parentFrame.Data)
		t.bm.UnfixPage(leftFrame, true)
		t.bm.UnfixPage(leafFrame, false)
		t.bm.UnfixPage(parentFrame, true)
		return nil
	}

	rightID := parent.Children[idx+1]
	rightFrame, err := t.bm.FixPage(rightID, true)
	if err != nil {
		t.bm.UnfixPage(leafFrame, true)
		t.bm.UnfixPage(parentFrame, false)
		return fmt.Errorf("btree: BufferManagerFailure: fix right sibling %d: %w", rightID, err)
	}
	right, err := page.DecodeLeaf(rightFrame.Data, t.keyCodec, t.valCodec, t.leafCap)
	if err != nil {
		t.bm.UnfixPage(leafFrame, true)
		t.bm.UnfixPage(parentFrame, false)
		t.bm.UnfixPage(rightFrame, false)
		return errors.Wrap(err, "btree: InvariantViolation")
	}
	leaf.MergeWith(right)
	leaf.EncodeTo(leafFrame.Data)
	parent.EraseSeparator(idx)
	parent.EncodeTo(parentFrame.Data)
	t.bm.UnfixPage(leafFrame, true)
	t.bm.UnfixPage(rightFrame, false)
	t.bm.UnfixPage(parentFrame, true)
	return nil
}

// resolveAncestorUnderflow walks the recorded ancestor path bottom-up:
// an inner node can only have underflowed because a merge one level
// down just removed one of its separators, so each level is checked in
// turn and the walk stops as soon as a level didn't need a merge to fix
// itself. The root is collapsed last if it ends up with a single child
// (spec.md §4.6 steps 4-5).
func (t *Tree[K, V]) resolveAncestorUnderflow(path []segment.PageID) error {
	for i := len(path) - 1; i >= 0; i-- {
		nodeID := path[i]
		frame, err := t.bm.FixPage(nodeID, false)
		if err != nil {
			return fmt.Errorf("btree: BufferManagerFailure: fix node %d: %w", nodeID, err)
		}
		node, err := page.DecodeInner(frame.Data, t.keyCodec, t.innerCap)
		if err != nil {
			t.bm.UnfixPage(frame, false)
			return errors.Wrap(err, "btree: InvariantViolation")
		}
		t.bm.UnfixPage(frame, false)

		if i == 0 {
			if node.Count() == 0 {
				t.logger.Infow("collapsing root", "old_root", nodeID, "new_root", node.Children[0])
				t.root = node.Children[0]
			}
			return nil
		}

		if node.Count() >= underflowThreshold(t.innerCap) {
			return nil
		}

		merged, err := t.resolveInnerUnderflow(path[:i], nodeID, node)
		if err != nil {
			return err
		}
		if !merged {
			return nil
		}
	}
	return nil
}

// resolveInnerUnderflow mirrors resolveLeafUnderflow one level up:
// borrow from the left sibling, then the right, then merge, preferring
// the left sibling, rotating the parent's separator through the
// borrow/merge rather than copying a leaf value (spec.md §4.3, §4.6).
// It reports whether a merge happened, since only a merge can propagate
// underflow to the grandparent.
func (t *Tree[K, V]) resolveInnerUnderflow(path []segment.PageID, nodeID segment.PageID, node *page.InnerNode[K]) (merged bool, err error) {
	parentID := path[len(path)-1]
	parentFrame, err := t.bm.FixPage(parentID, true)
	if err != nil {
		return false, fmt.Errorf("btree: BufferManagerFailure: fix parent %d: %w", parentID, err)
	}
	parent, err := page.DecodeInner(parentFrame.Data, t.keyCodec, t.innerCap)
	if err != nil {
		t.bm.UnfixPage(parentFrame, false)
		return false, errors.Wrap(err, "btree: InvariantViolation")
	}

	idx := indexOfChild(parent.Children, nodeID)
	threshold := underflowThreshold(t.innerCap)

	nodeFrame, err := t.bm.FixPage(nodeID, true)
	if err != nil {
		t.bm.UnfixPage(parentFrame, false)
		return false, fmt.Errorf("btree: BufferManagerFailure: fix node %d: %w", nodeID, err)
	}

	if idx > 0 {
		leftID := parent.Children[idx-1]
		leftFrame, lerr := t.bm.FixPage(leftID, true)
		if lerr != nil {
			t.bm.UnfixPage(nodeFrame, false)
			t.bm.UnfixPage(parentFrame, false)
			return false, fmt.Errorf("btree: BufferManagerFailure: fix left sibling %d: %w", leftID, lerr)
		}
		left, derr := page.DecodeInner(leftFrame.Data, t.keyCodec, t.innerCap)
		if derr != nil {
			t.bm.UnfixPage(nodeFrame, false)
			t.bm.UnfixPage(parentFrame, false)
			t.bm.UnfixPage(leftFrame, false)
			return false, errors.Wrap(derr, "btree: InvariantViolation")
		}
		if left.Count() > threshold {
			parent.Keys[idx-1] = node.BorrowFromLeft(left, parent.Keys[idx-1])
			node.EncodeTo(nodeFrame.Data)
			left.EncodeTo(leftFrame.Data)
			parent.EncodeTo(parentFrame.Data)
			t.bm.UnfixPage(nodeFrame, true)
			t.bm.UnfixPage(leftFrame, true)
			t.bm.UnfixPage(parentFrame, true)
			return false, nil
		}
		t.bm.UnfixPage(leftFrame, false)
	}

	if idx < len(parent.Children)-1 {
		rightID := parent.Children[idx+1]
		rightFrame, rerr := t.bm.FixPage(rightID, true)
		if rerr != nil {
			t.bm.UnfixPage(nodeFrame, false)
			t.bm.UnfixPage(parentFrame, false)
			return false, fmt.Errorf("btree: BufferManagerFailure: fix right sibling %d: %w", rightID, rerr)
		}
		right, derr := page.DecodeInner(rightFrame.Data, t.keyCodec, t.innerCap)
		if derr != nil {
			t.bm.UnfixPage(nodeFrame, false)
			t.bm.UnfixPage(parentFrame, false)
			t.bm.UnfixPage(rightFrame, false)
			return false, errors.Wrap(derr, "btree: InvariantViolation")
		}
		if right.Count() > threshold {
			parent.Keys[idx] = node.BorrowFromRight(right, parent.Keys[idx])
			node.EncodeTo(nodeFrame.Data)
			right.EncodeTo(rightFrame.Data)
			parent.EncodeTo(parentFrame.Data)
			t.bm.UnfixPage(nodeFrame, true)
			t.bm.UnfixPage(rightFrame, true)
			t.bm.UnfixPage(parentFrame, true)
			return false, nil
		}
		t.bm.UnfixPage(rightFrame, false)
	}

	// Merge, preferring left.
	if idx > 0 {
		leftID := parent.Children[idx-1]
		leftFrame, lerr := t.bm.FixPage(leftID, true)
		if lerr != nil {
			t.bm.UnfixPage(nodeFrame, false)
			t.bm.UnfixPage(parentFrame, false)
			return false, fmt.Errorf("btree: BufferManagerFailure: fix left sibling %d: %w", leftID, lerr)
		}
		left, derr := page.DecodeInner(leftFrame.Data, t.keyCodec, t.innerCap)
		if derr != nil {
			t.bm.UnfixPage(nodeFrame, false)
			t.bm.UnfixPage(parentFrame, false)
			t.bm.UnfixPage(leftFrame, false)
			return false, errors.Wrap(derr, "btree: InvariantViolation")
		}
		left.MergeWith(node, parent.Keys[idx-1])
		left.EncodeTo(leftFrame.Data)
		parent.EraseSeparator(idx - 1)
		parent.EncodeTo(parentFrame.Data)
		t.bm.UnfixPage(leftFrame, true)
		t.bm.UnfixPage(nodeFrame, false)
		t.bm.UnfixPage(parentFrame, true)
		return true, nil
	}

	rightID := parent.Children[idx+1]
	rightFrame, rerr := t.bm.FixPage(rightID, true)
	if rerr != nil {
		t.bm.UnfixPage(nodeFrame, false)
		t.bm.UnfixPage(parentFrame, false)
		return false, fmt.Errorf("btree: BufferManagerFailure: fix right sibling %d: %w", rightID, rerr)
	}
	right, derr := page.DecodeInner(rightFrame.Data, t.keyCodec, t.innerCap)
	if derr != nil {
		t.bm.UnfixPage(nodeFrame, false)
		t.bm.UnfixPage(parentFrame, false)
		t.bm.UnfixPage(rightFrame, false)
		return false, errors.Wrap(derr, "btree: InvariantViolation")
	}
	node.MergeWith(right, parent.Keys[idx])
	node.EncodeTo(nodeFrame.Data)
	parent.EraseSeparator(idx)
	parent.EncodeTo(parentFrame.Data)
	t.bm.UnfixPage(nodeFrame, true)
	t.bm.UnfixPage(rightFrame, false)
	t.bm.UnfixPage(parentFrame, true)
	return true, nil
}
