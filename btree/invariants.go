package btree

import (
	"github.com/pkg/errors"

	"wtfdb/page"
	"wtfdb/segment"
)

// CheckInvariants walks the whole tree and verifies spec.md §8's I1-I5
// hold everywhere: sorted keys, correct separator placement, non-root
// occupancy at or above the underflow threshold, uniform leaf depth,
// and child-count consistency. It is a test helper, not part of the
// operational surface. It does not panic: the first violation found is
// returned as an InvariantViolation-labelled error.
func (t *Tree[K, V]) CheckInvariants() error {
	if t.IsEmpty() {
		return nil
	}
	leafLevel := -1
	return t.checkNode(t.root, true, nil, nil, &leafLevel)
}

// checkNode verifies node id against lower and upper (nil if
// unbounded): every key in this subtree must be >= lower and < upper,
// matching the split between children[i] and children[i+1] that
// InnerNode.ChildFor establishes (spec.md §4.3, I2).
func (t *Tree[K, V]) checkNode(id segment.PageID, isRoot bool, lower, upper *K, leafLevel *int) error {
	frame, err := t.bm.FixPage(id, false)
	if err != nil {
		return errors.Wrapf(err, "btree: checking page %d", id)
	}
	h := page.ReadHeader(frame.Data)

	if h.IsLeaf() {
		leaf, err := page.DecodeLeaf(frame.Data, t.keyCodec, t.valCodec, t.leafCap)
		t.bm.UnfixPage(frame, false)
		if err != nil {
			return errors.Wrap(err, "btree: InvariantViolation")
		}
		if err := t.checkSorted(leaf.Keys); err != nil {
			return err
		}
		if err := t.checkBounds(leaf.Keys, lower, upper); err != nil {
			return err
		}
		if !isRoot && leaf.Count() < underflowThreshold(t.leafCap) {
			return errors.Errorf("btree: InvariantViolation: leaf %d count=%d below underflow threshold %d (I3)",
				id, leaf.Count(), underflowThreshold(t.leafCap))
		}
		if *leafLevel == -1 {
			*leafLevel = 0
		} else if *leafLevel != 0 {
			return errors.Errorf("btree: InvariantViolation: leaf %d not at the tree's common leaf level (I4)", id)
		}
		return nil
	}

	inner, err := page.DecodeInner(frame.Data, t.keyCodec, t.innerCap)
	t.bm.UnfixPage(frame, false)
	if err != nil {
		return errors.Wrap(err, "btree: InvariantViolation")
	}
	if err := t.checkSorted(inner.Keys); err != nil {
		return err
	}
	if err := t.checkBounds(inner.Keys, lower, upper); err != nil {
		return err
	}
	if len(inner.Children) != len(inner.Keys)+1 {
		return errors.Errorf("btree: InvariantViolation: inner %d has %d keys and %d children, want count+1 (I5)",
			id, len(inner.Keys), len(inner.Children))
	}
	if !isRoot && inner.Count() < underflowThreshold(t.innerCap) {
		return errors.Errorf("btree: InvariantViolation: inner %d count=%d below underflow threshold %d (I3)",
			id, inner.Count(), underflowThreshold(t.innerCap))
	}
	if isRoot && inner.Count() < 1 {
		return errors.Errorf("btree: InvariantViolation: inner root %d has no separators", id)
	}

	for i, child := range inner.Children {
		childLower, childUpper := lower, upper
		if i > 0 {
			k := inner.Keys[i-1]
			childLower = &k
		}
		if i < len(inner.Keys) {
			k := inner.Keys[i]
			childUpper = &k
		}
		if err := t.checkNode(child, false, childLower, childUpper, leafLevel); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tree[K, V]) checkSorted(keys []K) error {
	for i := 1; i < len(keys); i++ {
		if t.cmp(keys[i-1], keys[i]) >= 0 {
			return errors.Errorf("btree: InvariantViolation: keys not strictly increasing at index %d (I1)", i)
		}
	}
	return nil
}

func (t *Tree[K, V]) checkBounds(keys []K, lower, upper *K) error {
	for _, k := range keys {
		if lower != nil && t.cmp(k, *lower) < 0 {
			return errors.Errorf("btree: InvariantViolation: key below subtree's lower bound (I2)")
		}
		if upper != nil && t.cmp(k, *upper) >= 0 {
			return errors.Errorf("btree: InvariantViolation: key at or above subtree's upper bound (I2)")
		}
	}
	return nil
}
