package btree

import (
	"fmt"
	"strings"

	"wtfdb/page"
	"wtfdb/segment"
)

// DebugString renders the tree's structure depth-first, one node per
// line. Ported from the teacher's index.PrettyPrint against the real
// generic node layout (spec.md §6 carries this over as development
// tooling, not part of the tested correctness surface); useful for
// eyeballing invariant I4 (equal leaf levels) and I2 (separator
// placement) while developing against this package.
func (t *Tree[K, V]) DebugString() string {
	var b strings.Builder
	if t.IsEmpty() {
		b.WriteString("(empty tree)\n")
		return b.String()
	}
	t.writeNode(&b, t.root, 0)
	return b.String()
}

func (t *Tree[K, V]) writeNode(b *strings.Builder, id segment.PageID, depth int) {
	indent := strings.Repeat("  ", depth)

	frame, err := t.bm.FixPage(id, false)
	if err != nil {
		fmt.Fprintf(b, "%s<error fixing page %d: %v>\n", indent, id, err)
		return
	}
	h := page.ReadHeader(frame.Data)

	if h.IsLeaf() {
		leaf, err := page.DecodeLeaf(frame.Data, t.keyCodec, t.valCodec, t.leafCap)
		t.bm.UnfixPage(frame, false)
		if err != nil {
			fmt.Fprintf(b, "%s<error decoding leaf %d: %v>\n", indent, id, err)
			return
		}
		fmt.Fprintf(b, "%sleaf(page=%d) keys=%v\n", indent, id, leaf.Keys)
		return
	}

	inner, err := page.DecodeInner(frame.Data, t.keyCodec, t.innerCap)
	t.bm.UnfixPage(frame, false)
	if err != nil {
		fmt.Fprintf(b, "%s<error decoding inner %d: %v>\n", indent, id, err)
		return
	}
	fmt.Fprintf(b, "%sinner(page=%d, level=%d) keys=%v\n", indent, id, inner.Level, inner.Keys)
	for _, child := range inner.Children {
		t.writeNode(b, child, depth+1)
	}
}
