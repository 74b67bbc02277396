// Package disk implements the persistence collaborator a buffer.Manager
// reads pages from and writes pages to. spec.md places durability out
// of scope for the core's correctness (§1); a reference implementation
// is still needed for the buffer manager to have something real to
// evict to. Grounded in the teacher's io/diskmanager.go, which declares
// this interface but leaves both methods as no-op stubs.
package disk

import "wtfdb/segment"

// Manager reads and writes fixed-size pages by overall page id.
type Manager interface {
	// ReadPage fills buf (exactly one page's worth of bytes) with the
	// contents of id. Reading a page never written before returns a
	// zero-filled buffer rather than an error, the way a freshly
	// allocated page is implicitly zero (spec.md §4.5's "allocate a new
	// page id" step assumes this).
	ReadPage(id segment.PageID, buf []byte) error

	// WritePage persists data (exactly one page's worth of bytes) at id.
	WritePage(id segment.PageID, data []byte) error

	Close() error
}
