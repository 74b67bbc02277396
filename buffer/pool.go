package buffer

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"wtfdb/disk"
	"wtfdb/segment"
)

// Manager is the Buffer Manager collaborator the B+Tree core consumes
// (spec.md §1, §6): it pins and unpins pages by overall page id, and
// hands back a Frame whose Data is a PageSize()-byte span the caller
// may read or mutate while holding the pin. Its internals — caching,
// eviction policy — are out of scope for the tree's correctness.
type Manager interface {
	// GetOverallPageID composes a segment id and a page-in-segment
	// number into the PageID the rest of this interface indexes by
	// (spec.md §6).
	GetOverallPageID(segmentID segment.ID, pageInSegment uint64) segment.PageID

	// FixPage pins the page, faulting it in from disk if it isn't
	// already resident, and returns its Frame. exclusive records intent
	// only; this reference implementation does not enforce
	// single-writer locking itself (spec.md §5 places that discipline on
	// the tree's single-writer ordering, not the buffer manager).
	FixPage(id segment.PageID, exclusive bool) (*Frame, error)

	// UnfixPage releases a pin taken by FixPage. dirty must be true if
	// any byte of frame.Data was written while pinned (spec.md §5, §6).
	UnfixPage(frame *Frame, dirty bool)

	PageSize() int
}

// PoolManager is the reference Manager implementation: a fixed pool of
// frames backed by a disk.Manager, evicted via LRU-K when full.
// Grounded in the teacher's memory.BufferPoolManager, with a real
// LruKReplacer and a real disk.Manager behind it instead of the stubs
// the teacher's version compiled against.
type PoolManager struct {
	mu sync.Mutex

	pageSize    int
	frames      []*Frame
	pageToFrame map[segment.PageID]int
	freeFrames  []int
	replacer    *lruKReplacer
	disk        disk.Manager

	logger     *zap.SugaredLogger
	instanceID uuid.UUID
}

// Option configures a PoolManager at construction.
type Option func(*PoolManager)

// WithLogger attaches a structured logger; the default is zap.NewNop(),
// so a PoolManager works with no logging configured.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(m *PoolManager) { m.logger = l }
}

// NewPoolManager builds a buffer manager with poolFrames frames of
// pageSize bytes each, backed by d, evicting via LRU-K with history
// length lruK.
func NewPoolManager(d disk.Manager, pageSize, poolFrames, lruK int, opts ...Option) *PoolManager {
	m := &PoolManager{
		pageSize:    pageSize,
		frames:      make([]*Frame, poolFrames),
		pageToFrame: make(map[segment.PageID]int, poolFrames),
		freeFrames:  make([]int, 0, poolFrames),
		replacer:    newLruKReplacer(lruK, poolFrames),
		disk:        d,
		logger:      zap.NewNop().Sugar(),
		instanceID:  uuid.New(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for i := 0; i < poolFrames; i++ {
		m.frames[i] = newFrame(i, pageSize)
		m.freeFrames = append(m.freeFrames, i)
	}
	m.logger.Infow("buffer manager started",
		"instance", m.instanceID, "frames", poolFrames, "page_size", pageSize)
	return m
}

func (m *PoolManager) PageSize() int { return m.pageSize }

func (m *PoolManager) GetOverallPageID(segmentID segment.ID, pageInSegment uint64) segment.PageID {
	return segment.Compose(segmentID, pageInSegment)
}

func (m *PoolManager) FixPage(id segment.PageID, exclusive bool) (*Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	frame, err := m.frameFor(id)
	if err != nil {
		return nil, err
	}
	frame.pinCount++
	m.replacer.recordAccess(frame.FrameID)
	m.replacer.setEvictable(frame.FrameID, false)
	return frame, nil
}

func (m *PoolManager) UnfixPage(frame *Frame, dirty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if dirty {
		frame.Dirty = true
	}
	if frame.pinCount > 0 {
		frame.pinCount--
	}
	if frame.pinCount == 0 {
		m.replacer.setEvictable(frame.FrameID, true)
	}
}

// frameFor returns the frame currently holding id, loading it from disk
// (evicting a victim frame first if the pool is full) if not already
// resident.
func (m *PoolManager) frameFor(id segment.PageID) (*Frame, error) {
	if i, ok := m.pageToFrame[id]; ok {
		return m.frames[i], nil
	}

	var i int
	if n := len(m.freeFrames); n > 0 {
		i = m.freeFrames[n-1]
		m.freeFrames = m.freeFrames[:n-1]
	} else {
		victim, err := m.replacer.evict()
		if err != nil {
			return nil, fmt.Errorf("buffer: pool exhausted, no evictable frame: %w", err)
		}
		if err := m.flush(m.frames[victim]); err != nil {
			return nil, fmt.Errorf("buffer: flush victim frame before reuse: %w", err)
		}
		delete(m.pageToFrame, m.frames[victim].PageID)
		i = victim
	}

	frame := m.frames[i]
	frame.FrameMetadata = FrameMetadata{FrameID: i, PageID: id}
	if err := m.disk.ReadPage(id, frame.Data); err != nil {
		return nil, fmt.Errorf("buffer: read page %d: %w", id, err)
	}
	m.pageToFrame[id] = i
	m.logger.Debugw("page faulted in", "page_id", id, "frame", i)
	return frame, nil
}

func (m *PoolManager) flush(frame *Frame) error {
	if !frame.Dirty || frame.PageID == segment.None {
		return nil
	}
	if err := m.disk.WritePage(frame.PageID, frame.Data); err != nil {
		return err
	}
	frame.Dirty = false
	return nil
}

// FlushAll writes every dirty frame back to disk. Useful before closing
// the underlying disk.Manager, since UnfixPage only marks a frame dirty
// without forcing an immediate write (spec.md places write-back timing
// entirely in the buffer manager's hands, out of scope for the core).
func (m *PoolManager) FlushAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.frames {
		if err := m.flush(f); err != nil {
			return err
		}
	}
	return nil
}
