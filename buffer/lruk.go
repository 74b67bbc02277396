package buffer

import (
	"container/list"

	"github.com/pkg/errors"
)

// lruKFrameMetadata tracks one frame's access history for the LRU-K
// policy: its last up-to-k access timestamps, oldest first, and whether
// it is currently a candidate for eviction.
type lruKFrameMetadata struct {
	history     []int64
	isEvictable bool
	elem        *list.Element // this frame's node in lru, while history is still short of k
}

// lruKReplacer implements the LRU-K page replacement policy: among
// evictable frames, the one with the largest "backward k-distance" (the
// gap since its k-th most recent access) is evicted first. A frame with
// fewer than k recorded accesses has an infinite backward k-distance and
// is evicted in plain oldest-access-first order ahead of any frame that
// has a finite one. This completes the policy the teacher's
// memory/buffer.go references but never defines, in the shape its own
// test file (evictionpolicy_test.go) already exercises: fields k,
// maxSize, metadataStore, lru, size, and methods recordAccess,
// setEvictable, evict.
type lruKReplacer struct {
	k             int
	maxSize       int
	size          int
	clock         int64
	metadataStore map[int]lruKFrameMetadata
	lru           *list.List
}

func newLruKReplacer(k, maxSize int) *lruKReplacer {
	return &lruKReplacer{
		k:             k,
		maxSize:       maxSize,
		metadataStore: make(map[int]lruKFrameMetadata),
		lru:           list.New(),
	}
}

// recordAccess notes an access to frameID at the current logical clock
// tick.
func (r *lruKReplacer) recordAccess(frameID int) {
	r.clock++
	md, ok := r.metadataStore[frameID]
	if !ok {
		md = lruKFrameMetadata{}
	}
	md.history = append(md.history, r.clock)
	if len(md.history) > r.k {
		md.history = md.history[len(md.history)-r.k:]
	}

	if len(md.history) < r.k {
		if md.elem == nil {
			md.elem = r.lru.PushBack(frameID)
		} else {
			r.lru.MoveToBack(md.elem)
		}
	} else if md.elem != nil {
		r.lru.Remove(md.elem)
		md.elem = nil
	}
	r.metadataStore[frameID] = md
}

// setEvictable marks frameID as eligible (or ineligible) for eviction.
// A pinned frame must be marked non-evictable by the caller.
func (r *lruKReplacer) setEvictable(frameID int, evictable bool) {
	md, ok := r.metadataStore[frameID]
	if !ok || md.isEvictable == evictable {
		return
	}
	md.isEvictable = evictable
	r.metadataStore[frameID] = md
	if evictable {
		r.size++
	} else {
		r.size--
	}
}

// evict selects and removes a victim frame: frames with fewer than k
// accesses are evicted oldest-first, ahead of any frame with a full
// k-access history, among which the largest backward k-distance wins.
func (r *lruKReplacer) evict() (int, error) {
	if r.size == 0 {
		return 0, errors.New("buffer: no evictable frames")
	}

	for e := r.lru.Front(); e != nil; e = e.Next() {
		frameID := e.Value.(int)
		if md := r.metadataStore[frameID]; md.isEvictable {
			r.remove(frameID)
			return frameID, nil
		}
	}

	victim := -1
	var victimDistance int64 = -1
	for frameID, md := range r.metadataStore {
		if !md.isEvictable || len(md.history) < r.k {
			continue
		}
		distance := r.clock - md.history[0]
		if distance > victimDistance {
			victimDistance = distance
			victim = frameID
		}
	}
	if victim < 0 {
		return 0, errors.New("buffer: no evictable frames")
	}
	r.remove(victim)
	return victim, nil
}

func (r *lruKReplacer) remove(frameID int) {
	if md := r.metadataStore[frameID]; md.elem != nil {
		r.lru.Remove(md.elem)
	}
	delete(r.metadataStore, frameID)
	r.size--
}
