package buffer

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wtfdb/disk"
	"wtfdb/segment"
)

const testPageSize = 1024

func newTestManager(t *testing.T, frames int) *PoolManager {
	t.Helper()
	d, err := disk.NewFileManager(filepath.Join(t.TempDir(), "db"), testPageSize)
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return NewPoolManager(d, testPageSize, frames, 2)
}

func Test_PoolManager_fixUnfixWriteBackRoundTrips(t *testing.T) {
	m := newTestManager(t, 2)
	id := segment.Compose(1, 1)

	frame, err := m.FixPage(id, true)
	require.NoError(t, err)
	frame.Data[0] = 0x42
	m.UnfixPage(frame, true)

	frame2, err := m.FixPage(id, false)
	require.NoError(t, err)
	assert.Equal(t, byte(0x42), frame2.Data[0])
	m.UnfixPage(frame2, false)
}

func Test_PoolManager_evictsWhenPoolIsFull(t *testing.T) {
	m := newTestManager(t, 1)

	id1 := segment.Compose(1, 1)
	id2 := segment.Compose(1, 2)

	f1, err := m.FixPage(id1, true)
	require.NoError(t, err)
	f1.Data[0] = 0xAA
	m.UnfixPage(f1, true)

	// Pool has exactly one frame; fixing id2 must evict id1's frame,
	// flushing its dirty contents first.
	f2, err := m.FixPage(id2, true)
	require.NoError(t, err)
	m.UnfixPage(f2, false)

	f1Again, err := m.FixPage(id1, false)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), f1Again.Data[0], "dirty frame must be flushed before its slot is reused")
	m.UnfixPage(f1Again, false)
}

func Test_PoolManager_pinnedFrameIsNotEvicted(t *testing.T) {
	m := newTestManager(t, 1)

	id1 := segment.Compose(1, 1)
	id2 := segment.Compose(1, 2)

	_, err := m.FixPage(id1, true) // stays pinned, never unfixed
	require.NoError(t, err)

	_, err = m.FixPage(id2, true)
	assert.Error(t, err, "pool exhausted: the only frame is pinned and cannot be evicted")
}

func Test_PoolManager_GetOverallPageID_matchesSegmentCompose(t *testing.T) {
	m := newTestManager(t, 1)
	assert.Equal(t, segment.Compose(3, 9), m.GetOverallPageID(3, 9))
}
