package disk

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wtfdb/segment"
)

const testPageSize = 1024

func Test_FileManager_readUnwrittenPageIsZeroed(t *testing.T) {
	m, err := NewFileManager(filepath.Join(t.TempDir(), "db"), testPageSize)
	require.NoError(t, err)
	defer m.Close()

	buf := make([]byte, testPageSize)
	for i := range buf {
		buf[i] = 0xFF
	}
	require.NoError(t, m.ReadPage(segment.Compose(1, 1), buf))

	for _, b := range buf {
		assert.Zero(t, b)
	}
}

func Test_FileManager_writeThenReadRoundTrips(t *testing.T) {
	m, err := NewFileManager(filepath.Join(t.TempDir(), "db"), testPageSize)
	require.NoError(t, err)
	defer m.Close()

	id := segment.Compose(1, 3)
	want := make([]byte, testPageSize)
	for i := range want {
		want[i] = byte(i % 256)
	}
	require.NoError(t, m.WritePage(id, want))

	got := make([]byte, testPageSize)
	require.NoError(t, m.ReadPage(id, got))
	assert.Equal(t, want, got)
}

func Test_FileManager_pagesAreIndependent(t *testing.T) {
	m, err := NewFileManager(filepath.Join(t.TempDir(), "db"), testPageSize)
	require.NoError(t, err)
	defer m.Close()

	page1 := bytes(testPageSize, 0xAA)
	page2 := bytes(testPageSize, 0xBB)
	require.NoError(t, m.WritePage(segment.Compose(1, 1), page1))
	require.NoError(t, m.WritePage(segment.Compose(1, 2), page2))

	got1 := make([]byte, testPageSize)
	got2 := make([]byte, testPageSize)
	require.NoError(t, m.ReadPage(segment.Compose(1, 1), got1))
	require.NoError(t, m.ReadPage(segment.Compose(1, 2), got2))

	assert.Equal(t, page1, got1)
	assert.Equal(t, page2, got2)
}

func Test_FileManager_rejectsWrongSizedBuffer(t *testing.T) {
	m, err := NewFileManager(filepath.Join(t.TempDir(), "db"), testPageSize)
	require.NoError(t, err)
	defer m.Close()

	assert.Error(t, m.WritePage(segment.Compose(1, 1), make([]byte, 10)))
	assert.Error(t, m.ReadPage(segment.Compose(1, 1), make([]byte, 10)))
}

func bytes(n int, fill byte) []byte {
	b := make([]byte, n)
	for i := range b {
		b[i] = fill
	}
	return b
}
