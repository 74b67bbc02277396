package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_ComposeSplit_roundTrips(t *testing.T) {
	id := Compose(ID(7), 42)
	gotSegment, gotPage := Split(id)
	assert.Equal(t, ID(7), gotSegment)
	assert.Equal(t, uint64(42), gotPage)
}

func Test_Compose_distinctSegmentsDontCollide(t *testing.T) {
	a := Compose(ID(1), 1)
	b := Compose(ID(2), 1)
	assert.NotEqual(t, a, b)
}

func Test_Compose_zeroPageInSegmentPanics(t *testing.T) {
	require.Panics(t, func() { Compose(ID(1), 0) })
}

func Test_Compose_overflowingPageInSegmentPanics(t *testing.T) {
	require.Panics(t, func() { Compose(ID(1), uint64(1)<<48) })
}

func Test_None_isZero(t *testing.T) {
	assert.Equal(t, PageID(0), None)
}
