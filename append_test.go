package revlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEntryOffsetEmptyRevlog(t *testing.T) {
	h, err := openFixture([]byte{}, nil)
	require.NoError(t, err)
	defer h.Close()

	off, err := h.NewEntryOffset()
	require.NoError(t, err)
	assert.EqualValues(t, 0, off)
}

func TestNewEntryOffsetSingleRevisionZero(t *testing.T) {
	idx, _ := buildRevlogFixture([]fixtureRecord{
		{payload: zlibPayload([]byte("hello")), actualLen: 5, baseRev: 0, node: nodeOf(1)},
	}, true)
	h, err := openFixture(idx, nil)
	require.NoError(t, err)
	defer h.Close()

	off, err := h.NewEntryOffset()
	require.NoError(t, err)
	assert.EqualValues(t, len(zlibPayload([]byte("hello"))), off)
}

func TestOnRevisionAddedExtendsCatalog(t *testing.T) {
	idx, _ := buildRevlogFixture([]fixtureRecord{
		{payload: zlibPayload([]byte("hello")), actualLen: 5, baseRev: 0, node: nodeOf(1)},
	}, true)
	h, err := openFixture(idx, nil)
	require.NoError(t, err)
	defer h.Close()

	physOffset, err := OffsetFieldToInlineFileOffset(int64(len(zlibPayload([]byte("hello")))), h.Count())
	require.NoError(t, err)

	require.NoError(t, h.OnRevisionAdded(1, nodeOf(2), 1, physOffset))
	assert.Equal(t, 2, h.Count())
	assert.EqualValues(t, 1, h.catalog.baseRevisions[1])
	assert.EqualValues(t, physOffset, h.catalog.recordOffsets[1])
}

func TestOnRevisionAddedRejectsWrongIndex(t *testing.T) {
	idx, _ := buildRevlogFixture([]fixtureRecord{
		{payload: zlibPayload([]byte("hello")), actualLen: 5, baseRev: 0, node: nodeOf(1)},
	}, true)
	h, err := openFixture(idx, nil)
	require.NoError(t, err)
	defer h.Close()

	err = h.OnRevisionAdded(5, nodeOf(2), 0, 0)
	require.ErrorIs(t, err, ErrInconsistentAppend)
}

func TestOnRevisionAddedRejectsOutOfRangeBase(t *testing.T) {
	idx, _ := buildRevlogFixture([]fixtureRecord{
		{payload: zlibPayload([]byte("hello")), actualLen: 5, baseRev: 0, node: nodeOf(1)},
	}, true)
	h, err := openFixture(idx, nil)
	require.NoError(t, err)
	defer h.Close()

	err = h.OnRevisionAdded(1, nodeOf(2), 7, 0)
	require.ErrorIs(t, err, ErrInconsistentAppend)
}
