package revlog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildCatalogEmptyIndexIsInline(t *testing.T) {
	h, err := openFixture([]byte{}, nil)
	require.NoError(t, err)
	defer h.Close()

	assert.Equal(t, 0, h.Count())
	assert.True(t, h.Inline())
}

func TestBuildCatalogInlineOffsets(t *testing.T) {
	records := []fixtureRecord{
		{payload: zlibPayload([]byte("hello")), actualLen: 5, baseRev: 0, node: nodeOf(1)},
		{payload: verbatimPayload([]byte("ab")), actualLen: 2, baseRev: 1, node: nodeOf(2)},
	}
	idx, _ := buildRevlogFixture(records, true)
	h, err := openFixture(idx, nil)
	require.NoError(t, err)
	defer h.Close()

	require.Equal(t, 2, h.Count())
	require.NotNil(t, h.catalog.recordOffsets)
	assert.EqualValues(t, 0, h.catalog.recordOffsets[0])
	assert.EqualValues(t, recordSize+int64(len(records[0].payload)), h.catalog.recordOffsets[1])
}

func TestBuildCatalogSeparateLayoutUsesPureArithmetic(t *testing.T) {
	records := []fixtureRecord{
		{payload: zlibPayload([]byte("hello")), actualLen: 5, baseRev: 0, node: nodeOf(1)},
		{payload: verbatimPayload([]byte("ab")), actualLen: 2, baseRev: 1, node: nodeOf(2)},
	}
	idx, data := buildRevlogFixture(records, false)
	h, err := openFixture(idx, data)
	require.NoError(t, err)
	defer h.Close()

	assert.Nil(t, h.catalog.recordOffsets)
	assert.EqualValues(t, recordSize, h.catalog.recordOffsetOf(1))
	assert.False(t, h.Inline())
}

func TestBaseMonotonicity(t *testing.T) {
	records := []fixtureRecord{
		{payload: zlibPayload([]byte("one")), actualLen: 3, baseRev: 0, node: nodeOf(1)},
		{payload: verbatimPayload([]byte("tw")), actualLen: 2, baseRev: 0, node: nodeOf(2)},
		{payload: verbatimPayload([]byte("thr")), actualLen: 3, baseRev: 2, node: nodeOf(3)},
	}
	idx, _ := buildRevlogFixture(records, true)
	h, err := openFixture(idx, nil)
	require.NoError(t, err)
	defer h.Close()

	for ri := 0; ri < h.Count(); ri++ {
		b := h.catalog.baseRevisions[ri]
		assert.GreaterOrEqual(t, b, int32(0))
		assert.LessOrEqual(t, int(b), ri)
	}
}
