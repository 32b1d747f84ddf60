package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 7, NormalizeLimit(7))
}

func TestCursorRoundTrip(t *testing.T) {
	offset, err := ParseCursor(EncodeCursor(42))
	require.NoError(t, err)
	assert.Equal(t, 42, offset)

	offset, err = ParseCursor("")
	require.NoError(t, err)
	assert.Zero(t, offset)

	_, err = ParseCursor("not-base64!")
	assert.Error(t, err)
	_, err = ParseCursor(EncodeCursor(-1))
	assert.Error(t, err)
}

func TestSliceWalksPages(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	page, next, err := Slice(items, Params{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, page)
	require.NotEmpty(t, next)

	page, next, err = Slice(items, Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, page)

	page, next, err = Slice(items, Params{Limit: 2, Cursor: next})
	require.NoError(t, err)
	assert.Equal(t, []int{5}, page)
	assert.Empty(t, next)

	page, next, err = Slice(items, Params{Cursor: EncodeCursor(10)})
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Empty(t, next)
}

func TestParamsRequested(t *testing.T) {
	assert.False(t, Params{}.Requested())
	assert.True(t, Params{Limit: 3}.Requested())
	assert.True(t, Params{Cursor: "abc"}.Requested())
}
