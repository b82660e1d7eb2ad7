package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSize(t *testing.T) {
	assert.Equal(t, DefaultPageSize, Pagination{}.Size())
	assert.Equal(t, 7, Pagination{PageSize: 7}.Size())
	assert.Equal(t, MaxPageSize, Pagination{PageSize: 10_000}.Size())
}

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2026-01-02T03:04:05Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPage(t *testing.T) {
	a, b, c := 1, 2, 3
	rows := []*int{&a, &b, &c}
	cursorOf := func(v *int) Cursor { return Cursor{ID: string(rune('0' + *v))} }

	page, info, err := Page(rows, 2, cursorOf)
	require.NoError(t, err)
	assert.Len(t, page, 2)
	assert.True(t, info.HasMore)

	next, err := DecodeCursor(info.NextPageToken)
	require.NoError(t, err)
	assert.Equal(t, "2", next.ID)

	page, info, err = Page(rows, 3, cursorOf)
	require.NoError(t, err)
	assert.Len(t, page, 3)
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
}
