package pagination_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheProjectSEO/School-Management-Software-sub003/pkg/db/pagination"
)

func TestCursorRoundTrip(t *testing.T) {
	token, err := pagination.EncodeCursor(pagination.Cursor{
		ID:        "1234567890123456789",
		CreatedAt: "2026-06-01T08:00:00Z",
	})
	require.NoError(t, err)

	cursor, err := pagination.DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "1234567890123456789", cursor.ID)
	assert.Equal(t, "2026-06-01T08:00:00Z", cursor.CreatedAt)
}

func TestDecodeCursorRejectsGarbage(t *testing.T) {
	_, err := pagination.DecodeCursor("not base64 at all!!!")
	assert.Error(t, err)
}

type row struct{ id string }

func TestBuildCursorPageInfo(t *testing.T) {
	rows := []*row{{id: "a"}, {id: "b"}, {id: "c"}}

	info, page := pagination.BuildCursorPageInfo(rows, 2, func(r *row) string { return r.id })
	assert.True(t, info.HasMore)
	assert.Equal(t, "b", info.NextPageToken)
	assert.Len(t, page, 2)

	info, page = pagination.BuildCursorPageInfo(page, 2, func(r *row) string { return r.id })
	assert.False(t, info.HasMore)
	assert.Len(t, page, 2)

	info, page = pagination.BuildCursorPageInfo([]*row{}, 2, func(r *row) string { return r.id })
	assert.False(t, info.HasMore)
	assert.Empty(t, info.NextPageToken)
	assert.Empty(t, page)
}
