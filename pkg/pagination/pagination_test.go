package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, DefaultLimit, NormalizeLimit(-4))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+50))
	assert.Equal(t, 8, LimitWithBuffer(7))
}

func TestCursorRoundTrip(t *testing.T) {
	id := uuid.New()
	created := time.Date(2026, 3, 14, 9, 26, 53, 589000000, time.UTC)

	parsed, err := ParseCursor(EncodeCursor(Cursor{CreatedAt: created, ID: id}))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.True(t, parsed.CreatedAt.Equal(created))
	assert.Equal(t, id, parsed.ID)
}

func TestValueCursorRoundTrip(t *testing.T) {
	id := uuid.New()

	parsed, err := ParseValueCursor(EncodeValueCursor(ValueCursor{Value: 129900, ID: id}))
	require.NoError(t, err)
	require.NotNil(t, parsed)
	assert.Equal(t, int64(129900), parsed.Value)
	assert.Equal(t, id, parsed.ID)
}

func TestParseCursorEmptyAndInvalid(t *testing.T) {
	parsed, err := ParseCursor("  ")
	require.NoError(t, err)
	assert.Nil(t, parsed)

	_, err = ParseCursor("%%%")
	require.Error(t, err)

	_, err = ParseValueCursor(EncodeCursor(Cursor{CreatedAt: time.Now(), ID: uuid.New()}))
	require.Error(t, err)
}

func TestTrim(t *testing.T) {
	fetched := LimitWithBuffer(3)

	rows, more := Trim([]int{1, 2, 3, 4}, fetched)
	assert.True(t, more)
	assert.Equal(t, []int{1, 2, 3}, rows)

	rows, more = Trim([]int{1, 2}, fetched)
	assert.False(t, more)
	assert.Equal(t, []int{1, 2}, rows)

	_, err := ParseCursor(base64URL("no-separator"))
	assert.ErrorIs(t, err, errCursorShape)
}

func base64URL(s string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(s))
}
