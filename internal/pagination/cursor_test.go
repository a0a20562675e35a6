package pagination

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	ts := time.Date(2026, 2, 15, 10, 30, 0, 0, time.UTC)
	id := "hist_abc123"

	encoded := Encode(ts, id)
	assert.NotEmpty(t, encoded)

	cursor, err := Decode(encoded)
	require.NoError(t, err)
	require.NotNil(t, cursor)
	assert.Equal(t, ts, cursor.CreatedAt)
	assert.Equal(t, id, cursor.ID)
}

func TestEncodeDecode_PreservesNanos(t *testing.T) {
	ts := time.Date(2026, 2, 15, 10, 30, 0, 123456789, time.UTC)

	cursor, err := Decode(Encode(ts, "hist_1"))
	require.NoError(t, err)
	assert.True(t, cursor.CreatedAt.Equal(ts), "nanosecond precision must survive the round trip")
}

func TestDecode_Empty(t *testing.T) {
	cursor, err := Decode("")
	assert.NoError(t, err)
	assert.Nil(t, cursor)
}

func TestDecode_Invalid(t *testing.T) {
	_, err := Decode("not-base64!!!")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "invalid cursor")
}

func TestDecode_MalformedPayload(t *testing.T) {
	// Valid base64 but no | separator
	_, err := Decode("bm9waXBl") // "nopipe"
	assert.Error(t, err)
}

func TestDecode_MissingID(t *testing.T) {
	encoded := base64.URLEncoding.EncodeToString([]byte("1700000000000000000|"))
	_, err := Decode(encoded)
	assert.Error(t, err)
}

func TestDecode_NonNumericTimestamp(t *testing.T) {
	encoded := base64.URLEncoding.EncodeToString([]byte("abc|hist_1"))
	_, err := Decode(encoded)
	assert.Error(t, err)
}
