package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "hello", TruncateRunes("hello", 10))
	assert.Equal(t, "hello", TruncateRunes("hello", 5))
	assert.Equal(t, "hell…", TruncateRunes("hello world", 5))
	assert.Equal(t, "hello", TruncateRunes("hello", 0))

	// Counted in runes, not bytes.
	assert.Equal(t, "üüü", TruncateRunes("üüü", 3))
	assert.Equal(t, "üü…", TruncateRunes("üüüü", 3))
}

func TestParseTimeRange(t *testing.T) {
	from, to, err := ParseTimeRange("", "")
	require.NoError(t, err)
	assert.Nil(t, from)
	assert.Nil(t, to)

	from, to, err = ParseTimeRange("2026-08-01T00:00:00Z", " 2026-08-31T23:59:59Z ")
	require.NoError(t, err)
	require.NotNil(t, from)
	require.NotNil(t, to)
	assert.Equal(t, time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC), from.UTC())
	assert.Equal(t, time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC), to.UTC())

	_, _, err = ParseTimeRange("yesterday", "")
	assert.Error(t, err)
}
