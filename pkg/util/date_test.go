package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeRFC3339(t *testing.T) {
	s := "2024-10-10T10:10:10Z"
	got, ok := ParseTime(s)
	require.True(t, ok)
	assert.Equal(t, s, got.UTC().Format(time.RFC3339))
}

func TestParseTimeDateOnly(t *testing.T) {
	got, ok := ParseTime("2024-06-28")
	require.True(t, ok)
	assert.Equal(t, time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), got)
}

func TestParseTimeUnix(t *testing.T) {
	ts := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC).Unix()
	got, ok := ParseTime(strconv.FormatInt(ts, 10))
	require.True(t, ok)
	assert.Equal(t, ts, got.Unix())
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("IST", 5*3600+1800)
	got := Day(time.Date(2024, 6, 29, 2, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2024, 6, 28, 0, 0, 0, 0, time.UTC), got)
}

func TestNormalizeSymbol(t *testing.T) {
	got, ok := NormalizeSymbol("  reliance.ns ")
	require.True(t, ok)
	assert.Equal(t, "RELIANCE.NS", got)

	got, ok = NormalizeSymbol("M&M")
	require.True(t, ok)
	assert.Equal(t, "M&M", got)

	for _, bad := range []string{"", "   ", "AAPL;DROP", "A B"} {
		_, ok := NormalizeSymbol(bad)
		assert.False(t, ok, bad)
	}
}
