package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestamp_RFC3339WithOffset(t *testing.T) {
	ts, err := ParseTimestamp("2025-03-01T12:00:00+02:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), ts.Time)
	assert.Equal(t, time.UTC, ts.Location())
}

func TestParseTimestamp_LegacyNaiveIsUTC(t *testing.T) {
	ts, err := ParseTimestamp("2025-03-01T12:00:00.123456")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 3, 1, 12, 0, 0, 123456000, time.UTC), ts.Time)
}

func TestParseTimestamp_Invalid(t *testing.T) {
	_, err := ParseTimestamp("yesterday")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unparseable timestamp")
}

func TestTimestamp_JSONRoundTrip(t *testing.T) {
	in := NewTimestamp(time.Date(2025, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600)))
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.Equal(t, `"2025-01-02T02:04:05Z"`, string(data))

	var out Timestamp
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, in.Equal(out.Time))
}

func TestTimestamp_EmptyAndNull(t *testing.T) {
	var ts Timestamp
	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `""`, string(data))

	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
	require.NoError(t, json.Unmarshal([]byte(`""`), &ts))
	assert.True(t, ts.IsZero())
}

func TestFailureRecord_LatestAndActivity(t *testing.T) {
	first := NewTimestamp(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	last := NewTimestamp(time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC))

	rec := FailureRecord{FirstSeen: first}
	assert.Nil(t, rec.Latest())
	assert.Equal(t, "", rec.LatestError())
	assert.Equal(t, first, rec.Activity())

	rec.LastSeen = last
	rec.RecentOccurrences = []Occurrence{{Error: "old"}, {Error: "new"}}
	assert.Equal(t, "new", rec.LatestError())
	assert.Equal(t, last, rec.Activity())
}

func TestClassificationFor(t *testing.T) {
	assert.Equal(t, ClassificationBug, ClassificationFor(true))
	assert.Equal(t, ClassificationNotBug, ClassificationFor(false))
}
