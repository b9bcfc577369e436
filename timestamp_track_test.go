package jls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUTCTrackRejectsNonIncreasingSampleID(t *testing.T) {
	sig := &Signal{SignalID: 1, UTCDecimateFactor: 64}
	tr := newUTCTrack(sig)
	require.NoError(t, tr.add(nil, 10, 100))
	err := tr.add(nil, 10, 200)
	assert.ErrorIs(t, err, ErrSentinelParameterInvalid)
	err = tr.add(nil, 5, 300)
	assert.ErrorIs(t, err, ErrSentinelParameterInvalid)
}

func TestUTCTrackInterpolation(t *testing.T) {
	sig := &Signal{SignalID: 1}
	tr := &utcTrack{signal: sig, all: []UTCEntry{
		{SampleID: 0, Timestamp: 0},
		{SampleID: 100, Timestamp: 100 << 30},
	}}

	ts, err := tr.sampleIDToTimestamp(50)
	require.NoError(t, err)
	assert.Equal(t, Timestamp(50<<30), ts)

	sid, err := tr.timestampToSampleID(50 << 30)
	require.NoError(t, err)
	assert.Equal(t, int64(50), sid)
}

func TestUTCTrackClampsOutsideRecordedRange(t *testing.T) {
	sig := &Signal{SignalID: 1}
	tr := &utcTrack{signal: sig, all: []UTCEntry{
		{SampleID: 10, Timestamp: 10 << 30},
		{SampleID: 20, Timestamp: 20 << 30},
	}}

	ts, err := tr.sampleIDToTimestamp(0)
	require.NoError(t, err)
	assert.Equal(t, Timestamp(10<<30), ts)

	ts, err = tr.sampleIDToTimestamp(1000)
	require.NoError(t, err)
	assert.Equal(t, Timestamp(20<<30), ts)
}

func TestMulDiv64AvoidsOverflow(t *testing.T) {
	// tickSpan and sampleSpan both large enough that a naive a*b/c would
	// overflow an int64 before dividing.
	a, b, c := int64(1<<40), int64(1<<40), int64(1<<20)
	got := mulDiv64(a, b, c)
	assert.Equal(t, int64(1)<<60, got)
}

func TestMulDiv64HandlesNegatives(t *testing.T) {
	assert.Equal(t, int64(-5), mulDiv64(10, -5, 10))
	assert.Equal(t, int64(5), mulDiv64(-10, -5, 10))
}

func TestUTCPayloadRoundTrip(t *testing.T) {
	entries := []UTCEntry{{SampleID: 0, Timestamp: 0}, {SampleID: 64, Timestamp: 64 << 30}}
	payload := encodeUTCPayload(entries)
	got, err := decodeUTCPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}
