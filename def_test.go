package jls

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceDefRoundTrip(t *testing.T) {
	s := Source{SourceID: 9, Name: "imu", Vendor: "em", Model: "x1", Version: "1.0", SerialNumber: "sn-001"}
	got, err := decodeSourceDef(encodeSourceDef(s))
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSourceDefRoundTripEmptyStrings(t *testing.T) {
	s := Source{SourceID: 0}
	got, err := decodeSourceDef(encodeSourceDef(s))
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestSignalDefRoundTrip(t *testing.T) {
	s := Signal{
		SignalID:                 5,
		SourceID:                 1,
		Kind:                     KindFSR,
		DataType:                 DataType{Base: BaseFloat, BitWidth: 32},
		SampleRate:               2000.5,
		SamplesPerData:           512,
		SampleDecimateFactor:     512,
		EntriesPerSummary:        256,
		SummaryDecimateFactor:    8,
		AnnotationDecimateFactor: 50,
		UTCDecimateFactor:        32,
		SampleIDOffset:           -100,
		Name:                     "vibration",
		Units:                    "g",
		Compression:              CompressionZSTD,
		OmitData:                 true,
	}
	got, err := decodeSignalDef(encodeSignalDef(s))
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestIndexPayloadRoundTrip(t *testing.T) {
	entries := []indexRecord{
		{FirstID: 0, Count: 16, Offset: 100, PayloadLength: 64},
		{FirstID: 16, Count: 16, Offset: 200, PayloadLength: 64},
	}
	got, err := decodeIndexPayload(encodeIndexPayload(entries))
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestIndexPayloadRoundTripEmpty(t *testing.T) {
	got, err := decodeIndexPayload(encodeIndexPayload(nil))
	require.NoError(t, err)
	assert.Empty(t, got)
}
