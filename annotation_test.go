package jls

import (
	"math"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnnotationPayloadRoundTrip(t *testing.T) {
	a := Annotation{
		Timestamp:      12345,
		Y:              3.5,
		AnnotationType: AnnotationVMarker,
		GroupID:        7,
		StorageType:    StorageJSON,
		Payload:        []byte(`{"note":"gear shift"}`),
	}
	payload := encodeAnnotationPayload(a)
	got, err := decodeAnnotationPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, a, got)
}

func TestAnnotationPayloadRoundTripNaNY(t *testing.T) {
	a := Annotation{Timestamp: 1, Y: float32(math.NaN()), AnnotationType: AnnotationUser}
	payload := encodeAnnotationPayload(a)
	got, err := decodeAnnotationPayload(payload)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(float64(got.Y)))
}

func TestAnnotationTrackChainsMultipleEntries(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "ann-*.jls")
	require.NoError(t, err)
	defer f.Close()

	sig := &Signal{SignalID: 2}
	tr := newAnnotationTrack(sig)
	cw := newChunkWriter(f, FileHeaderSize)

	require.NoError(t, tr.add(cw, Annotation{Timestamp: 1, StorageType: StorageString, Payload: []byte("a")}))
	require.NoError(t, tr.add(cw, Annotation{Timestamp: 2, StorageType: StorageString, Payload: []byte("b")}))

	var seen []string
	err = walkChain(f, tr.chainHead, func(h chunkHeader, payload []byte) error {
		a, err := decodeAnnotationPayload(payload)
		require.NoError(t, err)
		seen = append(seen, string(a.Payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, seen)
}
