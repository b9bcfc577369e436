package jls

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSampleLog(t *testing.T, path string) Signal {
	t.Helper()
	w, err := Create(path, WriterOptions{})
	require.NoError(t, err)

	require.NoError(t, w.SourceDef(Source{SourceID: 1, Name: "bench", Vendor: "em"}))

	sig := Signal{
		SignalID:             3,
		SourceID:             1,
		Kind:                 KindFSR,
		DataType:             DataTypeF32,
		SampleRate:           1000,
		SamplesPerData:       16,
		SummaryDecimateFactor: 4,
		Name:                 "torque",
		Units:                "N*m",
	}
	require.NoError(t, w.SignalDef(sig))

	const n = 256
	raw := make([]byte, sig.DataType.BytesForNSamples(n))
	for i := 0; i < n; i++ {
		require.NoError(t, sig.DataType.WriteSample(raw, i, float64(i)))
	}
	require.NoError(t, w.FSR(sig.SignalID, 0, raw, n))

	for i := 0; i < 4; i++ {
		require.NoError(t, w.UTC(sig.SignalID, int64(i*64), Timestamp(int64(i*64)<<30)))
	}

	require.NoError(t, w.Annotation(sig.SignalID, Annotation{
		Timestamp:      10,
		AnnotationType: AnnotationText,
		StorageType:    StorageString,
		Payload:        []byte("torque spike"),
	}))

	require.NoError(t, w.Close())
	return sig
}

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "round-trip.jls")
	sig := writeSampleLog(t, path)

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	sources := r.Sources()
	require.Len(t, sources, 1)
	assert.Equal(t, "bench", sources[0].Name)

	signals := r.Signals()
	require.Len(t, signals, 1)
	assert.Equal(t, sig.SignalID, signals[0].SignalID)
	assert.Equal(t, uint32(16), signals[0].SamplesPerData)

	values, err := r.FSR(sig.SignalID, 0, 256)
	require.NoError(t, err)
	require.Len(t, values, 256)
	for i, v := range values {
		assert.InDelta(t, float64(i), v, 1e-3)
	}

	n, err := r.TmapLength(sig.SignalID)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	e, err := r.TmapGet(sig.SignalID, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(64), e.SampleID)

	var gotAnnotations []Annotation
	require.NoError(t, r.Annotations(sig.SignalID, math.MinInt64, func(a Annotation) error {
		gotAnnotations = append(gotAnnotations, a)
		return nil
	}))
	require.Len(t, gotAnnotations, 1)
	assert.Equal(t, "torque spike", string(gotAnnotations[0].Payload))

	stats, err := r.FSRStatistics(sig.SignalID, 0, 16, 16)
	require.NoError(t, err)
	require.Len(t, stats, 16)
	for i, s := range stats {
		lo := i * 16
		var want float64
		for j := 0; j < 16; j++ {
			want += float64(lo + j)
		}
		want /= 16
		assert.InDelta(t, want, s.Mean, 1e-2)
	}
}

func TestAnnotationsFromTimestampFiltersEarlierEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotations-from.jls")
	w, err := Create(path, WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.SourceDef(Source{SourceID: 1, Name: "bench"}))
	sig := Signal{SignalID: 1, Kind: KindFSR, DataType: DataTypeF32, SampleRate: 1000}
	require.NoError(t, w.SignalDef(sig))
	require.NoError(t, w.Annotation(sig.SignalID, Annotation{Timestamp: 100, AnnotationType: AnnotationText, StorageType: StorageString, Payload: []byte("early")}))
	require.NoError(t, w.Annotation(sig.SignalID, Annotation{Timestamp: 200, AnnotationType: AnnotationText, StorageType: StorageString, Payload: []byte("late")}))
	require.NoError(t, w.Close())

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	var got []Annotation
	require.NoError(t, r.Annotations(sig.SignalID, 200, func(a Annotation) error {
		got = append(got, a)
		return nil
	}))
	require.Len(t, got, 1)
	assert.Equal(t, "late", string(got[0].Payload))
}

func TestFSRReadEntirelyBeyondWrittenRangeIsParameterInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gap.jls")
	sig := writeSampleLog(t, path)

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	_, err = r.FSR(sig.SignalID, 1000, 4)
	assert.ErrorIs(t, err, ErrSentinelParameterInvalid)

	_, err = r.FSRStatistics(sig.SignalID, 1000, 16, 4)
	assert.ErrorIs(t, err, ErrSentinelParameterInvalid)
}

func TestFSRReadOverlappingWrittenRangeFillsGapsWithNaN(t *testing.T) {
	path := filepath.Join(t.TempDir(), "overlap.jls")
	sig := writeSampleLog(t, path)

	r, err := Open(path, ReaderOptions{})
	require.NoError(t, err)
	defer r.Close()

	values, err := r.FSR(sig.SignalID, 250, 10)
	require.NoError(t, err)
	require.Len(t, values, 10)
	for i, v := range values {
		if i < 6 {
			assert.False(t, math.IsNaN(v))
		} else {
			assert.True(t, math.IsNaN(v), "samples past the written range should still read as NaN")
		}
	}
}

func TestOpenRejectsMissingRootIndexWithoutRecovery(t *testing.T) {
	path := filepath.Join(t.TempDir(), "truncated.jls")
	w, err := Create(path, WriterOptions{})
	require.NoError(t, err)
	require.NoError(t, w.SourceDef(Source{SourceID: 1, Name: "src"}))
	sig := Signal{SignalID: 1, Kind: KindFSR, DataType: DataTypeF32, SampleRate: 10}
	require.NoError(t, w.SignalDef(sig))
	raw := make([]byte, sig.DataType.BytesForNSamples(4))
	require.NoError(t, w.FSR(sig.SignalID, 0, raw, 4))
	require.NoError(t, w.Flush())
	// Deliberately skip Close so the root index offset is never patched,
	// simulating a crash mid-write.
	require.NoError(t, w.f.Close())

	_, err = Open(path, ReaderOptions{})
	assert.Error(t, err)

	r, err := Open(path, ReaderOptions{AllowRecovery: true})
	require.NoError(t, err)
	defer r.Close()

	signals := r.Signals()
	require.Len(t, signals, 1)
	values, err := r.FSR(sig.SignalID, 0, 4)
	require.NoError(t, err)
	for _, v := range values {
		assert.Equal(t, 0.0, v)
	}
}
