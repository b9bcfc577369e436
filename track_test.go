package jls

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSRTrackFlushDataProducesIndexEntry(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "track-*.jls")
	require.NoError(t, err)
	defer f.Close()

	sig := &Signal{
		SignalID:              1,
		DataType:              DataTypeF32,
		SamplesPerData:        4,
		SampleDecimateFactor:  4,
		EntriesPerSummary:     2,
		SummaryDecimateFactor: 2,
	}
	tr := newFSRTrack(sig)
	cw := newChunkWriter(f, 0)

	for i := 0; i < 4; i++ {
		require.NoError(t, tr.addRaw(cw, int64(i), float64(i), false))
	}

	require.Len(t, tr.dataIndexEntries, 1)
	assert.Equal(t, int64(0), tr.dataIndexEntries[0].FirstID)
	assert.Equal(t, uint32(4), tr.dataIndexEntries[0].Count)

	require.Len(t, tr.levels, maxCascadeLevel)
	assert.Equal(t, int64(0), tr.levels[0].firstEntryID)
	require.Len(t, tr.levels[0].pending, 1)
	assert.InDelta(t, 1.5, tr.levels[0].pending[0].Mean, 1e-9)
}

func TestFSRTrackCascadesToLevelTwo(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "track-*.jls")
	require.NoError(t, err)
	defer f.Close()

	sig := &Signal{
		SignalID:              1,
		DataType:              DataTypeF32,
		SamplesPerData:        2,
		SampleDecimateFactor:  2,
		EntriesPerSummary:     10,
		SummaryDecimateFactor: 2,
	}
	tr := newFSRTrack(sig)
	cw := newChunkWriter(f, 0)

	// A nonzero SummaryDecimateFactor keeps the cascade growing until
	// maxCascadeLevel; only the first two levels accumulate enough units to
	// emit an entry from just 4 raw samples.
	require.Len(t, tr.levels, maxCascadeLevel)

	for i := 0; i < 4; i++ {
		require.NoError(t, tr.addRaw(cw, int64(i), float64(i), false))
	}

	// 4 raw samples -> 2 level-1 entries (mean 0.5, mean 2.5) -> 1 level-2 entry.
	require.Len(t, tr.levels[1].pending, 1)
	assert.InDelta(t, 1.5, tr.levels[1].pending[0].Mean, 1e-9)
	assert.Empty(t, tr.levels[2].pending)
}

func TestFSRTrackFlushRollsPartialSummaryAccumulator(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "track-*.jls")
	require.NoError(t, err)
	defer f.Close()

	sig := &Signal{
		SignalID:              1,
		DataType:              DataTypeF32,
		SamplesPerData:        4,
		SampleDecimateFactor:  4,
		EntriesPerSummary:     2,
		SummaryDecimateFactor: 2,
	}
	tr := newFSRTrack(sig)
	cw := newChunkWriter(f, 0)

	// 3 raw samples is short of the level-0 unitsPerEntry of 4, so nothing
	// rolls up on addRaw alone.
	for i := 0; i < 3; i++ {
		require.NoError(t, tr.addRaw(cw, int64(i), float64(i), false))
	}
	assert.Empty(t, tr.levels[0].pending)
	assert.Equal(t, uint32(3), tr.levels[0].accUnits)

	require.NoError(t, tr.flushPartialLevels(cw))

	require.Len(t, tr.levels[0].pending, 1, "the short tail window must still emit an entry")
	assert.Equal(t, int64(0), tr.levels[0].firstEntryID)
	assert.InDelta(t, 1.0, tr.levels[0].pending[0].Mean, 1e-9)
	assert.Equal(t, uint32(0), tr.levels[0].accUnits)

	require.Len(t, tr.levels[1].pending, 1, "the partial roll cascades upward")
	assert.Equal(t, uint32(0), tr.levels[1].accUnits)
}

func TestFSRTrackFlushEmitsPartialBuffer(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "track-*.jls")
	require.NoError(t, err)
	defer f.Close()

	sig := &Signal{SignalID: 1, DataType: DataTypeF32, SamplesPerData: 16}
	tr := newFSRTrack(sig)
	cw := newChunkWriter(f, 0)

	require.NoError(t, tr.addRaw(cw, 0, 7, false))
	assert.Empty(t, tr.dataIndexEntries)

	require.NoError(t, tr.flush(cw))
	require.Len(t, tr.dataIndexEntries, 1)
	assert.Equal(t, uint32(1), tr.dataIndexEntries[0].Count)
}
