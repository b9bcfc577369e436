package jls

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkMetaPackUnpack(t *testing.T) {
	meta := makeChunkMeta(42, 7, streamUTC)
	signalID, level, kind := parseChunkMeta(meta)
	assert.Equal(t, uint8(42), signalID)
	assert.Equal(t, uint8(7), level)
	assert.Equal(t, streamUTC, kind)
}

func TestChunkWriteReadRoundTrip(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "chunk-*.jls")
	require.NoError(t, err)
	defer f.Close()

	cw := newChunkWriter(f, FileHeaderSize)
	off1, err := cw.append(TagData, 1, []byte("hello"), 0, 0)
	require.NoError(t, err)
	off2, err := cw.append(TagData, 1, []byte("world!!"), off1, 5)
	require.NoError(t, err)

	h1, p1, err := readChunkAt(f, off1)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(p1))
	assert.Equal(t, uint64(off2), h1.OffsetNext)

	h2, p2, err := readChunkAt(f, off2)
	require.NoError(t, err)
	assert.Equal(t, "world!!", string(p2))
	assert.Equal(t, uint64(0), h2.OffsetNext)

	var seen []string
	err = walkChain(f, off1, func(h chunkHeader, payload []byte) error {
		seen = append(seen, string(payload))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"hello", "world!!"}, seen)
}

func TestChunkReadDetectsPayloadCorruption(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "chunk-*.jls")
	require.NoError(t, err)
	defer f.Close()

	cw := newChunkWriter(f, 0)
	off, err := cw.append(TagData, 0, []byte("payload"), 0, 0)
	require.NoError(t, err)

	// Flip a bit inside the payload without touching the header.
	corrupt := []byte{0xff}
	_, err = f.WriteAt(corrupt, off+chunkHeaderSize)
	require.NoError(t, err)

	_, _, err = readChunkAt(f, off)
	assert.ErrorIs(t, err, ErrSentinelCrcMismatch)
}

func TestChunkPaddingKeepsRecordsEightByteAligned(t *testing.T) {
	for _, n := range []int{0, 1, 5, 8, 9, 100} {
		total := chunkHeaderSize + n + chunkPadding(n)
		assert.Equal(t, 0, total%8, "payload length %d", n)
	}
}
