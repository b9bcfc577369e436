package jls

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyPreservesSignalsAndAnnotations(t *testing.T) {
	dir := t.TempDir()
	srcPath := filepath.Join(dir, "src.jls")
	sig := writeSampleLog(t, srcPath)

	dstPath := filepath.Join(dir, "dst.jls")
	var messages []string
	var lastFraction float64
	err := Copy(srcPath, dstPath, CopyOptions{
		Message:  func(m string) { messages = append(messages, m) },
		Progress: func(f float64) { lastFraction = f },
	})
	require.NoError(t, err)
	assert.NotEmpty(t, messages)
	assert.Equal(t, 1.0, lastFraction)

	src, err := Open(srcPath, ReaderOptions{})
	require.NoError(t, err)
	defer src.Close()
	dst, err := Open(dstPath, ReaderOptions{})
	require.NoError(t, err)
	defer dst.Close()

	assert.Equal(t, src.Sources(), dst.Sources())
	assert.Equal(t, src.Signals(), dst.Signals())

	srcValues, err := src.FSR(sig.SignalID, 0, 256)
	require.NoError(t, err)
	dstValues, err := dst.FSR(sig.SignalID, 0, 256)
	require.NoError(t, err)
	assert.Equal(t, srcValues, dstValues)

	srcN, _ := src.TmapLength(sig.SignalID)
	dstN, _ := dst.TmapLength(sig.SignalID)
	require.Equal(t, srcN, dstN)
	for i := 0; i < srcN; i++ {
		se, err := src.TmapGet(sig.SignalID, i)
		require.NoError(t, err)
		de, err := dst.TmapGet(sig.SignalID, i)
		require.NoError(t, err)
		assert.Equal(t, se, de)
	}

	var srcAnns, dstAnns []Annotation
	require.NoError(t, src.Annotations(sig.SignalID, math.MinInt64, func(a Annotation) error {
		srcAnns = append(srcAnns, a)
		return nil
	}))
	require.NoError(t, dst.Annotations(sig.SignalID, math.MinInt64, func(a Annotation) error {
		dstAnns = append(dstAnns, a)
		return nil
	}))
	assert.Equal(t, srcAnns, dstAnns)
}

func TestCopyFailsWhenSourceMissing(t *testing.T) {
	dir := t.TempDir()
	err := Copy(filepath.Join(dir, "nope.jls"), filepath.Join(dir, "dst.jls"), CopyOptions{})
	assert.Error(t, err)
}
