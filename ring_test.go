package jls

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCmdRingFIFO(t *testing.T) {
	r := newCmdRing(4, false)
	for i := 0; i < 3; i++ {
		pushed, err := r.Push(command{kind: cmdFlush, flags: uint32(i)})
		require.NoError(t, err)
		assert.True(t, pushed)
	}
	for i := 0; i < 3; i++ {
		cmd, ok := r.Pop()
		require.True(t, ok)
		assert.Equal(t, uint32(i), cmd.flags)
	}
}

func TestCmdRingDropsSampleCommandsOnOverflow(t *testing.T) {
	r := newCmdRing(1, true)
	pushed, err := r.Push(command{kind: cmdFSRSamples, fsrSamples: &fsrSamplesCmd{signalID: 1}})
	require.NoError(t, err)
	assert.True(t, pushed)

	pushed, err = r.Push(command{kind: cmdFSRSamples, fsrSamples: &fsrSamplesCmd{signalID: 2}})
	require.NoError(t, err)
	assert.True(t, pushed, "incoming sample command should be queued, evicting the oldest")
	assert.Equal(t, uint64(1), r.Dropped())

	cmd, ok := r.Pop()
	require.True(t, ok)
	assert.Equal(t, uint16(2), cmd.fsrSamples.signalID, "the oldest queued sample command should have been discarded")
}

func TestCmdRingNeverDropsControlCommands(t *testing.T) {
	r := newCmdRing(1, true)
	_, err := r.Push(command{kind: cmdFSRSamples, fsrSamples: &fsrSamplesCmd{}})
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		time.Sleep(10 * time.Millisecond)
		_, _ = r.Pop()
	}()

	pushed, err := r.Push(command{kind: cmdFlush})
	require.NoError(t, err)
	assert.True(t, pushed, "a control command must block rather than drop")
	wg.Wait()
}

func TestCmdRingPushAfterCloseFails(t *testing.T) {
	r := newCmdRing(2, false)
	r.Close()
	_, err := r.Push(command{kind: cmdFlush})
	assert.ErrorIs(t, err, ErrSentinelAbort)
}
