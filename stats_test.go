package jls

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunningStatsMatchesNaive(t *testing.T) {
	samples := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	s := newRunningStats()
	for _, v := range samples {
		s.Add(v)
	}
	entry := s.Entry()

	var sum float64
	for _, v := range samples {
		sum += v
	}
	mean := sum / float64(len(samples))
	var sumSq float64
	for _, v := range samples {
		sumSq += (v - mean) * (v - mean)
	}
	variance := sumSq / float64(len(samples))

	assert.InDelta(t, mean, entry.Mean, 1e-9)
	assert.InDelta(t, math.Sqrt(variance), entry.Std, 1e-9)
	assert.Equal(t, 2.0, entry.Min)
	assert.Equal(t, 9.0, entry.Max)
}

func TestRunningStatsEmptyIsNaN(t *testing.T) {
	entry := newRunningStats().Entry()
	assert.True(t, math.IsNaN(entry.Mean))
	assert.True(t, math.IsNaN(entry.Std))
}

func TestRunningStatsMergeMatchesDirectAccumulation(t *testing.T) {
	samples := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	direct := newRunningStats()
	for _, v := range samples {
		direct.Add(v)
	}

	a := newRunningStats()
	for _, v := range samples[:4] {
		a.Add(v)
	}
	b := newRunningStats()
	for _, v := range samples[4:] {
		b.Add(v)
	}
	a.Merge(b)

	assert.InDelta(t, direct.Entry().Mean, a.Entry().Mean, 1e-9)
	assert.InDelta(t, direct.Entry().Std, a.Entry().Std, 1e-9)
	assert.Equal(t, direct.Entry().Min, a.Entry().Min)
	assert.Equal(t, direct.Entry().Max, a.Entry().Max)
}

func TestRunningStatsMergeSummaryEntrySkipsNaNWindow(t *testing.T) {
	s := newRunningStats()
	s.mergeSummaryEntry(SummaryEntry{Mean: math.NaN(), Std: math.NaN(), Min: math.NaN(), Max: math.NaN()}, 10)
	assert.Equal(t, int64(0), s.count)
	s.mergeSummaryEntry(SummaryEntry{Mean: 5, Std: 0, Min: 5, Max: 5}, 3)
	assert.Equal(t, int64(3), s.count)
	assert.InDelta(t, 5.0, s.Entry().Mean, 1e-9)
}
