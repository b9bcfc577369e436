package jls

import "math"

// runningStats accumulates mean, variance, min, and max over a stream of
// float64 samples in O(1) space and O(1) time per sample, using Welford's
// online algorithm. Two runningStats windows can be combined with Merge
// without revisiting either window's samples, which is what lets a summary
// level be built purely from the level below it.
type runningStats struct {
	count int64
	mean  float64
	m2    float64 // sum of squared distances from the running mean
	min   float64
	max   float64
}

func newRunningStats() runningStats {
	return runningStats{min: math.Inf(1), max: math.Inf(-1)}
}

// Add folds one sample into the running statistics.
func (s *runningStats) Add(x float64) {
	s.count++
	delta := x - s.mean
	s.mean += delta / float64(s.count)
	delta2 := x - s.mean
	s.m2 += delta * delta2
	if x < s.min {
		s.min = x
	}
	if x > s.max {
		s.max = x
	}
}

// Variance returns the population variance of the samples seen so far.
func (s runningStats) Variance() float64 {
	if s.count == 0 {
		return 0
	}
	return s.m2 / float64(s.count)
}

// Std returns the population standard deviation of the samples seen so far.
func (s runningStats) Std() float64 {
	return math.Sqrt(s.Variance())
}

// Entry renders the accumulated statistics as a SummaryEntry. A window that
// never saw a sample summarizes to all-NaN, matching the skip/gap semantics
// described for summary levels.
func (s runningStats) Entry() SummaryEntry {
	if s.count == 0 {
		return SummaryEntry{Mean: math.NaN(), Std: math.NaN(), Min: math.NaN(), Max: math.NaN()}
	}
	return SummaryEntry{Mean: s.mean, Std: s.Std(), Min: s.min, Max: s.max}
}

// Merge combines other into s as if every sample folded into other had been
// folded into s directly, using the parallel variant of Welford's algorithm.
// Used to build a level-k+1 summary entry from a run of level-k entries
// without rereading level-k's raw samples.
func (s *runningStats) Merge(other runningStats) {
	if other.count == 0 {
		return
	}
	if s.count == 0 {
		*s = other
		return
	}
	n1, n2 := float64(s.count), float64(other.count)
	delta := other.mean - s.mean
	totalCount := n1 + n2

	newMean := s.mean + delta*n2/totalCount
	newM2 := s.m2 + other.m2 + delta*delta*n1*n2/totalCount

	s.mean = newMean
	s.m2 = newM2
	s.count += other.count
	if other.min < s.min {
		s.min = other.min
	}
	if other.max > s.max {
		s.max = other.max
	}
}

// mergeSummaryEntry folds a lower-level SummaryEntry plus its sample count
// into s, used when cascading a level-k summary array into a level-k+1
// summary entry. A NaN entry (an empty lower-level window) contributes
// nothing.
func (s *runningStats) mergeSummaryEntry(e SummaryEntry, n int64) {
	if n == 0 || math.IsNaN(e.Mean) {
		return
	}
	var sub runningStats
	sub.count = n
	sub.mean = e.Mean
	sub.m2 = e.Std * e.Std * float64(n)
	sub.min = e.Min
	sub.max = e.Max
	s.Merge(sub)
}
