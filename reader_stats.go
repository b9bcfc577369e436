package jls

import "math"

// FSRStatistics returns length windows of signalID's statistics, each
// covering increment raw samples starting at start + i*increment. A window
// of exactly one raw sample (increment == 1) is always exact. For wider
// windows, the portion of the window that aligns to a summary level's entry
// boundaries is served by merging that level's precomputed entries; any
// unaligned leading or trailing remainder is folded in exactly from raw
// samples. This mirrors the write-time cascade: a reader descends to the
// deepest level whose entries evenly tile part of the window, rather than
// recomputing every point from raw data.
func (r *Reader) FSRStatistics(signalID uint16, start int64, increment int64, length int) ([]SummaryEntry, error) {
	cat, err := r.catalog("fsr_statistics", signalID)
	if err != nil {
		return nil, err
	}
	if increment <= 0 || length < 0 {
		return nil, newErr("fsr_statistics", ErrParameterInvalid, nil)
	}
	if length > 0 {
		lo, hi, ok := cat.dataBounds()
		end := start + int64(length)*increment
		if !ok || start >= hi || end <= lo {
			return nil, newErr("fsr_statistics", ErrParameterInvalid, nil)
		}
	}

	out := make([]SummaryEntry, length)
	for i := 0; i < length; i++ {
		lo := start + int64(i)*increment
		hi := lo + increment
		if increment == 1 {
			out[i] = r.rawWindow(cat, lo, hi)
			continue
		}
		out[i] = r.windowStats(cat, lo, hi)
	}
	return out, nil
}

// rawWindow computes a SummaryEntry directly from raw samples in [lo, hi).
func (r *Reader) rawWindow(cat *signalCatalog, lo, hi int64) SummaryEntry {
	if hi <= lo {
		return newRunningStats().Entry()
	}
	raw, err := r.fsrRaw(cat, lo, int(hi-lo))
	if err != nil {
		return newRunningStats().Entry()
	}
	stats := newRunningStats()
	for _, v := range raw {
		if !math.IsNaN(v) {
			stats.Add(v)
		}
	}
	return stats.Entry()
}

// fsrRaw reads length raw samples of cat starting at sample_id start,
// promoted to float64, gaps as NaN. It is FSR's logic, duplicated here
// (rather than called through the public signal_id lookup path) since it is
// also the inner loop of windowStats' unaligned-remainder handling.
func (r *Reader) fsrRaw(cat *signalCatalog, start int64, length int) ([]float64, error) {
	out := make([]float64, length)
	for i := range out {
		out[i] = math.NaN()
	}
	entries := cat.dataEntries
	end := start + int64(length)
	for _, e := range entries {
		chunkLo, chunkHi := e.FirstID, e.FirstID+int64(e.Count)
		if chunkHi <= start || chunkLo >= end {
			continue
		}
		_, raw, err := readChunkAt(r.f, int64(e.Offset))
		if err != nil {
			continue
		}
		decompressed, err := decompressPayload(cat.signal.Compression, raw)
		if err != nil {
			continue
		}
		firstID, n, runs, samples, err := decodeDataPayload(decompressed)
		if err != nil {
			continue
		}
		lo := start
		if firstID > lo {
			lo = firstID
		}
		hi := end
		if firstID+int64(n) < hi {
			hi = firstID + int64(n)
		}
		for sid := lo; sid < hi; sid++ {
			localIdx := int(sid - firstID)
			v, err := cat.signal.DataType.ReadSample(samples, localIdx)
			if err != nil {
				continue
			}
			if cat.signal.DataType.Base == BaseFloat && isFillIndex(runs, uint32(localIdx)) {
				v = math.NaN()
			}
			out[sid-start] = v
		}
	}
	return out, nil
}

// levelUnitSpan returns how many raw samples one entry at level (1-based)
// spans.
func levelUnitSpan(sig Signal, level int) int64 {
	span := int64(sig.SampleDecimateFactor)
	for l := 2; l <= level; l++ {
		span *= int64(sig.SummaryDecimateFactor)
	}
	return span
}

// windowStats serves [lo, hi) by finding the deepest summary level whose
// entries evenly tile some inner sub-range of the window, merging those
// entries, and folding in the unaligned leading/trailing remainder with
// exact raw accumulation. If no level's span fits within the window at all,
// the whole window is computed exactly from raw samples.
func (r *Reader) windowStats(cat *signalCatalog, lo, hi int64) SummaryEntry {
	best := 0
	for l := len(cat.levelEntries); l >= 1; l-- {
		if levelUnitSpan(cat.signal, l) <= hi-lo {
			best = l
			break
		}
	}
	if best == 0 {
		return r.rawWindow(cat, lo, hi)
	}

	span := levelUnitSpan(cat.signal, best)
	alignedLo, alignedHi := ceilTo(lo, span), floorTo(hi, span)

	acc := newRunningStats()
	haveAny := false
	if alignedHi > alignedLo {
		for _, e := range cat.levelEntries[best-1] {
			chunkLo, chunkHi := e.FirstID, e.FirstID+int64(e.Count)*span
			if chunkHi <= alignedLo || chunkLo >= alignedHi {
				continue
			}
			_, payload, err := readChunkAt(r.f, int64(e.Offset))
			if err != nil {
				continue
			}
			firstEntryID, summaries, err := decodeSummaryPayload(payload)
			if err != nil {
				continue
			}
			for i, se := range summaries {
				unitLo := firstEntryID + int64(i)*span
				if unitLo < alignedLo || unitLo+span > alignedHi {
					continue
				}
				acc.mergeSummaryEntry(se, span)
				haveAny = true
			}
		}
	} else {
		alignedLo, alignedHi = lo, lo
	}

	if alignedLo > lo {
		if raw, err := r.fsrRaw(cat, lo, int(alignedLo-lo)); err == nil {
			for _, v := range raw {
				if !math.IsNaN(v) {
					acc.Add(v)
					haveAny = true
				}
			}
		}
	}
	if alignedHi < hi {
		if raw, err := r.fsrRaw(cat, alignedHi, int(hi-alignedHi)); err == nil {
			for _, v := range raw {
				if !math.IsNaN(v) {
					acc.Add(v)
					haveAny = true
				}
			}
		}
	}

	if !haveAny {
		return newRunningStats().Entry()
	}
	return acc.Entry()
}

func ceilTo(v, span int64) int64 {
	if span <= 0 {
		return v
	}
	if r := v % span; r != 0 {
		return v + (span - r)
	}
	return v
}

func floorTo(v, span int64) int64 {
	if span <= 0 {
		return v
	}
	return v - v%span
}
