package jls

// maxCascadeLevel bounds how many summary levels a signal can cascade
// through above its raw data (level 0). It also bounds the 4-bit level field
// packed into chunk_meta (see makeChunkMeta).
const maxCascadeLevel = 15

// fsrLevel is the bookkeeping for one summary level (level >= 1) of a
// signal's statistics cascade: a buffer of not-yet-flushed SummaryEntry
// values, and the running accumulator folding the level below into the next
// entry this level will emit.
type fsrLevel struct {
	level uint8

	unitsPerEntry   uint32 // how many level-below units fold into one entry here
	entriesPerChunk uint32 // EntriesPerSummary: buffered entries before a flush

	acc      runningStats
	accUnits uint32

	pending       []SummaryEntry
	firstEntryID  int64
	haveFirstID   bool

	chainHead      int64
	chainTail      int64
	tailPayloadLen uint32

	indexEntries []indexRecord
}

// indexRecord is one entry of a chain's end-of-file index: the chain member
// starting at Offset covers units [FirstID, FirstID+Count), spanning
// PayloadLength payload bytes.
type indexRecord struct {
	FirstID       int64
	Count         uint32
	Offset        uint64
	PayloadLength uint32
}

// fsrTrack holds the level-0 raw sample buffer and the level >= 1 summary
// cascade for one FSR signal.
type fsrTrack struct {
	signal *Signal

	dataBuf           []byte
	dataCap           uint32 // SamplesPerData
	dataCount         uint32
	dataFirstSampleID int64
	fillRuns          []fillRun

	nextSampleID int64 // next sample_id expected; used to detect gaps

	dataChainHead      int64
	dataChainTail      int64
	dataTailPayloadLen uint32
	dataIndexEntries   []indexRecord

	levels []fsrLevel
}

// fillRun records a run of sample-skip-filled (gap) samples within one Data
// chunk's buffer, by index within the chunk.
type fillRun struct {
	StartIndex uint32
	Count      uint32
}

func newFSRTrack(sig *Signal) *fsrTrack {
	t := &fsrTrack{
		signal:       sig,
		dataCap:      sig.SamplesPerData,
		nextSampleID: sig.SampleIDOffset,
	}
	t.dataBuf = make([]byte, sig.DataType.BytesForNSamples(int(t.dataCap)))

	unitsPerEntry := sig.SampleDecimateFactor
	for level := uint8(1); level <= maxCascadeLevel && unitsPerEntry > 0; level++ {
		t.levels = append(t.levels, fsrLevel{
			level:           level,
			unitsPerEntry:   unitsPerEntry,
			entriesPerChunk: sig.EntriesPerSummary,
			acc:             newRunningStats(),
		})
		unitsPerEntry = sig.SummaryDecimateFactor
		if len(t.levels) > 1 && sig.SummaryDecimateFactor == 0 {
			break
		}
	}
	return t
}

// addRaw records one raw sample value into the level-0 buffer and folds it
// into the level-1 accumulator. cw is used to flush a Data chunk when the
// buffer fills.
func (t *fsrTrack) addRaw(cw *chunkWriter, sampleID int64, value float64, isFill bool) error {
	if t.dataCount == 0 {
		t.dataFirstSampleID = sampleID
	}
	idx := int(t.dataCount)
	if err := t.signal.DataType.WriteSample(t.dataBuf, idx, value); err != nil {
		return err
	}
	if isFill {
		t.fillRuns = appendFillRun(t.fillRuns, uint32(idx))
	}
	t.dataCount++
	t.nextSampleID = sampleID + 1

	if !isFill && len(t.levels) > 0 {
		t.levels[0].acc.Add(value)
		t.levels[0].accUnits++
	}

	if t.dataCount == t.dataCap {
		if err := t.flushData(cw); err != nil {
			return err
		}
	}
	if len(t.levels) > 0 && t.levels[0].accUnits == t.levels[0].unitsPerEntry {
		if err := t.rollLevel(cw, 0, t.dataFirstSampleIDForLevelRoll()); err != nil {
			return err
		}
	}
	return nil
}

func (t *fsrTrack) dataFirstSampleIDForLevelRoll() int64 {
	return t.nextSampleID - int64(t.levels[0].unitsPerEntry)
}

func appendFillRun(runs []fillRun, idx uint32) []fillRun {
	if n := len(runs); n > 0 && runs[n-1].StartIndex+runs[n-1].Count == idx {
		runs[n-1].Count++
		return runs
	}
	return append(runs, fillRun{StartIndex: idx, Count: 1})
}

// flushData writes the buffered level-0 samples as a Data chunk and resets
// the buffer. If OmitData is set, the buffer is reset without being written.
func (t *fsrTrack) flushData(cw *chunkWriter) error {
	if t.dataCount == 0 {
		return nil
	}
	defer func() {
		t.dataCount = 0
		t.fillRuns = nil
	}()
	if t.signal.OmitData {
		return nil
	}

	payload := encodeDataPayload(t.dataFirstSampleID, int(t.dataCount), t.fillRuns, t.dataBuf, t.signal.DataType)
	payload, err := compressPayload(t.signal.Compression, payload)
	if err != nil {
		return err
	}
	meta := makeChunkMeta(uint8(t.signal.SignalID), 0, streamFSR)
	off, err := cw.append(TagData, meta, payload, t.dataChainTail, t.dataTailPayloadLen)
	if err != nil {
		return err
	}
	if t.dataChainHead == 0 {
		t.dataChainHead = off
	}
	t.dataIndexEntries = append(t.dataIndexEntries, indexRecord{
		FirstID: t.dataFirstSampleID, Count: t.dataCount, Offset: uint64(off), PayloadLength: uint32(len(payload)),
	})
	t.dataChainTail = off
	t.dataTailPayloadLen = uint32(len(payload))
	return nil
}

// rollLevel closes out the pending entry at level index lvl (folding
// lvl.acc into a SummaryEntry), buffers it, and cascades upward as needed.
func (t *fsrTrack) rollLevel(cw *chunkWriter, lvl int, firstID int64) error {
	l := &t.levels[lvl]
	entry := l.acc.Entry()
	l.acc = newRunningStats()
	unitsFolded := l.accUnits
	l.accUnits = 0

	if !l.haveFirstID {
		l.firstEntryID = firstID
		l.haveFirstID = true
	}
	l.pending = append(l.pending, entry)

	if uint32(len(l.pending)) == l.entriesPerChunk {
		if err := t.flushSummary(cw, lvl); err != nil {
			return err
		}
	}

	if lvl+1 < len(t.levels) {
		next := &t.levels[lvl+1]
		next.acc.mergeSummaryEntry(entry, int64(unitsFolded))
		next.accUnits++
		if next.accUnits == next.unitsPerEntry {
			// The level above's window began unitsPerEntry-1 entries of this
			// level before the entry just rolled.
			upperFirstID := firstID - int64(next.unitsPerEntry-1)*levelUnitSpan(*t.signal, lvl+1)
			return t.rollLevel(cw, lvl+1, upperFirstID)
		}
	}
	return nil
}

func (t *fsrTrack) flushSummary(cw *chunkWriter, lvl int) error {
	l := &t.levels[lvl]
	if len(l.pending) == 0 {
		return nil
	}
	payload := encodeSummaryPayload(l.firstEntryID, l.pending)
	meta := makeChunkMeta(uint8(t.signal.SignalID), l.level, streamFSR)
	off, err := cw.append(TagSummary, meta, payload, l.chainTail, l.tailPayloadLen)
	if err != nil {
		return err
	}
	if l.chainHead == 0 {
		l.chainHead = off
	}
	l.indexEntries = append(l.indexEntries, indexRecord{
		FirstID: l.firstEntryID, Count: uint32(len(l.pending)), Offset: uint64(off), PayloadLength: uint32(len(payload)),
	})
	l.chainTail = off
	l.tailPayloadLen = uint32(len(payload))
	l.pending = l.pending[:0]
	l.haveFirstID = false
	return nil
}

// flush forces out any partially-filled buffers at every level, for an
// explicit flush op or at Close.
func (t *fsrTrack) flush(cw *chunkWriter) error {
	if err := t.flushData(cw); err != nil {
		return err
	}
	if err := t.flushPartialLevels(cw); err != nil {
		return err
	}
	for i := range t.levels {
		if err := t.flushSummary(cw, i); err != nil {
			return err
		}
	}
	return nil
}

// flushPartialLevels rolls level 0's in-flight accumulator into a final
// short SummaryEntry (count < unitsPerEntry) if any units are pending, and
// cascades that partial roll upward the same way a full one would. Without
// this, a level's tail window of fewer than unitsPerEntry samples would
// never emit an entry, leaving an OmitData signal's final window
// unreadable since there is no raw data to recompute it from.
func (t *fsrTrack) flushPartialLevels(cw *chunkWriter) error {
	if len(t.levels) == 0 || t.levels[0].accUnits == 0 {
		return nil
	}
	firstID := t.nextSampleID - int64(t.levels[0].accUnits)
	return t.rollLevelPartial(cw, 0, firstID)
}

// rollLevelPartial is rollLevel's counterpart for a tail window that never
// reached unitsPerEntry: it folds whatever accUnits are pending into one
// short entry and, since no further data is coming, unconditionally
// cascades the fold into the level above rather than waiting for that
// level's own accUnits to fill.
func (t *fsrTrack) rollLevelPartial(cw *chunkWriter, lvl int, firstID int64) error {
	l := &t.levels[lvl]
	if l.accUnits == 0 {
		return nil
	}
	entry := l.acc.Entry()
	l.acc = newRunningStats()
	unitsFolded := l.accUnits
	l.accUnits = 0

	if !l.haveFirstID {
		l.firstEntryID = firstID
		l.haveFirstID = true
	}
	l.pending = append(l.pending, entry)

	if lvl+1 < len(t.levels) {
		next := &t.levels[lvl+1]
		next.acc.mergeSummaryEntry(entry, int64(unitsFolded))
		next.accUnits++
		upperFirstID := firstID - int64(next.accUnits-1)*levelUnitSpan(*t.signal, lvl+1)
		return t.rollLevelPartial(cw, lvl+1, upperFirstID)
	}
	return nil
}
