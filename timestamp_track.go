package jls

import (
	"fmt"
	"math/bits"
)

// utcTrack buffers UTCEntry records for one signal's timestamp track: an
// append-only, monotonically-increasing-by-sample_id map between sample_id
// and Timestamp, flushed to UTC chunks in UTCDecimateFactor-sized batches and
// also kept in memory for bidirectional lookups without rereading the file.
// Those lookups scan the entries linearly.
type utcTrack struct {
	signal *Signal

	capacity int
	pending  []UTCEntry

	chainHead      int64
	chainTail      int64
	tailPayloadLen uint32

	// all holds every UTCEntry recorded so far, in increasing sample_id
	// order, for sampleIDToTimestamp/timestampToSampleID.
	all []UTCEntry
}

func newUTCTrack(sig *Signal) *utcTrack {
	cap := int(sig.UTCDecimateFactor)
	if cap <= 0 {
		cap = 64
	}
	return &utcTrack{signal: sig, capacity: cap}
}

// add records sample_id -> ts, rejecting any sample_id that does not
// strictly increase, per the package's resolution of the duplicate-sample-id
// Open Question.
func (t *utcTrack) add(cw *chunkWriter, sampleID int64, ts Timestamp) error {
	if n := len(t.all); n > 0 && sampleID <= t.all[n-1].SampleID {
		return newErr("utc", ErrParameterInvalid, fmt.Errorf("sample_id %d does not strictly increase past %d", sampleID, t.all[n-1].SampleID))
	}
	entry := UTCEntry{SampleID: sampleID, Timestamp: ts}
	t.all = append(t.all, entry)
	t.pending = append(t.pending, entry)
	if len(t.pending) >= t.capacity {
		return t.flush(cw)
	}
	return nil
}

func (t *utcTrack) flush(cw *chunkWriter) error {
	if len(t.pending) == 0 {
		return nil
	}
	payload := encodeUTCPayload(t.pending)
	meta := makeChunkMeta(uint8(t.signal.SignalID), 0, streamUTC)
	off, err := cw.append(TagUTC, meta, payload, t.chainTail, t.tailPayloadLen)
	if err != nil {
		return err
	}
	if t.chainHead == 0 {
		t.chainHead = off
	}
	t.chainTail = off
	t.tailPayloadLen = uint32(len(payload))
	t.pending = t.pending[:0]
	return nil
}

func encodeUTCPayload(entries []UTCEntry) []byte {
	buf := make([]byte, 16*len(entries))
	o := 0
	for _, e := range entries {
		o += putInt64(buf[o:], e.SampleID)
		o += putInt64(buf[o:], int64(e.Timestamp))
	}
	return buf
}

func decodeUTCPayload(payload []byte) ([]UTCEntry, error) {
	if len(payload)%16 != 0 {
		return nil, fmt.Errorf("jls: malformed utc chunk payload length %d", len(payload))
	}
	out := make([]UTCEntry, len(payload)/16)
	o := 0
	for i := range out {
		var id, ts int64
		var err error
		id, o, err = getInt64(payload, o)
		if err != nil {
			return nil, err
		}
		ts, o, err = getInt64(payload, o)
		if err != nil {
			return nil, err
		}
		out[i] = UTCEntry{SampleID: id, Timestamp: Timestamp(ts)}
	}
	return out, nil
}

// sampleIDToTimestamp maps a sample_id to a Timestamp by piecewise-linear
// interpolation between the two bracketing recorded UTCEntry values. Overflow
// during the interpolation multiply is avoided with bits.Mul64/Div64, since
// (ts1-ts0)*(sampleID-id0) can exceed 64 bits for long-running FSR signals at
// high tick rates.
func (t *utcTrack) sampleIDToTimestamp(sampleID int64) (Timestamp, error) {
	if len(t.all) == 0 {
		return 0, newErr("sample_id_to_timestamp", ErrNotFound, nil)
	}
	lo, hi := t.bracket(sampleID)
	if lo == hi {
		return t.all[lo].Timestamp, nil
	}
	a, b := t.all[lo], t.all[hi]
	return interpolateTimestamp(a, b, sampleID), nil
}

// timestampToSampleID inverts sampleIDToTimestamp: given a Timestamp, returns
// the sample_id that would interpolate to it.
func (t *utcTrack) timestampToSampleID(ts Timestamp) (int64, error) {
	if len(t.all) == 0 {
		return 0, newErr("timestamp_to_sample_id", ErrNotFound, nil)
	}
	idx := 0
	for idx < len(t.all) && t.all[idx].Timestamp < ts {
		idx++
	}
	if idx == 0 {
		return t.all[0].SampleID, nil
	}
	if idx == len(t.all) {
		return t.all[len(t.all)-1].SampleID, nil
	}
	if t.all[idx].Timestamp == ts {
		return t.all[idx].SampleID, nil
	}
	a, b := t.all[idx-1], t.all[idx]
	return interpolateSampleID(a, b, ts), nil
}

// bracket returns indices lo<=hi into t.all such that sampleID falls within
// [t.all[lo].SampleID, t.all[hi].SampleID], clamping at the ends.
func (t *utcTrack) bracket(sampleID int64) (lo, hi int) {
	n := len(t.all)
	i := 0
	for i < n && t.all[i].SampleID < sampleID {
		i++
	}
	if i == 0 {
		return 0, 0
	}
	if i == n {
		return n - 1, n - 1
	}
	if t.all[i].SampleID == sampleID {
		return i, i
	}
	return i - 1, i
}

func interpolateTimestamp(a, b UTCEntry, sampleID int64) Timestamp {
	sampleSpan := b.SampleID - a.SampleID
	if sampleSpan == 0 {
		return a.Timestamp
	}
	tickSpan := int64(b.Timestamp - a.Timestamp)
	offset := sampleID - a.SampleID
	return a.Timestamp + Timestamp(mulDiv64(tickSpan, offset, sampleSpan))
}

func interpolateSampleID(a, b UTCEntry, ts Timestamp) int64 {
	sampleSpan := b.SampleID - a.SampleID
	tickSpan := int64(b.Timestamp - a.Timestamp)
	if tickSpan == 0 {
		return a.SampleID
	}
	offset := int64(ts - a.Timestamp)
	return a.SampleID + mulDiv64(sampleSpan, offset, tickSpan)
}

// mulDiv64 computes (a*b)/c without overflowing when a*b exceeds 64 bits,
// using a 128-bit intermediate product via math/bits. c must be nonzero; the
// sign of the result follows normal two's-complement division truncation.
func mulDiv64(a, b, c int64) int64 {
	neg := (a < 0) != (b < 0) != (c < 0)
	ua, ub, uc := absU64(a), absU64(b), absU64(c)
	hi, lo := bits.Mul64(ua, ub)
	q, _ := bits.Div64(hi, lo, uc)
	if neg {
		return -int64(q)
	}
	return int64(q)
}

func absU64(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
