package jls

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// encodeDataPayload serializes a Data chunk: the sample_id of its first
// sample and the sample count (so a chunk is self-describing even before an
// end-of-file Index chunk exists, which is what lets a recovery scan rebuild
// range information from a crashed file), a small fill-run table recording
// which sample indices were sample-skip gap fills, and finally the packed
// sample bytes. The fill-run table lets a reader reconstruct NaN for a gap
// in a floating point signal even though the stored bits are zero.
func encodeDataPayload(firstSampleID int64, n int, runs []fillRun, samples []byte, dt DataType) []byte {
	packedLen := dt.BytesForNSamples(n)
	buf := make([]byte, 8+4+2+8*len(runs)+packedLen)
	o := 0
	o += putInt64(buf[o:], firstSampleID)
	o += putUint32(buf[o:], uint32(n))
	o += putUint16(buf[o:], uint16(len(runs)))
	for _, r := range runs {
		o += putUint32(buf[o:], r.StartIndex)
		o += putUint32(buf[o:], r.Count)
	}
	copy(buf[o:], samples[:packedLen])
	return buf
}

// decodeDataPayload splits a Data chunk payload back into its first
// sample_id, sample count, fill-run table, and packed sample bytes.
func decodeDataPayload(payload []byte) (firstSampleID int64, n int, runs []fillRun, samples []byte, err error) {
	id, o, err := getInt64(payload, 0)
	if err != nil {
		return 0, 0, nil, nil, err
	}
	firstSampleID = id
	var n32 uint32
	n32, o, err = getUint32(payload, o)
	if err != nil {
		return 0, 0, nil, nil, err
	}
	n = int(n32)
	n16, o, err := getUint16(payload, o)
	if err != nil {
		return 0, 0, nil, nil, err
	}
	runs = make([]fillRun, n16)
	for i := range runs {
		var start, count uint32
		start, o, err = getUint32(payload, o)
		if err != nil {
			return 0, 0, nil, nil, err
		}
		count, o, err = getUint32(payload, o)
		if err != nil {
			return 0, 0, nil, nil, err
		}
		runs[i] = fillRun{StartIndex: start, Count: count}
	}
	return firstSampleID, n, runs, payload[o:], nil
}

func encodeSummaryPayload(firstEntryID int64, entries []SummaryEntry) []byte {
	buf := make([]byte, 12+32*len(entries))
	o := 0
	o += putInt64(buf[o:], firstEntryID)
	o += putUint32(buf[o:], uint32(len(entries)))
	for _, e := range entries {
		o += putFloat64(buf[o:], e.Mean)
		o += putFloat64(buf[o:], e.Std)
		o += putFloat64(buf[o:], e.Min)
		o += putFloat64(buf[o:], e.Max)
	}
	return buf
}

func decodeSummaryPayload(payload []byte) (firstEntryID int64, entries []SummaryEntry, err error) {
	if len(payload) < 12 || (len(payload)-12)%32 != 0 {
		return 0, nil, fmt.Errorf("jls: malformed summary chunk payload length %d", len(payload))
	}
	var o int
	firstEntryID, o, err = getInt64(payload, 0)
	if err != nil {
		return 0, nil, err
	}
	var n32 uint32
	n32, o, err = getUint32(payload, o)
	if err != nil {
		return 0, nil, err
	}
	out := make([]SummaryEntry, n32)
	var v float64
	for i := range out {
		v, o, err = getFloat64(payload, o)
		if err != nil {
			return 0, nil, err
		}
		out[i].Mean = v
		v, o, err = getFloat64(payload, o)
		if err != nil {
			return 0, nil, err
		}
		out[i].Std = v
		v, o, err = getFloat64(payload, o)
		if err != nil {
			return 0, nil, err
		}
		out[i].Min = v
		v, o, err = getFloat64(payload, o)
		if err != nil {
			return 0, nil, err
		}
		out[i].Max = v
	}
	return firstEntryID, out, nil
}

// compressPayload compresses p per the signal's CompressionFormat. Only
// level-0 Data chunk payloads are ever compressed; Summary, Index,
// Annotation and UTC chunks are always stored uncompressed.
func compressPayload(format CompressionFormat, p []byte) ([]byte, error) {
	switch format {
	case CompressionNone:
		return p, nil
	case CompressionLZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(p); err != nil {
			return nil, newErr("fsr.compress", ErrIO, err)
		}
		if err := w.Close(); err != nil {
			return nil, newErr("fsr.compress", ErrIO, err)
		}
		return buf.Bytes(), nil
	case CompressionZSTD:
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, newErr("fsr.compress", ErrIO, err)
		}
		defer enc.Close()
		return enc.EncodeAll(p, nil), nil
	default:
		return nil, newErr("fsr.compress", ErrParameterInvalid, fmt.Errorf("unknown compression format %q", format))
	}
}

func decompressPayload(format CompressionFormat, p []byte) ([]byte, error) {
	switch format {
	case CompressionNone:
		return p, nil
	case CompressionLZ4:
		r := lz4.NewReader(bytes.NewReader(p))
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, newErr("fsr.decompress", ErrIO, err)
		}
		return out, nil
	case CompressionZSTD:
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, newErr("fsr.decompress", ErrIO, err)
		}
		defer dec.Close()
		out, err := dec.DecodeAll(p, nil)
		if err != nil {
			return nil, newErr("fsr.decompress", ErrIO, err)
		}
		return out, nil
	default:
		return nil, newErr("fsr.decompress", ErrParameterInvalid, fmt.Errorf("unknown compression format %q", format))
	}
}

// writeFSR appends the nSamples samples packed in raw, starting at sampleID,
// to track, zero-filling (and recording as a fill run) any gap
// between the last sample written and sampleID.
func writeFSR(cw *chunkWriter, t *fsrTrack, sampleID int64, raw []byte, nSamples int) error {
	if sampleID < t.nextSampleID {
		return newErr("fsr", ErrParameterInvalid, fmt.Errorf("sample_id %d precedes next expected sample_id %d", sampleID, t.nextSampleID))
	}
	for gap := t.nextSampleID; gap < sampleID; gap++ {
		if err := t.addRaw(cw, gap, 0, true); err != nil {
			return err
		}
	}
	for i := 0; i < nSamples; i++ {
		v, err := t.signal.DataType.ReadSample(raw, i)
		if err != nil {
			return newErr("fsr", ErrParameterInvalid, err)
		}
		if err := t.addRaw(cw, sampleID+int64(i), v, false); err != nil {
			return err
		}
	}
	return nil
}
