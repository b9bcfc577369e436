package jls

import (
	"fmt"
	"math"
	"os"
	"sort"

	"go.uber.org/zap"
)

// signalCatalog is everything a Reader knows about one signal: its
// definition, its Data chain's index (sorted by FirstID for binary search),
// one index per summary level, and its UTC/Annotation chain heads.
type signalCatalog struct {
	signal Signal

	dataEntries  []indexRecord
	levelEntries [][]indexRecord // levelEntries[i] covers level i+1

	utcChainHead int64
	annChainHead int64

	utcAll []UTCEntry // lazily populated by loadUTC
}

// dataBounds returns the half-open [lo, hi) sample_id range actually
// recorded in cat's Data chunks, and false if no Data chunk was ever
// written for the signal.
func (cat *signalCatalog) dataBounds() (lo, hi int64, ok bool) {
	entries := cat.dataEntries
	if len(entries) == 0 {
		return 0, 0, false
	}
	lo = entries[0].FirstID
	last := entries[len(entries)-1]
	hi = last.FirstID + int64(last.Count)
	return lo, hi, true
}

// Reader serves read operations against a Log file written by Writer. A
// Reader is not safe for concurrent use: its catalogs are populated at Open,
// but loadUTC caches each signal's UTC entries on first use.
type Reader struct {
	f   *os.File
	log *zap.Logger

	sources     map[uint16]Source
	signalOrder []uint16
	signals     map[uint16]*signalCatalog

	userDataChains map[uint16]int64

	recovered bool
}

// Open opens path for reading. If the file's root index is missing or fails
// CRC validation, Open falls back to a full forward scan honoring each
// chunk's own self-description when opts.AllowRecovery is set; otherwise it
// fails.
func Open(path string, opts ReaderOptions) (*Reader, error) {
	opts = opts.withDefaults()
	f, err := os.Open(path)
	if err != nil {
		return nil, newErr("Open", ErrIO, err)
	}

	hdrBuf := make([]byte, FileHeaderSize)
	if _, err := f.ReadAt(hdrBuf, 0); err != nil {
		f.Close()
		return nil, newErr("Open", ErrTruncated, err)
	}
	hdr, err := unmarshalFileHeader(hdrBuf)
	if err != nil {
		f.Close()
		return nil, err
	}
	if hdr.Magic != Magic {
		f.Close()
		return nil, newErr("Open", ErrParameterInvalid, fmt.Errorf("not a log file"))
	}
	if hdr.FormatVersion != FormatVersion {
		f.Close()
		return nil, newErr("Open", ErrUnsupportedVersion, fmt.Errorf("format version %d unsupported", hdr.FormatVersion))
	}

	r := &Reader{
		f:              f,
		log:            opts.Logger,
		sources:        make(map[uint16]Source),
		signals:        make(map[uint16]*signalCatalog),
		userDataChains: make(map[uint16]int64),
	}

	if hdr.RootIndexOffset != 0 {
		if err := r.loadRootIndex(int64(hdr.RootIndexOffset)); err == nil {
			return r, nil
		} else if !opts.AllowRecovery {
			f.Close()
			return nil, err
		}
		r.log.Warn("root index unreadable, falling back to recovery scan")
	} else if !opts.AllowRecovery {
		f.Close()
		return nil, newErr("Open", ErrNotFound, fmt.Errorf("file has no root index and recovery is disabled"))
	}

	r.recovered = true
	if err := r.recoveryScan(); err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

func unmarshalFileHeader(buf []byte) (fileHeader, error) {
	var h fileHeader
	if len(buf) < FileHeaderSize {
		return h, newErr("Open", ErrTruncated, nil)
	}
	copy(h.Magic[:], buf[0:8])
	var err error
	o := 8
	h.FormatVersion, o, err = getUint16(buf, o)
	if err != nil {
		return h, newErr("Open", ErrTruncated, err)
	}
	h.Reserved, o, err = getUint16(buf, o)
	if err != nil {
		return h, newErr("Open", ErrTruncated, err)
	}
	var u64 uint64
	u64, o, err = getUint64(buf, o)
	if err != nil {
		return h, newErr("Open", ErrTruncated, err)
	}
	h.RootIndexOffset = u64
	var i64 int64
	i64, o, err = getInt64(buf, o)
	if err != nil {
		return h, newErr("Open", ErrTruncated, err)
	}
	h.CreationTime = Timestamp(i64)
	h.Reserved2, _, err = getUint32(buf, o)
	if err != nil {
		return h, newErr("Open", ErrTruncated, err)
	}
	return h, nil
}

func (r *Reader) loadRootIndex(offset int64) error {
	h, payload, err := readChunkAt(r.f, offset)
	if err != nil {
		return err
	}
	if h.Tag != TagIndex {
		return newErr("Open", ErrParameterInvalid, fmt.Errorf("chunk at root index offset is tag %v, not index", h.Tag))
	}
	_, _, sources, signals, userData, err := decodeRootIndex(payload)
	if err != nil {
		return newErr("Open", ErrTruncated, err)
	}
	for _, s := range sources {
		r.sources[s.SourceID] = s
	}
	for _, si := range signals {
		cat := &signalCatalog{signal: si.signal, utcChainHead: si.utcChainHead, annChainHead: si.annChainHead}
		if si.dataIndexOff != 0 {
			if _, p, err := readChunkAt(r.f, si.dataIndexOff); err == nil {
				cat.dataEntries, _ = decodeIndexPayload(p)
			}
		}
		for _, off := range si.levelIndexOffs {
			var entries []indexRecord
			if off != 0 {
				if _, p, err := readChunkAt(r.f, off); err == nil {
					entries, _ = decodeIndexPayload(p)
				}
			}
			cat.levelEntries = append(cat.levelEntries, entries)
		}
		r.signals[si.signal.SignalID] = cat
		r.signalOrder = append(r.signalOrder, si.signal.SignalID)
	}
	r.userDataChains = userData
	return nil
}

// recoveryScan walks the file sequentially from the first chunk, stopping at
// the first chunk that fails to read or validate (the tail of a file that
// crashed mid-write), reconstructing every catalog directly from each
// chunk's own tag, chunk_meta, and (for Data/Summary) embedded
// first-id/count, since no end-of-file Index chunks exist to lean on.
func (r *Reader) recoveryScan() error {
	offset := int64(FileHeaderSize)
	for {
		h, payload, err := readChunkAt(r.f, offset)
		if err != nil {
			break
		}
		signalID, level, kind := parseChunkMeta(h.ChunkMeta)

		switch h.Tag {
		case TagSourceDef:
			if s, err := decodeSourceDef(payload); err == nil {
				r.sources[s.SourceID] = s
			}
		case TagSignalDef:
			if sig, err := decodeSignalDef(payload); err == nil {
				r.signals[sig.SignalID] = &signalCatalog{signal: sig}
				r.signalOrder = append(r.signalOrder, sig.SignalID)
			}
		case TagData:
			if kind == streamFSR && level == 0 {
				if cat := r.signals[signalID]; cat != nil {
					if firstID, n, _, _, err := decodeDataPayload(mustDecompressForScan(cat.signal, payload)); err == nil {
						cat.dataEntries = append(cat.dataEntries, indexRecord{
							FirstID: firstID, Count: uint32(n), Offset: uint64(offset), PayloadLength: h.PayloadLength,
						})
					}
				}
			}
		case TagSummary:
			if kind == streamFSR && level >= 1 {
				if cat := r.signals[signalID]; cat != nil {
					if firstID, entries, err := decodeSummaryPayload(payload); err == nil {
						li := int(level) - 1
						for len(cat.levelEntries) <= li {
							cat.levelEntries = append(cat.levelEntries, nil)
						}
						cat.levelEntries[li] = append(cat.levelEntries[li], indexRecord{
							FirstID: firstID, Count: uint32(len(entries)), Offset: uint64(offset), PayloadLength: h.PayloadLength,
						})
					}
				}
			}
		case TagUTC:
			if cat := r.signals[signalID]; cat != nil && cat.utcChainHead == 0 {
				cat.utcChainHead = offset
			}
		case TagAnnotation:
			if cat := r.signals[signalID]; cat != nil && cat.annChainHead == 0 {
				cat.annChainHead = offset
			}
		case TagUserData:
			if _, ok := r.userDataChains[h.ChunkMeta]; !ok {
				r.userDataChains[h.ChunkMeta] = offset
			}
		}

		offset += int64(chunkHeaderSize) + int64(h.PayloadLength) + int64(chunkPadding(int(h.PayloadLength)))
	}
	return nil
}

// mustDecompressForScan best-efforts decompression during a recovery scan;
// an error here just means this chunk won't contribute range information,
// matching the scan's overall read-tolerant stance.
func mustDecompressForScan(sig Signal, payload []byte) []byte {
	out, err := decompressPayload(sig.Compression, payload)
	if err != nil {
		return payload
	}
	return out
}

// Sources returns every defined source.
func (r *Reader) Sources() []Source {
	out := make([]Source, 0, len(r.sources))
	for _, s := range r.sources {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SourceID < out[j].SourceID })
	return out
}

// Signals returns every defined signal, in definition order.
func (r *Reader) Signals() []Signal {
	out := make([]Signal, 0, len(r.signalOrder))
	for _, id := range r.signalOrder {
		if cat := r.signals[id]; cat != nil {
			out = append(out, cat.signal)
		}
	}
	return out
}

func (r *Reader) catalog(op string, signalID uint16) (*signalCatalog, error) {
	cat := r.signals[signalID]
	if cat == nil {
		return nil, newErr(op, ErrNotFound, fmt.Errorf("signal_id %d not defined", signalID))
	}
	return cat, nil
}

// FSR returns length samples of signalID starting at sample_id start,
// promoted to float64. A request that does not overlap the signal's recorded
// range at all fails with ErrParameterInvalid. Within a request that does,
// samples never written (beyond the recorded range, or within a sample-skip
// gap for a floating point signal) read back as NaN; a sample-skip gap in an
// integer signal reads back as 0, per the package's resolution of the
// integer-fill Open Question.
func (r *Reader) FSR(signalID uint16, start int64, length int) ([]float64, error) {
	cat, err := r.catalog("fsr", signalID)
	if err != nil {
		return nil, err
	}
	if cat.signal.OmitData {
		return nil, newErr("fsr", ErrUnsupported, nil)
	}
	if length < 0 {
		return nil, newErr("fsr", ErrParameterInvalid, nil)
	}
	if length > 0 {
		lo, hi, ok := cat.dataBounds()
		if !ok || start >= hi || start+int64(length) <= lo {
			return nil, newErr("fsr", ErrParameterInvalid, nil)
		}
	}
	out := make([]float64, length)
	for i := range out {
		out[i] = math.NaN()
	}
	entries := cat.dataEntries
	idx := sort.Search(len(entries), func(i int) bool {
		return entries[i].FirstID+int64(entries[i].Count) > start
	})
	end := start + int64(length)
	for ; idx < len(entries) && entries[idx].FirstID < end; idx++ {
		e := entries[idx]
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

func isFillIndex(runs []fillRun, idx uint32) bool {
	for _, rr := range runs {
		if idx >= rr.StartIndex && idx < rr.StartIndex+rr.Count {
			return true
		}
	}
	return false
}

// Annotations calls visit, in write order, for every annotation recorded
// against signalID whose Timestamp is >= fromTimestamp (a sample_id for FSR
// signals, a raw UTC tick value for VSR signals).
func (r *Reader) Annotations(signalID uint16, fromTimestamp int64, visit func(Annotation) error) error {
	cat, err := r.catalog("annotations", signalID)
	if err != nil {
		return err
	}
	return walkChain(r.f, cat.annChainHead, func(h chunkHeader, payload []byte) error {
		a, err := decodeAnnotationPayload(payload)
		if err != nil {
			return nil
		}
		if a.Timestamp < fromTimestamp {
			return nil
		}
		return visit(a)
	})
}

// UserData calls visit for every UserData chunk sharing chunkMeta, in write
// order.
func (r *Reader) UserData(chunkMeta uint16, visit func(UserData) error) error {
	head := r.userDataChains[chunkMeta]
	return walkChain(r.f, head, func(h chunkHeader, payload []byte) error {
		if len(payload) < 1 {
			return nil
		}
		u := UserData{ChunkMeta: chunkMeta, StorageType: StorageType(payload[0]), Payload: append([]byte(nil), payload[1:]...)}
		return visit(u)
	})
}

// loadUTC lazily walks a signal's UTC chain into memory, caching the result.
func (r *Reader) loadUTC(cat *signalCatalog) ([]UTCEntry, error) {
	if cat.utcAll != nil {
		return cat.utcAll, nil
	}
	var all []UTCEntry
	err := walkChain(r.f, cat.utcChainHead, func(h chunkHeader, payload []byte) error {
		entries, err := decodeUTCPayload(payload)
		if err != nil {
			return nil
		}
		all = append(all, entries...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	cat.utcAll = all
	return all, nil
}

// UTC calls visit, in sample_id order, for every UTCEntry recorded against
// signalID whose SampleID is >= fromSampleID.
func (r *Reader) UTC(signalID uint16, fromSampleID int64, visit func(UTCEntry) error) error {
	cat, err := r.catalog("utc", signalID)
	if err != nil {
		return err
	}
	all, err := r.loadUTC(cat)
	if err != nil {
		return err
	}
	start := sort.Search(len(all), func(i int) bool { return all[i].SampleID >= fromSampleID })
	for _, e := range all[start:] {
		if err := visit(e); err != nil {
			return err
		}
	}
	return nil
}

// TmapLength returns the number of UTC entries recorded for signalID.
func (r *Reader) TmapLength(signalID uint16) (int, error) {
	cat, err := r.catalog("tmap_length", signalID)
	if err != nil {
		return 0, err
	}
	all, err := r.loadUTC(cat)
	if err != nil {
		return 0, err
	}
	return len(all), nil
}

// TmapGet returns the idx'th recorded UTC entry for signalID, in sample_id
// order.
func (r *Reader) TmapGet(signalID uint16, idx int) (UTCEntry, error) {
	cat, err := r.catalog("tmap_get", signalID)
	if err != nil {
		return UTCEntry{}, err
	}
	all, err := r.loadUTC(cat)
	if err != nil {
		return UTCEntry{}, err
	}
	if idx < 0 || idx >= len(all) {
		return UTCEntry{}, newErr("tmap_get", ErrParameterInvalid, fmt.Errorf("index %d out of range [0,%d)", idx, len(all)))
	}
	return all[idx], nil
}

// SampleIDToTimestamp maps sample_id to a Timestamp by piecewise-linear
// interpolation over signalID's recorded UTC entries.
func (r *Reader) SampleIDToTimestamp(signalID uint16, sampleID int64) (Timestamp, error) {
	cat, err := r.catalog("sample_id_to_timestamp", signalID)
	if err != nil {
		return 0, err
	}
	all, err := r.loadUTC(cat)
	if err != nil {
		return 0, err
	}
	t := &utcTrack{signal: &cat.signal, all: all}
	return t.sampleIDToTimestamp(sampleID)
}

// TimestampToSampleID inverts SampleIDToTimestamp.
func (r *Reader) TimestampToSampleID(signalID uint16, ts Timestamp) (int64, error) {
	cat, err := r.catalog("timestamp_to_sample_id", signalID)
	if err != nil {
		return 0, err
	}
	all, err := r.loadUTC(cat)
	if err != nil {
		return 0, err
	}
	t := &utcTrack{signal: &cat.signal, all: all}
	return t.timestampToSampleID(ts)
}

// Close releases the underlying file handle.
func (r *Reader) Close() error {
	return r.f.Close()
}
