package jls

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// signalState is the writer's live bookkeeping for one defined signal: its
// definition plus its three independent tracks (raw/summary cascade,
// timestamp, annotations).
type signalState struct {
	signal Signal
	fsr    *fsrTrack
	utc    *utcTrack
	ann    *annotationTrack
}

// userDataChain chains UserData chunks sharing a caller-supplied ChunkMeta.
type userDataChain struct {
	head, tail     int64
	tailPayloadLen uint32
}

// Writer appends to a Log file. Its methods are serialized by an internal
// mutex; OpenThreaded wraps one in a single-goroutine command loop so
// concurrent producers queue commands instead of contending for that lock.
type Writer struct {
	mu  sync.Mutex
	f   *os.File
	cw  *chunkWriter
	log *zap.Logger

	flags uint32

	sourceOrder    []uint16
	sourceChainTl  int64
	sourcePrevLen  uint32
	sourceChainHd  int64
	sources        slicemap[Source]

	signalOrder   []uint16
	signalChainTl int64
	signalPrevLen uint32
	signalChainHd int64
	signals       slicemap[signalState]

	userData map[uint16]*userDataChain

	closed   bool
	firstErr error
}

// defaultStructuralParams fills in any zero-valued cascade geometry fields
// with defaults, once, at signal definition time. Once a signal is defined
// its structural parameters never change.
func defaultStructuralParams(sig *Signal) {
	if sig.SamplesPerData == 0 {
		sig.SamplesPerData = 1024
	}
	if sig.SampleDecimateFactor == 0 {
		sig.SampleDecimateFactor = sig.SamplesPerData
	}
	if sig.EntriesPerSummary == 0 {
		sig.EntriesPerSummary = 1024
	}
	if sig.SummaryDecimateFactor == 0 {
		sig.SummaryDecimateFactor = 10
	}
	if sig.AnnotationDecimateFactor == 0 {
		sig.AnnotationDecimateFactor = 100
	}
	if sig.UTCDecimateFactor == 0 {
		sig.UTCDecimateFactor = 64
	}
}

// Create creates a new Log file at path, truncating any existing file.
func Create(path string, opts WriterOptions) (*Writer, error) {
	opts = opts.withDefaults()
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, newErr("Create", ErrIO, err)
	}
	w := &Writer{
		f:        f,
		log:      opts.Logger,
		sources:  slicemap[Source]{},
		signals:  slicemap[signalState]{},
		userData: make(map[uint16]*userDataChain),
	}
	hdr := fileHeader{
		Magic:         Magic,
		FormatVersion: FormatVersion,
		CreationTime:  Timestamp((time.Now().Unix() - EpochUnix) << 30),
	}
	if _, err := f.WriteAt(marshalFileHeader(hdr), 0); err != nil {
		f.Close()
		return nil, newErr("Create", ErrIO, err)
	}
	w.cw = newChunkWriter(f, FileHeaderSize)
	return w, nil
}

func marshalFileHeader(h fileHeader) []byte {
	buf := make([]byte, FileHeaderSize)
	o := 0
	copy(buf[o:], h.Magic[:])
	o += len(h.Magic)
	o += putUint16(buf[o:], h.FormatVersion)
	o += putUint16(buf[o:], h.Reserved)
	o += putUint64(buf[o:], h.RootIndexOffset)
	o += putInt64(buf[o:], int64(h.CreationTime))
	o += putUint32(buf[o:], h.Reserved2)
	return buf
}

// SourceDef defines a source. Every signal's SourceID must reference either
// GlobalSourceID or a source defined before that signal.
func (w *Writer) SourceDef(s Source) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return newErr("SourceDef", ErrAbort, nil)
	}
	if w.sources.get(s.SourceID) != nil {
		return newErr("SourceDef", ErrAlreadyExists, fmt.Errorf("source_id %d already defined", s.SourceID))
	}
	payload := encodeSourceDef(s)
	off, err := w.cw.append(TagSourceDef, 0, payload, w.sourceChainTl, w.sourcePrevLen)
	if err != nil {
		return w.fail(err)
	}
	if w.sourceChainHd == 0 {
		w.sourceChainHd = off
	}
	w.sourceChainTl = off
	w.sourcePrevLen = uint32(len(payload))
	src := s
	w.sources.set(s.SourceID, &src)
	w.sourceOrder = append(w.sourceOrder, s.SourceID)
	return nil
}

// SignalDef defines a signal. s.SourceID must be GlobalSourceID or an
// already-defined source.
func (w *Writer) SignalDef(s Signal) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return newErr("SignalDef", ErrAbort, nil)
	}
	if s.SignalID < MinSignalID || s.SignalID > MaxSignalID {
		return newErr("SignalDef", ErrParameterInvalid, fmt.Errorf("signal_id %d out of range [%d,%d]", s.SignalID, MinSignalID, MaxSignalID))
	}
	if w.signals.get(s.SignalID) != nil {
		return newErr("SignalDef", ErrAlreadyExists, fmt.Errorf("signal_id %d already defined", s.SignalID))
	}
	if s.SourceID != GlobalSourceID && w.sources.get(s.SourceID) == nil {
		return newErr("SignalDef", ErrParameterInvalid, fmt.Errorf("source_id %d not defined before signal_id %d", s.SourceID, s.SignalID))
	}
	if err := s.DataType.Validate(); err != nil {
		return newErr("SignalDef", ErrParameterInvalid, err)
	}
	defaultStructuralParams(&s)

	payload := encodeSignalDef(s)
	off, err := w.cw.append(TagSignalDef, 0, payload, w.signalChainTl, w.signalPrevLen)
	if err != nil {
		return w.fail(err)
	}
	if w.signalChainHd == 0 {
		w.signalChainHd = off
	}
	w.signalChainTl = off
	w.signalPrevLen = uint32(len(payload))

	st := signalState{
		signal: s,
		fsr:    newFSRTrack(&s),
		utc:    newUTCTrack(&s),
		ann:    newAnnotationTrack(&s),
	}
	w.signals.set(s.SignalID, &st)
	w.signalOrder = append(w.signalOrder, s.SignalID)
	return nil
}

func (w *Writer) state(op string, signalID uint16) (*signalState, error) {
	st := w.signals.get(signalID)
	if st == nil {
		return nil, newErr(op, ErrParameterInvalid, fmt.Errorf("signal_id %d not defined", signalID))
	}
	return st, nil
}

// FSR appends samples starting at sampleID for an FSR signal. raw holds
// nSamples packed samples of the signal's DataType. Writing at a sampleID
// greater than the next expected one records a gap, sample-skip-filled on
// read.
func (w *Writer) FSR(signalID uint16, sampleID int64, raw []byte, nSamples int) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return newErr("fsr", ErrAbort, nil)
	}
	st, err := w.state("fsr", signalID)
	if err != nil {
		return err
	}
	if st.signal.Kind != KindFSR {
		return newErr("fsr", ErrParameterInvalid, fmt.Errorf("signal_id %d is not FSR", signalID))
	}
	if err := writeFSR(w.cw, st.fsr, sampleID, raw, nSamples); err != nil {
		return w.fail(err)
	}
	return nil
}

// FSROmitData toggles whether future level-0 Data chunks are written for a
// signal; summaries continue to be recorded either way.
func (w *Writer) FSROmitData(signalID uint16, omit bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	st, err := w.state("fsr_omit_data", signalID)
	if err != nil {
		return err
	}
	st.signal.OmitData = omit
	st.fsr.signal.OmitData = omit
	return nil
}

// Annotation records a marker against a signal.
func (w *Writer) Annotation(signalID uint16, a Annotation) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return newErr("annotation", ErrAbort, nil)
	}
	st, err := w.state("annotation", signalID)
	if err != nil {
		return err
	}
	if err := st.ann.add(w.cw, a); err != nil {
		return w.fail(err)
	}
	return nil
}

// UTC records one sample_id -> Timestamp mapping for a signal's timestamp
// track.
func (w *Writer) UTC(signalID uint16, sampleID int64, ts Timestamp) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return newErr("utc", ErrAbort, nil)
	}
	st, err := w.state("utc", signalID)
	if err != nil {
		return err
	}
	if err := st.utc.add(w.cw, sampleID, ts); err != nil {
		return w.fail(err)
	}
	return nil
}

// UserData appends an opaque payload chunk, chained with any prior UserData
// sharing the same ChunkMeta.
func (w *Writer) UserData(u UserData) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return newErr("user_data", ErrAbort, nil)
	}
	chain := w.userData[u.ChunkMeta]
	if chain == nil {
		chain = &userDataChain{}
		w.userData[u.ChunkMeta] = chain
	}
	payload := append([]byte{byte(u.StorageType)}, u.Payload...)
	off, err := w.cw.append(TagUserData, u.ChunkMeta, payload, chain.tail, chain.tailPayloadLen)
	if err != nil {
		return w.fail(err)
	}
	if chain.head == 0 {
		chain.head = off
	}
	chain.tail = off
	chain.tailPayloadLen = uint32(len(payload))
	return nil
}

// FlagsGet and FlagsSet read and write a caller-defined bitmask stored only
// in memory for the life of the Writer (not persisted), mirroring a
// runtime-only control-plane signal alongside the durable command stream.
func (w *Writer) FlagsGet() uint32 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flags
}

func (w *Writer) FlagsSet(v uint32) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flags = v
}

// Flush forces every signal's partially-filled buffers out as chunks.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.flushLocked()
}

func (w *Writer) flushLocked() error {
	for _, id := range w.signalOrder {
		st := w.signals.get(id)
		if st == nil {
			continue
		}
		if err := st.fsr.flush(w.cw); err != nil {
			return w.fail(err)
		}
		if err := st.utc.flush(w.cw); err != nil {
			return w.fail(err)
		}
	}
	return nil
}

// fail records the first error seen by the writer and returns it. The
// Writer's own methods do not consult the recorded error; failing fast on
// later calls is done by ThreadedWriter, which latches its first error.
func (w *Writer) fail(err error) error {
	if w.firstErr == nil {
		w.firstErr = err
	}
	return err
}

// Close flushes every track bottom-up, writes the root index chunk, patches
// the file header's root index offset last, and closes the underlying file.
// This ordering means a crash at any point before the final patch leaves a
// file whose root index offset is still 0 (or still points at a prior,
// complete root index), so Open's recovery scan is only ever needed for a
// file that crashed mid-write, never for one that completed Close.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.flushLocked(); err != nil {
		w.f.Close()
		return err
	}

	rootOffset, err := w.writeRootIndex()
	if err != nil {
		w.f.Close()
		return err
	}

	// This is the only write to the file header after Create: it patches
	// root_index_offset from 0 to its final value, leaving every other
	// header field (creation time in particular) untouched.
	if err := w.patchRootOffset(uint64(rootOffset)); err != nil {
		w.f.Close()
		return err
	}

	return w.f.Close()
}

// rootIndexOffsetFieldOffset is the byte offset of fileHeader.RootIndexOffset
// within the on-disk file header: 8 (Magic) + 2 (FormatVersion) + 2 (Reserved).
const rootIndexOffsetFieldOffset = 12

func (w *Writer) patchRootOffset(rootOffset uint64) error {
	buf := make([]byte, 8)
	putUint64(buf, rootOffset)
	_, err := w.f.WriteAt(buf, rootIndexOffsetFieldOffset)
	if err != nil {
		return newErr("Close", ErrIO, err)
	}
	return nil
}
