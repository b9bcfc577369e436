package jls

import (
	"fmt"
	"io"
)

// Tag distinguishes the kind of record a chunk carries. Chunks are chained
// per (Tag, ChunkMeta): multiple independent chains can share a Tag as long
// as their ChunkMeta differs (see chunkMeta below).
type Tag uint8

const (
	TagSourceDef Tag = iota
	TagSignalDef
	TagIndex
	TagData
	TagSummary
	TagAnnotation
	TagUTC
	TagUserData
	TagEnd
)

func (t Tag) String() string {
	switch t {
	case TagSourceDef:
		return "source_def"
	case TagSignalDef:
		return "signal_def"
	case TagIndex:
		return "index"
	case TagData:
		return "data"
	case TagSummary:
		return "summary"
	case TagAnnotation:
		return "annotation"
	case TagUTC:
		return "utc"
	case TagUserData:
		return "user_data"
	case TagEnd:
		return "end"
	default:
		return fmt.Sprintf("<unrecognized tag 0x%02x>", byte(t))
	}
}

// streamKind distinguishes the three families of per-level chain a signal
// can own: its raw/summary cascade (FSR), its timestamp track (UTC), and its
// annotation track.
type streamKind uint8

const (
	streamFSR streamKind = iota
	streamUTC
	streamAnnotation
)

// makeChunkMeta packs a chain key into the 16-bit chunk_meta field:
// signal_id in bits 0-7, level in bits 8-11, stream kind in bits 12-15. Two
// chunks belong to the same chain iff they share both Tag and ChunkMeta.
func makeChunkMeta(signalID uint8, level uint8, kind streamKind) uint16 {
	return uint16(signalID) | uint16(level&0xf)<<8 | uint16(kind&0xf)<<12
}

func (m uint16Meta) signalID() uint8   { return uint8(m) }
func (m uint16Meta) level() uint8      { return uint8(m>>8) & 0xf }
func (m uint16Meta) stream() streamKind { return streamKind(m>>12) & 0xf }

type uint16Meta uint16

func parseChunkMeta(m uint16) (signalID uint8, level uint8, kind streamKind) {
	meta := uint16Meta(m)
	return meta.signalID(), meta.level(), meta.stream()
}

// chunkHeaderSize is the on-disk size of a chunkHeader: 28 bytes of
// CRC-covered fields, a 4-byte header CRC, and a 4-byte payload CRC.
const chunkHeaderSize = 36

// chunkHeaderCRCSpan is the number of leading header bytes covered by
// header_crc.
const chunkHeaderCRCSpan = 28

// chunkHeader is the fixed 36-byte record prefixed to every chunk's payload.
type chunkHeader struct {
	PayloadLength     uint32
	PayloadPrevLength uint32
	Tag               Tag
	Rsv               uint8
	ChunkMeta         uint16
	OffsetNext        uint64
	OffsetPrev        uint64
	HeaderCRC         uint32
	PayloadCRC        uint32
}

func (h chunkHeader) marshal() []byte {
	buf := make([]byte, chunkHeaderSize)
	o := 0
	o += putUint32(buf[o:], h.PayloadLength)
	o += putUint32(buf[o:], h.PayloadPrevLength)
	buf[o] = byte(h.Tag)
	o++
	buf[o] = h.Rsv
	o++
	o += putUint16(buf[o:], h.ChunkMeta)
	o += putUint64(buf[o:], h.OffsetNext)
	o += putUint64(buf[o:], h.OffsetPrev)
	if o != chunkHeaderCRCSpan {
		panic("chunk.go: header CRC span mismatch")
	}
	o += putUint32(buf[o:], h.HeaderCRC)
	o += putUint32(buf[o:], h.PayloadCRC)
	return buf
}

func unmarshalChunkHeader(buf []byte) (chunkHeader, error) {
	if len(buf) < chunkHeaderSize {
		return chunkHeader{}, io.ErrUnexpectedEOF
	}
	var h chunkHeader
	var err error
	o := 0
	var u32 uint32
	u32, o, err = getUint32(buf, o)
	if err != nil {
		return h, err
	}
	h.PayloadLength = u32
	u32, o, err = getUint32(buf, o)
	if err != nil {
		return h, err
	}
	h.PayloadPrevLength = u32
	h.Tag = Tag(buf[o])
	o++
	h.Rsv = buf[o]
	o++
	var u16 uint16
	u16, o, err = getUint16(buf, o)
	if err != nil {
		return h, err
	}
	h.ChunkMeta = u16
	var u64 uint64
	u64, o, err = getUint64(buf, o)
	if err != nil {
		return h, err
	}
	h.OffsetNext = u64
	u64, o, err = getUint64(buf, o)
	if err != nil {
		return h, err
	}
	h.OffsetPrev = u64
	u32, o, err = getUint32(buf, o)
	if err != nil {
		return h, err
	}
	h.HeaderCRC = u32
	u32, _, err = getUint32(buf, o)
	if err != nil {
		return h, err
	}
	h.PayloadCRC = u32
	return h, nil
}

func (h chunkHeader) computeHeaderCRC() uint32 {
	b := h.marshal()
	return checksumCRC32C(b[:chunkHeaderCRCSpan])
}

// chunkPadding returns the number of zero bytes that follow a payload of
// payloadLen bytes so each on-disk record occupies a multiple of 8 bytes.
func chunkPadding(payloadLen int) int {
	total := chunkHeaderSize + payloadLen
	return (8 - total%8) % 8
}

// chunkReadWriter is an append-only, random-access-patchable file handle:
// the minimal surface chunk.go needs to both append new chunks and back-patch
// the offset_next of the chunk preceding them in a chain.
type chunkReadWriter interface {
	io.ReaderAt
	io.WriterAt
}

// chunkWriter appends chunks to a file, tracking the write cursor and
// back-patching each chain's previous head so offset_next always points
// forward once the next chunk in the same chain is written.
type chunkWriter struct {
	f   chunkReadWriter
	pos int64
}

func newChunkWriter(f chunkReadWriter, startPos int64) *chunkWriter {
	return &chunkWriter{f: f, pos: startPos}
}

func (cw *chunkWriter) Pos() int64 { return cw.pos }

// append writes one chunk at the current write cursor and, if prevOffset is
// nonzero, patches that earlier chunk's offset_next (and recomputes its
// header CRC) to point at the new chunk. It returns the new chunk's offset.
func (cw *chunkWriter) append(tag Tag, meta uint16, payload []byte, prevOffset int64, prevPayloadLength uint32) (int64, error) {
	offset := cw.pos
	h := chunkHeader{
		PayloadLength:     uint32(len(payload)),
		PayloadPrevLength: prevPayloadLength,
		Tag:               tag,
		ChunkMeta:         meta,
		OffsetNext:        0,
		OffsetPrev:        uint64(prevOffset),
		PayloadCRC:        checksumCRC32C(payload),
	}
	h.HeaderCRC = h.computeHeaderCRC()

	record := make([]byte, chunkHeaderSize+len(payload)+chunkPadding(len(payload)))
	copy(record, h.marshal())
	copy(record[chunkHeaderSize:], payload)

	if _, err := cw.f.WriteAt(record, offset); err != nil {
		return 0, newErr("chunk.append", ErrIO, err)
	}
	cw.pos = offset + int64(len(record))

	if prevOffset != 0 {
		if err := cw.patchNext(prevOffset, offset); err != nil {
			return 0, err
		}
	}
	return offset, nil
}

// patchNext rewrites the offset_next field (and the header CRC that covers
// it) of the chunk at prevOffset so it points at nextOffset.
func (cw *chunkWriter) patchNext(prevOffset, nextOffset int64) error {
	buf := make([]byte, chunkHeaderSize)
	if _, err := cw.f.ReadAt(buf, prevOffset); err != nil {
		return newErr("chunk.patchNext", ErrIO, err)
	}
	h, err := unmarshalChunkHeader(buf)
	if err != nil {
		return newErr("chunk.patchNext", ErrTruncated, err)
	}
	h.OffsetNext = uint64(nextOffset)
	h.HeaderCRC = h.computeHeaderCRC()
	if _, err := cw.f.WriteAt(h.marshal(), prevOffset); err != nil {
		return newErr("chunk.patchNext", ErrIO, err)
	}
	return nil
}

// readChunkHeaderAt reads and CRC-validates the header at offset.
func readChunkHeaderAt(r io.ReaderAt, offset int64) (chunkHeader, error) {
	buf := make([]byte, chunkHeaderSize)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return chunkHeader{}, newErr("chunk.readHeader", ErrIO, err)
	}
	h, err := unmarshalChunkHeader(buf)
	if err != nil {
		return chunkHeader{}, newErr("chunk.readHeader", ErrTruncated, err)
	}
	if h.computeHeaderCRC() != h.HeaderCRC {
		return chunkHeader{}, newErr("chunk.readHeader", ErrCrcMismatch, nil)
	}
	return h, nil
}

// readChunkAt reads and CRC-validates the full chunk (header and payload) at
// offset.
func readChunkAt(r io.ReaderAt, offset int64) (chunkHeader, []byte, error) {
	h, err := readChunkHeaderAt(r, offset)
	if err != nil {
		return chunkHeader{}, nil, err
	}
	payload := make([]byte, h.PayloadLength)
	if h.PayloadLength > 0 {
		if _, err := r.ReadAt(payload, offset+chunkHeaderSize); err != nil {
			return chunkHeader{}, nil, newErr("chunk.readPayload", ErrIO, err)
		}
	}
	if checksumCRC32C(payload) != h.PayloadCRC {
		return chunkHeader{}, nil, newErr("chunk.readPayload", ErrCrcMismatch, nil)
	}
	return h, payload, nil
}

// walkChain walks forward from headOffset via offset_next, calling visit for
// each chunk. It stops cleanly (without error) at the first chunk whose
// offset_next is 0, or at the first chunk that fails to read or validate,
// since a torn trailing write must not prevent the reader from serving the
// chain's already-durable prefix.
func walkChain(r io.ReaderAt, headOffset int64, visit func(h chunkHeader, payload []byte) error) error {
	offset := headOffset
	for offset != 0 {
		h, payload, err := readChunkAt(r, offset)
		if err != nil {
			return nil
		}
		if err := visit(h, payload); err != nil {
			return err
		}
		offset = int64(h.OffsetNext)
	}
	return nil
}
