// Package jls implements a writer/reader for a self-describing, append-only
// binary time-series log: fixed-header chunks with CRC32C checksums, chained
// per-tag into a hierarchical summary/index tree per signal, so that a reader
// can serve ranged reads and multi-resolution statistics without rescanning
// the full file.
package jls

import "fmt"

// Magic identifies a Log file. It is the first 8 bytes of every file.
var Magic = [8]byte{'J', 'L', 'S', 0x1a, 0x0d, 0x0a, 0x00, 0x00}

// FormatVersion is the current on-disk format version written by this package.
const FormatVersion uint16 = 1

// EpochUnix is the Unix time of 2018-01-01T00:00:00Z, the zero point for all
// fixed-point timestamps used by this package.
const EpochUnix int64 = 1514764800

// TimeTicksPerSecond is the number of fixed-point fractional ticks in one
// second of a Timestamp value: 1s = 2^30 ticks.
const TimeTicksPerSecond = 1 << 30

// Timestamp is a fixed-point count of seconds-since-Epoch, in units of
// 1/2^30 of a second.
type Timestamp int64

// FileHeaderSize is the size in bytes of the leading file header.
const FileHeaderSize = 32

// fileHeader is the first record in a Log file: magic, format version, the
// offset of the root index chunk (patched at Close), and the file's creation
// time.
type fileHeader struct {
	Magic           [8]byte
	FormatVersion   uint16
	Reserved        uint16
	RootIndexOffset uint64
	CreationTime    Timestamp
	Reserved2       uint32
}

// Kind distinguishes fixed-sample-rate from variable-sample-rate signals.
type Kind uint8

const (
	// KindFSR is a fixed sample rate signal: sample_id increments by one per sample.
	KindFSR Kind = iota
	// KindVSR is a variable sample rate signal: each sample carries its own timestamp.
	KindVSR
)

func (k Kind) String() string {
	switch k {
	case KindFSR:
		return "FSR"
	case KindVSR:
		return "VSR"
	default:
		return fmt.Sprintf("<unrecognized kind 0x%02x>", byte(k))
	}
}

// Source describes the origin of one or more signals.
type Source struct {
	SourceID     uint16
	Name         string
	Vendor       string
	Model        string
	Version      string
	SerialNumber string
}

// GlobalSourceID is the reserved source_id for signals with no specific
// instrument source.
const GlobalSourceID uint16 = 0

// Signal describes one time series and the geometry of its summary tree.
// Structural parameters left at zero by the caller are auto-filled by
// defaultStructuralParams at definition time; once defined, a signal's
// structural parameters never change.
type Signal struct {
	SignalID   uint16
	SourceID   uint16
	Kind       Kind
	DataType   DataType
	SampleRate float64 // Hz; 0 for VSR.

	SamplesPerData          uint32
	SampleDecimateFactor    uint32
	EntriesPerSummary       uint32
	SummaryDecimateFactor   uint32
	AnnotationDecimateFactor uint32
	UTCDecimateFactor       uint32

	SampleIDOffset int64
	Name           string
	Units          string

	// Compression, if set, compresses level-0 data chunk payloads for this
	// signal. Summary, index, annotation and UTC chunks are never compressed,
	// so the reader can binary-search them without a decompress pass.
	Compression CompressionFormat

	// OmitData disables level-0 chunk emission: only summaries are stored.
	// Set via fsr_omit_data.
	OmitData bool
}

// MinSignalID and MaxSignalID bound the valid signal_id range.
const (
	MinSignalID = 1
	MaxSignalID = 255
)

// CompressionFormat selects the codec used for a signal's data chunks.
type CompressionFormat string

const (
	CompressionNone CompressionFormat = ""
	CompressionLZ4  CompressionFormat = "lz4"
	CompressionZSTD CompressionFormat = "zstd"
)

// SummaryEntry is the four-statistic summary (mean, std, min, max) over one
// window of raw or lower-level data. Count is implicit in the level's
// decimate factor; a window with zero valid samples summarizes to NaN in all
// four fields.
type SummaryEntry struct {
	Mean float64
	Std  float64
	Min  float64
	Max  float64
}

// UTCEntry maps one sample_id to one Timestamp. It is used both as a leaf in
// the timestamp track and as an annotation-style on-disk record.
type UTCEntry struct {
	SampleID  int64
	Timestamp Timestamp
}

// AnnotationType enumerates the kinds of annotation a caller may record.
type AnnotationType uint8

const (
	AnnotationUser AnnotationType = iota
	AnnotationText
	AnnotationVMarker
	AnnotationHMarker
)

func (t AnnotationType) String() string {
	switch t {
	case AnnotationUser:
		return "user"
	case AnnotationText:
		return "text"
	case AnnotationVMarker:
		return "vmarker"
	case AnnotationHMarker:
		return "hmarker"
	default:
		return fmt.Sprintf("<unrecognized annotation type 0x%02x>", byte(t))
	}
}

// StorageType describes how an Annotation or UserData payload is encoded.
type StorageType uint8

const (
	StorageBinary StorageType = iota
	StorageString
	StorageJSON
)

func (s StorageType) String() string {
	switch s {
	case StorageBinary:
		return "binary"
	case StorageString:
		return "string"
	case StorageJSON:
		return "json"
	default:
		return fmt.Sprintf("<unrecognized storage type 0x%02x>", byte(s))
	}
}

// Annotation is a user- or system-recorded marker against a signal. Timestamp
// is a sample_id for FSR signals and a raw UTC fixed-point value for VSR
// signals. Y of NaN means "auto-position".
type Annotation struct {
	Timestamp      int64
	Y              float32
	AnnotationType AnnotationType
	GroupID        uint8
	StorageType    StorageType
	Payload        []byte
}

// UserData is an opaque, caller-tagged payload stored in write order.
type UserData struct {
	ChunkMeta   uint16
	StorageType StorageType
	Payload     []byte
}
