package jls

import "go.uber.org/zap"

// DefaultRingCapacity is the number of queued commands a threaded Writer
// buffers before Push either blocks or drops, per WriterOptions.DropOnOverflow.
const DefaultRingCapacity = 1024

// WriterOptions configures a Writer at Open time. The zero value is a
// usable, synchronous (unthreaded), blocking-on-overflow configuration.
type WriterOptions struct {
	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger

	// RingCapacity is the depth of the command ring used by a threaded
	// Writer (see OpenThreaded). Ignored by a synchronous Writer.
	RingCapacity int

	// DropOnOverflow makes a full ring buffer evict the oldest queued
	// sample-bearing command (fsr, annotation, utc, user_data) to make room
	// for a new one instead of blocking the caller. Definition, flag
	// (including fsr_omit_data) and lifecycle commands are never dropped.
	DropOnOverflow bool
}

func (o WriterOptions) withDefaults() WriterOptions {
	if o.Logger == nil {
		o.Logger = newDefaultLogger()
	}
	if o.RingCapacity <= 0 {
		o.RingCapacity = DefaultRingCapacity
	}
	return o
}

// ReaderOptions configures a Reader at Open time.
type ReaderOptions struct {
	// Logger receives structured diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger

	// AllowRecovery permits Open to fall back to a full forward scan, which
	// rebuilds each chain from every chunk's own tag, chunk_meta and embedded
	// range header, when the root index chunk is missing or fails CRC
	// validation. The scan does not consult offset_prev back-pointers. If
	// false, Open fails instead.
	AllowRecovery bool
}

func (o ReaderOptions) withDefaults() ReaderOptions {
	if o.Logger == nil {
		o.Logger = newDefaultLogger()
	}
	return o
}
