package jls

import (
	"sync"

	"go.uber.org/zap"
)

// ThreadedWriter wraps a Writer with a bounded command ring and a single
// background goroutine that drains it, so producers on other goroutines can
// call its methods without taking the Writer's lock directly. The first
// error encountered by the background goroutine is latched and returned by
// every subsequent call and by Close.
type ThreadedWriter struct {
	w    *Writer
	ring *cmdRing
	log  *zap.Logger

	wg       sync.WaitGroup
	mu       sync.Mutex
	firstErr error
}

// OpenThreaded creates a new Log file and starts its background drain
// goroutine.
func OpenThreaded(path string, opts WriterOptions) (*ThreadedWriter, error) {
	opts = opts.withDefaults()
	w, err := Create(path, opts)
	if err != nil {
		return nil, err
	}
	tw := &ThreadedWriter{
		w:    w,
		log:  opts.Logger,
		ring: newCmdRing(opts.RingCapacity, opts.DropOnOverflow),
	}
	tw.wg.Add(1)
	go tw.run()
	return tw, nil
}

func (tw *ThreadedWriter) run() {
	defer tw.wg.Done()
	for {
		cmd, ok := tw.ring.Pop()
		if !ok {
			return
		}
		err := tw.apply(cmd)
		cmd.complete(err)
		if err != nil {
			if sid, ok := cmd.signalID(); ok {
				withSignal(tw.log, sid).Warn("threaded writer command failed", zap.Error(err))
			} else {
				tw.log.Warn("threaded writer command failed", zap.Error(err))
			}
			tw.mu.Lock()
			if tw.firstErr == nil {
				tw.firstErr = err
			}
			tw.mu.Unlock()
		}
		if cmd.kind == cmdClose {
			return
		}
	}
}

func (tw *ThreadedWriter) apply(cmd command) error {
	switch cmd.kind {
	case cmdSourceDef:
		return tw.w.SourceDef(*cmd.sourceDef)
	case cmdSignalDef:
		return tw.w.SignalDef(*cmd.signalDef)
	case cmdFSRSamples:
		return tw.w.FSR(cmd.fsrSamples.signalID, cmd.fsrSamples.sampleID, cmd.fsrSamples.data, cmd.fsrSamples.nSamples)
	case cmdAnnotation:
		return tw.w.Annotation(cmd.annotSignal, *cmd.annotation)
	case cmdUTC:
		return tw.w.UTC(cmd.utc.signalID, cmd.utc.entry.SampleID, cmd.utc.entry.Timestamp)
	case cmdUserData:
		return tw.w.UserData(*cmd.userData)
	case cmdFSROmitData:
		return tw.w.FSROmitData(cmd.fsrOmit.signalID, cmd.fsrOmit.omit)
	case cmdFlagsSet:
		tw.w.FlagsSet(cmd.flags)
		return nil
	case cmdFlush:
		return tw.w.Flush()
	case cmdClose:
		return tw.w.Close()
	default:
		return newErr("threaded_writer", ErrParameterInvalid, nil)
	}
}

// Err returns the first error encountered by the background goroutine, if
// any.
func (tw *ThreadedWriter) Err() error {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return tw.firstErr
}

func (tw *ThreadedWriter) push(cmd command, wait bool) error {
	if cmd.kind != cmdClose {
		if err := tw.Err(); err != nil {
			return err
		}
	}
	if wait {
		cmd.done = make(chan struct{})
	}
	pushed, err := tw.ring.Push(cmd)
	if err != nil {
		return err
	}
	if !pushed {
		return nil
	}
	if wait {
		<-cmd.done
		return cmd.err
	}
	return nil
}

// Dropped returns the number of sample, annotation, UTC, or user-data
// commands evicted from the ring under a DropOnOverflow policy to make room
// for newer ones.
func (tw *ThreadedWriter) Dropped() uint64 {
	return tw.ring.Dropped()
}

// SourceDef enqueues a source definition. Definitions are control commands
// and always block rather than drop; this call waits for the background
// goroutine to apply it so a subsequent SignalDef referencing it is safe.
func (tw *ThreadedWriter) SourceDef(s Source) error {
	return tw.push(command{kind: cmdSourceDef, sourceDef: &s}, true)
}

// SignalDef enqueues a signal definition, blocking until applied.
func (tw *ThreadedWriter) SignalDef(s Signal) error {
	return tw.push(command{kind: cmdSignalDef, signalDef: &s}, true)
}

// FSR enqueues a sample batch. If the ThreadedWriter was opened with
// DropOnOverflow and the ring is full, the oldest queued droppable command
// is evicted (counted in Dropped) to make room for this one.
func (tw *ThreadedWriter) FSR(signalID uint16, sampleID int64, raw []byte, nSamples int) error {
	return tw.push(command{
		kind:       cmdFSRSamples,
		fsrSamples: &fsrSamplesCmd{signalID: signalID, sampleID: sampleID, data: raw, nSamples: nSamples},
	}, false)
}

// FSROmitData enqueues a data-omission toggle, blocking until applied.
func (tw *ThreadedWriter) FSROmitData(signalID uint16, omit bool) error {
	return tw.push(command{kind: cmdFSROmitData, fsrOmit: &fsrOmitDataCmd{signalID: signalID, omit: omit}}, true)
}

// Annotation enqueues an annotation, evicted under overflow like sample data.
func (tw *ThreadedWriter) Annotation(signalID uint16, a Annotation) error {
	return tw.push(command{kind: cmdAnnotation, annotSignal: signalID, annotation: &a}, false)
}

// UTC enqueues a sample_id->timestamp mapping, evicted under overflow like
// sample data.
func (tw *ThreadedWriter) UTC(signalID uint16, sampleID int64, ts Timestamp) error {
	return tw.push(command{kind: cmdUTC, utc: &utcCmd{signalID: signalID, entry: UTCEntry{SampleID: sampleID, Timestamp: ts}}}, false)
}

// UserData enqueues an opaque payload, evicted under overflow like sample
// data.
func (tw *ThreadedWriter) UserData(u UserData) error {
	return tw.push(command{kind: cmdUserData, userData: &u}, false)
}

// FlagsSet enqueues a flags update, blocking until applied.
func (tw *ThreadedWriter) FlagsSet(v uint32) error {
	return tw.push(command{kind: cmdFlagsSet, flags: v}, true)
}

// Flush blocks until every currently-queued command has been applied and
// every signal's buffers have been flushed to chunks.
func (tw *ThreadedWriter) Flush() error {
	return tw.push(command{kind: cmdFlush}, true)
}

// Close blocks until every currently-queued command has been applied, then
// closes the underlying Writer and stops the background goroutine.
func (tw *ThreadedWriter) Close() error {
	err := tw.push(command{kind: cmdClose}, true)
	tw.ring.Close()
	tw.wg.Wait()
	if err != nil {
		return err
	}
	return tw.Err()
}
