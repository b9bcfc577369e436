package jls

import "sync"

// cmdKind tags the variant held by a command.
type cmdKind uint8

const (
	cmdSourceDef cmdKind = iota
	cmdSignalDef
	cmdFSRSamples
	cmdAnnotation
	cmdUTC
	cmdUserData
	cmdFSROmitData
	cmdFlagsSet
	cmdFlush
	cmdClose
)

// isControl reports whether a command kind must never be dropped under a
// DropOnOverflow policy, because it changes writer-visible state (a
// definition, a flag, or a lifecycle op) rather than carrying droppable
// sample data.
func (k cmdKind) isControl() bool {
	switch k {
	case cmdSourceDef, cmdSignalDef, cmdFSROmitData, cmdFlagsSet, cmdFlush, cmdClose:
		return true
	default:
		return false
	}
}

type fsrSamplesCmd struct {
	signalID uint16
	sampleID int64
	data     []byte
	nSamples int
}

type utcCmd struct {
	signalID uint16
	entry    UTCEntry
}

type fsrOmitDataCmd struct {
	signalID uint16
	omit     bool
}

// command is the tagged union pushed through the ring buffer: exactly one of
// the payload fields is populated, selected by kind. done, when non-nil, is
// closed by the consumer once the command has been applied, carrying back
// the first error (if any) via err.
type command struct {
	kind cmdKind

	sourceDef   *Source
	signalDef   *Signal
	fsrSamples  *fsrSamplesCmd
	annotation  *Annotation
	annotSignal uint16
	utc         *utcCmd
	userData    *UserData
	fsrOmit     *fsrOmitDataCmd
	flags       uint32

	done chan struct{}
	err  error
}

// signalID returns the signal a command targets, if it targets one at all
// (a SourceDef, FlagsSet, Flush, or Close command does not).
func (c *command) signalID() (uint16, bool) {
	switch c.kind {
	case cmdSignalDef:
		return c.signalDef.SignalID, true
	case cmdFSRSamples:
		return c.fsrSamples.signalID, true
	case cmdAnnotation:
		return c.annotSignal, true
	case cmdUTC:
		return c.utc.signalID, true
	case cmdFSROmitData:
		return c.fsrOmit.signalID, true
	default:
		return 0, false
	}
}

func (c *command) complete(err error) {
	if c.done == nil {
		return
	}
	c.err = err
	close(c.done)
}

// cmdRing is a bounded SPSC queue of commands. One goroutine (the writer's
// public API) calls Push; a single background goroutine (threaded_writer.go)
// calls Pop. When full, Push either blocks or, for a droppable command under
// DropOnOverflow, evicts the oldest droppable command queued to make room.
type cmdRing struct {
	mu      sync.Mutex
	notFull *sync.Cond
	notEmpty *sync.Cond

	buf   []command
	head  int // next slot to Pop
	tail  int // next slot to Push
	count int

	dropOnOverflow bool
	closed         bool
	dropped        uint64 // count of sample commands evicted under overflow
}

func newCmdRing(capacity int, dropOnOverflow bool) *cmdRing {
	if capacity <= 0 {
		capacity = 1
	}
	r := &cmdRing{
		buf:            make([]command, capacity),
		dropOnOverflow: dropOnOverflow,
	}
	r.notFull = sync.NewCond(&r.mu)
	r.notEmpty = sync.NewCond(&r.mu)
	return r
}

// Push enqueues cmd, blocking while the ring is full unless dropOnOverflow is
// set and cmd is droppable, in which case a full ring causes Push to evict
// the oldest droppable command already queued (incrementing Dropped) and
// enqueue cmd in its place rather than blocking. Control commands always
// block rather than drop, and a full ring holding only control commands
// still blocks even when dropOnOverflow is set.
func (r *cmdRing) Push(cmd command) (pushed bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return false, newErr("ring.Push", ErrAbort, nil)
	}
	for r.count == len(r.buf) {
		if r.closed {
			return false, newErr("ring.Push", ErrAbort, nil)
		}
		if r.dropOnOverflow && !cmd.kind.isControl() && r.evictOldestDroppable() {
			break
		}
		r.notFull.Wait()
	}

	r.buf[r.tail] = cmd
	r.tail = (r.tail + 1) % len(r.buf)
	r.count++
	r.notEmpty.Signal()
	return true, nil
}

// evictOldestDroppable discards the oldest non-control command in the
// buffer to make room for an incoming one, incrementing the dropped-count.
// It reports whether a droppable command was found; a ring full of only
// control commands leaves it unable to make room.
func (r *cmdRing) evictOldestDroppable() bool {
	n := len(r.buf)
	for i := 0; i < r.count; i++ {
		idx := (r.head + i) % n
		if r.buf[idx].kind.isControl() {
			continue
		}
		for j := i; j < r.count-1; j++ {
			from := (r.head + j + 1) % n
			to := (r.head + j) % n
			r.buf[to] = r.buf[from]
		}
		last := (r.head + r.count - 1) % n
		r.buf[last] = command{}
		r.count--
		r.tail = (r.tail - 1 + n) % n
		r.dropped++
		return true
	}
	return false
}

// Dropped returns the number of sample commands discarded under a
// DropOnOverflow policy to make room for newer ones.
func (r *cmdRing) Dropped() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Pop blocks until a command is available and returns it, or returns
// ok=false once the ring has been closed and drained.
func (r *cmdRing) Pop() (cmd command, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for r.count == 0 {
		if r.closed {
			return command{}, false
		}
		r.notEmpty.Wait()
	}

	cmd = r.buf[r.head]
	r.buf[r.head] = command{}
	r.head = (r.head + 1) % len(r.buf)
	r.count--
	r.notFull.Signal()
	return cmd, true
}

// Close unblocks any Push/Pop callers waiting on a full or empty ring.
// Commands already queued remain available to Pop until drained.
func (r *cmdRing) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.notFull.Broadcast()
	r.notEmpty.Broadcast()
}
