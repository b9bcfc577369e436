package jls

import (
	"errors"
	"fmt"
)

// ErrorCode is the closed set of error kinds a public operation can fail
// with. 0 (ErrOK) means success.
type ErrorCode int

const (
	ErrOK ErrorCode = iota
	ErrParameterInvalid
	ErrNotFound
	ErrAlreadyExists
	ErrIO
	ErrCrcMismatch
	ErrTruncated
	ErrUnsupportedVersion
	ErrUnsupported
	ErrOverflow
	ErrBusy
	ErrNotSupported
	ErrAbort
)

func (c ErrorCode) String() string {
	switch c {
	case ErrOK:
		return "OK"
	case ErrParameterInvalid:
		return "ParameterInvalid"
	case ErrNotFound:
		return "NotFound"
	case ErrAlreadyExists:
		return "AlreadyExists"
	case ErrIO:
		return "IO"
	case ErrCrcMismatch:
		return "CrcMismatch"
	case ErrTruncated:
		return "Truncated"
	case ErrUnsupportedVersion:
		return "UnsupportedVersion"
	case ErrUnsupported:
		return "Unsupported"
	case ErrOverflow:
		return "Overflow"
	case ErrBusy:
		return "Busy"
	case ErrNotSupported:
		return "NotSupported"
	case ErrAbort:
		return "Abort"
	default:
		return fmt.Sprintf("<unrecognized error code %d>", int(c))
	}
}

// Description returns a short human-readable description of the error code.
func (c ErrorCode) Description() string {
	switch c {
	case ErrOK:
		return "operation succeeded"
	case ErrParameterInvalid:
		return "an argument violated an operation's ordering or value invariant"
	case ErrNotFound:
		return "the referenced source, signal, or chunk does not exist"
	case ErrAlreadyExists:
		return "a source or signal with this id was already defined"
	case ErrIO:
		return "the underlying file returned an I/O error"
	case ErrCrcMismatch:
		return "a chunk failed CRC32C validation"
	case ErrTruncated:
		return "the file ended before a complete record could be read"
	case ErrUnsupportedVersion:
		return "the file's format version is not supported by this reader"
	case ErrUnsupported:
		return "the requested data was never stored (e.g. fsr_omit_data was set)"
	case ErrOverflow:
		return "a bounded queue was full and the caller asked not to block"
	case ErrBusy:
		return "the resource is in use and cannot be accessed right now"
	case ErrNotSupported:
		return "the operation is not implemented for this configuration"
	case ErrAbort:
		return "an internal invariant failed and the writer thread aborted"
	default:
		return "unrecognized error code"
	}
}

// Error wraps an ErrorCode with operation context, implementing the standard
// error interface. Every public operation that fails returns one of these
// (or an error satisfying errors.Is against the package sentinels below).
type Error struct {
	Code ErrorCode
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same code, or one of the
// package-level sentinels that corresponds to this error's code.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return other.Code == e.Code
	}
	if sentinel, ok := sentinelFor(e.Code); ok {
		return errors.Is(target, sentinel)
	}
	return false
}

func newErr(op string, code ErrorCode, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

// Sentinel errors for use with errors.Is, one per ErrorCode.
var (
	ErrSentinelParameterInvalid   = errors.New("jls: parameter invalid")
	ErrSentinelNotFound           = errors.New("jls: not found")
	ErrSentinelAlreadyExists      = errors.New("jls: already exists")
	ErrSentinelIO                 = errors.New("jls: io error")
	ErrSentinelCrcMismatch        = errors.New("jls: crc mismatch")
	ErrSentinelTruncated          = errors.New("jls: truncated")
	ErrSentinelUnsupportedVersion = errors.New("jls: unsupported version")
	ErrSentinelUnsupported        = errors.New("jls: unsupported")
	ErrSentinelOverflow           = errors.New("jls: overflow")
	ErrSentinelBusy               = errors.New("jls: busy")
	ErrSentinelNotSupported       = errors.New("jls: not supported")
	ErrSentinelAbort              = errors.New("jls: abort")
)

func sentinelFor(code ErrorCode) (error, bool) {
	switch code {
	case ErrParameterInvalid:
		return ErrSentinelParameterInvalid, true
	case ErrNotFound:
		return ErrSentinelNotFound, true
	case ErrAlreadyExists:
		return ErrSentinelAlreadyExists, true
	case ErrIO:
		return ErrSentinelIO, true
	case ErrCrcMismatch:
		return ErrSentinelCrcMismatch, true
	case ErrTruncated:
		return ErrSentinelTruncated, true
	case ErrUnsupportedVersion:
		return ErrSentinelUnsupportedVersion, true
	case ErrUnsupported:
		return ErrSentinelUnsupported, true
	case ErrOverflow:
		return ErrSentinelOverflow, true
	case ErrBusy:
		return ErrSentinelBusy, true
	case ErrNotSupported:
		return ErrSentinelNotSupported, true
	case ErrAbort:
		return ErrSentinelAbort, true
	default:
		return nil, false
	}
}
