package jls

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesSentinel(t *testing.T) {
	err := newErr("fsr", ErrNotFound, nil)
	assert.ErrorIs(t, error(err), ErrSentinelNotFound)
	assert.NotErrorIs(t, error(err), ErrSentinelIO)
}

func TestErrorIsMatchesAnotherErrorOfSameCode(t *testing.T) {
	a := newErr("op_a", ErrTruncated, nil)
	b := newErr("op_b", ErrTruncated, errors.New("eof"))
	assert.ErrorIs(t, error(a), error(b))
}

func TestErrorUnwrapExposesUnderlyingCause(t *testing.T) {
	cause := errors.New("disk full")
	err := newErr("flush", ErrIO, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestErrorCodeStringAndDescriptionCoverAllCodes(t *testing.T) {
	codes := []ErrorCode{
		ErrOK, ErrParameterInvalid, ErrNotFound, ErrAlreadyExists, ErrIO,
		ErrCrcMismatch, ErrTruncated, ErrUnsupportedVersion, ErrUnsupported,
		ErrOverflow, ErrBusy, ErrNotSupported, ErrAbort,
	}
	for _, c := range codes {
		assert.NotContains(t, c.String(), "unrecognized")
		assert.NotContains(t, c.Description(), "unrecognized")
	}
}
