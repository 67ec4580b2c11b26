package protocol

import (
	"errors"
	"fmt"
)

// Parse failures reported by Reader and Decode. They are wrapped in a
// *ProtocolError and can be matched with errors.Is.
var (
	ErrEmptyInput          = errors.New("empty input")
	ErrUnknownType         = errors.New("unknown type byte")
	ErrInvalidLength       = errors.New("invalid length")
	ErrInvalidInteger      = errors.New("invalid integer")
	ErrTruncated           = errors.New("declared length exceeds available bytes")
	ErrMissingCRLF         = errors.New("missing CRLF terminator")
	ErrTrailingData        = errors.New("trailing data after frame")
	ErrInvalidSimpleString = errors.New("simple string contains CR or LF")
)

// ProtocolError describes malformed wire data.
type ProtocolError struct {
	Err    error
	Detail string

	// resync is set when the reader skipped past the bad input and is
	// positioned at the start of the next frame.
	resync bool
}

// Error implements the error interface
func (e *ProtocolError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("protocol error: %v", e.Err)
	}
	return fmt.Sprintf("protocol error: %v: %s", e.Err, e.Detail)
}

// Unwrap returns the wrapped error
func (e *ProtocolError) Unwrap() error {
	return e.Err
}

func protocolErr(err error, format string, args ...interface{}) error {
	return &ProtocolError{Err: err, Detail: fmt.Sprintf(format, args...)}
}

// IsProtocolError reports whether err was caused by malformed wire data
// rather than by the underlying connection.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// IsRecoverable reports whether a Reader can keep reading after err. Only a
// top-level frame with an unknown type byte qualifies; the rest of its line
// has already been skipped.
func IsRecoverable(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe) && pe.resync
}
