package transfer

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation means the peer's chunk sequence is inconsistent,
	// e.g. an end marker arrived while chunk slots were still empty. The
	// session is dropped; no output is fabricated.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrChannelClosed means the underlying peer channel went away mid
	// transfer. The transfer is abandoned, not retried.
	ErrChannelClosed = errors.New("channel closed")

	ErrBufferTimeout = errors.New("buffer drain timeout")
)

// TransferError annotates a failure with the operation and file it occurred
// on.
type TransferError struct {
	Op   string
	File string
	Err  error
}

func (e *TransferError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.File, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

func NewError(op string, err error) *TransferError {
	return &TransferError{Op: op, Err: err}
}

func NewFileError(op, file string, err error) *TransferError {
	return &TransferError{Op: op, File: file, Err: err}
}
