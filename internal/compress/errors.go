package compress

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoVideo is returned when a request carries no video payload.
var ErrNoVideo = errors.New("no video file provided")

// UnsupportedFormatError is returned when the upload extension is not in
// the allow-list.
type UnsupportedFormatError struct {
	Format string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported format %q", e.Format)
}

// Message returns the client-facing description listing the accepted formats.
func (e *UnsupportedFormatError) Message() string {
	return fmt.Sprintf("Format '%s' not supported. Supported formats are: %s",
		e.Format, strings.Join(supportedFormats, ", "))
}

// StageError is returned when the upload could not be written to temporary storage.
type StageError struct {
	Err error
}

func (e *StageError) Error() string { return "stage upload: " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

// EncodeError is returned when the external encoder fails. Detail is safe to
// show to clients: staged paths have been redacted.
type EncodeError struct {
	Detail string
	Err    error
}

func (e *EncodeError) Error() string { return "encode: " + e.Err.Error() }
func (e *EncodeError) Unwrap() error { return e.Err }

// TransferError is returned when the compressed output could not be
// delivered to the caller.
type TransferError struct {
	Err error
}

func (e *TransferError) Error() string { return "transfer: " + e.Err.Error() }
func (e *TransferError) Unwrap() error { return e.Err }
