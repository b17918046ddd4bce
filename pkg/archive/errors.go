package archive

import (
	"errors"
	"fmt"
)

// ErrEmptyDocument is returned when asked to write a document without entries.
var ErrEmptyDocument = errors.New("document has no entries")

// Operations reported in Error.Op.
const (
	OpEncode   = "encode"
	OpCompress = "compress"
	OpIO       = "io"
	OpDecode   = "decode"
)

// Error describes a failed archive operation.
type Error struct {
	Op   string
	Path string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("archive %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("archive %s: %v", e.Op, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Err
}
