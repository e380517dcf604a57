// Package syncerr defines the error types shared by the sync pipeline.
package syncerr

import (
	"errors"
	"fmt"
)

// ErrNotADirectory is matched by every NotADirectoryError via errors.Is.
var ErrNotADirectory = errors.New("not a directory")

// IOError reports a failed filesystem operation. Op names the operation
// ("open", "read", "copy", "move", "delete", ...) and Path the file it was
// applied to.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// NotADirectoryError is returned when a tree root exists but is not a directory.
type NotADirectoryError struct {
	Path string
}

func (e *NotADirectoryError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.Path, ErrNotADirectory)
}

func (e *NotADirectoryError) Unwrap() error { return ErrNotADirectory }

// Wrap returns an *IOError for op on path, or nil when err is nil.
func Wrap(op, path string, err error) error {
	if err == nil {
		return nil
	}
	return &IOError{Op: op, Path: path, Err: err}
}
