package merge

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrRunInProgress is returned when Run is called on a Merger that is already running.
var ErrRunInProgress = errors.New("merge already in progress")

// ParseError means an input could not be read as a table.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// MissingInputError lists inputs that were not supplied. A run that
// returns it never leaves StateIdle.
type MissingInputError struct {
	Inputs []string
}

func (e *MissingInputError) Error() string {
	return "missing input: " + strings.Join(e.Inputs, ", ")
}

// WriteError means the output workbook could not be serialized.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write output: %v", e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// ErrorKind is a machine-readable failure class.
type ErrorKind string

const (
	KindNone         ErrorKind = ""
	KindParse        ErrorKind = "parse"
	KindMissingInput ErrorKind = "missing_input"
	KindWrite        ErrorKind = "write"
	KindCancelled    ErrorKind = "cancelled"
	KindInternal     ErrorKind = "internal"
)

// KindOf classifies an error returned by Run.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var parseErr *ParseError
	var missingErr *MissingInputError
	var writeErr *WriteError

	switch {
	case errors.As(err, &missingErr):
		return KindMissingInput
	case errors.As(err, &parseErr):
		return KindParse
	case errors.As(err, &writeErr):
		return KindWrite
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInternal
	}
}
