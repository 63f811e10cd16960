package docpipe

import (
	"errors"
	"fmt"
)

// ErrExtraction matches every *ExtractionError via errors.Is.
var ErrExtraction = errors.New("docpipe: extraction failed")

// ExtractionError is returned when a source document cannot be read or is
// not a supported format. It is fatal for a conversion: a second attempt on
// the same bytes would fail identically.
type ExtractionError struct {
	Path string
	Op   string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("docpipe: extract %s: %s: %v", e.Path, e.Op, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Is reports ErrExtraction as a match.
func (e *ExtractionError) Is(target error) bool { return target == ErrExtraction }

func extractionError(path, op string, err error) error {
	return &ExtractionError{Path: path, Op: op, Err: err}
}
