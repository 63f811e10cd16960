package render

import (
	"errors"
	"fmt"
)

// ErrRenderFailed matches every *FallbackError: both engines were tried
// and no artifact exists.
var ErrRenderFailed = errors.New("render: rendering failed completely")

// ErrNoBrowser is returned by Chrome when no browser executable is found.
var ErrNoBrowser = errors.New("render: no browser executable found")

// RenderError reports which engine failed and at which stage
// (markup, launch, connect, content, print, stamp, compose, ...).
type RenderError struct {
	Tag   Tag
	Stage string
	Err   error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render: %s engine: %s: %v", e.Tag, e.Stage, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

// FallbackError is terminal: the fallback path failed after the primary
// path had already failed.
type FallbackError struct {
	Primary error // why the primary path was abandoned
	Err     error // why the fallback failed
}

func (e *FallbackError) Error() string {
	return fmt.Sprintf("%v: fallback: %v (primary: %v)", ErrRenderFailed, e.Err, e.Primary)
}

func (e *FallbackError) Unwrap() error { return e.Err }

// Is reports ErrRenderFailed as a match.
func (e *FallbackError) Is(target error) bool { return target == ErrRenderFailed }

func stageError(tag Tag, stage string, err error) error {
	return &RenderError{Tag: tag, Stage: stage, Err: err}
}
