package storage

import "errors"

var (
	// ErrPathTraversal indicates a caller-supplied name escapes its directory.
	ErrPathTraversal = errors.New("storage: path traversal detected")
	// ErrInvalidName indicates an empty or unusable file name.
	ErrInvalidName = errors.New("storage: invalid file name")
	// ErrEmptyKey indicates an empty blob key was provided.
	ErrEmptyKey = errors.New("storage key must not be empty")
	// ErrInvalidKey indicates the blob key contains a path traversal segment.
	ErrInvalidKey = errors.New("storage key contains invalid path segment")
)
