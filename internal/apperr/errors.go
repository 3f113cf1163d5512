// Package apperr defines the sentinel errors shared across layers.
package apperr

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrSelfParent       = errors.New("note cannot be its own parent")
	ErrParentNotFound   = errors.New("parent note does not exist")
	ErrDescendantParent = errors.New("cannot move note under its own descendant")
)

// IsBadRequest reports whether err should be surfaced to a client as a rejected request.
func IsBadRequest(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrSelfParent) ||
		errors.Is(err, ErrParentNotFound) ||
		errors.Is(err, ErrDescendantParent)
}
