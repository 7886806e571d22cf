package shared

import "errors"

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("not found")
	// ErrReferenceNotFound indicates a lookup by foreign key failed to resolve.
	ErrReferenceNotFound = errors.New("referenced record not found")
	// ErrConcurrentUpdate indicates a lost-update was detected; the caller
	// should reload and retry.
	ErrConcurrentUpdate = errors.New("concurrent update detected")
)
