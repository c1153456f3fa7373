package types

import (
	"errors"
	"fmt"
)

// ErrMountFailed is returned when the OS mount call for a URI fails.
// Transient: retried up to the configured attempt limit.
type ErrMountFailed struct {
	URI   string
	Cause error
}

func (e *ErrMountFailed) Error() string {
	return fmt.Sprintf("mount failed: %s: %v", e.URI, e.Cause)
}

func (e *ErrMountFailed) Unwrap() error {
	return e.Cause
}

// ErrRetriesExhausted is returned when a bookmark has failed more times
// than the retry limit allows. No further automatic attempts are made.
type ErrRetriesExhausted struct {
	URI      string
	Attempts int
}

func (e *ErrRetriesExhausted) Error() string {
	return fmt.Sprintf("giving up on %s after %d attempts", e.URI, e.Attempts)
}

// From checks if the given error is an ErrRetriesExhausted
func (e *ErrRetriesExhausted) From(err error) bool {
	var exhausted *ErrRetriesExhausted
	return errors.As(err, &exhausted)
}

// ErrSymlinkConflict is returned when the desired symlink path is occupied
// by a real file or directory. The occupant is never deleted.
type ErrSymlinkConflict struct {
	Path string
}

func (e *ErrSymlinkConflict) Error() string {
	return fmt.Sprintf("symlink path occupied by a non-symlink: %s", e.Path)
}

// ErrBookmarkNotFound is returned when a URI does not match any loaded bookmark
type ErrBookmarkNotFound struct {
	URI string
}

func (e *ErrBookmarkNotFound) Error() string {
	return fmt.Sprintf("bookmark not found: %s", e.URI)
}
