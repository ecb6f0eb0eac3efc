// Package store provides a JSON-file-backed collection store.
package store

import (
	"errors"
)

// Failure taxonomy surfaced to callers. Every operation wraps one of these
// sentinels so entity-layer code can branch with the Is* helpers without
// inspecting messages.
var (
	// ErrInvalidPath marks a path with a traversal segment or one that
	// resolves outside the data root.
	ErrInvalidPath = errors.New("invalid path")

	// ErrNotFound marks a missing file, key, or record depending on the
	// operation.
	ErrNotFound = errors.New("not found")

	// ErrDecode marks a collection file holding malformed JSON.
	ErrDecode = errors.New("decode error")

	// ErrRead marks a file read failure other than absence, such as a
	// permission error.
	ErrRead = errors.New("read error")

	// ErrWrite marks a temp-file write or rename failure. The previously
	// committed file is left untouched.
	ErrWrite = errors.New("write error")

	// ErrInvalidInput marks a nil document or a record missing required
	// fields.
	ErrInvalidInput = errors.New("invalid input")
)

// IsInvalidPath checks if an error is a path validation error
func IsInvalidPath(err error) bool {
	return errors.Is(err, ErrInvalidPath)
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsDecode checks if an error is a JSON decode error
func IsDecode(err error) bool {
	return errors.Is(err, ErrDecode)
}

// IsRead checks if an error is a read error
func IsRead(err error) bool {
	return errors.Is(err, ErrRead)
}

// IsWrite checks if an error is a write/rename error
func IsWrite(err error) bool {
	return errors.Is(err, ErrWrite)
}

// IsInvalidInput checks if an error is an input validation error
func IsInvalidInput(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}
