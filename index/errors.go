package index

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateKey is returned when inserting a key that a unique index already holds.
	ErrDuplicateKey = errors.New("index: duplicate key")
	// ErrCorrupt is returned when a file is shorter than its layout requires or a header is invalid.
	ErrCorrupt = errors.New("index: corrupt file")
	// ErrUnsupported is returned for operations an engine cannot answer.
	ErrUnsupported = errors.New("index: unsupported operation")
	// ErrDepthLimit is returned when a hash bucket is full at the maximum depth and chaining is disabled.
	ErrDepthLimit = errors.New("index: depth limit reached")
	// ErrClosed is returned by operations on a closed index.
	ErrClosed = errors.New("index: closed")
	// ErrPositionRange is returned when a position does not fit the engine's on-disk field.
	ErrPositionRange = errors.New("index: position out of range")
	// ErrUnknownKind is returned when no engine is registered for a kind.
	ErrUnknownKind = errors.New("index: unknown kind")
	// ErrInvalidConfig is returned for invalid engine configuration.
	ErrInvalidConfig = errors.New("index: invalid config")
)

// CorruptError describes a read that returned fewer bytes than the layout requires.
// It matches ErrCorrupt with errors.Is.
type CorruptError struct {
	Path   string
	Offset int64
	Want   int
	Got    int
	// Err is the underlying I/O error, if any.
	Err error
}

// Error implements error.
func (e *CorruptError) Error() string {
	msg := fmt.Sprintf("index: corrupt file %s: read %d of %d bytes at offset %d", e.Path, e.Got, e.Want, e.Offset)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying I/O error.
func (e *CorruptError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCorrupt.
func (e *CorruptError) Is(target error) bool { return target == ErrCorrupt }

// Corruptf returns an error wrapping ErrCorrupt with a formatted message.
func Corruptf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
}
