package snapshot

import "errors"

var (
	// ErrChecksum is returned when restored bytes do not match the manifest.
	ErrChecksum = errors.New("snapshot: checksum mismatch")
	// ErrInvalidName is returned for names that cannot be used as a blob prefix.
	ErrInvalidName = errors.New("snapshot: invalid name")
	// ErrNoSnapshot is returned when the store has no CURRENT snapshot.
	ErrNoSnapshot = errors.New("snapshot: no current snapshot")
	// ErrManifest is returned for unreadable manifests.
	ErrManifest = errors.New("snapshot: invalid manifest")
	// ErrUnknownCompression is returned for unsupported compression names.
	ErrUnknownCompression = errors.New("snapshot: unknown compression")
)
