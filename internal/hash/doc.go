// Package hash provides the CRC32-Castagnoli checksums used for index file
// integrity: snapshot manifests record one checksum per file, and tests use
// file checksums to prove that no-op operations leave the bytes untouched.
//
//	checksum := hash.CRC32C(data)
//
// Go's crc32 package uses SSE4.2 / ARM CRC instructions when available.
package hash
