// Package keycodec encodes typed scalar index keys to fixed-width byte spans.
//
// Three key kinds are supported:
//
//   - Int: int32, 4 bytes little-endian
//   - Float: float32, 4 bytes little-endian IEEE-754
//   - Text: UTF-8, right-padded with zero bytes to a fixed width
//
// The encoded form is what the index engines store and compare on disk.
// [Codec.CompareEncoded] orders two encoded keys without allocating, and
// [Codec.Decode] recovers the Go value (int32, float32 or string).
//
// Text keys lose trailing zero bytes on decode because zero is the pad byte.
package keycodec
