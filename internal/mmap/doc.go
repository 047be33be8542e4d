// Package mmap provides read-only memory-mapped access to index files.
//
// It is used where a whole file must be scanned without copying it through
// the page file layer: checksumming index files and serving local snapshot
// blobs.
//
//	m, err := mmap.Open("nodes.dat")
//	if err != nil { ... }
//	defer m.Close()
//	sum := hash.CRC32C(m.Bytes())
//
// Mappings are read-only. Writers must not truncate a file while a mapping
// of it is open.
package mmap
