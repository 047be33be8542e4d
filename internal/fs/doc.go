// Package fs provides the filesystem seam used by the index engines.
//
// Engines never call the os package directly. They receive a [FileSystem]
// (normally [Default]) so that tests can swap in [FaultyFS] and simulate torn
// writes, failing fsyncs or short files:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("buckets.dat", fs.Fault{FailAfterBytes: 128})
//
// Index files are addressed by byte offset, so [File] exposes positional
// ReadAt/WriteAt in addition to the streaming interfaces.
//
// This package intentionally does NOT take context.Context. Local file
// operations are not interruptible at the syscall level.
package fs
