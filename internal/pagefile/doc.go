// Package pagefile provides fixed-offset record I/O over a single index file.
//
// A File is held open for the lifetime of an engine. Records are addressed
// by byte offset and must be read and written whole: the optional block cache
// is keyed by (path, offset), so a partial write inside a cached record would
// leave a stale copy behind.
//
// Reads that return fewer bytes than requested are reported as
// *index.CorruptError. Writes go to the file before the cache, and Flush
// fsyncs when the File was opened with Options.Sync.
package pagefile
