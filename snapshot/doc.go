// Package snapshot ships index files to and from a blobstore.BlobStore.
//
// A snapshot called name is stored as one compressed blob per file under
// "<name>/", a manifest "<name>/MANIFEST" recording size and CRC32C of every
// file, and finally the store-wide "CURRENT" pointer naming the newest
// snapshot. Restore verifies every file against the manifest before renaming
// it into place.
//
//	m, err := snapshot.Save(ctx, store, "nightly", idx.Files(),
//	    snapshot.WithCompression(snapshot.CompressionZSTD))
//
//	m, err = snapshot.Restore(ctx, store, "", "/var/lib/indexes")
package snapshot
