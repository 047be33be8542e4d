// Package minio stores index snapshots in MinIO or any other S3-compatible
// object store through the MinIO client.
//
//	store, err := minio.New("localhost:9000", "indexes",
//	    minio.WithPrefix("people"),
//	    minio.WithCredentials("minioadmin", "minioadmin"),
//	)
//	if err != nil {
//	    return err
//	}
//	if err := store.EnsureBucket(ctx); err != nil {
//	    return err
//	}
//	_, err = snapshot.Save(ctx, store, "nightly", idx.Files())
//
// Blob "nightly/ages.bpt.zst" is stored at key "people/nightly/ages.bpt.zst".
// Reads use ranged GETs, Put sends a Content-MD5 the server verifies, and
// Create streams into a multipart upload of unknown size.
package minio
