// Package blobstore provides object storage for index snapshots.
//
// BlobStore is the interface for reading and writing immutable blobs (index
// files, snapshot manifests). Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: in-memory store for tests
//   - LocalStore: local file system with mmap reads
//   - minio.Store: MinIO and other S3-compatible storage
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - s3.CommitStore: any BlobStore plus a DynamoDB commit history for CURRENT
//
// BytesBlob adapts an in-memory slice to Blob.
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Create(ctx, name) (WritableBlob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
