// Package s3 stores index snapshots in Amazon S3.
//
//	store, err := s3.New(ctx, "my-bucket", s3.WithPrefix("indexes/people"))
//	if err != nil {
//	    return err
//	}
//	_, err = snapshot.Save(ctx, store, "nightly", idx.Files())
//
// Store reads with ranged GETs, sends CRC32C checksums on Put and streams
// Create through multipart uploads.
//
// CommitStore wraps any blobstore.BlobStore and keeps the CURRENT pointer in
// DynamoDB, so concurrent savers of one index set append to a shared commit
// history instead of racing on a CURRENT object:
//
//	commits := s3.NewCommitStore(store, dynamodb.NewFromConfig(cfg), "diskidx-commits", "people")
//	_, err = snapshot.Save(ctx, commits, "nightly", idx.Files())
//	history, err := commits.History(ctx, 10)
package s3
