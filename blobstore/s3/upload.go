package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"io"
	"os"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/diskidx/internal/hash"
)

// contentType is stored on every snapshot object.
const contentType = "application/octet-stream"

// UploadConfig configures how Store writes objects.
type UploadConfig struct {
	// PartSize is the multipart part size used by Create. Default: 8 MiB.
	PartSize int64
	// Concurrency is the number of parts uploaded in parallel. Default: 5.
	Concurrency int
	// EnableChecksum sends CRC32C checksums that S3 verifies. Default: true.
	EnableChecksum bool
	// LeavePartsOnError keeps the parts of a failed multipart upload.
	LeavePartsOnError bool
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       8 << 20,
		Concurrency:    5,
		EnableChecksum: true,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// putInput builds the PutObject request for key. data is nil for streamed
// uploads, which let the SDK compute the checksum per part.
func (s *Store) putInput(key string, data []byte) *s3.PutObjectInput {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	}
	if data != nil {
		in.Body = bytes.NewReader(data)
		in.ContentLength = aws.Int64(int64(len(data)))
	}
	if s.opts.Upload.EnableChecksum {
		if data != nil {
			in.ChecksumCRC32C = aws.String(checksumCRC32C(data))
		} else {
			in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
		}
	}
	return in
}

// checksumCRC32C returns the base64 of the big-endian CRC32C of data, the
// form S3 expects in x-amz-checksum-crc32c.
func checksumCRC32C(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], hash.CRC32C(data))
	return base64.StdEncoding.EncodeToString(b[:])
}

// uploadWriter feeds a pipe read by a background manager upload.
type uploadWriter struct {
	pw   *io.PipeWriter
	done chan error

	mu     sync.Mutex
	closed bool
	err    error
}

func newUploadWriter(ctx context.Context, uploader *manager.Uploader, in *s3.PutObjectInput) *uploadWriter {
	pr, pw := io.Pipe()
	in.Body = pr

	w := &uploadWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := uploader.Upload(ctx, in)
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w
}

func (w *uploadWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return 0, os.ErrClosed
	}
	return w.pw.Write(p)
}

// Sync is a no-op. Data becomes visible on Close.
func (w *uploadWriter) Sync() error { return nil }

// Close completes the upload and returns its result. Later calls return the
// same result.
func (w *uploadWriter) Close() error {
	return w.finish(w.pw.Close())
}

// Abort cancels the upload. Parts are removed unless LeavePartsOnError is set.
func (w *uploadWriter) Abort() error {
	_ = w.finish(w.pw.CloseWithError(context.Canceled))
	return nil
}

func (w *uploadWriter) finish(closeErr error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return w.err
	}
	w.closed = true
	if closeErr != nil {
		w.err = closeErr
		return w.err
	}
	w.err = <-w.done
	return w.err
}
