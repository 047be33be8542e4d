package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/diskidx/blobstore"
)

// API is the subset of *minio.Client used by Store. GetObject returns the
// object as a plain io.ReadCloser.
type API interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	StatObject(ctx context.Context, bucket, key string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	RemoveObject(ctx context.Context, bucket, key string, opts minio.RemoveObjectOptions) error
	ListObjects(ctx context.Context, bucket string, opts minio.ListObjectsOptions) <-chan minio.ObjectInfo
}

type clientAPI struct {
	*minio.Client
}

func (c clientAPI) GetObject(ctx context.Context, bucket, key string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	return c.Client.GetObject(ctx, bucket, key, opts)
}

// Options configures a Store.
type Options struct {
	// Prefix is the key prefix all snapshot blobs live under.
	Prefix string
	// Region is the bucket region used by New and EnsureBucket.
	Region string
	// Secure selects HTTPS. Used by New only.
	Secure bool
	// AccessKey and SecretKey are static credentials for New. When empty, New
	// reads MINIO_ACCESS_KEY/MINIO_SECRET_KEY and then the AWS variables.
	AccessKey string
	SecretKey string
	// PartSize is the multipart part size of streamed uploads. Zero lets the
	// client choose.
	PartSize uint64
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) func(o *Options) {
	return func(o *Options) { o.Prefix = strings.Trim(prefix, "/") }
}

// WithRegion sets the bucket region.
func WithRegion(region string) func(o *Options) {
	return func(o *Options) { o.Region = region }
}

// WithSecure enables HTTPS.
func WithSecure(secure bool) func(o *Options) {
	return func(o *Options) { o.Secure = secure }
}

// WithCredentials sets static credentials.
func WithCredentials(accessKey, secretKey string) func(o *Options) {
	return func(o *Options) { o.AccessKey, o.SecretKey = accessKey, secretKey }
}

// WithPartSize sets the part size of streamed uploads.
func WithPartSize(n uint64) func(o *Options) {
	return func(o *Options) { o.PartSize = n }
}

// Store keeps snapshot blobs in a MinIO or other S3-compatible bucket.
type Store struct {
	api    API
	bucket string
	opts   Options
}

var _ blobstore.BlobStore = (*Store)(nil)

// New connects to endpoint and returns a Store for bucket.
func New(endpoint, bucket string, optFns ...func(o *Options)) (*Store, error) {
	opts := newOptions(optFns)

	creds := credentials.NewChainCredentials([]credentials.Provider{
		&credentials.EnvMinio{},
		&credentials.EnvAWS{},
	})
	if opts.AccessKey != "" {
		creds = credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, "")
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  creds,
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio: connect %s: %w", endpoint, err)
	}
	return &Store{api: clientAPI{client}, bucket: bucket, opts: opts}, nil
}

// NewStore returns a Store over an existing client.
func NewStore(client *minio.Client, bucket string, optFns ...func(o *Options)) *Store {
	return NewStoreFromAPI(clientAPI{client}, bucket, optFns...)
}

// NewStoreFromAPI returns a Store over any API implementation.
func NewStoreFromAPI(api API, bucket string, optFns ...func(o *Options)) *Store {
	return &Store{api: api, bucket: bucket, opts: newOptions(optFns)}
}

func newOptions(optFns []func(o *Options)) Options {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	return opts
}

// EnsureBucket creates the bucket if it does not exist.
func (s *Store) EnsureBucket(ctx context.Context) error {
	ok, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("minio: bucket %s: %w", s.bucket, err)
	}
	if ok {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.opts.Region}); err != nil {
		return fmt.Errorf("minio: make bucket %s: %w", s.bucket, err)
	}
	return nil
}

// Key returns the object key of blob name.
func (s *Store) Key(name string) string {
	if s.opts.Prefix == "" {
		return name
	}
	return path.Join(s.opts.Prefix, name)
}

// Name returns the blob name of an object key, or false when the key lies
// outside the prefix.
func (s *Store) Name(key string) (string, bool) {
	if s.opts.Prefix == "" {
		return key, key != ""
	}
	name, ok := strings.CutPrefix(key, s.opts.Prefix+"/")
	return name, ok && name != ""
}

// Open stats the object and returns a blob that reads it with ranged GETs.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.Key(name)
	info, err := s.api.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, objectError("stat", key, err)
	}
	return &object{api: s.api, bucket: s.bucket, key: key, size: info.Size}, nil
}

// Put uploads data in one request. The server verifies its MD5.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.Key(name)
	_, err := s.api.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:    "application/octet-stream",
		SendContentMd5: true,
	})
	if err != nil {
		return objectError("put", key, err)
	}
	return nil
}

// Create streams writes into an upload of unknown size that completes on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	key := s.Key(name)
	pr, pw := io.Pipe()
	w := &streamWriter{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := s.api.PutObject(ctx, s.bucket, key, pr, -1, minio.PutObjectOptions{
			ContentType: "application/octet-stream",
			PartSize:    s.opts.PartSize,
		})
		if err != nil {
			err = objectError("put", key, err)
		}
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// Delete removes the object. Missing objects are not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	key := s.Key(name)
	if err := s.api.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil && !isNotFound(err) {
		return objectError("remove", key, err)
	}
	return nil
}

// List returns the sorted blob names below the prefix that start with prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	listPrefix := s.Key(prefix)
	if prefix == "" && s.opts.Prefix != "" {
		listPrefix = s.opts.Prefix + "/"
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var names []string
	for obj := range s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Prefix: listPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, objectError("list", listPrefix, obj.Err)
		}
		if name, ok := s.Name(obj.Key); ok && strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func isNotFound(err error) bool {
	resp := minio.ToErrorResponse(err)
	return resp.StatusCode == http.StatusNotFound || resp.Code == "NoSuchKey" || resp.Code == "NotFound"
}

func objectError(op, key string, err error) error {
	if isNotFound(err) {
		return fmt.Errorf("minio: %s %s: %w", op, key, blobstore.ErrNotFound)
	}
	return fmt.Errorf("minio: %s %s: %w", op, key, err)
}

type object struct {
	api    API
	bucket string
	key    string
	size   int64
}

func (o *object) Size() int64 { return o.size }

func (o *object) Close() error { return nil }

func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 || off >= o.size {
		return 0, io.EOF
	}
	n := min(int64(len(p)), o.size-off)
	r, err := o.get(ctx, off, n)
	if err != nil {
		return 0, err
	}
	defer func() { _ = r.Close() }()

	read, err := io.ReadFull(r, p[:n])
	if err != nil {
		return read, fmt.Errorf("minio: read %s: %w", o.key, err)
	}
	if read < len(p) {
		return read, io.EOF
	}
	return read, nil
}

func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= o.size {
		return nil, io.EOF
	}
	if length <= 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}
	return o.get(ctx, off, min(length, o.size-off))
}

func (o *object) get(ctx context.Context, off, n int64) (io.ReadCloser, error) {
	var opts minio.GetObjectOptions
	if err := opts.SetRange(off, off+n-1); err != nil {
		return nil, err
	}
	r, err := o.api.GetObject(ctx, o.bucket, o.key, opts)
	if err != nil {
		return nil, objectError("get", o.key, err)
	}
	return r, nil
}

// streamWriter feeds a pipe read by a background PutObject.
type streamWriter struct {
	pw   *io.PipeWriter
	done chan error

	mu     sync.Mutex
	closed bool
	err    error
}

func (w *streamWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return 0, os.ErrClosed
	}
	return w.pw.Write(p)
}

// Sync is a no-op. The object becomes visible on Close.
func (w *streamWriter) Sync() error { return nil }

// Close completes the upload. Later calls return the same result.
func (w *streamWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return w.err
	}
	w.closed = true
	if w.err = w.pw.Close(); w.err == nil {
		w.err = <-w.done
	}
	return w.err
}
