package blobstore

import (
	"bytes"
	"context"
	"io"
)

// BytesBlob is a Blob over an in-memory byte slice. It implements Mappable.
type BytesBlob struct {
	data []byte
}

// NewBytesBlob returns a Blob reading data. The slice is not copied and must
// not be modified while the blob is in use.
func NewBytesBlob(data []byte) *BytesBlob {
	return &BytesBlob{data: data}
}

// ReadAt copies data at off into p. It returns io.EOF when p reaches past the end.
func (b *BytesBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// ReadRange returns a reader over [off, off+length), clipped to the blob size.
func (b *BytesBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(b.data)))
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}

// Size returns len of the underlying slice.
func (b *BytesBlob) Size() int64 { return int64(len(b.data)) }

// Bytes returns the underlying slice.
func (b *BytesBlob) Bytes() ([]byte, error) { return b.data, nil }

// Close is a no-op.
func (b *BytesBlob) Close() error { return nil }

var (
	_ Blob     = (*BytesBlob)(nil)
	_ Mappable = (*BytesBlob)(nil)
)
