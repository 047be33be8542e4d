package pagefile

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/hupe1980/diskidx/index"
	"github.com/hupe1980/diskidx/internal/cache"
	"github.com/hupe1980/diskidx/internal/fs"
)

// Options configures a File.
type Options struct {
	// Cache is an optional write-through record cache.
	Cache cache.BlockCache
	// CacheKind tags the cache entries of this file.
	CacheKind cache.CacheKind
	// Sync makes Flush fsync the file.
	Sync bool
	// Perm is the permission used when creating the file.
	Perm os.FileMode
}

// File is an open index file.
type File struct {
	mu     sync.Mutex
	f      fs.File
	path   string
	size   int64
	opts   Options
	closed bool
}

// Open opens path for reading and writing, creating it if needed.
func Open(fsys fs.FileSystem, path string, opts Options) (*File, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	if opts.Perm == 0 {
		opts.Perm = 0o644
	}
	if opts.CacheKind == cache.CacheKindUnknown {
		opts.CacheKind = cache.CacheKindNode
	}

	f, err := fsys.OpenFile(path, os.O_RDWR|os.O_CREATE, opts.Perm)
	if err != nil {
		return nil, fmt.Errorf("pagefile: open %s: %w", path, err)
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("pagefile: stat %s: %w", path, err)
	}

	return &File{f: f, path: path, size: fi.Size(), opts: opts}, nil
}

// Path returns the file path.
func (p *File) Path() string { return p.path }

// Size returns the current file size in bytes.
func (p *File) Size() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.size
}

// ReadAt reads the n-byte record at off. The returned slice is owned by the caller.
func (p *File) ReadAt(off int64, n int) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, index.ErrClosed
	}

	key := p.key(off)
	if p.opts.Cache != nil {
		if b, ok := p.opts.Cache.Get(key); ok && len(b) == n {
			return append([]byte(nil), b...), nil
		}
	}

	buf := make([]byte, n)
	if off < 0 || off+int64(n) > p.size {
		got := max(min(p.size-off, int64(n)), 0)
		return nil, &index.CorruptError{Path: p.path, Offset: off, Want: n, Got: int(got)}
	}

	got, err := p.f.ReadAt(buf, off)
	if got < n {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, &index.CorruptError{Path: p.path, Offset: off, Want: n, Got: got, Err: err}
	}

	if p.opts.Cache != nil {
		p.opts.Cache.Set(key, append([]byte(nil), buf...))
	}
	return buf, nil
}

// WriteAt writes a whole record at off.
func (p *File) WriteAt(off int64, b []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writeAt(off, b)
}

// Append writes b at the end of the file and returns its offset.
func (p *File) Append(b []byte) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	off := p.size
	if err := p.writeAt(off, b); err != nil {
		return 0, err
	}
	return off, nil
}

func (p *File) writeAt(off int64, b []byte) error {
	if p.closed {
		return index.ErrClosed
	}

	key := p.key(off)
	if _, err := p.f.WriteAt(b, off); err != nil {
		if p.opts.Cache != nil {
			p.opts.Cache.Invalidate(func(k cache.CacheKey) bool { return k == key })
		}
		return fmt.Errorf("pagefile: write %s at %d: %w", p.path, off, err)
	}
	if end := off + int64(len(b)); end > p.size {
		p.size = end
	}

	if p.opts.Cache != nil {
		p.opts.Cache.Set(key, append([]byte(nil), b...))
	}
	return nil
}

// Flush fsyncs the file when the File was opened with Options.Sync.
func (p *File) Flush() error {
	if !p.opts.Sync {
		return nil
	}
	return p.Sync()
}

// Sync fsyncs the file.
func (p *File) Sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return index.ErrClosed
	}
	if err := p.f.Sync(); err != nil {
		return fmt.Errorf("pagefile: sync %s: %w", p.path, err)
	}
	return nil
}

// Close closes the file and drops its cached records.
func (p *File) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.opts.Cache != nil {
		path := p.path
		p.opts.Cache.Invalidate(func(k cache.CacheKey) bool { return k.Path == path })
	}
	return p.f.Close()
}

func (p *File) key(off int64) cache.CacheKey {
	return cache.CacheKey{Kind: p.opts.CacheKind, Path: p.path, Offset: off}
}
