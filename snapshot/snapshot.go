package snapshot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/diskidx/blobstore"
	"github.com/hupe1980/diskidx/codec"
	"github.com/hupe1980/diskidx/internal/fs"
	"github.com/hupe1980/diskidx/internal/hash"
	"github.com/hupe1980/diskidx/internal/mmap"
	"github.com/hupe1980/diskidx/internal/resource"
)

// DefaultConcurrency bounds parallel transfers when no resource controller is set.
const DefaultConcurrency = 4

// Options configures Save and Restore.
type Options struct {
	// Compression applied by Save. Restore uses the manifest's value.
	Compression Compression
	// Codec encodes the manifest. Restore uses the codec named in the manifest.
	Codec codec.Codec
	// Resource bounds concurrent transfers and throttles IO. Optional.
	Resource *resource.Controller
	// FS receives restored files.
	FS fs.FileSystem
	// Logger receives progress logs.
	Logger *slog.Logger
	// Now stamps new manifests.
	Now func() time.Time
}

// WithCompression sets the compression used by Save.
func WithCompression(c Compression) func(o *Options) {
	return func(o *Options) { o.Compression = c }
}

// WithCodec sets the manifest codec.
func WithCodec(c codec.Codec) func(o *Options) {
	return func(o *Options) { o.Codec = c }
}

// WithResourceController bounds transfers by rc's worker and IO limits.
func WithResourceController(rc *resource.Controller) func(o *Options) {
	return func(o *Options) { o.Resource = rc }
}

// WithFileSystem sets the file system Restore writes to.
func WithFileSystem(fsys fs.FileSystem) func(o *Options) {
	return func(o *Options) { o.FS = fsys }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

func newOptions(optFns []func(o *Options)) (Options, error) {
	opts := Options{
		Compression: CompressionZSTD,
		Codec:       codec.Default,
		FS:          fs.Default,
		Logger:      slog.New(slog.DiscardHandler),
		Now:         time.Now,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	c, err := ParseCompression(string(opts.Compression))
	if err != nil {
		return Options{}, err
	}
	opts.Compression = c
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.FS == nil {
		opts.FS = fs.Default
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return opts, nil
}

func (o *Options) group(ctx context.Context) (*errgroup.Group, context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	if o.Resource == nil {
		g.SetLimit(DefaultConcurrency)
	}
	return g, gctx
}

// transfer runs fn in a background slot of the resource controller.
func (o *Options) transfer(ctx context.Context, fn func() error) error {
	if err := o.Resource.AcquireBackground(ctx); err != nil {
		return err
	}
	defer o.Resource.ReleaseBackground()
	return fn()
}

// Save uploads files as snapshot name and points CURRENT at it.
// File base names must be distinct.
func Save(ctx context.Context, store blobstore.BlobStore, name string, files []string, optFns ...func(o *Options)) (*Manifest, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	opts, err := newOptions(optFns)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Version:     ManifestVersion,
		Name:        name,
		CreatedAt:   opts.Now().UTC(),
		Compression: opts.Compression,
		Files:       make([]File, len(files)),
	}
	seen := make(map[string]bool, len(files))
	for i, p := range files {
		base := filepath.Base(p)
		if seen[base] {
			return nil, fmt.Errorf("snapshot: duplicate file name %q", base)
		}
		seen[base] = true
		m.Files[i] = File{
			Name: base,
			Blob: path.Join(name, base+"."+opts.Compression.ext()),
		}
	}

	start := time.Now()
	g, gctx := opts.group(ctx)
	for i, p := range files {
		g.Go(func() error {
			return opts.transfer(gctx, func() error {
				return upload(gctx, store, &opts, p, &m.Files[i])
			})
		})
	}
	if err := g.Wait(); err != nil {
		opts.Logger.ErrorContext(ctx, "snapshot save failed", "name", name, "error", err)
		return nil, err
	}

	doc, err := encodeManifest(opts.Codec, m)
	if err != nil {
		return nil, err
	}
	if err := store.Put(ctx, manifestPath(name), doc); err != nil {
		return nil, fmt.Errorf("snapshot: write manifest: %w", err)
	}
	if err := store.Put(ctx, CurrentName, []byte(name)); err != nil {
		return nil, fmt.Errorf("snapshot: update %s: %w", CurrentName, err)
	}

	opts.Logger.InfoContext(ctx, "snapshot saved",
		"name", name,
		"files", len(m.Files),
		"bytes", m.TotalSize(),
		"compression", string(m.Compression),
		"duration", time.Since(start),
	)
	return m, nil
}

func upload(ctx context.Context, store blobstore.BlobStore, opts *Options, p string, f *File) error {
	mp, err := mmap.Open(p)
	if err != nil {
		return fmt.Errorf("snapshot: open %s: %w", p, err)
	}
	defer func() { _ = mp.Close() }()

	data := mp.Bytes()
	f.Size = int64(len(data))
	f.CRC32C = hash.CRC32C(data)

	stored, err := compress(opts.Compression, data)
	if err != nil {
		return fmt.Errorf("snapshot: compress %s: %w", p, err)
	}
	f.StoredSize = int64(len(stored))

	if err := opts.Resource.AcquireIO(ctx, len(stored)); err != nil {
		return err
	}
	if err := store.Put(ctx, f.Blob, stored); err != nil {
		return fmt.Errorf("snapshot: upload %s: %w", f.Blob, err)
	}
	opts.Logger.DebugContext(ctx, "snapshot file uploaded", "file", f.Name, "size", f.Size, "stored", f.StoredSize)
	return nil
}

// Current returns the name CURRENT points at.
func Current(ctx context.Context, store blobstore.BlobStore) (string, error) {
	data, err := blobstore.ReadAll(ctx, store, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", ErrNoSnapshot
		}
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if err := validateName(name); err != nil {
		return "", fmt.Errorf("%w: %s holds %v", ErrManifest, CurrentName, err)
	}
	return name, nil
}

// Load reads the manifest of snapshot name, or of CURRENT when name is "".
func Load(ctx context.Context, store blobstore.BlobStore, name string) (*Manifest, error) {
	if name == "" {
		var err error
		if name, err = Current(ctx, store); err != nil {
			return nil, err
		}
	}
	if err := validateName(name); err != nil {
		return nil, err
	}

	data, err := blobstore.ReadAll(ctx, store, manifestPath(name))
	if err != nil {
		return nil, fmt.Errorf("snapshot: read manifest of %q: %w", name, err)
	}
	m, err := decodeManifest(data)
	if err != nil {
		return nil, err
	}
	if m.Name != name {
		return nil, fmt.Errorf("%w: manifest of %q names %q", ErrManifest, name, m.Name)
	}
	return m, nil
}

// Restore downloads snapshot name (CURRENT when "") into dir. Every file is
// verified before it replaces the file of the same name in dir.
func Restore(ctx context.Context, store blobstore.BlobStore, name, dir string, optFns ...func(o *Options)) (*Manifest, error) {
	opts, err := newOptions(optFns)
	if err != nil {
		return nil, err
	}
	m, err := Load(ctx, store, name)
	if err != nil {
		return nil, err
	}
	if err := opts.FS.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: create %s: %w", dir, err)
	}

	start := time.Now()
	g, gctx := opts.group(ctx)
	for _, f := range m.Files {
		g.Go(func() error {
			return opts.transfer(gctx, func() error {
				return download(gctx, store, &opts, m.Compression, f, dir)
			})
		})
	}
	if err := g.Wait(); err != nil {
		opts.Logger.ErrorContext(ctx, "snapshot restore failed", "name", m.Name, "error", err)
		return nil, err
	}

	opts.Logger.InfoContext(ctx, "snapshot restored",
		"name", m.Name,
		"dir", dir,
		"files", len(m.Files),
		"bytes", m.TotalSize(),
		"duration", time.Since(start),
	)
	return m, nil
}

func download(ctx context.Context, store blobstore.BlobStore, opts *Options, c Compression, f File, dir string) error {
	stored, err := blobstore.ReadAll(ctx, store, f.Blob)
	if err != nil {
		return fmt.Errorf("snapshot: download %s: %w", f.Blob, err)
	}
	if err := opts.Resource.AcquireIO(ctx, len(stored)); err != nil {
		return err
	}

	data, err := decompress(c, stored, f.Size)
	if err != nil {
		return fmt.Errorf("%s: %w", f.Name, err)
	}
	if sum := hash.CRC32C(data); sum != f.CRC32C {
		return fmt.Errorf("%w: %s crc32c %08x, manifest %08x", ErrChecksum, f.Name, sum, f.CRC32C)
	}

	if err := writeFile(opts.FS, filepath.Join(dir, f.Name), data); err != nil {
		return fmt.Errorf("snapshot: write %s: %w", f.Name, err)
	}
	opts.Logger.DebugContext(ctx, "snapshot file restored", "file", f.Name, "size", f.Size)
	return nil
}

// writeFile writes data to a temporary file and renames it over dst.
func writeFile(fsys fs.FileSystem, dst string, data []byte) error {
	tmp := dst + ".restore"
	f, err := fsys.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = fsys.Remove(tmp)
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		_ = fsys.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = fsys.Remove(tmp)
		return err
	}
	return fsys.Rename(tmp, dst)
}

// List returns the names of all snapshots with a manifest, sorted.
func List(ctx context.Context, store blobstore.BlobStore) ([]string, error) {
	blobs, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, b := range blobs {
		if name, ok := strings.CutSuffix(b, "/"+manifestName); ok && validateName(name) == nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Delete removes the blobs of snapshot name. The manifest goes first so a
// partially deleted snapshot is never listed. CURRENT is left untouched.
func Delete(ctx context.Context, store blobstore.BlobStore, name string) error {
	m, err := Load(ctx, store, name)
	if err != nil {
		return err
	}
	if err := store.Delete(ctx, manifestPath(m.Name)); err != nil {
		return err
	}
	var errs []error
	for _, f := range m.Files {
		if err := store.Delete(ctx, f.Blob); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
