package snapshot

import (
	"bytes"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/hupe1980/diskidx/codec"
)

const (
	// ManifestVersion is the manifest format written by Save.
	ManifestVersion = 1
	// CurrentName is the blob naming the newest snapshot.
	CurrentName = "CURRENT"
	manifestName = "MANIFEST"
)

// Manifest describes one snapshot.
type Manifest struct {
	Version     int         `json:"version"`
	Name        string      `json:"name"`
	CreatedAt   time.Time   `json:"created_at"`
	Compression Compression `json:"compression"`
	Files       []File      `json:"files"`
}

// File is one index file inside a snapshot.
type File struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	CRC32C     uint32 `json:"crc32c"`
	Blob       string `json:"blob"`
	StoredSize int64  `json:"stored_size"`
}

// TotalSize returns the uncompressed size of all files.
func (m *Manifest) TotalSize() int64 {
	var n int64
	for _, f := range m.Files {
		n += f.Size
	}
	return n
}

func manifestPath(name string) string {
	return path.Join(name, manifestName)
}

func validateName(name string) error {
	if name == "" || name == CurrentName || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// encodeManifest writes "<codec name>\n<document>" so readers pick the codec
// that wrote the document.
func encodeManifest(c codec.Codec, m *Manifest) ([]byte, error) {
	doc, err := c.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("snapshot: encode manifest: %w", err)
	}
	out := make([]byte, 0, len(c.Name())+1+len(doc))
	out = append(out, c.Name()...)
	out = append(out, '\n')
	return append(out, doc...), nil
}

func decodeManifest(data []byte) (*Manifest, error) {
	name, doc, ok := bytes.Cut(data, []byte{'\n'})
	if !ok {
		return nil, fmt.Errorf("%w: missing codec header", ErrManifest)
	}
	c, ok := codec.ByName(string(name))
	if !ok {
		return nil, fmt.Errorf("%w: unknown codec %q", ErrManifest, name)
	}

	var m Manifest
	if err := c.Unmarshal(doc, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: version %d", ErrManifest, m.Version)
	}
	if err := validateName(m.Name); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	if _, err := ParseCompression(string(m.Compression)); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifest, err)
	}
	seen := make(map[string]bool, len(m.Files))
	for _, f := range m.Files {
		if f.Name == "" || f.Name == "." || f.Name == ".." || f.Name != path.Base(f.Name) ||
			strings.Contains(f.Name, `\`) || f.Size < 0 || seen[f.Name] {
			return nil, fmt.Errorf("%w: bad file entry %q", ErrManifest, f.Name)
		}
		seen[f.Name] = true
	}
	return &m, nil
}
