package integration_test

import (
	"os"
	"path/filepath"

	"github.com/hupe1980/diskidx"
)

// mkdirParent creates the directory that will hold the index at path.
func mkdirParent(path string, kind diskidx.Kind) error {
	if kind == diskidx.Hash {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
