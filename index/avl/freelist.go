package avl

import (
	"fmt"
	"os"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/diskidx/internal/fs"
)

// freeList tracks slots of deleted nodes for reuse.
// A disabled free list never hands out slots and never touches the disk.
type freeList struct {
	enabled bool
	sync    bool
	fsys    fs.FileSystem
	path    string
	slots   *roaring.Bitmap
}

func freeListPath(indexPath string) string { return indexPath + ".free" }

func loadFreeList(fsys fs.FileSystem, indexPath string, enabled, sync bool) (*freeList, error) {
	fl := &freeList{
		enabled: enabled,
		sync:    sync,
		fsys:    fsys,
		path:    freeListPath(indexPath),
		slots:   roaring.New(),
	}
	if !enabled {
		return fl, nil
	}

	ok, err := fs.Exists(fsys, fl.path)
	if err != nil || !ok {
		return fl, err
	}

	data, err := fsys.ReadFile(fl.path)
	if err != nil {
		return nil, fmt.Errorf("avl: read free list: %w", err)
	}
	if len(data) > 0 {
		if err := fl.slots.UnmarshalBinary(data); err != nil {
			return nil, fmt.Errorf("avl: decode free list %s: %w", fl.path, err)
		}
	}
	return fl, nil
}

// take removes and returns the lowest free slot.
func (f *freeList) take() (int32, bool) {
	if !f.enabled || f.slots.IsEmpty() {
		return none, false
	}
	slot := f.slots.Minimum()
	f.slots.Remove(slot)
	return int32(slot), true
}

func (f *freeList) add(slot int32) {
	if f.enabled {
		f.slots.Add(uint32(slot))
	}
}

func (f *freeList) contains(slot int32) bool {
	return f.enabled && f.slots.Contains(uint32(slot))
}

func (f *freeList) len() int {
	return int(f.slots.GetCardinality())
}

func (f *freeList) persist() error {
	if !f.enabled {
		return nil
	}

	data, err := f.slots.ToBytes()
	if err != nil {
		return fmt.Errorf("avl: encode free list: %w", err)
	}

	tmp := f.path + ".tmp"
	file, err := f.fsys.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("avl: write free list: %w", err)
	}
	if _, err := file.Write(data); err != nil {
		_ = file.Close()
		return fmt.Errorf("avl: write free list: %w", err)
	}
	if f.sync {
		if err := file.Sync(); err != nil {
			_ = file.Close()
			return fmt.Errorf("avl: sync free list: %w", err)
		}
	}
	if err := file.Close(); err != nil {
		return err
	}
	return f.fsys.Rename(tmp, f.path)
}
