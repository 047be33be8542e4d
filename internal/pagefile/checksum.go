package pagefile

import (
	"github.com/hupe1980/diskidx/internal/hash"
	"github.com/hupe1980/diskidx/internal/mmap"
)

// Checksum returns the CRC32C of the whole file at path.
func Checksum(path string) (uint32, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return 0, err
	}
	defer m.Close()

	return hash.CRC32C(m.Bytes()), nil
}
