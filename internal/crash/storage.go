package crash

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/disk"
)

// StorageProbe reports whether reports can be written under root.
type StorageProbe interface {
	Available(root string) error
}

// StorageProbeFunc adapts a function to the StorageProbe interface.
type StorageProbeFunc func(root string) error

// Available implements StorageProbe.
func (f StorageProbeFunc) Available(root string) error { return f(root) }

// MountProbe accepts a root that exists, is a directory and sits on a
// mounted filesystem that reports usage statistics.
type MountProbe struct{}

// Available implements StorageProbe.
func (MountProbe) Available(root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrStorageUnavailable, root)
	}
	usage, err := disk.Usage(root)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if usage.Total == 0 {
		return fmt.Errorf("%w: %s reports no capacity", ErrStorageUnavailable, root)
	}
	return nil
}
