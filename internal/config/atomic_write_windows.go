//go:build windows

package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hugo-lorenzo-mato/crashguard/internal/fsutil"
)

// AtomicWrite writes path in place. renameio does not support Windows, so a
// failed write can leave a truncated file behind.
func AtomicWrite(path string, data []byte) error {
	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, filePerm(path)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
