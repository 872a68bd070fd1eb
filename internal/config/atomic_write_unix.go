//go:build !windows

package config

import (
	"fmt"
	"path/filepath"

	"github.com/google/renameio/v2"

	"github.com/hugo-lorenzo-mato/crashguard/internal/fsutil"
)

// AtomicWrite replaces path with data through renameio, creating parent
// directories as needed. Readers see either the old or the new file.
func AtomicWrite(path string, data []byte) error {
	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := renameio.WriteFile(path, data, filePerm(path)); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
