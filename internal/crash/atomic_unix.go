//go:build !windows

package crash

import (
	"os"

	"github.com/google/renameio/v2"
)

// fileStemLayout is the report file name layout.
const fileStemLayout = TimestampLayout

// writeReportFile writes data to path through a renameio pending file, so a
// reader never observes a half-written report under the final name.
func writeReportFile(path string, data []byte, perm os.FileMode) error {
	f, err := renameio.NewPendingFile(path, renameio.WithPermissions(perm))
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	defer func() { _ = f.Cleanup() }()

	if _, err := f.Write(data); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.CloseAtomicallyReplace(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}
