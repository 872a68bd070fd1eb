//go:build windows

package crash

import (
	"bufio"
	"os"
)

// fileStemLayout swaps the colons of TimestampLayout, which Windows rejects
// in file names.
const fileStemLayout = "2006-01-02 15-04-05"

// writeReportFile opens, truncates, writes and closes path. renameio does not
// support Windows, so partial bytes stay in place on failure.
func writeReportFile(path string, data []byte, perm os.FileMode) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}

	w := bufio.NewWriter(f)
	if _, err := w.Write(data); err != nil {
		_ = f.Close()
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return &IOError{Op: "flush", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	return nil
}
