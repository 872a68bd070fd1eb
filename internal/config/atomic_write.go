package config

import (
	"os"
)

// configPerm is used for new config files; starter files may hold report
// paths and are kept private to the user.
const configPerm os.FileMode = 0o600

// filePerm returns the permissions of an existing file at path, so rewriting
// a config never widens or narrows what the user chose, or configPerm.
func filePerm(path string) os.FileMode {
	if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
		return info.Mode().Perm()
	}
	return configPerm
}
