package fsutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadFileScoped(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := filepath.Join(dir, "2024-01-01 00:00:00.trace")
	require.NoError(t, os.WriteFile(p, []byte("panic: boom\n"), 0o600))

	data, err := ReadFileScoped(p)
	require.NoError(t, err)
	assert.Equal(t, "panic: boom\n", string(data))
}

func TestReadFileScoped_UnnormalizedPath(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("norm"), 0o600))

	data, err := ReadFileScoped(filepath.Join(dir, ".", "sub", "..", "file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "norm", string(data))
}

func TestReadFileScoped_Errors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"missing file", filepath.Join(dir, "missing.trace")},
		{"missing directory", filepath.Join(dir, "nodir", "file.trace")},
		{"root", string(filepath.Separator)},
		{"directory", dir},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ReadFileScoped(tt.path)
			assert.Error(t, err)
		})
	}
}

func TestReadFileScoped_SymlinkEscapeRejected(t *testing.T) {
	t.Parallel()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(target, []byte("secret"), 0o600))

	dir := t.TempDir()
	link := filepath.Join(dir, "link.trace")
	if err := os.Symlink(target, link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	_, err := ReadFileScoped(link)
	assert.Error(t, err)
}

func TestReadFileScopedLimit(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	p := filepath.Join(dir, "big.trace")
	require.NoError(t, os.WriteFile(p, []byte(strings.Repeat("x", 64)), 0o600))

	data, err := ReadFileScopedLimit(p, 64)
	require.NoError(t, err)
	assert.Len(t, data, 64)

	_, err = ReadFileScopedLimit(p, 63)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestEnsureDir(t *testing.T) {
	t.Parallel()
	base := t.TempDir()

	nested := filepath.Join(base, "a", "b")
	require.NoError(t, EnsureDir(nested))
	require.NoError(t, EnsureDir(nested), "existing directory is fine")

	info, err := os.Stat(nested)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	file := filepath.Join(base, "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	assert.Error(t, EnsureDir(file))
}
