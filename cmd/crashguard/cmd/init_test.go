package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
)

func TestWriteInitFiles(t *testing.T) {
	cfg := testConfig(t)
	cfg.Report.Dir = filepath.Join(cfg.Report.Dir, "reports")
	path := filepath.Join(t.TempDir(), "nested", config.ProjectConfigName)

	require.NoError(t, writeInitFiles(path, cfg, false))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "report:")
	assert.Contains(t, string(data), cfg.Report.Dir)

	info, err := os.Stat(cfg.Report.Dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	err = writeInitFiles(path, cfg, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--force")

	require.NoError(t, writeInitFiles(path, cfg, true))
}

func TestInitTarget(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	user, err := initTarget(true)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("crashguard", "config.yaml"), filepath.Join(filepath.Base(filepath.Dir(user)), filepath.Base(user)))

	project, err := initTarget(false)
	require.NoError(t, err)
	assert.Equal(t, config.ProjectConfigName, filepath.Base(project))
}
