package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProjectConfigName is the file looked up in the working directory.
const ProjectConfigName = ".crashguard.yaml"

// UserConfigPath returns the per-user configuration path.
func UserConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "crashguard", "config.yaml"), nil
}

// WriteStarterFile writes DefaultYAML(cfg) to path. It refuses to replace an
// existing file unless force is set.
func WriteStarterFile(path string, cfg *Config, force bool) error {
	if !force {
		if _, statErr := os.Stat(path); statErr == nil {
			return fmt.Errorf("config already exists: %s", path)
		} else if !os.IsNotExist(statErr) {
			return fmt.Errorf("checking config: %w", statErr)
		}
	}

	data, err := DefaultYAML(cfg)
	if err != nil {
		return err
	}
	if err := AtomicWrite(path, data); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
