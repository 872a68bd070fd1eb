package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

const defaultHeader = `# crashguard configuration
#
# Values not specified here use built-in defaults. Every key can also be set
# through CRASHGUARD_* environment variables, e.g. CRASHGUARD_REPORT_DIR.

`

// Default returns the configuration used when no file or environment
// variable overrides a key.
func Default() *Config {
	d := defaultValues()
	return &Config{
		Log: LogConfig{
			Level:  d["log.level"].(string),
			Format: d["log.format"].(string),
		},
		Report: ReportConfig{
			Dir:            d["report.dir"].(string),
			Suffix:         d["report.suffix"].(string),
			UniqueNames:    d["report.unique_names"].(bool),
			MaxFiles:       d["report.max_files"].(int),
			CollectTimeout: d["report.collect_timeout"].(string),
		},
		Runtime: RuntimeConfig{
			CrashOutput: d["runtime.crash_output"].(bool),
		},
	}
}

// DefaultYAML renders cfg as a commented starter file. A nil cfg renders
// Default().
func DefaultYAML(cfg *Config) ([]byte, error) {
	if cfg == nil {
		cfg = Default()
	}
	body, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("marshaling config: %w", err)
	}
	return append([]byte(defaultHeader), body...), nil
}
