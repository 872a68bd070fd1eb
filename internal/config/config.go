package config

import "time"

// Config holds all application configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Report  ReportConfig  `mapstructure:"report" yaml:"report"`
	Runtime RuntimeConfig `mapstructure:"runtime" yaml:"runtime"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// ReportConfig configures crash report persistence.
type ReportConfig struct {
	// Dir is the storage root reports are written under.
	Dir string `mapstructure:"dir" yaml:"dir"`
	// Suffix is appended to every report file name.
	Suffix string `mapstructure:"suffix" yaml:"suffix"`
	// UniqueNames appends a random id to each file name so failures within
	// the same second do not overwrite each other.
	UniqueNames bool `mapstructure:"unique_names" yaml:"unique_names"`
	// MaxFiles caps the number of retained reports; 0 keeps all.
	MaxFiles int `mapstructure:"max_files" yaml:"max_files"`
	// CollectTimeout bounds host metadata collection during a crash.
	CollectTimeout string `mapstructure:"collect_timeout" yaml:"collect_timeout"`
}

// RuntimeConfig configures capture of unrecoverable runtime errors.
type RuntimeConfig struct {
	CrashOutput bool `mapstructure:"crash_output" yaml:"crash_output"`
}

// CollectTimeoutDuration returns the parsed CollectTimeout, or zero when it
// is unset or invalid.
func (c ReportConfig) CollectTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(c.CollectTimeout)
	if err != nil {
		return 0
	}
	return d
}
