package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/crash"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/tui"
)

var (
	loadedConfig *config.Config
	logger       *logging.Logger
)

// initConfig loads configuration and builds the logger. CLI flags are bound
// to the global viper instance, so the loader shares it. When strict is set
// an invalid configuration is an error.
func initConfig(strict bool) error {
	loader := config.NewLoaderWithViper(viper.GetViper())
	if cfgFile != "" {
		loader.WithConfigFile(cfgFile)
	}

	cfg, err := loader.Load()
	if err != nil {
		return err
	}
	if err := config.ValidateConfig(cfg); err != nil && strict {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	loadedConfig = cfg
	logger = logging.New(logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  os.Stderr,
		NoColor: noColor,
	})
	if used := loader.ConfigFile(); used != "" {
		logger.Debug("loaded configuration", "file", used)
	}
	return nil
}

// currentConfig returns the loaded configuration, or defaults when the
// command ran without PersistentPreRunE (as in unit tests).
func currentConfig() *config.Config {
	if loadedConfig == nil {
		return config.Default()
	}
	return loadedConfig
}

func currentLogger() *logging.Logger {
	if logger == nil {
		return logging.NewNop()
	}
	return logger
}

// newReportWriter builds the ReportWriter described by cfg.
func newReportWriter(cfg *config.Config, log *logging.Logger) *crash.ReportWriter {
	return crash.NewReportWriter(
		crash.WithRoot(cfg.Report.Dir),
		crash.WithSuffix(cfg.Report.Suffix),
		crash.WithUniqueNames(cfg.Report.UniqueNames),
		crash.WithMaxFiles(cfg.Report.MaxFiles),
		crash.WithWriterLogger(log.Slog()),
	)
}

// interceptorOptions translates cfg into crash.Options.
func interceptorOptions(cfg *config.Config, log *logging.Logger) []crash.Option {
	return []crash.Option{
		crash.WithReportWriter(newReportWriter(cfg, log)),
		crash.WithLogger(log.WithReportDir(cfg.Report.Dir).Slog()),
		crash.WithCollectTimeout(cfg.Report.CollectTimeoutDuration()),
	}
}

// appContext is the AppContext the CLI installs the interceptor with.
func appContext() crash.AppContext {
	return crash.BuildInfoContext{Version: appVersion, Build: appCommit}
}

// themeFor returns a colored theme only when w is a terminal and color is
// not disabled.
func themeFor(w io.Writer) tui.Theme {
	if noColor || viper.GetBool("no_color") {
		return tui.NewTheme(false)
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return tui.NewTheme(true)
	}
	return tui.NewTheme(false)
}
