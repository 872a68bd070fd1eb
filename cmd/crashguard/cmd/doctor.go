package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/crash"
	"github.com/hugo-lorenzo-mato/crashguard/internal/tui"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check report storage and preview collected metadata",
	Long: `Validate the configuration, check that the report directory is usable
and show the environment metadata a crash report would contain.`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	cfg := currentConfig()
	return doctor(cmd.Context(), cmd.OutOrStdout(), cfg,
		newReportWriter(cfg, currentLogger()), crash.HostCollector{})
}

func doctor(ctx context.Context, out io.Writer, cfg *config.Config,
	writer *crash.ReportWriter, collector crash.Collector,
) error {
	theme := themeFor(out)
	failed := false

	fmt.Fprintln(out, theme.Header.Render("Configuration"))
	if issues := configIssues(cfg); len(issues) > 0 {
		for _, issue := range issues {
			fmt.Fprintln(out, theme.Check(tui.StatusFail, issue))
		}
		failed = true
	} else {
		fmt.Fprintln(out, theme.Check(tui.StatusOK, "configuration valid"))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, theme.Header.Render("Storage"))
	if err := writer.Available(); err != nil {
		fmt.Fprintln(out, theme.Check(tui.StatusFail, "report directory unavailable"))
		fmt.Fprintln(out, theme.Field("error", err.Error()))
		failed = true
	} else {
		fmt.Fprintln(out, theme.Check(tui.StatusOK, "report directory available"))
	}
	fmt.Fprintln(out, theme.Field("root", writer.Root()))
	fmt.Fprintln(out, theme.Field("suffix", writer.Suffix()))
	if reports, err := crash.ListReports(writer.Root(), writer.Suffix()); err == nil {
		fmt.Fprintln(out, theme.Field("reports", fmt.Sprint(len(reports))))
	} else if !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(out, theme.Field("reports", err.Error()))
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, theme.Header.Render("Environment"))
	collectCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(cfg.Report.CollectTimeoutDuration()))
	defer cancel()
	env, err := collector.Collect(collectCtx, appContext())
	if err != nil {
		// Metadata failures stop a real capture, so they are reported but do
		// not fail the storage checks.
		fmt.Fprintln(out, theme.Check(tui.StatusWarn, "metadata lookup failed"))
		fmt.Fprintln(out, theme.Field("error", err.Error()))
	} else {
		fmt.Fprintln(out, theme.Check(tui.StatusOK, "metadata collected"))
		fmt.Fprintln(out, theme.Field("App Version", env.AppVersion+"_"+env.AppBuild))
		fmt.Fprintln(out, theme.Field("OS Version", env.OSVersion+"_"+env.OSSDKLevel))
		fmt.Fprintln(out, theme.Field("Vendor", env.DeviceVendor))
		fmt.Fprintln(out, theme.Field("Model", env.DeviceModel))
		fmt.Fprintln(out, theme.Field("CPU", "["+strings.Join(env.CPUABIs, ", ")+"]"))
	}
	fmt.Fprintln(out, theme.Field("Go", runtime.Version()+" "+runtime.GOOS+"/"+runtime.GOARCH))
	fmt.Fprintln(out)

	if failed {
		return errors.New("doctor found problems")
	}
	fmt.Fprintln(out, "Crash reports can be written")
	return nil
}

func configIssues(cfg *config.Config) []string {
	err := config.ValidateConfig(cfg)
	if err == nil {
		return nil
	}
	var verrs config.ValidationErrors
	if errors.As(err, &verrs) {
		issues := make([]string, 0, len(verrs))
		for _, verr := range verrs {
			issues = append(issues, verr.Error())
		}
		return issues
	}
	return []string{err.Error()}
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return crash.DefaultCollectTimeout
	}
	return d
}
