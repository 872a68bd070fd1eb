package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/crash"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
	"github.com/hugo-lorenzo-mato/crashguard/internal/tui"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "Inspect persisted crash reports",
}

var reportsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List crash reports, oldest first",
	Args:  cobra.NoArgs,
	RunE:  runReportsList,
}

var reportsShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Print a crash report",
	Long:  "Print the named crash report, or the newest one when no name is given.",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runReportsShow,
}

var reportsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print new crash reports as they are written",
	Args:  cobra.NoArgs,
	RunE:  runReportsWatch,
}

var (
	showLatest bool
	watchPrint bool
)

func init() {
	rootCmd.AddCommand(reportsCmd)
	reportsCmd.AddCommand(reportsListCmd, reportsShowCmd, reportsWatchCmd)

	reportsShowCmd.Flags().BoolVar(&showLatest, "latest", false, "show the newest report")
	reportsWatchCmd.Flags().BoolVar(&watchPrint, "print", false, "print each new report's contents")
}

func runReportsList(cmd *cobra.Command, _ []string) error {
	cfg := currentConfig()
	return listReports(cmd.OutOrStdout(), cfg.Report.Dir, cfg.Report.Suffix)
}

func listReports(out io.Writer, root, suffix string) error {
	reports, err := crash.ListReports(root, suffix)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if len(reports) == 0 {
		fmt.Fprintf(out, "No crash reports in %s\n", root)
		return nil
	}
	fmt.Fprintln(out, tui.RenderReports(themeFor(out), reports))
	return nil
}

func runReportsShow(cmd *cobra.Command, args []string) error {
	cfg := currentConfig()
	name := ""
	if len(args) == 1 {
		name = args[0]
	}
	return showReport(cmd.OutOrStdout(), cfg.Report.Dir, cfg.Report.Suffix, name, showLatest)
}

func showReport(out io.Writer, root, suffix, name string, latest bool) error {
	if name != "" && latest {
		return errors.New("pass either a report name or --latest, not both")
	}

	var data []byte
	if name == "" {
		_, latestData, err := crash.LoadLatestReport(root, suffix)
		if err != nil {
			return err
		}
		data = latestData
	} else {
		var err error
		if data, err = crash.ReadReport(root, name); err != nil {
			return err
		}
	}

	_, err := out.Write(data)
	return err
}

func runReportsWatch(cmd *cobra.Command, _ []string) error {
	cfg := currentConfig()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watcher, err := newReportWatcher(cfg.Report.Dir)
	if err != nil {
		return err
	}
	defer watcher.Close()

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s for crash reports (Ctrl+C to stop)\n", cfg.Report.Dir)
	return watchReports(ctx, watcher, cmd.OutOrStdout(), cfg.Report.Dir, cfg.Report.Suffix, watchPrint, currentLogger())
}

func newReportWatcher(root string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := watcher.Add(root); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", root, err)
	}
	return watcher, nil
}

// watchReports prints each report file that appears under root until ctx is
// done. Reports are announced once even if several events arrive for them.
func watchReports(ctx context.Context, watcher *fsnotify.Watcher, out io.Writer,
	root, suffix string, printContents bool, log *logging.Logger,
) error {
	seen := make(map[string]bool)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			name := filepath.Base(event.Name)
			if seen[name] || !strings.HasSuffix(name, suffix) || strings.HasPrefix(name, ".") {
				continue
			}
			seen[name] = true

			fmt.Fprintln(out, "new crash report:", name)
			if !printContents {
				continue
			}
			data, err := crash.ReadReport(root, name)
			if err != nil {
				log.Warn("failed to read crash report", "name", name, "error", err)
				continue
			}
			_, _ = out.Write(data)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Warn("report watcher error", "error", err)
		}
	}
}
