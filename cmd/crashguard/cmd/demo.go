package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/crash"
	"github.com/hugo-lorenzo-mato/crashguard/internal/logging"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Install the interceptor and crash a guarded goroutine",
	Long: `Install the crash interceptor and raise an uncaught failure on a
guarded goroutine. A report is written to the report directory.

Without --chain no previous handler exists, so the process is killed after
the report is written. With --chain a previous handler is installed first;
it receives the failure after the report is written and the command exits
normally.`,
	RunE: runDemo,
}

var (
	demoKind  string
	demoChain bool
)

var errDemo = errors.New("demo failure")

var demoFailures = map[string]func(){
	"panic": func() { panic("crashguard demo: custom exception") },
	"error": func() { panic(fmt.Errorf("crashguard demo: %w", errDemo)) },
	"index": func() {
		var values []int
		_ = values[len(os.Args)+2]
	},
	"nil-map": func() {
		var counts map[string]int
		counts["crash"]++
	},
}

func demoKinds() []string {
	kinds := make([]string, 0, len(demoFailures))
	for k := range demoFailures {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().StringVar(&demoKind, "kind", "panic",
		"failure to raise ("+strings.Join(demoKinds(), ", ")+")")
	demoCmd.Flags().BoolVar(&demoChain, "chain", false,
		"install a previous handler that receives the failure")
}

func runDemo(cmd *cobra.Command, _ []string) error {
	return runDemoWith(cmd.OutOrStdout(), crash.DefaultHook, crash.Instance(),
		currentConfig(), currentLogger(), demoKind, demoChain)
}

func runDemoWith(out io.Writer, hook *crash.Registry, interceptor *crash.Interceptor,
	cfg *config.Config, log *logging.Logger, kind string, chain bool,
) error {
	fail, ok := demoFailures[kind]
	if !ok {
		return fmt.Errorf("unknown failure kind %q (want one of %s)", kind, strings.Join(demoKinds(), ", "))
	}

	if chain {
		hook.Install(crash.HandlerFunc(func(g crash.Goroutine, failure any) {
			fmt.Fprintf(out, "previous handler: goroutine %d: %v\n", g.ID, failure)
		}))
	}

	if err := interceptor.Init(appContext(), interceptorOptions(cfg, log)...); err != nil {
		return fmt.Errorf("installing crash interceptor: %w", err)
	}

	if cfg.Runtime.CrashOutput {
		path, stop, err := interceptor.EnableRuntimeCrashOutput()
		if err != nil {
			log.Warn("runtime crash output unavailable", "error", err)
		} else {
			defer stop()
			log.Info("runtime crash output attached", "path", path)
		}
	}

	fmt.Fprintf(out, "crash interceptor installed, reports go to %s\n", interceptor.Writer().Root())

	exited := make(chan struct{})
	go func() {
		defer close(exited)
		defer hook.Guard()
		fail()
	}()
	<-exited

	fmt.Fprintln(out, "faulting goroutine exited")
	return nil
}
