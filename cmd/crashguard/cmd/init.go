package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/crashguard/internal/config"
	"github.com/hugo-lorenzo-mato/crashguard/internal/fsutil"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration",
	Long: `Write a starter .crashguard.yaml in the current directory, or the
per-user config with --user, and create the report directory.`,
	RunE: runInit,
}

var (
	initForce bool
	initUser  bool
)

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
	initCmd.Flags().BoolVar(&initUser, "user", false, "Write ~/.config/crashguard/config.yaml instead")
}

func runInit(cmd *cobra.Command, _ []string) error {
	path, err := initTarget(initUser)
	if err != nil {
		return err
	}

	cfg := currentConfig()
	if err := writeInitFiles(path, cfg, initForce); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Configuration file:", path)
	fmt.Fprintln(out, "Report directory:  ", cfg.Report.Dir)
	fmt.Fprintln(out, "Run 'crashguard doctor' to verify setup")
	return nil
}

func initTarget(user bool) (string, error) {
	if user {
		return config.UserConfigPath()
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting current directory: %w", err)
	}
	return filepath.Join(cwd, config.ProjectConfigName), nil
}

func writeInitFiles(path string, cfg *config.Config, force bool) error {
	if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
		return err
	}
	if err := config.WriteStarterFile(path, cfg, force); err != nil {
		if !force {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		return err
	}
	return fsutil.EnsureDir(cfg.Report.Dir)
}
