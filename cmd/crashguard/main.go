package main

import (
	"os"

	"github.com/hugo-lorenzo-mato/crashguard/cmd/crashguard/cmd"
	"github.com/hugo-lorenzo-mato/crashguard/internal/crash"
)

// Version information - set by goreleaser at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer crash.Guard()

	cmd.SetVersion(version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
