package main

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/streamscan/pkg/serve"
)

// Set through -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = ""
)

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.NoArgs,
	RunE:  runVersion,
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
}

// buildCommit falls back to the VCS revision stamped by the Go toolchain.
func buildCommit() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if versionShort {
		fmt.Fprintln(out, version)
		return nil
	}
	fmt.Fprintf(out, "streamscan %s (%s)\n", version, buildCommit())
	fmt.Fprintf(out, "serve protocol %s, %s %s/%s\n", serve.Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	return nil
}
