package main

import (
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/streamscan/pkg/confengine"
	"github.com/praetorian-inc/streamscan/pkg/logger"
)

var (
	verbose    bool
	quiet      bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "streamscan",
	Short: "streamscan - secrets detection over chunked byte streams",
	Long: `streamscan scans byte streams that arrive in pieces, such as network
payloads or piped input, for credentials and other sensitive data.

Data is buffered into windows (raw, disjoint, overlapped or cumulative)
and each window is matched against regex or YARA detection rules.`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogger,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Quiet mode (errors only)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file path (YAML)")

	// Add subcommands
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(mergeCmd)
}

// setupLogger configures the global logger from the config file's logger
// section, then applies --verbose and --quiet.
func setupLogger(cmd *cobra.Command, args []string) error {
	opts := logger.Options{Level: string(logger.LevelWarn)}
	if configPath != "" {
		conf, err := confengine.LoadConfigPath(configPath)
		if err != nil {
			return err
		}
		if err := conf.UnpackChild("logger", &opts); err != nil {
			return err
		}
	}

	switch {
	case verbose:
		opts.Level = string(logger.LevelDebug)
	case quiet:
		opts.Level = string(logger.LevelError)
	}
	logger.SetOptions(opts)
	return nil
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
