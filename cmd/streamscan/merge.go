package main

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/praetorian-inc/streamscan/pkg/store"
)

var (
	mergeOutput string
	mergeJSON   bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <source.db> <source.db> [source.db...]",
	Short: "Merge result databases",
	Long: `Merge result databases written by "scan --output" into one database,
for example the results of streams scanned by separate processes or hosts.

Streams, windows, rules, matches and findings are deduplicated by ID, so a
row present in several sources is stored once.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runMerge,
}

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "merged.db", "Output database path")
	mergeCmd.Flags().BoolVar(&mergeJSON, "json", false, "Print merge statistics as JSON")
}

func runMerge(cmd *cobra.Command, args []string) error {
	if err := checkMergeSources(args, mergeOutput); err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	stats, err := store.Merge(store.MergeConfig{SourcePaths: args, DestPath: mergeOutput})
	if err != nil {
		return fmt.Errorf("merge failed: %w", err)
	}

	if mergeJSON {
		return writeJSON(cmd.OutOrStdout(), stats)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 1, ' ', 0)
	fmt.Fprintf(w, "Merged %d sources into %s\n", stats.SourcesProcessed, mergeOutput)
	for _, row := range []struct {
		name string
		n    int
	}{
		{"Streams", stats.StreamsMerged},
		{"Windows", stats.BlobsMerged},
		{"Rules", stats.RulesMerged},
		{"Matches", stats.MatchesMerged},
		{"Findings", stats.FindingsMerged},
	} {
		fmt.Fprintf(w, "  %s:\t%d\n", row.name, row.n)
	}
	return w.Flush()
}

// checkMergeSources rejects missing sources and a destination that is also a
// source; opening a missing path would silently create an empty database.
func checkMergeSources(sources []string, dest string) error {
	destAbs, _ := filepath.Abs(dest)
	for _, src := range sources {
		if _, err := os.Stat(src); err != nil {
			return err
		}
		if abs, _ := filepath.Abs(src); abs == destAbs {
			return fmt.Errorf("%s is both a source and the output", src)
		}
	}
	return nil
}
