package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/praetorian-inc/streamscan/pkg/rule"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

var (
	rulesPath    string
	rulesRuleset string
	outputFormat string
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect detection rules",
}

var rulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the rules a scan would load",
	RunE:  runRulesList,
}

var rulesetsListCmd = &cobra.Command{
	Use:   "rulesets",
	Short: "List the builtin rulesets",
	RunE:  runRulesetsList,
}

func init() {
	rulesCmd.AddCommand(rulesListCmd, rulesetsListCmd)
	rulesListCmd.Flags().StringVar(&rulesPath, "rules", "", "Rule files or directories, comma-separated")
	rulesListCmd.Flags().StringVar(&rulesRuleset, "ruleset", "", "Only list the rules of this builtin ruleset")
	rulesCmd.PersistentFlags().StringVar(&outputFormat, "format", "table", "Output format: table, json")
}

func runRulesList(cmd *cobra.Command, args []string) error {
	rules, err := loadRules(matcherSection{Rules: splitList(rulesPath), Ruleset: rulesRuleset})
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}

	switch outputFormat {
	case "json":
		return writeJSON(cmd.OutOrStdout(), rules)
	case "table":
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tName\tKeywords\tCategories")
		fmt.Fprintln(w, "--\t----\t--------\t----------")
		for _, r := range rules {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", r.ID, r.Name, len(r.Keywords), strings.Join(r.Categories, ","))
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func runRulesetsList(cmd *cobra.Command, args []string) error {
	rulesets, err := rule.NewLoader().LoadBuiltinRulesets()
	if err != nil {
		return fmt.Errorf("loading rulesets: %w", err)
	}
	if rulesets == nil {
		rulesets = []*types.Ruleset{}
	}

	switch outputFormat {
	case "json":
		return writeJSON(cmd.OutOrStdout(), rulesets)
	case "table":
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tRules\tDescription")
		for _, rs := range rulesets {
			fmt.Fprintf(w, "%s\t%d\t%s\n", rs.ID, len(rs.RuleIDs), rs.Description)
		}
		return w.Flush()
	default:
		return fmt.Errorf("unknown output format: %s", outputFormat)
	}
}

func writeJSON(out io.Writer, v any) error {
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
