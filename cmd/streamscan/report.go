package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/praetorian-inc/streamscan/pkg/rule"
	"github.com/praetorian-inc/streamscan/pkg/store"
	"github.com/praetorian-inc/streamscan/pkg/types"
)

var (
	reportDatastore string
	reportFormat    string
	reportColor     string
	reportStream    string
)

// palette colors the human output. Disabled palettes print plain text.
type palette struct {
	title, label, id, rule, secret, meta *color.Color
}

func newPalette(enabled bool) *palette {
	p := &palette{
		title:  color.New(color.Bold, color.FgHiWhite),
		label:  color.New(color.Bold),
		id:     color.New(color.FgHiGreen),
		rule:   color.New(color.Bold, color.FgHiBlue),
		secret: color.New(color.FgYellow),
		meta:   color.New(color.FgHiBlue),
	}
	if !enabled {
		for _, c := range []*color.Color{p.title, p.label, p.id, p.rule, p.secret, p.meta} {
			c.DisableColor()
		}
	}
	return p
}

// colorEnabled resolves a --color value; "auto" means a terminal stdout with
// NO_COLOR unset.
func colorEnabled(mode string) bool {
	if mode == "always" || mode == "never" {
		return mode == "always"
	}
	return os.Getenv("NO_COLOR") == "" && term.IsTerminal(int(os.Stdout.Fd()))
}

const ellipsis = "..."

// clippedSnippet is a snippet cut down to a display width around its match.
type clippedSnippet struct {
	lead, before, matching, after, trail string
}

// clipSnippet keeps the match centered within width bytes, marking each cut
// side with an ellipsis. A match wider than width is itself truncated.
func clipSnippet(sn types.Snippet, width int) clippedSnippet {
	before, matching, after := string(sn.Before), string(sn.Matching), string(sn.After)
	if len(before)+len(matching)+len(after) <= width {
		return clippedSnippet{before: before, matching: matching, after: after}
	}
	room := width - 2*len(ellipsis)
	if len(matching) >= width {
		return clippedSnippet{lead: ellipsis, matching: matching[:room], trail: ellipsis}
	}

	side := (room - len(matching)) / 2
	keepBefore, keepAfter := side, side
	// Give context one side cannot use to the other.
	if len(before) < keepBefore {
		keepAfter += keepBefore - len(before)
		keepBefore = len(before)
	}
	if len(after) < keepAfter {
		keepBefore = min(len(before), keepBefore+keepAfter-len(after))
		keepAfter = len(after)
	}

	c := clippedSnippet{
		before:   before[len(before)-keepBefore:],
		matching: matching,
		after:    after[:keepAfter],
	}
	if keepBefore < len(before) {
		c.lead = ellipsis
	}
	if keepAfter < len(after) {
		c.trail = ellipsis
	}
	return c
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Generate a report from stored scan results",
	Long:  "Read streams, matches and findings from a result database written by scan --output",
	RunE:  runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportDatastore, "datastore", "streamscan.db", "Path to the result database")
	reportCmd.Flags().StringVar(&reportFormat, "format", "human", "Output format: human, json, sarif")
	reportCmd.Flags().StringVar(&reportColor, "color", "auto", "Color output: auto, always, never")
	reportCmd.Flags().StringVar(&reportStream, "stream", "", "Only report matches of this stream")
}

// reportData is the JSON form of a report.
type reportData struct {
	Streams  []store.Stream   `json:"streams"`
	Findings []*types.Finding `json:"findings"`
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportDatastore == store.MemoryPath {
		return fmt.Errorf("cannot report from in-memory store")
	}
	if _, err := os.Stat(reportDatastore); err != nil {
		return fmt.Errorf("datastore not found: %s", reportDatastore)
	}

	s, err := store.New(store.Config{Path: reportDatastore})
	if err != nil {
		return fmt.Errorf("opening datastore: %w", err)
	}
	defer s.Close()

	streams, err := s.GetStreams()
	if err != nil {
		return fmt.Errorf("retrieving streams: %w", err)
	}

	var matches []*types.Match
	if reportStream != "" {
		matches, err = s.GetMatches(reportStream)
		kept := streams[:0]
		for _, st := range streams {
			if st.ID == reportStream {
				kept = append(kept, st)
			}
		}
		streams = kept
	} else {
		matches, err = s.GetAllMatches()
	}
	if err != nil {
		return fmt.Errorf("retrieving matches: %w", err)
	}
	findings := store.GroupFindings(matches)

	switch reportFormat {
	case "json":
		return outputReportJSON(cmd, streams, findings)
	case "human":
		return outputReportHuman(cmd, streams, findings)
	case "sarif":
		return outputReportSARIF(cmd, matches)
	default:
		return fmt.Errorf("unknown output format: %s", reportFormat)
	}
}

// maxShownMatches caps the matches printed per finding.
const maxShownMatches = 3

// printFindings writes each finding with its groups and first matches.
func printFindings(out io.Writer, p *palette, findings []*types.Finding) {
	for i, f := range findings {
		fmt.Fprintf(out, "%s (%s %s)\n", p.title.Sprintf("Finding %d/%d", i+1, len(findings)), p.label.Sprint("id"), p.id.Sprint(f.ID))

		name := f.RuleID
		if len(f.Matches) > 0 && f.Matches[0].RuleName != "" {
			name = f.Matches[0].RuleName
		}
		fmt.Fprintf(out, "%s %s\n", p.label.Sprint("Rule:"), p.rule.Sprint(name))
		for j, g := range f.Groups {
			fmt.Fprintf(out, "%s %s\n", p.label.Sprintf("Group %d:", j+1), p.secret.Sprint(string(g)))
		}

		shown := f.Matches
		if len(shown) > maxShownMatches {
			fmt.Fprintf(out, "Showing %d/%d matches:\n", maxShownMatches, len(shown))
			shown = shown[:maxShownMatches]
		}
		for k, m := range shown {
			printMatch(out, p, m, k+1, len(f.Matches))
		}
		fmt.Fprint(out, "\n\n")
	}
}

func printMatch(out io.Writer, p *palette, m *types.Match, n, total int) {
	w := m.Location.Window
	window := p.meta.Sprintf("#%d [%d,%d)", w.Index, w.Span.Start, w.Span.End)
	if w.Partial {
		window += p.meta.Sprint(" partial")
	}

	fmt.Fprintf(out, "\n    %s (%s %s)\n", p.label.Sprintf("Match %d/%d", n, total), p.label.Sprint("id"), p.id.Sprint(m.StructuralID))
	fmt.Fprintf(out, "    %s %s\n", p.label.Sprint("Stream:"), p.meta.Sprint(m.StreamID))
	fmt.Fprintf(out, "    %s %d-%d\n", p.label.Sprint("Offset:"), m.Location.Offset.Start, m.Location.Offset.End)
	fmt.Fprintf(out, "    %s %s\n", p.label.Sprint("Window:"), window)

	if c := clipSnippet(m.Snippet, 500); c != (clippedSnippet{}) {
		fmt.Fprintf(out, "\n        %s%s%s%s%s\n", c.lead, c.before, p.secret.Sprint(c.matching), c.after, c.trail)
	}
}

func outputReportJSON(cmd *cobra.Command, streams []store.Stream, findings []*types.Finding) error {
	data := reportData{Streams: streams, Findings: findings}
	if data.Streams == nil {
		data.Streams = []store.Stream{}
	}
	if data.Findings == nil {
		data.Findings = []*types.Finding{}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func outputReportHuman(cmd *cobra.Command, streams []store.Stream, findings []*types.Finding) error {
	out := cmd.OutOrStdout()
	p := newPalette(colorEnabled(reportColor))

	fmt.Fprintf(out, "%s %d\n", p.label.Sprint("Streams:"), len(streams))
	for _, st := range streams {
		fmt.Fprintf(out, "  %s  mode=%s chunk=%d overlap=%d bytes=%d windows=%d\n",
			p.meta.Sprint(st.ID), st.Mode, st.ChunkSize, st.OverlapSize, st.BytesIngested, st.Windows)
	}
	fmt.Fprintln(out)

	if len(findings) == 0 {
		fmt.Fprintf(out, "No findings.\n")
		return nil
	}
	printFindings(out, p, findings)
	return nil
}

// outputReportSARIF writes stored matches as SARIF, attributing each result
// to its stream. Builtin rules that produced a match describe the rule table.
func outputReportSARIF(cmd *cobra.Command, matches []*types.Match) error {
	builtins, err := rule.NewLoader().LoadBuiltinRules()
	if err != nil {
		return fmt.Errorf("loading rules: %w", err)
	}
	used := make(map[string]bool)
	for _, m := range matches {
		used[m.RuleID] = true
	}
	var rules []*types.Rule
	for _, r := range builtins {
		if used[r.ID] {
			rules = append(rules, r)
		}
	}
	return outputSARIF(cmd, rules, matches, "")
}
