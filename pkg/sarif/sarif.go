// Package sarif renders matches as a SARIF 2.1.0 log. Streams have no line
// structure, so regions are expressed in byte offsets and each result carries
// the window it was found in as properties.
package sarif

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"

	"github.com/praetorian-inc/streamscan/pkg/types"
)

const (
	SchemaURI = "https://raw.githubusercontent.com/oasis-tcs/sarif-spec/master/Schemata/sarif-schema-2.1.0.json"
	Version   = "2.1.0"
	ToolName  = "streamscan"
)

type Log struct {
	Schema  string `json:"$schema"`
	Version string `json:"version"`
	Runs    []Run  `json:"runs"`
}

type Run struct {
	Tool      Tool       `json:"tool"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Results   []Result   `json:"results"`
}

type Tool struct {
	Driver Driver `json:"driver"`
}

type Driver struct {
	Name    string                `json:"name"`
	Version string                `json:"version"`
	Rules   []ReportingDescriptor `json:"rules"`
}

// ReportingDescriptor describes one rule.
type ReportingDescriptor struct {
	ID               string          `json:"id"`
	Name             string          `json:"name,omitempty"`
	ShortDescription *Message        `json:"shortDescription,omitempty"`
	HelpURI          string          `json:"helpUri,omitempty"`
	Properties       *RuleProperties `json:"properties,omitempty"`
}

type RuleProperties struct {
	Tags []string `json:"tags"`
}

type Message struct {
	Text string `json:"text"`
}

type Artifact struct {
	Location ArtifactLocation `json:"location"`
}

type Result struct {
	RuleID              string            `json:"ruleId"`
	RuleIndex           int               `json:"ruleIndex"`
	Level               string            `json:"level"`
	Message             Message           `json:"message"`
	Locations           []Location        `json:"locations"`
	PartialFingerprints map[string]string `json:"partialFingerprints,omitempty"`
	Properties          WindowProperties  `json:"properties"`
}

// WindowProperties names the stream window a result was found in.
type WindowProperties struct {
	StreamID      string `json:"streamId,omitempty"`
	WindowIndex   int    `json:"windowIndex"`
	WindowOffset  int64  `json:"windowOffset"`
	PartialWindow bool   `json:"partialWindow"`
}

type Location struct {
	PhysicalLocation PhysicalLocation `json:"physicalLocation"`
}

type PhysicalLocation struct {
	ArtifactLocation ArtifactLocation `json:"artifactLocation"`
	Region           Region           `json:"region"`
}

type ArtifactLocation struct {
	URI   string `json:"uri"`
	Index int    `json:"index"`
}

type Region struct {
	ByteOffset int64    `json:"byteOffset"`
	ByteLength int64    `json:"byteLength"`
	Snippet    *Message `json:"snippet,omitempty"`
}

// Builder accumulates a single-run log. Rules and artifacts are stored once
// and referenced from results by index.
type Builder struct {
	run       Run
	rules     map[string]int
	artifacts map[string]int
}

// NewBuilder starts a log produced by the given tool version.
func NewBuilder(toolVersion string) *Builder {
	return &Builder{
		run: Run{
			Tool:    Tool{Driver: Driver{Name: ToolName, Version: toolVersion, Rules: []ReportingDescriptor{}}},
			Results: []Result{},
		},
		rules:     make(map[string]int),
		artifacts: make(map[string]int),
	}
}

// AddRule registers r and returns its index. Adding a rule ID twice keeps
// the first descriptor.
func (b *Builder) AddRule(r *types.Rule) int {
	if i, ok := b.rules[r.ID]; ok {
		return i
	}
	d := ReportingDescriptor{ID: r.ID, Name: r.Name}
	if r.Description != "" {
		d.ShortDescription = &Message{Text: r.Description}
	}
	if len(r.References) > 0 {
		d.HelpURI = r.References[0]
	}
	if len(r.Categories) > 0 {
		d.Properties = &RuleProperties{Tags: r.Categories}
	}
	return b.addDescriptor(d)
}

func (b *Builder) addDescriptor(d ReportingDescriptor) int {
	i := len(b.run.Tool.Driver.Rules)
	b.run.Tool.Driver.Rules = append(b.run.Tool.Driver.Rules, d)
	b.rules[d.ID] = i
	return i
}

func (b *Builder) artifact(source string) ArtifactLocation {
	uri := ArtifactURI(source)
	i, ok := b.artifacts[uri]
	if !ok {
		i = len(b.run.Artifacts)
		b.run.Artifacts = append(b.run.Artifacts, Artifact{Location: ArtifactLocation{URI: uri, Index: i}})
		b.artifacts[uri] = i
	}
	return ArtifactLocation{URI: uri, Index: i}
}

// AddMatch records m as a result located in source. A match whose rule was
// never added gets a descriptor built from the match itself.
func (b *Builder) AddMatch(m *types.Match, source string) {
	ruleIndex, ok := b.rules[m.RuleID]
	if !ok {
		ruleIndex = b.addDescriptor(ReportingDescriptor{ID: m.RuleID, Name: m.RuleName})
	}

	region := Region{ByteOffset: m.Location.Offset.Start, ByteLength: m.Location.Offset.Len()}
	if len(m.Snippet.Matching) > 0 {
		region.Snippet = &Message{Text: string(m.Snippet.Matching)}
	}

	res := Result{
		RuleID:    m.RuleID,
		RuleIndex: ruleIndex,
		Level:     "warning",
		Message:   Message{Text: m.RuleName},
		Locations: []Location{{PhysicalLocation: PhysicalLocation{
			ArtifactLocation: b.artifact(source),
			Region:           region,
		}}},
		Properties: WindowProperties{
			StreamID:      m.StreamID,
			WindowIndex:   m.Location.Window.Index,
			WindowOffset:  m.Location.Window.Span.Start,
			PartialWindow: m.Location.Window.Partial,
		},
	}
	if m.FindingID != "" {
		res.PartialFingerprints = map[string]string{"findingId/v1": m.FindingID}
	}
	b.run.Results = append(b.run.Results, res)
}

// Log returns the accumulated log.
func (b *Builder) Log() *Log {
	return &Log{Schema: SchemaURI, Version: Version, Runs: []Run{b.run}}
}

// WriteTo writes the log as indented JSON.
func (b *Builder) WriteTo(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(b.Log())
}

// ArtifactURI turns a source name into an artifact URI: absolute paths
// become file:// URIs, while URIs, relative paths and "-" pass through.
func ArtifactURI(source string) string {
	if strings.Contains(source, "://") {
		return source
	}
	p := filepath.ToSlash(source)
	if !filepath.IsAbs(source) {
		return p
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return "file://" + p
}
