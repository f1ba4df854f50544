package plan

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format identifies the representation a plan is written in.
type Format string

const (
	// FormatNL is numbered natural-language steps.
	FormatNL Format = "nl"
	// FormatYAML is a YAML document with io, steps and edges keys.
	FormatYAML Format = "yaml"
	// FormatDSL is a STRUCTURED_PLAN control-flow block.
	FormatDSL Format = "dsl"
	// FormatFlow is a mermaid flowchart.
	FormatFlow Format = "flow"
)

// Formats lists every supported plan format.
func Formats() []Format {
	return []Format{FormatNL, FormatYAML, FormatDSL, FormatFlow}
}

// ParseFormat validates a format name from config or the command line.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatNL, FormatYAML, FormatDSL, FormatFlow:
		return f, nil
	}
	return "", fmt.Errorf("unknown plan format %q (valid: nl, yaml, dsl, flow)", s)
}

// Plan is one intermediate plan produced for a task.
type Plan struct {
	Format  Format
	Content string
}

var (
	fenceSplit = regexp.MustCompile("`{3,}")
	dslOpen    = regexp.MustCompile(`STRUCTURED_PLAN\s*\{`)
	flowAnchor = regexp.MustCompile(`(?:^|\n)\s*flowchart\s+TD`)
)

// StripFences returns the first fenced block of a model response, dropping a
// leading language tag line. Responses without a complete fence pair keep
// their text with stray backticks removed.
func StripFences(text string) string {
	parts := fenceSplit.Split(text, -1)
	if len(parts) >= 3 {
		body := parts[1]
		lower := strings.ToLower(body)
		if strings.HasPrefix(lower, "yaml") || strings.HasPrefix(lower, "python") || strings.HasPrefix(lower, "mermaid") {
			if nl := strings.Index(body, "\n"); nl >= 0 {
				body = body[nl+1:]
			}
		}
		return strings.TrimSpace(body)
	}
	return strings.TrimSpace(strings.ReplaceAll(text, "`", ""))
}

// ExtractBlock isolates the plan block for formats that have a recognizable
// shape. DSL plans run from the STRUCTURED_PLAN opener to the last closing
// brace, flow plans from the flowchart header to the end. Other formats are
// returned trimmed.
func ExtractBlock(format Format, text string) string {
	s := strings.TrimSpace(text)
	switch format {
	case FormatDSL:
		if loc := dslOpen.FindStringIndex(s); loc != nil {
			if end := strings.LastIndex(s, "}"); end > loc[0] {
				return strings.TrimSpace(s[loc[0] : end+1])
			}
		}
	case FormatFlow:
		if loc := flowAnchor.FindStringIndex(s); loc != nil {
			return strings.TrimSpace(s[loc[0]:])
		}
	}
	return s
}

// Clip truncates text to at most max characters and marks the cut. A max of
// zero or less means no limit.
func Clip(text string, max int) string {
	if max <= 0 || len(text) <= max {
		return text
	}
	return text[:max] + "\n... [truncated] ..."
}

// CheckSyntax reports whether a plan is well formed for its format. Plans
// are advisory input to the coder model, so callers usually log a failure
// here instead of aborting.
func CheckSyntax(p *Plan) error {
	content := strings.TrimSpace(p.Content)
	if content == "" {
		return fmt.Errorf("empty plan")
	}
	switch p.Format {
	case FormatYAML:
		var doc map[string]any
		if err := yaml.Unmarshal([]byte(p.Content), &doc); err != nil {
			return fmt.Errorf("invalid yaml plan: %w", err)
		}
	case FormatDSL:
		if !strings.HasPrefix(content, "STRUCTURED_PLAN") || !strings.HasSuffix(content, "}") {
			return fmt.Errorf("dsl plan is not a single STRUCTURED_PLAN block")
		}
	case FormatFlow:
		if !strings.Contains(content, "flowchart TD") {
			return fmt.Errorf("flow plan has no flowchart TD header")
		}
	}
	return nil
}
