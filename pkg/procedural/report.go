package procedural

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
)

// RenderReport builds an HTML summary of the extractor's learned
// procedures, written as markdown and converted to HTML with goldmark.
func RenderReport(procedures []*Procedure) (string, error) {
	var md strings.Builder
	md.WriteString("# Learned Procedures\n\n")
	for _, p := range procedures {
		fmt.Fprintf(&md, "## %s\n\n", p.Name)
		fmt.Fprintf(&md, "- Confidence: %.2f\n", p.Confidence)
		fmt.Fprintf(&md, "- Success rate: %.2f\n", p.SuccessRate())
		fmt.Fprintf(&md, "- Triggers: %s\n", strings.Join(p.Triggers, ", "))
		md.WriteString("\nSteps:\n\n")
		for i, step := range p.Steps {
			fmt.Fprintf(&md, "%d. `%s`\n", i+1, step.ToolName)
		}
		md.WriteString("\n")
	}

	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md.String()), &buf); err != nil {
		return "", fmt.Errorf("procedural: render report: %w", err)
	}
	return buf.String(), nil
}
