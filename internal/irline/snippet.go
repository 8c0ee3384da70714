package irline

import (
	"fmt"
	"strings"
)

// SnippetLine is one line of a context window.
type SnippetLine struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
	Focus  bool   `json:"focus,omitempty"`
}

// Snippet returns up to radius lines before and after index center, with
// 1-based line numbers. The line at center is marked Focus.
func Snippet(lines []string, center, radius int) []SnippetLine {
	start := max(center-radius, 0)
	end := min(center+radius+1, len(lines))
	out := make([]SnippetLine, 0, max(end-start, 0))
	for i := start; i < end; i++ {
		out = append(out, SnippetLine{Number: i + 1, Text: lines[i], Focus: i == center})
	}
	return out
}

// FormatSnippet renders a context window, one line per entry, each prefixed
// by indent and a ">>>" marker on the focus line.
func FormatSnippet(snip []SnippetLine, indent string) string {
	var b strings.Builder
	for _, l := range snip {
		marker := "   "
		if l.Focus {
			marker = ">>>"
		}
		fmt.Fprintf(&b, "%s%s %d: %s\n", indent, marker, l.Number, l.Text)
	}
	return b.String()
}
