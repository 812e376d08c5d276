package diag

import (
	"fmt"
	"strings"
)

// Render produces a terminal-friendly rendering of a diagnostic: the
// message, a source-annotated snippet with the offending span
// underlined (when source and a non-zero span are available), the
// error kind, and a suggestion line when present. This generalizes
// the teacher's errmsg.Format causes/suggestions block into a single
// span-aware renderer shared by every stage of the pipeline.
func Render(d *Diagnostic, source string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "error[%s]: %s\n", d.Kind, d.Message)

	if !d.Span.IsZero() && source != "" {
		if snippet := renderSnippet(d.Span, source); snippet != "" {
			sb.WriteString(snippet)
		}
	} else if !d.Span.IsZero() {
		fmt.Fprintf(&sb, "  --> %s\n", d.Span)
	}

	if d.Suggestion != "" {
		fmt.Fprintf(&sb, "\nsuggestion: %s\n", d.Suggestion)
	}

	return sb.String()
}

// RenderList renders every diagnostic in l, separated by blank lines.
func RenderList(l List, source string) string {
	parts := make([]string, 0, len(l))
	for _, d := range l {
		parts = append(parts, Render(d, source))
	}
	return strings.Join(parts, "\n")
}

// renderSnippet extracts the line(s) containing span and underlines
// the exact byte range with '^' markers, computing line/column from
// byte offsets when the span didn't already carry them.
func renderSnippet(span Span, source string) string {
	line, col := span.Line, span.Col
	if line == 0 {
		line, col = lineCol(source, span.Start)
	}

	lines := strings.Split(source, "\n")
	if line < 1 || line > len(lines) {
		return ""
	}
	text := lines[line-1]

	width := span.End - span.Start
	if width < 1 {
		width = 1
	}
	// Clamp the underline to the rendered line's length.
	underlineStart := col - 1
	if underlineStart < 0 {
		underlineStart = 0
	}
	underlineEnd := underlineStart + width
	if underlineEnd > len(text) {
		underlineEnd = len(text)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "  --> %s:%d:%d\n", span.File, line, col)
	fmt.Fprintf(&sb, "   | %s\n", text)
	sb.WriteString("   | ")
	sb.WriteString(strings.Repeat(" ", underlineStart))
	if underlineEnd > underlineStart {
		sb.WriteString(strings.Repeat("^", underlineEnd-underlineStart))
	} else {
		sb.WriteString("^")
	}
	sb.WriteString("\n")
	return sb.String()
}

// lineCol converts a byte offset in source into a 1-based (line, col) pair.
func lineCol(source string, offset int) (int, int) {
	if offset < 0 || offset > len(source) {
		return 1, 1
	}
	line := 1
	col := 1
	for i := 0; i < offset; i++ {
		if source[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}
