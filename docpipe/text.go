package docpipe

import (
	"strings"
	"unicode"
)

// renderText flattens sections to plain text: one paragraph per line with
// a blank line between blocks, table cells joined with " | ".
func renderText(sections []Section) string {
	var sb strings.Builder
	for i, s := range sections {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		switch s.Type {
		case "table":
			for j, row := range s.Rows {
				if j > 0 {
					sb.WriteByte('\n')
				}
				sb.WriteString(strings.Join(row, " | "))
			}
		default:
			sb.WriteString(normalizeWhitespace(s.Text()))
		}
	}
	return sb.String()
}

func normalizeWhitespace(text string) string {
	var sb strings.Builder
	prevSpace := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteByte(' ')
				prevSpace = true
			}
		} else {
			sb.WriteRune(r)
			prevSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
