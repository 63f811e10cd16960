package masthead

import "strings"

// HeaderLines returns the header grid as text rows for the fallback
// compositor, in the same order and with the same values as HeaderHTML.
func HeaderLines(f Fields, page, total string) []string {
	identity := joinCells(f.IdentityRow()) + " | " + PageMarker(page, total)
	return []string{
		f.Company,
		identity,
		joinCells(f.OwnershipRow()),
	}
}

// FooterLines returns the footer rows, with the control-copy banner last
// when present.
func FooterLines(f Fields) []string {
	lines := []string{joinCells(f.FooterRow())}
	if f.ControlCopy != "" {
		lines = append(lines, f.ControlCopy)
	}
	return lines
}

// BannerLine is the document name and number line the compositor adds
// above the header grid.
func BannerLine(f Fields) string {
	return f.Title + " (" + f.DocNumber + ")"
}

func joinCells(cells []Cell) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c.Label + ": " + c.Value
	}
	return strings.Join(parts, " | ")
}
