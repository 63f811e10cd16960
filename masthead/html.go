package masthead

import (
	"strings"

	"golang.org/x/net/html"
)

// Chrome fills elements with these classes while laying out each page.
const (
	chromePageNumber = `<span class="pageNumber"></span>`
	chromeTotalPages = `<span class="totalPages"></span>`
)

// Chrome renders header and footer templates in an isolated context with a
// zero default font size, so every style must be inline.
const (
	gridStyle  = `width:100%;border-collapse:collapse;font-family:Arial,Helvetica,sans-serif;font-size:8px;color:#000;`
	cellStyle  = `border:1px solid #000;padding:2px 4px;vertical-align:top;`
	labelStyle = `font-weight:bold;`
	wrapStyle  = `width:100%;margin:0 0.5in;-webkit-print-color-adjust:exact;`
)

// HeaderHTML returns the header template for the primary renderer.
// The page marker is filled in by the engine on every page.
func HeaderHTML(f Fields) string {
	var sb strings.Builder
	sb.WriteString(`<div style="` + wrapStyle + `"><table style="` + gridStyle + `">`)

	sb.WriteString(`<tr><td colspan="6" style="` + cellStyle + `text-align:center;font-weight:bold;font-size:11px;text-transform:uppercase;">`)
	sb.WriteString(html.EscapeString(f.Company))
	sb.WriteString(`</td></tr>`)

	sb.WriteString(`<tr>`)
	for _, c := range f.IdentityRow() {
		writeCell(&sb, c, 1)
	}
	sb.WriteString(`<td style="` + cellStyle + `text-align:center;">`)
	sb.WriteString(PageMarker(chromePageNumber, chromeTotalPages))
	sb.WriteString(`</td></tr>`)

	// Six columns above, three here: each ownership cell spans two.
	sb.WriteString(`<tr>`)
	for _, c := range f.OwnershipRow() {
		writeCell(&sb, c, 2)
	}
	sb.WriteString(`</tr></table></div>`)
	return sb.String()
}

// FooterHTML returns the footer template: approval chain, status and,
// for controlled copies, the banner naming the recipient.
func FooterHTML(f Fields) string {
	var sb strings.Builder
	sb.WriteString(`<div style="` + wrapStyle + `"><table style="` + gridStyle + `"><tr>`)
	for _, c := range f.FooterRow() {
		writeCell(&sb, c, 1)
	}
	sb.WriteString(`</tr>`)
	if f.ControlCopy != "" {
		sb.WriteString(`<tr><td colspan="4" style="` + cellStyle + `text-align:center;font-weight:bold;color:#c00000;">`)
		sb.WriteString(html.EscapeString(f.ControlCopy))
		sb.WriteString(`</td></tr>`)
	}
	sb.WriteString(`</table></div>`)
	return sb.String()
}

func writeCell(sb *strings.Builder, c Cell, span int) {
	sb.WriteString(`<td style="` + cellStyle + `"`)
	if span > 1 {
		sb.WriteString(` colspan="`)
		sb.WriteByte(byte('0' + span))
		sb.WriteString(`"`)
	}
	sb.WriteString(`><span style="` + labelStyle + `">`)
	sb.WriteString(html.EscapeString(c.Label))
	sb.WriteString(`:</span> `)
	sb.WriteString(html.EscapeString(c.Value))
	sb.WriteString(`</td>`)
}
