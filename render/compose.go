package render

import (
	"bytes"
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/go-pdf/fpdf"

	"github.com/hazyhaar/ctrldoc/masthead"
)

// Compositor page geometry, in points.
const (
	composeMargin     = 36.0
	bodyFontSize      = 10.0
	bodyLineHeight    = 13.0
	gridFontSize      = 7.5
	gridLineHeight    = 10.0
	defaultWrapWidth  = 95
	defaultBreakSpace = 80.0
)

// ComposerConfig configures the fallback renderer.
type ComposerConfig struct {
	// WrapWidth is the body line length in characters. Default: 95.
	WrapWidth int

	// BreakSpace starts a new page when less vertical space than this
	// remains below the cursor. Default: 80pt.
	BreakSpace float64

	Logger *slog.Logger
}

func (c *ComposerConfig) defaults() {
	if c.WrapWidth <= 0 {
		c.WrapWidth = defaultWrapWidth
	}
	if c.BreakSpace <= 0 {
		c.BreakSpace = defaultBreakSpace
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Compositor lays plain text out on A4 pages with core fonts only. It has
// no external process and no network, so it works wherever the binary runs.
type Compositor struct {
	cfg    ComposerConfig
	conv   *converter.Converter
	logger *slog.Logger
}

// NewCompositor creates a fallback renderer.
func NewCompositor(cfg ComposerConfig) *Compositor {
	cfg.defaults()
	return &Compositor{
		cfg:    cfg,
		conv:   newTextConverter(),
		logger: cfg.Logger.With("component", "render.compositor"),
	}
}

// Tag returns TagFallback.
func (c *Compositor) Tag() Tag { return TagFallback }

// Render composes job.Content.Text and the caller text blocks.
func (c *Compositor) Render(ctx context.Context, job *Job) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	body, err := c.bodyText(job)
	if err != nil {
		return nil, stageError(TagFallback, "text", err)
	}
	lines := wrapText(body, c.cfg.WrapWidth)

	f := job.Fields
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(true)
	pdf.SetMargins(composeMargin, composeMargin, composeMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AliasNbPages("")
	pdf.SetTitle(f.Title, true)
	pdf.SetSubject(f.DocNumber, true)
	pdf.SetCreator("ctrldoc", false)
	if !job.Now.IsZero() {
		pdf.SetCreationDate(job.Now)
	}

	enc := mastheadEncoder(pdf)
	pdf.SetHeaderFunc(func() { drawHeader(pdf, f, enc) })
	pdf.SetFooterFunc(func() { drawFooter(pdf, f, enc) })

	_, pageH := pdf.GetPageSize()
	pdf.AddPage()
	pdf.SetFont("Helvetica", "", bodyFontSize)
	for _, line := range lines {
		if pageH-pdf.GetY() < c.cfg.BreakSpace {
			pdf.AddPage()
			pdf.SetFont("Helvetica", "", bodyFontSize)
		}
		pdf.CellFormat(0, bodyLineHeight, line, "", 1, "L", false, 0, "")
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, stageError(TagFallback, "compose", err)
	}

	c.logger.DebugContext(ctx, "render: compositor laid out document",
		"doc_number", f.DocNumber, "lines", len(lines), "pages", pdf.PageNo())
	return buf.Bytes(), nil
}

// bodyText joins the blocks in page order: header info, extracted body,
// supplementary content, footer info.
func (c *Compositor) bodyText(job *Job) (string, error) {
	var parts []string
	add := func(s string) {
		if s = strings.TrimSpace(s); s != "" {
			parts = append(parts, s)
		}
	}

	hdr, err := markupToText(c.conv, job.Fields.HeaderInfo)
	if err != nil {
		return "", err
	}
	add(hdr)
	if job.Content != nil {
		add(job.Content.Text)
	}
	for _, block := range []string{job.Fields.Content, job.Fields.FooterInfo} {
		txt, err := markupToText(c.conv, block)
		if err != nil {
			return "", err
		}
		add(txt)
	}
	return strings.Join(parts, "\n\n"), nil
}

// drawHeader runs on every page: banner line, then the header grid.
func drawHeader(pdf *fpdf.Fpdf, f masthead.Fields, enc func(string) string) {
	pageW, _ := pdf.GetPageSize()
	pdf.SetY(composeMargin - 12)
	pdf.SetTextColor(0, 0, 0)

	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 12, enc(masthead.BannerLine(f)), "", 1, "C", false, 0, "")

	lines := masthead.HeaderLines(f, strconv.Itoa(pdf.PageNo()), "{nb}")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 14, enc(lines[0]), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", gridFontSize)
	for _, l := range lines[1:] {
		pdf.MultiCell(0, gridLineHeight, enc(l), "", "C", false)
	}

	y := pdf.GetY() + 3
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(composeMargin, y, pageW-composeMargin, y)
	pdf.SetY(y + 9)
}

// drawFooter runs on every page: approval chain, status and banner.
func drawFooter(pdf *fpdf.Fpdf, f masthead.Fields, enc func(string) string) {
	pageW, _ := pdf.GetPageSize()
	lines := masthead.FooterLines(f)
	top := -(composeMargin + float64(len(lines))*gridLineHeight)

	pdf.SetY(top - 4)
	y := pdf.GetY()
	pdf.SetDrawColor(0, 0, 0)
	pdf.SetLineWidth(0.5)
	pdf.Line(composeMargin, y, pageW-composeMargin, y)
	pdf.SetY(top)

	pdf.SetFont("Helvetica", "", gridFontSize)
	pdf.SetTextColor(0, 0, 0)
	pdf.CellFormat(0, gridLineHeight, enc(lines[0]), "", 1, "C", false, 0, "")
	if f.ControlCopy != "" {
		pdf.SetFont("Helvetica", "B", gridFontSize)
		pdf.SetTextColor(192, 0, 0)
		pdf.CellFormat(0, gridLineHeight, enc(f.ControlCopy), "", 1, "C", false, 0, "")
		pdf.SetTextColor(0, 0, 0)
	}
}

// wrapText word-wraps text at width characters after removing anything
// the core fonts cannot draw. Blank lines are kept; words longer than
// width are split.
func wrapText(text string, width int) []string {
	var out []string
	for _, raw := range strings.Split(text, "\n") {
		line := printable(strings.ReplaceAll(raw, "\t", "    "))
		if strings.TrimSpace(line) == "" {
			out = append(out, "")
			continue
		}
		var cur strings.Builder
		for _, word := range strings.Fields(line) {
			for len(word) > width {
				if cur.Len() > 0 {
					out = append(out, cur.String())
					cur.Reset()
				}
				out = append(out, word[:width])
				word = word[width:]
			}
			if cur.Len() > 0 && cur.Len()+1+len(word) > width {
				out = append(out, cur.String())
				cur.Reset()
			}
			if cur.Len() > 0 {
				cur.WriteByte(' ')
			}
			cur.WriteString(word)
		}
		if cur.Len() > 0 {
			out = append(out, cur.String())
		}
	}
	return out
}

// mastheadEncoder maps header and footer text to the cp1252 encoding of
// the core fonts, so names such as "José Núñez" print as supplied. Runes
// outside cp1252 become '.'.
func mastheadEncoder(pdf *fpdf.Fpdf) func(string) string {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	return func(s string) string {
		return tr(strings.Map(func(r rune) rune {
			if r < 0x20 || r == 0x7f {
				return -1
			}
			return r
		}, s))
	}
}

// printable keeps bytes 0x20 through 0x7E. Body text only.
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r > 0x7e {
			return -1
		}
		return r
	}, s)
}
