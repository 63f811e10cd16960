package docpipe

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFInfo describes a rendered artifact.
type PDFInfo struct {
	PageCount int      `json:"page_count"`
	Pages     []string `json:"pages"` // best-effort text per page, one line per show operator
}

// Text returns the text of all pages separated by newlines.
func (i *PDFInfo) Text() string {
	return strings.Join(i.Pages, "\n")
}

// ReadPDF validates a PDF with pdfcpu and extracts literal-string text from
// each page's content stream. Text drawn with hex-encoded glyph IDs (as
// Chrome emits) is not recovered; the page count always is.
func ReadPDF(path string) (*PDFInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	if ctx.PageCount == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}

	info := &PDFInfo{PageCount: ctx.PageCount}
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		info.Pages = append(info.Pages, extractPageText(ctx, pageNr))
	}
	return info, nil
}

// extractPageText extracts text from a single PDF page via pdfcpu content stream.
func extractPageText(ctx *model.Context, pageNr int) string {
	r, err := pdfcpu.ExtractPageContent(ctx, pageNr)
	if err != nil || r == nil {
		return ""
	}
	data, err := io.ReadAll(r)
	if err != nil || len(data) == 0 {
		return ""
	}
	return extractTextFromStream(data)
}

var (
	// (text) Tj  and  (text) '
	showStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)\s*(?:Tj|')`)
	// [(text) -100 (more)] TJ
	showArrayRe = regexp.MustCompile(`\[((?:\\.|[^\]])*)\]\s*TJ`)
	pdfStringRe = regexp.MustCompile(`\(((?:\\.|[^\\)])*)\)`)
)

// extractTextFromStream parses content stream show operators. Operators may
// share a line (BT x y Td (a) Tj ET), so matching is token based.
func extractTextFromStream(data []byte) string {
	type hit struct {
		pos  int
		text string
	}
	var hits []hit

	for _, m := range showStringRe.FindAllSubmatchIndex(data, -1) {
		hits = append(hits, hit{m[0], decodePDFString(data[m[2]:m[3]])})
	}
	for _, m := range showArrayRe.FindAllSubmatchIndex(data, -1) {
		var sb strings.Builder
		for _, s := range pdfStringRe.FindAllSubmatch(data[m[2]:m[3]], -1) {
			sb.WriteString(decodePDFString(s[1]))
		}
		hits = append(hits, hit{m[0], sb.String()})
	}

	// Restore stream order across both operator kinds.
	for i := 1; i < len(hits); i++ {
		for j := i; j > 0 && hits[j].pos < hits[j-1].pos; j-- {
			hits[j], hits[j-1] = hits[j-1], hits[j]
		}
	}

	var lines []string
	for _, h := range hits {
		if t := strings.TrimSpace(h.text); t != "" {
			lines = append(lines, t)
		}
	}
	return strings.Join(lines, "\n")
}

// decodePDFString handles basic PDF escape sequences.
func decodePDFString(raw []byte) string {
	var sb bytes.Buffer
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 >= len(raw) {
			sb.WriteByte(raw[i])
			continue
		}
		i++
		switch raw[i] {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case '\\', '(', ')':
			sb.WriteByte(raw[i])
		default:
			// Octal escape (e.g. \040 for space).
			if raw[i] >= '0' && raw[i] <= '7' {
				val := int(raw[i] - '0')
				for k := 0; k < 2 && i+1 < len(raw) && raw[i+1] >= '0' && raw[i+1] <= '7'; k++ {
					i++
					val = val*8 + int(raw[i]-'0')
				}
				sb.WriteByte(byte(val))
			} else {
				sb.WriteByte(raw[i])
			}
		}
	}
	return sb.String()
}
