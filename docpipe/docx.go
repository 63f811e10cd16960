package docpipe

import (
	"archive/zip"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// maxXMLDepth bounds element nesting in archive parts.
const maxXMLDepth = 256

// headingLevels maps normalised paragraph style names to heading levels.
// Names are compared lower-cased with spaces removed, so "Heading 1",
// "heading 1" and the style ID "Heading1" all match.
var headingLevels = map[string]int{
	"header":   1,
	"heading1": 1,
	"heading2": 2,
	"heading3": 3,
}

func headingLevel(styleName string) int {
	key := strings.ToLower(strings.ReplaceAll(styleName, " ", ""))
	return headingLevels[key]
}

// parseDocx reads word/document.xml (and word/styles.xml when present) and
// returns the document title and its sections.
func parseDocx(path string, maxPart int64) (string, []Section, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return "", nil, extractionError(path, "open archive", err)
	}
	defer r.Close()

	var docFile, stylesFile *zip.File
	for _, f := range r.File {
		switch f.Name {
		case "word/document.xml":
			docFile = f
		case "word/styles.xml":
			stylesFile = f
		}
	}
	if docFile == nil {
		return "", nil, extractionError(path, "locate body", errors.New("word/document.xml not found in archive"))
	}

	styles := map[string]string{}
	if stylesFile != nil {
		styles, err = readPart(stylesFile, maxPart, parseStyles)
		if err != nil {
			return "", nil, extractionError(path, "parse styles", err)
		}
	}

	sections, err := readPart(docFile, maxPart, func(rd io.Reader) ([]Section, error) {
		return parseBody(rd, styles)
	})
	if err != nil {
		return "", nil, extractionError(path, "parse body", err)
	}

	var title string
	for _, s := range sections {
		if s.Type == "heading" {
			title = strings.TrimSpace(s.Text())
			break
		}
	}
	return title, sections, nil
}

func readPart[T any](f *zip.File, maxPart int64, parse func(io.Reader) (T, error)) (T, error) {
	var zero T
	if f.UncompressedSize64 > uint64(maxPart) {
		return zero, fmt.Errorf("%s too large: %d bytes (max %d)", f.Name, f.UncompressedSize64, maxPart)
	}
	rc, err := f.Open()
	if err != nil {
		return zero, fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer rc.Close()
	// The header size can lie; cap what is actually inflated.
	return parse(io.LimitReader(rc, maxPart))
}

// parseStyles maps paragraph style IDs to their display names.
func parseStyles(r io.Reader) (map[string]string, error) {
	styles := make(map[string]string)
	dec := xml.NewDecoder(r)
	depth := 0
	var currentID string
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return styles, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return nil, fmt.Errorf("nesting depth exceeds %d", maxXMLDepth)
			}
			switch t.Name.Local {
			case "style":
				currentID = attr(t, "styleId")
			case "name":
				if currentID != "" {
					styles[currentID] = attr(t, "val")
				}
			}
		case xml.EndElement:
			depth--
			if t.Name.Local == "style" {
				currentID = ""
			}
		}
	}
}

// bodyParser accumulates sections while walking document.xml tokens.
type bodyParser struct {
	styles   map[string]string
	sections []Section

	// current paragraph
	inPara bool
	style  string
	runs   []Run

	// current run
	inRun     bool
	inRunProp bool
	inText    bool
	run       Run

	// tables: only the outermost table becomes a section; nested table
	// content is folded into the enclosing cell.
	tblDepth int
	table    *Section
	row      []string
	cell     strings.Builder
}

func parseBody(r io.Reader, styles map[string]string) ([]Section, error) {
	p := &bodyParser{styles: styles}
	dec := xml.NewDecoder(r)
	depth := 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return p.sections, nil
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if depth > maxXMLDepth {
				return nil, fmt.Errorf("nesting depth exceeds %d", maxXMLDepth)
			}
			p.start(t)
		case xml.EndElement:
			depth--
			p.end(t)
		case xml.CharData:
			if p.inText {
				p.run.Text += string(t)
			}
		}
	}
}

func (p *bodyParser) start(t xml.StartElement) {
	switch t.Name.Local {
	case "tbl":
		p.tblDepth++
		if p.tblDepth == 1 {
			p.table = &Section{Type: "table"}
		}
	case "tr":
		if p.tblDepth == 1 {
			p.row = nil
		}
	case "tc":
		if p.tblDepth == 1 {
			p.cell.Reset()
		}
	case "p":
		p.inPara = true
		p.style = ""
		p.runs = nil
	case "pStyle":
		if p.inPara {
			p.style = attr(t, "val")
		}
	case "r":
		if p.inPara {
			p.inRun = true
			p.run = Run{}
		}
	case "rPr":
		p.inRunProp = p.inRun
	case "b":
		if p.inRunProp {
			p.run.Bold = toggleOn(t)
		}
	case "i":
		if p.inRunProp {
			p.run.Italic = toggleOn(t)
		}
	case "u":
		if p.inRunProp {
			p.run.Underline = toggleOn(t) && attr(t, "val") != "none"
		}
	case "t":
		p.inText = p.inRun
	case "tab":
		if p.inRun && !p.inRunProp {
			p.run.Text += "\t"
		}
	case "br", "cr":
		if p.inRun {
			p.run.Text += " "
		}
	}
}

func (p *bodyParser) end(t xml.EndElement) {
	switch t.Name.Local {
	case "t":
		p.inText = false
	case "rPr":
		p.inRunProp = false
	case "r":
		if p.inRun {
			p.inRun = false
			p.appendRun(p.run)
		}
	case "p":
		if p.inPara {
			p.inPara = false
			p.flushParagraph()
		}
	case "tc":
		if p.tblDepth == 1 {
			p.row = append(p.row, strings.TrimSpace(p.cell.String()))
		}
	case "tr":
		if p.tblDepth == 1 && len(p.row) > 0 {
			p.table.Rows = append(p.table.Rows, p.row)
			p.row = nil
		}
	case "tbl":
		if p.tblDepth == 1 && p.table != nil && len(p.table.Rows) > 0 {
			p.sections = append(p.sections, *p.table)
		}
		if p.tblDepth > 0 {
			p.tblDepth--
		}
		if p.tblDepth == 0 {
			p.table = nil
		}
	}
}

// appendRun merges r into the previous run when formatting matches.
func (p *bodyParser) appendRun(r Run) {
	if r.Text == "" {
		return
	}
	if n := len(p.runs); n > 0 {
		last := &p.runs[n-1]
		if last.Bold == r.Bold && last.Italic == r.Italic && last.Underline == r.Underline {
			last.Text += r.Text
			return
		}
	}
	p.runs = append(p.runs, r)
}

func (p *bodyParser) flushParagraph() {
	s := Section{Type: "paragraph", Runs: p.runs}
	text := strings.TrimSpace(s.Text())
	if text == "" {
		return
	}
	if p.tblDepth > 0 {
		if p.cell.Len() > 0 {
			p.cell.WriteByte(' ')
		}
		p.cell.WriteString(text)
		return
	}
	name := p.style
	if display, ok := p.styles[p.style]; ok && display != "" {
		name = display
	}
	if level := headingLevel(name); level > 0 {
		s.Type = "heading"
		s.Level = level
	}
	p.sections = append(p.sections, s)
}

func attr(t xml.StartElement, local string) string {
	for _, a := range t.Attr {
		if a.Name.Local == local {
			return a.Value
		}
	}
	return ""
}

// toggleOn reads OOXML on/off properties: absent val means on.
func toggleOn(t xml.StartElement) bool {
	switch strings.ToLower(attr(t, "val")) {
	case "false", "0", "off":
		return false
	}
	return true
}
