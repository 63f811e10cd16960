package docpipe

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var headingAtoms = [...]atom.Atom{1: atom.H1, 2: atom.H2, 3: atom.H3}

// renderMarkup builds styled HTML from sections. Nodes are rendered by
// x/net/html, so document text is always escaped.
func renderMarkup(sections []Section, tableClass string) (string, error) {
	var buf bytes.Buffer
	for _, s := range sections {
		var n *html.Node
		switch s.Type {
		case "heading":
			n = element(headingAtoms[s.Level])
			appendRuns(n, s.Runs)
		case "table":
			n = tableNode(s.Rows, tableClass)
		default:
			n = element(atom.P)
			appendRuns(n, s.Runs)
		}
		if err := html.Render(&buf, n); err != nil {
			return "", err
		}
		buf.WriteByte('\n')
	}
	return buf.String(), nil
}

func tableNode(rows [][]string, class string) *html.Node {
	table := element(atom.Table, html.Attribute{Key: "class", Val: class})
	tbody := element(atom.Tbody)
	table.AppendChild(tbody)
	for _, row := range rows {
		tr := element(atom.Tr)
		for _, cell := range row {
			td := element(atom.Td)
			td.AppendChild(textNode(cell))
			tr.AppendChild(td)
		}
		tbody.AppendChild(tr)
	}
	return table
}

func appendRuns(parent *html.Node, runs []Run) {
	for i, r := range runs {
		text := r.Text
		if i == 0 {
			text = strings.TrimLeft(text, " \t")
		}
		if i == len(runs)-1 {
			text = strings.TrimRight(text, " \t")
		}
		n := textNode(text)
		if r.Underline {
			n = wrap(atom.U, n)
		}
		if r.Italic {
			n = wrap(atom.Em, n)
		}
		if r.Bold {
			n = wrap(atom.Strong, n)
		}
		parent.AppendChild(n)
	}
}

func element(a atom.Atom, attrs ...html.Attribute) *html.Node {
	return &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String(), Attr: attrs}
}

func textNode(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}

func wrap(a atom.Atom, child *html.Node) *html.Node {
	n := element(a)
	n.AppendChild(child)
	return n
}
