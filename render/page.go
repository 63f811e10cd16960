package render

import (
	"bytes"
	"html/template"
)

// pageTemplate wraps extracted body markup in the themed A4 page. Header
// and footer are not part of it: the engine prints them in the margins.
var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
@page { size: A4; }
html, body { margin: 0; padding: 0; }
body { font-family: Arial, Helvetica, sans-serif; font-size: 11pt; line-height: 1.4; color: #000; }
.doc-title { text-align: center; text-decoration: underline; font-weight: bold; font-size: 14pt; margin: 0 0 12pt 0; }
h1 { font-size: 13pt; margin: 12pt 0 6pt 0; }
h2 { font-size: 12pt; margin: 10pt 0 4pt 0; }
h3 { font-size: 11pt; margin: 8pt 0 4pt 0; }
p { margin: 0 0 6pt 0; }
table.doc-table { width: 100%; border-collapse: collapse; margin: 6pt 0; page-break-inside: auto; }
table.doc-table tr { page-break-inside: avoid; }
table.doc-table td { border: 1px solid #000; padding: 3pt 5pt; vertical-align: top; }
.doc-info { margin: 6pt 0; }
</style>
</head>
<body>
<div class="doc-title">{{.Title}}</div>
{{if .HeaderInfo}}<div class="doc-info doc-header-info">{{.HeaderInfo}}</div>{{end}}
<main class="doc-body">{{.Body}}</main>
{{if .Extra}}<div class="doc-info doc-content">{{.Extra}}</div>{{end}}
{{if .FooterInfo}}<div class="doc-info doc-footer-info">{{.FooterInfo}}</div>{{end}}
</body>
</html>
`))

type pageData struct {
	Title      string
	Body       template.HTML
	HeaderInfo template.HTML
	Extra      template.HTML
	FooterInfo template.HTML
}

// buildPage returns the HTML document Chrome prints. Body markup comes from
// the extractor, which escapes text; caller-supplied blocks are sanitised.
func buildPage(job *Job) (string, error) {
	data := pageData{
		Title:      job.Fields.Title,
		HeaderInfo: sanitizeMarkup(job.Fields.HeaderInfo),
		Extra:      sanitizeMarkup(job.Fields.Content),
		FooterInfo: sanitizeMarkup(job.Fields.FooterInfo),
	}
	if job.Content != nil {
		data.Body = template.HTML(job.Content.Markup)
	}
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
