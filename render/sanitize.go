package render

import (
	"html/template"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

// markupPolicy keeps formatting and tables but drops scripts, event
// handlers and remote frames. The page is printed by a live browser.
var markupPolicy = func() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class", "style").Globally()
	p.AllowAttrs("colspan", "rowspan").OnElements("td", "th")
	return p
}()

func sanitizeMarkup(s string) template.HTML {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	return template.HTML(markupPolicy.Sanitize(s))
}

func newTextConverter() *converter.Converter {
	return converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		),
	)
}

// markupToText converts a caller markup block to readable text for the
// compositor. Plain text input passes through unchanged.
func markupToText(conv *converter.Converter, s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" || !strings.Contains(s, "<") {
		return s, nil
	}
	out, err := conv.ConvertString(markupPolicy.Sanitize(s))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}
