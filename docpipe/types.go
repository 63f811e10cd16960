package docpipe

// Format identifies a document type.
type Format string

const (
	FormatDocx Format = "docx"
)

// Mode selects what Extract produces.
type Mode int

const (
	// ModeMarkup produces styled HTML for the primary renderer.
	ModeMarkup Mode = iota
	// ModeText produces flattened plain text for the fallback compositor.
	ModeText
)

func (m Mode) String() string {
	switch m {
	case ModeMarkup:
		return "markup"
	case ModeText:
		return "text"
	default:
		return "unknown"
	}
}

// Run is a span of paragraph text with uniform character formatting.
type Run struct {
	Text      string `json:"text"`
	Bold      bool   `json:"bold,omitempty"`
	Italic    bool   `json:"italic,omitempty"`
	Underline bool   `json:"underline,omitempty"`
}

// Section is a structural unit of a document.
type Section struct {
	Level int        `json:"level"`          // heading level 1-3, 0 for body
	Type  string     `json:"type"`           // heading, paragraph, table
	Runs  []Run      `json:"runs,omitempty"` // heading and paragraph content
	Rows  [][]string `json:"rows,omitempty"` // table cells, flattened to text
}

// Text returns the concatenated run text of a heading or paragraph.
func (s Section) Text() string {
	var n int
	for _, r := range s.Runs {
		n += len(r.Text)
	}
	b := make([]byte, 0, n)
	for _, r := range s.Runs {
		b = append(b, r.Text...)
	}
	return string(b)
}

// Content is the result of extracting a document in one Mode. Only the
// field matching Mode is filled.
type Content struct {
	Path     string    `json:"path"`
	Format   Format    `json:"format"`
	Mode     Mode      `json:"mode"`
	Title    string    `json:"title"`
	Sections []Section `json:"sections"`
	Markup   string    `json:"markup,omitempty"`
	Text     string    `json:"text,omitempty"`
}
