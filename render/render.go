// Package render turns extracted document content into controlled PDFs.
//
// Two Renderer implementations share one contract: Chrome (headless
// browser, full HTML/CSS fidelity, engine-computed page counters) and
// Compositor (plain text laid out with fpdf, no browser needed). Both draw
// the header and footer from the same masthead.Fields, and both outputs go
// through Stamper so document properties and the controlled-copy watermark
// are applied identically.
package render

import (
	"context"
	"time"

	"github.com/hazyhaar/ctrldoc/docpipe"
	"github.com/hazyhaar/ctrldoc/masthead"
)

// Tag marks which engine produced an artifact. It appears in the file name.
type Tag string

const (
	TagFinal    Tag = "final"
	TagFallback Tag = "fallback"
)

// Job is everything a renderer needs for one conversion.
type Job struct {
	Meta        masthead.Metadata
	ControlCopy *masthead.ControlCopy
	// Fields are resolved once per conversion so both engines print
	// the same values.
	Fields  masthead.Fields
	Content *docpipe.Content
	Now     time.Time
}

// NewJob resolves header/footer fields for meta and cc at now.
func NewJob(meta masthead.Metadata, cc *masthead.ControlCopy, content *docpipe.Content, now time.Time) *Job {
	return &Job{
		Meta:        meta,
		ControlCopy: cc,
		Fields:      masthead.Resolve(meta, cc, now),
		Content:     content,
		Now:         now,
	}
}

// Renderer produces PDF bytes for a job. Implementations must release any
// resource they acquire before returning, on every path.
type Renderer interface {
	Tag() Tag
	Render(ctx context.Context, job *Job) ([]byte, error)
}
