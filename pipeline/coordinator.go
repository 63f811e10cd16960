// Package pipeline turns an uploaded document plus its control metadata
// into exactly one controlled PDF. It tries the primary renderer, falls
// back to the text compositor on any primary failure, and reports a
// terminal error only when both paths fail.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hazyhaar/ctrldoc/docpipe"
	"github.com/hazyhaar/ctrldoc/masthead"
	"github.com/hazyhaar/ctrldoc/observability"
	"github.com/hazyhaar/ctrldoc/render"
	"github.com/hazyhaar/ctrldoc/storage"
)

// ErrPrimaryDisabled is the primary-path cause recorded when the
// coordinator runs without a primary renderer.
var ErrPrimaryDisabled = errors.New("pipeline: primary renderer disabled")

// Extractor produces document content in the requested mode.
type Extractor interface {
	Extract(ctx context.Context, path string, mode docpipe.Mode) (*docpipe.Content, error)
}

// Stamper post-processes rendered bytes.
type Stamper interface {
	Stamp(pdf []byte, f masthead.Fields, tag render.Tag) ([]byte, error)
}

// Recorder receives one event per conversion.
type Recorder interface {
	LogRender(ctx context.Context, ev observability.RenderEvent)
}

// Request is one conversion.
type Request struct {
	SourcePath  string                `json:"source_path"`
	Metadata    masthead.Metadata     `json:"metadata"`
	ControlCopy *masthead.ControlCopy `json:"control_copy,omitempty"`
}

// Result describes the artifact that was written.
type Result struct {
	Path     string     `json:"path"`
	Engine   render.Tag `json:"engine"`
	Pages    int        `json:"pages"`
	Degraded bool       `json:"degraded"`

	// PrimaryErr is why the primary path was abandoned when Degraded.
	PrimaryErr   error  `json:"-"`
	PrimaryError string `json:"primary_error,omitempty"`
}

// Coordinator runs conversions. It holds no per-conversion state and is
// safe for concurrent use.
type Coordinator struct {
	layout    storage.Layout
	extractor Extractor
	primary   render.Renderer
	fallback  render.Renderer
	stamper   Stamper
	mirror    storage.Mirror
	recorder  Recorder
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithExtractor replaces the docx extractor.
func WithExtractor(e Extractor) Option { return func(c *Coordinator) { c.extractor = e } }

// WithPrimary sets the primary renderer. nil disables the primary path.
func WithPrimary(r render.Renderer) Option { return func(c *Coordinator) { c.primary = r } }

// WithFallback sets the fallback renderer.
func WithFallback(r render.Renderer) Option { return func(c *Coordinator) { c.fallback = r } }

// WithStamper replaces the pdfcpu stamper.
func WithStamper(s Stamper) Option { return func(c *Coordinator) { c.stamper = s } }

// WithMirror copies every artifact to m after it is written.
func WithMirror(m storage.Mirror) Option { return func(c *Coordinator) { c.mirror = m } }

// WithRecorder records every conversion outcome.
func WithRecorder(r Recorder) Option { return func(c *Coordinator) { c.recorder = r } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(c *Coordinator) { c.logger = l } }

// WithClock sets the time source used for "today" and artifact names.
func WithClock(now func() time.Time) Option { return func(c *Coordinator) { c.now = now } }

// New creates a Coordinator writing into layout. Without options it uses
// the docx extractor, Chrome, the text compositor and the pdfcpu stamper.
func New(layout storage.Layout, opts ...Option) *Coordinator {
	c := &Coordinator{
		layout: layout,
		logger: slog.Default(),
		now:    time.Now,
	}
	c.primary = render.NewChrome(render.ChromeConfig{})
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.With("component", "pipeline")
	if c.extractor == nil {
		c.extractor = docpipe.New(docpipe.Config{Logger: c.logger})
	}
	if c.fallback == nil {
		c.fallback = render.NewCompositor(render.ComposerConfig{Logger: c.logger})
	}
	if c.stamper == nil {
		c.stamper = render.NewStamper()
	}
	return c
}

// Convert runs one conversion:
//
//	validate -> extract markup -> primary -> done
//	                                 \-> extract text -> fallback -> done | *render.FallbackError
//
// Extraction failures stop before any rendering. Context cancellation is
// returned as is and never triggers the fallback.
func (c *Coordinator) Convert(ctx context.Context, req Request) (*Result, error) {
	start := c.now()
	res, err := c.convert(ctx, req)
	c.record(ctx, req, res, err, start)
	return res, err
}

func (c *Coordinator) convert(ctx context.Context, req Request) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := req.Metadata.Validate(); err != nil {
		return nil, err
	}
	if err := req.ControlCopy.Validate(); err != nil {
		return nil, err
	}
	if err := c.layout.Ensure(); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}

	markup, err := c.extractor.Extract(ctx, req.SourcePath, docpipe.ModeMarkup)
	if err != nil {
		return nil, err
	}
	job := render.NewJob(req.Metadata, req.ControlCopy, markup, c.now())
	log := c.logger.With("doc_number", job.Fields.DocNumber, "revision", job.Fields.RevisionNo)

	primaryErr := ErrPrimaryDisabled
	if c.primary != nil {
		res, err := c.attempt(ctx, c.primary, job)
		if err == nil {
			log.InfoContext(ctx, "pipeline: document rendered", "engine", res.Engine, "path", res.Path, "pages", res.Pages)
			c.mirrorArtifact(ctx, res.Path)
			return res, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		primaryErr = err
	}
	if c.primary == nil {
		log.InfoContext(ctx, "pipeline: primary renderer disabled, using fallback")
	} else {
		log.WarnContext(ctx, "pipeline: primary renderer failed, using fallback", "error", primaryErr)
	}

	text, err := c.extractor.Extract(ctx, req.SourcePath, docpipe.ModeText)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &render.FallbackError{Primary: primaryErr, Err: err}
	}
	job.Content = text

	res, err := c.attempt(ctx, c.fallback, job)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		log.ErrorContext(ctx, "pipeline: rendering failed completely", "error", err, "primary_error", primaryErr)
		return nil, &render.FallbackError{Primary: primaryErr, Err: err}
	}
	res.Degraded = true
	res.PrimaryErr = primaryErr
	res.PrimaryError = primaryErr.Error()
	log.InfoContext(ctx, "pipeline: document rendered", "engine", res.Engine, "path", res.Path, "pages", res.Pages)
	c.mirrorArtifact(ctx, res.Path)
	return res, nil
}

// attempt renders, stamps, writes and verifies with one engine. A failed
// verification removes the file so no unreadable artifact is left behind.
func (c *Coordinator) attempt(ctx context.Context, r render.Renderer, job *render.Job) (*Result, error) {
	tag := r.Tag()
	pdf, err := r.Render(ctx, job)
	if err != nil {
		return nil, err
	}
	pdf, err = c.stamper.Stamp(pdf, job.Fields, tag)
	if err != nil {
		return nil, err
	}

	path, err := c.layout.WriteArtifact(job.Fields.DocNumber, job.Meta.RevisionNo, string(tag), pdf, job.Now)
	if err != nil {
		return nil, &render.RenderError{Tag: tag, Stage: "write", Err: err}
	}
	info, err := docpipe.ReadPDF(path)
	if err != nil {
		os.Remove(path)
		return nil, &render.RenderError{Tag: tag, Stage: "verify", Err: err}
	}
	return &Result{Path: path, Engine: tag, Pages: info.PageCount}, nil
}

func (c *Coordinator) mirrorArtifact(ctx context.Context, path string) {
	if c.mirror == nil {
		return
	}
	if err := storage.MirrorFile(ctx, c.mirror, path, "application/pdf"); err != nil {
		c.logger.WarnContext(ctx, "pipeline: artifact mirror failed", "path", path, "error", err)
	}
}

func (c *Coordinator) record(ctx context.Context, req Request, res *Result, err error, start time.Time) {
	if c.recorder == nil {
		return
	}
	ev := observability.RenderEvent{
		DocNumber:  req.Metadata.DocNumber,
		RevisionNo: req.Metadata.RevisionNo,
		SourcePath: req.SourcePath,
		Success:    err == nil,
		Duration:   c.now().Sub(start),
	}
	if d, derr := observability.SourceDigest(req.SourcePath); derr == nil {
		ev.SourceDigest = d
	}
	if req.ControlCopy != nil {
		ev.ControlledCopy = req.ControlCopy.UserFullName
	}
	if res != nil {
		ev.Engine = string(res.Engine)
		ev.ArtifactPath = res.Path
		ev.PageCount = res.Pages
		ev.Degraded = res.Degraded
		ev.PrimaryError = res.PrimaryError
	}
	if err != nil {
		ev.Error = err.Error()
		var fe *render.FallbackError
		if errors.As(err, &fe) && fe.Primary != nil {
			ev.PrimaryError = fe.Primary.Error()
		}
	}
	// The conversion's own context may already be done.
	c.recorder.LogRender(context.WithoutCancel(ctx), ev)
}
