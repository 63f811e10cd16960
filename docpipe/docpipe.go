// Package docpipe extracts content from Word documents for rendering.
//
// A .docx file is parsed once (archive/zip → word/document.xml, with style
// names resolved from word/styles.xml) and emitted either as styled HTML for
// the primary renderer or as plain text for the fallback compositor.
//
// Style mapping:
//   - "Header", "Heading 1" → <h1>
//   - "Heading 2"           → <h2>
//   - "Heading 3"           → <h3>
//   - tables                → <table class="doc-table">
//
// Every failure is an *ExtractionError; callers must not retry or fall back.
//
// Usage:
//
//	pipe := docpipe.New(docpipe.Config{})
//	c, err := pipe.Extract(ctx, "/path/to/sop.docx", docpipe.ModeMarkup)
//	fmt.Println(c.Title, len(c.Sections), "sections")
package docpipe

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Pipeline is the document extraction engine. It holds no per-document
// state and is safe for concurrent use.
type Pipeline struct {
	cfg    Config
	logger *slog.Logger
}

// New creates a Pipeline with the given configuration.
func New(cfg Config) *Pipeline {
	cfg.defaults()
	return &Pipeline{
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Detect returns the document format based on file extension.
func (p *Pipeline) Detect(path string) (Format, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".docx":
		return FormatDocx, nil
	default:
		return "", fmt.Errorf("unsupported format: %q", ext)
	}
}

// Extract parses a document and returns its content in the given mode.
func (p *Pipeline) Extract(ctx context.Context, path string, mode Mode) (*Content, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, extractionError(path, "stat", err)
	}
	if info.IsDir() {
		return nil, extractionError(path, "stat", fmt.Errorf("is a directory"))
	}
	if info.Size() > p.cfg.MaxFileSize {
		return nil, extractionError(path, "stat",
			fmt.Errorf("file too large: %d bytes (max %d)", info.Size(), p.cfg.MaxFileSize))
	}

	format, err := p.Detect(path)
	if err != nil {
		return nil, extractionError(path, "detect", err)
	}

	p.logger.DebugContext(ctx, "docpipe: extracting document", "path", path, "format", format, "mode", mode)

	title, sections, err := parseDocx(path, p.cfg.MaxPartSize)
	if err != nil {
		return nil, err
	}

	c := &Content{
		Path:     path,
		Format:   format,
		Mode:     mode,
		Title:    title,
		Sections: sections,
	}
	switch mode {
	case ModeText:
		c.Text = renderText(sections)
	default:
		c.Markup, err = renderMarkup(sections, p.cfg.TableClass)
		if err != nil {
			return nil, extractionError(path, "render markup", err)
		}
	}
	return c, nil
}

// SupportedFormats returns all supported format extensions.
func SupportedFormats() []string {
	return []string{string(FormatDocx)}
}
